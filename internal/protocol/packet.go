// Package protocol defines the wire format of a file transfer stream.
//
//	HEADER := int32-LE headerLen, headerLen bytes of UTF-8 JSON {name, size, sha256, chunk}
//	BODY   := (int32-LE chunkLen, chunkLen bytes)* followed by int32-LE 0
package protocol

// LengthSize is the size of every length prefix: one little-endian int32.
const LengthSize = 4

// EOF is the frame length that terminates the body.
const EOF int32 = 0

// Limits applied by the readers. Chunk sizes are clamped to MaxFrameSize.
const (
	MaxHeaderSize = 1 << 20  // 1 MiB of header JSON
	MaxFrameSize  = 64 << 20 // 64 MiB per body frame
)

// Header is the JSON document sent once before the body.
type Header struct {
	Name   string `json:"name"`
	Size   int64  `json:"size"`
	SHA256 string `json:"sha256"`
	Chunk  int32  `json:"chunk"`
}
