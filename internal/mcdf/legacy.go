package mcdf

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/pierrec/lz4/v4"
)

// Chunk flags of the legacy LZ4 stream.
const (
	chunkCompressed = 0x01
	chunkPasses     = 0x7c // 0x04 through 0x40
	maxChunkSize    = MaxPayloadSize
)

// frameMagic opens a standard LZ4 frame. Legacy streams have no magic.
var frameMagic = []byte{0x04, 0x22, 0x4d, 0x18}

// ErrLegacyChunk reports a malformed chunk in a legacy stream.
var ErrLegacyChunk = errors.New("malformed legacy chunk")

// legacyHeader lists the only header fields read from a legacy container.
type legacyHeader struct {
	GlamourerData     string `json:"GlamourerData"`
	CustomizePlusData string `json:"CustomizePlusData"`
}

// ReadLegacy reads the LZ4-compressed container variant. Its decompressed
// stream starts with the same magic, version and length-prefixed JSON as a
// native container, followed by file contents that are never decoded: the
// reader stops right after the header.
//
// The usual encoding is the chunked legacy LZ4 stream; a standard LZ4 frame
// is accepted too.
func ReadLegacy(r io.Reader) (Payload, error) {
	br := bufio.NewReader(r)

	var zr io.Reader
	if magic, err := br.Peek(len(frameMagic)); err == nil && bytes.Equal(magic, frameMagic) {
		zr = lz4.NewReader(br)
	} else {
		zr = newChunkReader(br)
	}

	body, err := readHeader(zr)
	if err != nil {
		return Payload{}, fmt.Errorf("legacy container: %w", err)
	}

	var h legacyHeader
	if err := json.Unmarshal(body, &h); err != nil {
		return Payload{}, fmt.Errorf("legacy container: %w: %v", ErrCorruptMetadata, err)
	}
	return Payload{
		GlamourerBase64:   h.GlamourerData,
		CustomizePlusJSON: h.CustomizePlusData,
	}, nil
}

// chunkReader decodes the chunked legacy LZ4 stream. Each chunk is
//
//	uvarint flags, uvarint original length,
//	[uvarint compressed length if flags&1], data
//
// Compressed chunks hold one raw LZ4 block; others are stored as is.
type chunkReader struct {
	r       *bufio.Reader
	pending []byte
	src     []byte
	dst     []byte
}

func newChunkReader(r *bufio.Reader) *chunkReader {
	return &chunkReader{r: r}
}

func (c *chunkReader) Read(p []byte) (int, error) {
	for len(c.pending) == 0 {
		if err := c.next(); err != nil {
			return 0, err
		}
	}
	n := copy(p, c.pending)
	c.pending = c.pending[n:]
	return n, nil
}

// next decodes one chunk into c.pending. It returns io.EOF only at a chunk
// boundary.
func (c *chunkReader) next() error {
	flags, err := binary.ReadUvarint(c.r)
	if err != nil {
		if err == io.EOF {
			return io.EOF
		}
		return fmt.Errorf("%w: flags: %v", ErrLegacyChunk, err)
	}
	if flags&chunkPasses != 0 {
		return fmt.Errorf("%w: multi-pass chunks are not supported", ErrLegacyChunk)
	}

	original, err := c.length("original length")
	if err != nil {
		return err
	}
	stored := original
	compressed := flags&chunkCompressed != 0
	if compressed {
		if stored, err = c.length("compressed length"); err != nil {
			return err
		}
	}

	c.src = grow(c.src, stored)
	if _, err := io.ReadFull(c.r, c.src); err != nil {
		return fmt.Errorf("%w: data: %v", ErrLegacyChunk, err)
	}
	if !compressed {
		c.pending = c.src
		return nil
	}

	c.dst = grow(c.dst, original)
	n, err := lz4.UncompressBlock(c.src, c.dst)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLegacyChunk, err)
	}
	if n != original {
		return fmt.Errorf("%w: decoded %d bytes, expected %d", ErrLegacyChunk, n, original)
	}
	c.pending = c.dst
	return nil
}

func (c *chunkReader) length(what string) (int, error) {
	v, err := binary.ReadUvarint(c.r)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrLegacyChunk, what, noEOF(err))
	}
	if v > maxChunkSize {
		return 0, fmt.Errorf("%w: %s %d", ErrLegacyChunk, what, v)
	}
	return int(v), nil
}

func grow(b []byte, n int) []byte {
	if cap(b) < n {
		return make([]byte, n)
	}
	return b[:n]
}

func noEOF(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}
