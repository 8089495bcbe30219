package protocol

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// ErrBadLength is returned for a negative or oversized length prefix.
var ErrBadLength = errors.New("invalid frame length")

// PutLength encodes n into the first LengthSize bytes of buf.
func PutLength(buf []byte, n int32) {
	binary.LittleEndian.PutUint32(buf, uint32(n))
}

// Length decodes a length prefix.
func Length(buf []byte) int32 {
	return int32(binary.LittleEndian.Uint32(buf))
}

// WriteHeader writes the length-prefixed header JSON.
func WriteHeader(w io.Writer, h Header) error {
	body, err := json.Marshal(h)
	if err != nil {
		return fmt.Errorf("encode header: %w", err)
	}
	if err := WriteFrame(w, body); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	return nil
}

// ReadHeader reads and decodes the header frame.
func ReadHeader(r io.Reader) (Header, error) {
	n, err := ReadLength(r)
	if err != nil {
		return Header{}, fmt.Errorf("read header length: %w", err)
	}
	if n <= 0 || n > MaxHeaderSize {
		return Header{}, fmt.Errorf("header length %d: %w", n, ErrBadLength)
	}

	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return Header{}, fmt.Errorf("read header: %w", err)
	}

	var h Header
	if err := json.Unmarshal(body, &h); err != nil {
		return Header{}, fmt.Errorf("decode header: %w", err)
	}
	return h, nil
}

// WriteFrame writes one length-prefixed frame. An empty payload writes the
// EOF sentinel, so callers end the body with WriteEOF rather than an empty frame.
func WriteFrame(w io.Writer, payload []byte) error {
	var prefix [LengthSize]byte
	PutLength(prefix[:], int32(len(payload)))
	if _, err := w.Write(prefix[:]); err != nil {
		return err
	}
	if len(payload) == 0 {
		return nil
	}
	_, err := w.Write(payload)
	return err
}

// WriteEOF writes the zero-length end-of-stream frame.
func WriteEOF(w io.Writer) error {
	return WriteFrame(w, nil)
}

// ReadLength reads one length prefix.
func ReadLength(r io.Reader) (int32, error) {
	var prefix [LengthSize]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return 0, err
	}
	return Length(prefix[:]), nil
}

// ReadFrame reads one body frame into buf, growing it when needed, and
// returns the payload. A nil payload with a nil error is the EOF sentinel.
func ReadFrame(r io.Reader, buf []byte) ([]byte, error) {
	n, err := ReadLength(r)
	if err != nil {
		return nil, fmt.Errorf("read frame length: %w", err)
	}
	if n == EOF {
		return nil, nil
	}
	if n < 0 || n > MaxFrameSize {
		return nil, fmt.Errorf("frame length %d: %w", n, ErrBadLength)
	}

	if cap(buf) < int(n) {
		buf = make([]byte, n)
	}
	buf = buf[:n]
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("read frame: %w", err)
	}
	return buf, nil
}
