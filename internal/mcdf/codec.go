package mcdf

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Container layout constants.
const (
	Version        byte = 1
	MaxPayloadSize      = 64 << 20
	headerSize          = 4 + 1 + 4 // magic + version + length
)

// Magic opens every container.
var Magic = [4]byte{'M', 'C', 'D', 'F'}

// Structural errors. All of them mean no record was produced.
var (
	ErrNotContainer       = errors.New("not a recognized container")
	ErrUnsupportedVersion = errors.New("unsupported container version")
	ErrCorruptMetadata    = errors.New("corrupt metadata")
)

// VersionError reports the version byte that was found.
type VersionError struct {
	Version byte
}

func (e *VersionError) Error() string {
	return fmt.Sprintf("%v %d", ErrUnsupportedVersion, e.Version)
}

func (e *VersionError) Is(target error) bool {
	return target == ErrUnsupportedVersion
}

// Write emits magic, version, the int32-LE JSON length and the JSON itself.
func Write(w io.Writer, rec Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	if len(payload) > MaxPayloadSize {
		return fmt.Errorf("record is %d bytes, limit %d", len(payload), MaxPayloadSize)
	}

	buf := make([]byte, headerSize, headerSize+len(payload))
	copy(buf[:4], Magic[:])
	buf[4] = Version
	binary.LittleEndian.PutUint32(buf[5:9], uint32(len(payload)))
	buf = append(buf, payload...)

	_, err = w.Write(buf)
	return err
}

// WriteFile writes rec to path, creating parent directories.
func WriteFile(path string, rec Record) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(f)
	if err := Write(bw, rec); err != nil {
		f.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Read parses a native container. Bytes after the JSON are ignored.
func Read(r io.Reader) (Record, error) {
	body, err := readHeader(r)
	if err != nil {
		return Record{}, err
	}

	var rec Record
	if err := json.Unmarshal(body, &rec); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrCorruptMetadata, err)
	}
	return rec, nil
}

// ReadFile parses the native container at path.
func ReadFile(path string) (Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return Record{}, err
	}
	defer f.Close()
	return Read(bufio.NewReader(f))
}

// readHeader validates magic and version and returns the raw JSON bytes.
func readHeader(r io.Reader) ([]byte, error) {
	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotContainer, err)
	}
	if magic != Magic {
		return nil, fmt.Errorf("%w: magic %q", ErrNotContainer, magic[:])
	}

	var fixed [5]byte
	if _, err := io.ReadFull(r, fixed[:1]); err != nil {
		return nil, fmt.Errorf("%w: missing version: %v", ErrCorruptMetadata, err)
	}
	if fixed[0] != Version {
		return nil, &VersionError{Version: fixed[0]}
	}

	if _, err := io.ReadFull(r, fixed[1:]); err != nil {
		return nil, fmt.Errorf("%w: missing length: %v", ErrCorruptMetadata, err)
	}
	n := int32(binary.LittleEndian.Uint32(fixed[1:]))
	if n < 0 || n > MaxPayloadSize {
		return nil, fmt.Errorf("%w: payload length %d", ErrCorruptMetadata, n)
	}

	var body bytes.Buffer
	if _, err := io.CopyN(&body, r, int64(n)); err != nil {
		return nil, fmt.Errorf("%w: truncated payload: %v", ErrCorruptMetadata, err)
	}
	return body.Bytes(), nil
}
