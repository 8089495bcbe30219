package mcdf

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pierrec/lz4/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeNative(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, WriteFile(path, sampleRecord()))
}

// legacyRecord has a long description so the header compresses well.
func legacyRecord() Record {
	rec := sampleRecord()
	rec.Description = strings.Repeat("summer set ", 200)
	return rec
}

// legacyStream encodes data in the chunked legacy LZ4 layout: the first
// split bytes as one compressed chunk, the rest as one stored chunk.
func legacyStream(t *testing.T, data []byte, split int) []byte {
	t.Helper()
	var out bytes.Buffer
	put := func(v int) { out.Write(binary.AppendUvarint(nil, uint64(v))) }

	head := data[:split]
	block := make([]byte, lz4.CompressBlockBound(len(head)))
	n, err := lz4.CompressBlock(head, block, nil)
	require.NoError(t, err)
	require.Positive(t, n, "fixture must be compressible")
	put(chunkCompressed)
	put(len(head))
	put(n)
	out.Write(block[:n])

	tail := data[split:]
	put(0x02) // high-compression flag on a stored chunk
	put(len(tail))
	out.Write(tail)
	return out.Bytes()
}

func legacyPlain(t *testing.T) ([]byte, int) {
	t.Helper()
	var plain bytes.Buffer
	require.NoError(t, Write(&plain, legacyRecord()))
	headerLen := plain.Len()
	plain.Write(bytes.Repeat([]byte{0xAB}, 8192))
	return plain.Bytes(), headerLen
}

func writeLegacy(t *testing.T, path string) {
	t.Helper()
	plain, headerLen := legacyPlain(t)
	// The header straddles the compressed and the stored chunk.
	require.NoError(t, os.WriteFile(path, legacyStream(t, plain, headerLen/2), 0o644))
}

func writeLegacyFrame(t *testing.T, path string) {
	t.Helper()
	plain, _ := legacyPlain(t)

	var out bytes.Buffer
	zw := lz4.NewWriter(&out)
	_, err := zw.Write(plain)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, os.WriteFile(path, out.Bytes(), 0o644))
}

func writeZip(t *testing.T, path, entry string, p Payload) {
	t.Helper()
	var out bytes.Buffer
	zw := zip.NewWriter(&out)
	if entry != "" {
		w, err := zw.Create(entry)
		require.NoError(t, err)
		require.NoError(t, json.NewEncoder(w).Encode(p))
	}
	w, err := zw.Create("readme.txt")
	require.NoError(t, err)
	_, err = w.Write([]byte("not a payload"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, os.WriteFile(path, out.Bytes(), 0o644))
}

func TestReadLegacy(t *testing.T) {
	testCases := []struct {
		name  string
		write func(t *testing.T, path string)
	}{
		{"chunked stream", writeLegacy},
		{"lz4 frame", writeLegacyFrame},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "old.mcdf")
			tc.write(t, path)

			f, err := os.Open(path)
			require.NoError(t, err)
			defer f.Close()

			p, err := ReadLegacy(f)
			require.NoError(t, err)
			assert.Equal(t, sampleRecord().Payload(), p)
		})
	}
}

func TestReadLegacyStoredOnly(t *testing.T) {
	var plain bytes.Buffer
	require.NoError(t, Write(&plain, sampleRecord()))

	var stream bytes.Buffer
	stream.Write(binary.AppendUvarint(nil, 0x02))
	stream.Write(binary.AppendUvarint(nil, uint64(plain.Len())))
	stream.Write(plain.Bytes())

	p, err := ReadLegacy(&stream)
	require.NoError(t, err)
	assert.Equal(t, sampleRecord().Payload(), p)
}

func TestReadLegacyChunkErrors(t *testing.T) {
	plain, headerLen := legacyPlain(t)
	valid := legacyStream(t, plain, headerLen/2)

	corrupt := bytes.Clone(valid)
	// Overwrite the compressed block after its three uvarint prefixes.
	for i := 6; i < 40; i++ {
		corrupt[i] = 0xFF
	}

	testCases := []struct {
		name string
		data []byte
	}{
		{"multi-pass", []byte{0x04, 0x01, 0x00}},
		{"truncated data", []byte{0x00, 0x10, 'M', 'C'}},
		{"truncated length", []byte{0x01}},
		{"oversized chunk", append([]byte{0x00}, binary.AppendUvarint(nil, MaxPayloadSize+1)...)},
		{"corrupt block", corrupt},
		{"cut mid header", valid[:len(valid)/4]},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ReadLegacy(bytes.NewReader(tc.data))
			assert.Error(t, err)
		})
	}
}

func TestReadLegacyRejectsPlainContainer(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleRecord()))

	_, err := ReadLegacy(&buf)
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	want := sampleRecord().Payload()
	full := Payload{
		GlamourerBase64:    "glam",
		CustomizePlusJSON:  "{}",
		HeelsJSON:          `{"Offset":0.1}`,
		HonorificJSON:      `{"Title":"x"}`,
		PenumbraCollection: "Default",
	}

	testCases := []struct {
		name  string
		file  string
		setup func(t *testing.T, path string)
		want  Payload
	}{
		{"native", "look.mcdf", writeNative, want},
		{"native any extension", "look.dat", writeNative, want},
		{"legacy lz4", "look.mcdf", writeLegacy, want},
		{"legacy lz4 any extension", "look.bin", writeLegacy, want},
		{"legacy lz4 frame", "look.mcdf", writeLegacyFrame, want},
		{"zip v1 entry", "look.zip", func(t *testing.T, path string) {
			writeZip(t, path, "v1/payload.json", full)
		}, full},
		{"zip root entry", "look.mcdf", func(t *testing.T, path string) {
			writeZip(t, path, "payload.json", full)
		}, full},
		{"json", "look.json", func(t *testing.T, path string) {
			data, err := json.Marshal(full)
			require.NoError(t, err)
			require.NoError(t, os.WriteFile(path, data, 0o644))
		}, full},
		{"json without extension", "look", func(t *testing.T, path string) {
			require.NoError(t, os.WriteFile(path, []byte(`{"HeelsJson":"h"}`), 0o644))
		}, Payload{HeelsJSON: "h"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tc.file)
			tc.setup(t, path)

			got, err := Load(path)
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, tc.want, *got)
		})
	}
}

func TestLoadFailures(t *testing.T) {
	testCases := []struct {
		name  string
		file  string
		setup func(t *testing.T, path string)
	}{
		{"missing file", "gone.mcdf", func(*testing.T, string) {}},
		{"garbage", "junk.mcdf", func(t *testing.T, path string) {
			require.NoError(t, os.WriteFile(path, []byte("definitely not a container"), 0o644))
		}},
		{"garbage unknown extension", "junk.xyz", func(t *testing.T, path string) {
			require.NoError(t, os.WriteFile(path, []byte{0x00, 0x01, 0x02}, 0o644))
		}},
		{"zip without payload", "empty.zip", func(t *testing.T, path string) {
			writeZip(t, path, "", Payload{})
		}},
		{"bad json", "look.json", func(t *testing.T, path string) {
			require.NoError(t, os.WriteFile(path, []byte(`{"GlamourerBase64":`), 0o644))
		}},
		{"wrong version", "future.mcdf", func(t *testing.T, path string) {
			require.NoError(t, os.WriteFile(path, []byte("MCDF\x09\x00\x00\x00\x00"), 0o644))
		}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tc.file)
			tc.setup(t, path)

			got, err := Load(path)
			assert.Nil(t, got)
			assert.ErrorIs(t, err, ErrNoPayload)
		})
	}
}
