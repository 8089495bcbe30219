// Package util provides shared utility functions.
package util

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
)

// HashBlockSize is the read size used by SHA256File.
const HashBlockSize = 1 << 20

// SHA256File computes the SHA-256 digest of the file at path, reading it in
// HashBlockSize blocks so memory stays bounded regardless of file size.
// The digest is returned as 64 uppercase hex characters.
func SHA256File(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	buf := make([]byte, HashBlockSize)
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		n, err := f.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("read %s: %w", path, err)
		}
	}

	return FormatDigest(h.Sum(nil)), nil
}

// FormatDigest renders a raw digest the way digests are compared and
// advertised everywhere else: uppercase hex.
func FormatDigest(sum []byte) string {
	return strings.ToUpper(hex.EncodeToString(sum))
}

// DigestEqual reports whether two hex digests are equal, ignoring case.
func DigestEqual(a, b string) bool {
	return strings.EqualFold(a, b)
}
