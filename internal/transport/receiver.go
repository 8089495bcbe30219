package transport

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/1ureka/tangysync/internal/protocol"
	"github.com/1ureka/tangysync/internal/util"
)

// ReceiveRequest describes where an inbound file goes and what it must match.
type ReceiveRequest struct {
	Path           string // destination file; parent directories are created
	ExpectedSize   int64  // zero or less skips the declared-size check
	ExpectedDigest string // empty skips digest verification
	Progress       Progress
	OnRead         func(n int) // raw byte counter, e.g. util.Stats.AddRecv
}

// Result describes what was received, including on failure.
type Result struct {
	Header  protocol.Header
	Written int64
	Digest  string // uppercase hex of the bytes written
}

// Receive reads a header and body from r into req.Path.
//
// If ExpectedSize disagrees with the header, ErrDeclaredSize is returned and
// no file is created. After the EOF sentinel the written byte count must equal
// the declared size and, when an expected digest was given, the digests must
// match. Output written before a failure or cancellation is kept on disk.
func Receive(ctx context.Context, r io.Reader, req ReceiveRequest) (Result, error) {
	var res Result

	stop := watchCancel(ctx, r)
	defer stop()

	if err := ctx.Err(); err != nil {
		return res, err
	}
	header, err := protocol.ReadHeader(r)
	if err != nil {
		return res, ioErr(ctx, err)
	}
	res.Header = header

	if req.ExpectedSize > 0 && header.Size != req.ExpectedSize {
		return res, fmt.Errorf("header says %d bytes, offer said %d: %w",
			header.Size, req.ExpectedSize, ErrDeclaredSize)
	}

	if err := os.MkdirAll(filepath.Dir(req.Path), 0o755); err != nil {
		return res, fmt.Errorf("create directory: %w", err)
	}
	f, err := os.Create(req.Path)
	if err != nil {
		return res, fmt.Errorf("create %s: %w", req.Path, err)
	}
	defer f.Close()

	sum := sha256.New()
	var buf []byte
	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		payload, err := protocol.ReadFrame(r, buf)
		if err != nil {
			return res, ioErr(ctx, err)
		}
		if payload == nil {
			break
		}
		buf = payload
		if req.OnRead != nil {
			req.OnRead(len(payload) + protocol.LengthSize)
		}

		if _, err := f.Write(payload); err != nil {
			return res, fmt.Errorf("write %s: %w", req.Path, err)
		}
		sum.Write(payload)
		res.Written += int64(len(payload))

		if req.Progress != nil {
			req.Progress(res.Written, header.Size)
		}
	}
	res.Digest = util.FormatDigest(sum.Sum(nil))

	if res.Written != header.Size {
		return res, fmt.Errorf("got %d bytes, header declared %d: %w",
			res.Written, header.Size, ErrSizeMismatch)
	}
	if req.ExpectedDigest != "" && !util.DigestEqual(res.Digest, req.ExpectedDigest) {
		return res, fmt.Errorf("got %s, expected %s: %w",
			res.Digest, req.ExpectedDigest, ErrDigestMismatch)
	}
	return res, nil
}
