package transport

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/1ureka/tangysync/internal/chunk"
	"github.com/1ureka/tangysync/internal/protocol"
	"github.com/1ureka/tangysync/internal/ratelimit"
)

// SendRequest describes one outbound file.
type SendRequest struct {
	Path           string
	Digest         string // precomputed, uppercase hex; may be empty
	BytesPerSecond int64  // floored by ratelimit.MinBytesPerSecond
	ChunkSize      int    // zero selects chunk.DefaultSize
	Progress       Progress
	OnWrite        func(n int) // raw byte counter, e.g. util.Stats.AddSent
}

// Send writes the header, then every chunk of the file paced by a token
// bucket, then the EOF sentinel. The caller owns w and closes it.
func Send(ctx context.Context, w io.Writer, req SendRequest) error {
	info, err := os.Stat(req.Path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", req.Path, err)
	}

	stop := watchCancel(ctx, w)
	defer stop()

	out := countingWriter{w: w, add: req.OnWrite}
	producer := chunk.New(req.Path, req.ChunkSize)
	bucket := ratelimit.New(req.BytesPerSecond)

	header := protocol.Header{
		Name:   filepath.Base(req.Path),
		Size:   info.Size(),
		SHA256: req.Digest,
		Chunk:  int32(producer.Size()),
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := protocol.WriteHeader(out, header); err != nil {
		return ioErr(ctx, err)
	}

	var done int64
	for c, err := range producer.Chunks(ctx) {
		if err != nil {
			return err
		}
		if err := bucket.Wait(ctx, c.Len+protocol.LengthSize); err != nil {
			return err
		}
		if err := protocol.WriteFrame(out, c.Data); err != nil {
			return ioErr(ctx, fmt.Errorf("write chunk %d: %w", c.Index, err))
		}

		done += int64(c.Len)
		if req.Progress != nil {
			req.Progress(done, header.Size)
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := protocol.WriteEOF(out); err != nil {
		return ioErr(ctx, fmt.Errorf("write eof: %w", err))
	}
	return nil
}
