// Package chunk splits a file into an ordered, lazily read sequence of
// fixed-size chunks.
package chunk

import (
	"context"
	"fmt"
	"io"
	"iter"
	"os"

	"github.com/1ureka/tangysync/internal/protocol"
)

// DefaultSize is the chunk size used when none is given.
const DefaultSize = 1 << 20

// Chunk is one slice of the file. Data is owned by the receiver of the
// chunk; the producer never reuses it.
type Chunk struct {
	Index int64
	Len   int
	Data  []byte
}

// Producer yields the chunks of one file.
type Producer struct {
	path string
	size int
}

// New creates a producer for path. A size of zero or less selects
// DefaultSize; sizes above protocol.MaxFrameSize are clamped to it.
func New(path string, size int) *Producer {
	if size <= 0 {
		size = DefaultSize
	}
	size = min(size, protocol.MaxFrameSize)
	return &Producer{path: path, size: size}
}

// Size returns the chunk size in bytes.
func (p *Producer) Size() int { return p.size }

// Chunks returns the chunk sequence. Every range over the result opens its
// own file handle, so calling Chunks again restarts from the first chunk.
//
// Errors are yielded as the second value and end the sequence; that includes
// ctx.Err() when ctx is cancelled between reads. An empty file yields nothing.
func (p *Producer) Chunks(ctx context.Context) iter.Seq2[Chunk, error] {
	return func(yield func(Chunk, error) bool) {
		f, err := os.Open(p.path)
		if err != nil {
			yield(Chunk{}, fmt.Errorf("open %s: %w", p.path, err))
			return
		}
		defer f.Close()

		buf := make([]byte, p.size)
		for index := int64(0); ; index++ {
			if err := ctx.Err(); err != nil {
				yield(Chunk{}, err)
				return
			}

			n, err := io.ReadFull(f, buf)
			if n > 0 {
				data := make([]byte, n)
				copy(data, buf[:n])
				if !yield(Chunk{Index: index, Len: n, Data: data}, nil) {
					return
				}
			}

			switch err {
			case nil:
			case io.EOF, io.ErrUnexpectedEOF:
				return
			default:
				yield(Chunk{}, fmt.Errorf("read %s: %w", p.path, err))
				return
			}
		}
	}
}
