// Package transport moves one file over a byte stream using the framing in
// package protocol. Send and Receive are strictly sequential: one header,
// then body frames in file order, then the EOF sentinel.
package transport

import (
	"context"
	"errors"
	"io"
	"time"
)

// Receive failures. Partial output is left on disk for all of them.
var (
	ErrDeclaredSize   = errors.New("declared size does not match the offer")
	ErrSizeMismatch   = errors.New("received byte count does not match declared size")
	ErrDigestMismatch = errors.New("received data digest does not match")
)

// Progress is called after every body frame with the bytes done so far and
// the total expected.
type Progress func(done, total int64)

// deadliner is implemented by net.Conn.
type deadliner interface {
	SetDeadline(t time.Time) error
}

// watchCancel makes a blocked read or write on rw return as soon as ctx is
// cancelled, by forcing an immediate deadline. The returned stop function
// must be called when the transfer ends.
func watchCancel(ctx context.Context, rw any) (stop func() bool) {
	d, ok := rw.(deadliner)
	if !ok {
		return func() bool { return false }
	}
	return context.AfterFunc(ctx, func() {
		d.SetDeadline(time.Now())
	})
}

// ioErr prefers the context error over the I/O error it caused.
func ioErr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}

// countingWriter forwards to w and reports each write's size.
type countingWriter struct {
	w   io.Writer
	add func(int)
}

func (c countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	if c.add != nil && n > 0 {
		c.add(n)
	}
	return n, err
}
