package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/1ureka/tangysync/internal/signaling"
	"github.com/1ureka/tangysync/internal/transport"
	"github.com/1ureka/tangysync/internal/util"
)

// ErrUnsafeName is returned for offers whose file name cannot be stored.
var ErrUnsafeName = errors.New("unsafe file name")

// ReceiveOnce polls the inbox once and receives every valid offer into
// saveDir. Offers are attempted independently; a failed one does not stop
// the rest. It returns how many files were received.
func (o *Orchestrator) ReceiveOnce(ctx context.Context, saveDir string) (int, error) {
	o.emit(Event{ID: uuid.NewString(), Direction: DirReceive, State: StatePolling})

	msgs, status, err := o.relay.Inbox(ctx)
	if err != nil {
		return 0, fmt.Errorf("poll inbox (status %d): %w", status, err)
	}

	received := 0
	for _, r := range signaling.Offers(msgs) {
		if ctx.Err() != nil {
			return received, ctx.Err()
		}
		if err := o.ReceiveOffer(ctx, r, saveDir); err == nil {
			received++
		}
	}
	return received, nil
}

// Watch receives offers pushed by the relay until ctx is cancelled. Each
// offer is received in its own goroutine. Watch returns once every started
// receive has finished.
func (o *Orchestrator) Watch(ctx context.Context, saveDir string) error {
	var wg sync.WaitGroup
	defer wg.Wait()

	return o.relay.Subscribe(ctx, func(m signaling.Message) {
		for _, r := range signaling.Offers([]signaling.Message{m}) {
			wg.Add(1)
			go func() {
				defer wg.Done()
				o.ReceiveOffer(ctx, r, saveDir)
			}()
		}
	})
}

// ReceiveOffer dials the sender of one offer and stores the file as
// saveDir/<base name>. Partial output is kept on failure.
func (o *Orchestrator) ReceiveOffer(ctx context.Context, r signaling.Received, saveDir string) error {
	o.active.Add(1)
	defer o.active.Add(-1)

	e := Event{
		ID:        uuid.NewString(),
		Direction: DirReceive,
		Peer:      r.From,
		Name:      r.Offer.Name,
		Total:     r.Offer.Size,
	}
	err := o.receive(ctx, e, r.Offer, saveDir)
	if err != nil {
		e.State, e.Err = StateFailed, err
	} else {
		e.State, e.Done = StateCompleted, r.Offer.Size
	}
	o.emit(e)
	return err
}

func (o *Orchestrator) receive(ctx context.Context, e Event, offer signaling.Offer, saveDir string) error {
	name, err := safeName(offer.Name)
	if err != nil {
		return err
	}

	e.State = StateConnecting
	o.emit(e)

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", offer.Addr())
	if err != nil {
		return fmt.Errorf("dial %s: %w", offer.Addr(), err)
	}
	defer conn.Close()

	e.State = StateTransferring
	o.emit(e)
	o.stats.AddStarted()

	res, err := transport.Receive(ctx, conn, transport.ReceiveRequest{
		Path:           filepath.Join(saveDir, name),
		ExpectedSize:   offer.Size,
		ExpectedDigest: offer.SHA256,
		OnRead:         o.stats.AddRecv,
		Progress: func(done, total int64) {
			p := e
			p.Done, p.Total = done, total
			o.bus.publish(p)
		},
	})
	if err != nil {
		o.stats.AddFailed()
		return err
	}
	o.stats.AddCompleted()
	util.LogDebug("stored %s (%d bytes, %s)", filepath.Join(saveDir, name), res.Written, res.Digest)
	return nil
}

// safeName reduces an offered name to a plain file name.
func safeName(name string) (string, error) {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	switch base {
	case "", ".", "..", "/":
		return "", fmt.Errorf("%w: %q", ErrUnsafeName, name)
	}
	return base, nil
}
