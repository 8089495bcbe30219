package app

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/1ureka/tangysync/internal/chunk"
	"github.com/1ureka/tangysync/internal/signaling"
	"github.com/1ureka/tangysync/internal/transport"
	"github.com/1ureka/tangysync/internal/util"
)

// SendFile offers path to the handle to and serves it to the first peer that
// connects. Any send already running on o is cancelled first. The listener
// is closed exactly once on every path, including cancellation.
func (o *Orchestrator) SendFile(ctx context.Context, to, path string) error {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	o.mu.Lock()
	prevCancel, prevDone := o.cancelSend, o.sendDone
	o.cancelSend, o.sendDone = cancel, done
	o.mu.Unlock()

	defer func() {
		cancel()
		o.mu.Lock()
		if o.sendDone == done {
			o.cancelSend, o.sendDone = nil, nil
		}
		o.mu.Unlock()
		close(done)
	}()

	if prevCancel != nil {
		prevCancel()
		select {
		case <-prevDone:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	o.active.Add(1)
	defer o.active.Add(-1)

	e := Event{ID: uuid.NewString(), Direction: DirSend, Peer: to, Name: filepath.Base(path)}
	err := o.send(ctx, e, path)
	if err != nil {
		e.State, e.Err = StateFailed, err
	} else {
		e.State = StateCompleted
	}
	o.emit(e)
	return err
}

func (o *Orchestrator) send(ctx context.Context, e Event, path string) error {
	e.State = StateOffering
	o.emit(e)

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	e.Total = info.Size()

	digest, err := util.SHA256File(ctx, path)
	if err != nil {
		return err
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", ":0")
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	closeListener := sync.OnceFunc(func() { ln.Close() })
	defer closeListener()
	stop := context.AfterFunc(ctx, closeListener)
	defer stop()

	chunkSize := o.cfg.Transfer.ChunkSize
	if chunkSize <= 0 {
		chunkSize = chunk.DefaultSize
	}
	offer := signaling.Offer{
		Type:   signaling.OfferType,
		IP:     util.AdvertiseIP(o.cfg.Transfer.AdvertiseIP).String(),
		Port:   uint16(ln.Addr().(*net.TCPAddr).Port),
		Name:   e.Name,
		Size:   info.Size(),
		SHA256: digest,
		Chunk:  int32(chunkSize),
	}
	sdp, err := offer.Encode()
	if err != nil {
		return err
	}

	status, err := o.relay.PostOffer(ctx, e.Peer, sdp)
	if err != nil {
		return fmt.Errorf("post offer (status %d): %w", status, err)
	}
	if status < 200 || status > 299 {
		return fmt.Errorf("post offer: relay returned %d", status)
	}

	e.State = StateAwaitingPeer
	o.emit(e)

	conn, err := ln.Accept()
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("accept: %w", err)
	}
	defer conn.Close()
	closeListener()
	util.LogDebug("peer connected from %s", conn.RemoteAddr())

	e.State = StateTransferring
	o.emit(e)
	o.stats.AddStarted()

	err = transport.Send(ctx, conn, transport.SendRequest{
		Path:           path,
		Digest:         digest,
		BytesPerSecond: o.cfg.Transfer.BytesPerSecond,
		ChunkSize:      chunkSize,
		OnWrite:        o.stats.AddSent,
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
	return nil
}
