// Package app drives transfers end to end: it announces files through the
// relay, serves or dials the direct TCP connection, and reports progress.
package app

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/1ureka/tangysync/internal/config"
	"github.com/1ureka/tangysync/internal/signaling"
	"github.com/1ureka/tangysync/internal/util"
)

// Relay is the part of signaling.Client the orchestrator uses.
type Relay interface {
	PostOffer(ctx context.Context, to, sdp string) (int, error)
	Inbox(ctx context.Context) ([]signaling.Message, int, error)
	Heartbeat(ctx context.Context, p signaling.Presence) (int, error)
	Subscribe(ctx context.Context, fn func(signaling.Message)) error
}

// Orchestrator runs sends and receives for one local user. At most one send
// is in flight: starting another cancels the previous one. Receives are
// independent of each other and of sends.
type Orchestrator struct {
	cfg   config.Config
	relay Relay
	stats *util.Stats
	bus   bus

	mu         sync.Mutex
	cancelSend context.CancelFunc
	sendDone   chan struct{}

	active  atomic.Int32 // transfers currently running
	beating atomic.Bool  // a heartbeat request is in flight
	beats   sync.WaitGroup
}

// New creates an orchestrator. A nil stats gets a private counter set.
func New(cfg config.Config, relay Relay, stats *util.Stats) *Orchestrator {
	if stats == nil {
		stats = &util.Stats{}
	}
	return &Orchestrator{cfg: cfg, relay: relay, stats: stats}
}

// Subscribe returns a channel of status events and a function that ends the
// subscription. Slow subscribers miss events rather than stall transfers.
func (o *Orchestrator) Subscribe() (<-chan Event, func()) {
	return o.bus.subscribe()
}

// Stats returns the counters this orchestrator feeds.
func (o *Orchestrator) Stats() *util.Stats { return o.stats }

// Busy reports whether any transfer is running.
func (o *Orchestrator) Busy() bool { return o.active.Load() > 0 }

func (o *Orchestrator) emit(e Event) {
	o.bus.publish(e)
	switch {
	case e.State == StateFailed:
		util.LogTransfer(e.ID, "transfer failed", "dir", e.Direction, "peer", e.Peer, "name", e.Name, "err", e.Err)
	case e.State == StateTransferring && e.Done > 0:
		// progress, too chatty for the log
	default:
		util.LogTransfer(e.ID, string(e.State), "dir", e.Direction, "peer", e.Peer, "name", e.Name)
	}
}
