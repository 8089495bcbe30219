package app

import (
	"sync"
	"time"
)

// State is a step of the sender or receiver state machine.
//
//	sender:   Idle → Offering → AwaitingPeer → Transferring → Completed | Failed
//	receiver: Idle → Polling → Connecting → Transferring → Completed | Failed
type State string

const (
	StateIdle         State = "idle"
	StateOffering     State = "offering"
	StateAwaitingPeer State = "awaiting-peer"
	StatePolling      State = "polling"
	StateConnecting   State = "connecting"
	StateTransferring State = "transferring"
	StateCompleted    State = "completed"
	StateFailed       State = "failed"
)

// Terminal reports whether s ends a transfer.
func (s State) Terminal() bool { return s == StateCompleted || s == StateFailed }

// Direction tells sends and receives apart.
type Direction string

const (
	DirSend    Direction = "send"
	DirReceive Direction = "receive"
)

// Event is one status update. Done and Total are set while transferring.
type Event struct {
	ID        string
	Direction Direction
	State     State
	Peer      string
	Name      string
	Done      int64
	Total     int64
	Err       error
	Time      time.Time
}

const eventBuffer = 64

// bus fans events out to subscribers without ever blocking the publisher.
// A subscriber that falls behind misses events.
type bus struct {
	mu   sync.Mutex
	subs map[chan Event]struct{}
}

func (b *bus) subscribe() (<-chan Event, func()) {
	ch := make(chan Event, eventBuffer)

	b.mu.Lock()
	if b.subs == nil {
		b.subs = make(map[chan Event]struct{})
	}
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, ch)
			b.mu.Unlock()
			close(ch)
		})
	}
}

func (b *bus) publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}
