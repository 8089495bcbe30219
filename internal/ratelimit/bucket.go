// Package ratelimit implements the token bucket that paces a single transfer.
package ratelimit

import (
	"context"
	"time"
)

// Tuning constants.
const (
	MinBytesPerSecond = 32_000                 // floor to avoid pathological stalls
	minSleep          = 5 * time.Millisecond   // shortest suspension per wait step
	maxSleep          = 250 * time.Millisecond // longest suspension per wait step
)

// Bucket is a token bucket measured in bytes. Capacity equals the rate, so
// at most one second worth of bytes can be spent in a burst.
//
// A Bucket belongs to exactly one transfer and is not safe for concurrent use.
type Bucket struct {
	capacity int64
	tokens   int64
	last     time.Time

	now func() time.Time
}

// New creates a full bucket refilling at bytesPerSecond, floored to
// MinBytesPerSecond.
func New(bytesPerSecond int64) *Bucket {
	rate := max(bytesPerSecond, MinBytesPerSecond)
	b := &Bucket{
		capacity: rate,
		tokens:   rate,
		now:      time.Now,
	}
	b.last = b.now()
	return b
}

// Rate returns the effective refill rate in bytes per second.
func (b *Bucket) Rate() int64 { return b.capacity }

// Drain empties the bucket so the next Wait pays for every byte.
func (b *Bucket) Drain() {
	b.tokens = 0
	b.last = b.now()
}

// Wait blocks until n bytes may be spent, then deducts them. The wait is
// split into sleeps of 5ms to 250ms so that cancelling ctx takes effect
// promptly; on cancellation ctx.Err() is returned and nothing is deducted.
//
// Requests larger than the capacity are allowed to accumulate up to n while
// they wait, otherwise they could never be satisfied.
func (b *Bucket) Wait(ctx context.Context, n int) error {
	if n <= 0 {
		return ctx.Err()
	}
	need := int64(n)
	limit := max(b.capacity, need)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		b.refill(limit)
		if b.tokens >= need {
			b.tokens -= need
			return nil
		}

		shortfall := need - b.tokens
		wait := time.Duration(shortfall * int64(time.Second) / b.capacity)
		wait = min(max(wait, minSleep), maxSleep)

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}

// refill adds tokens for the time elapsed since the last refill, capped at limit.
func (b *Bucket) refill(limit int64) {
	now := b.now()
	elapsed := now.Sub(b.last)
	if elapsed <= 0 {
		return
	}

	add := int64(elapsed.Seconds() * float64(b.capacity))
	if add == 0 {
		// Keep b.last so sub-token intervals still add up.
		return
	}
	b.last = now
	b.tokens = min(b.tokens+add, limit)
}
