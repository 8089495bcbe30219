package util

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/pterm/pterm"
)

// ──────────────────────────────────────────────────────────────────────────────
// Transfer counters
// ──────────────────────────────────────────────────────────────────────────────

// Stats counts transfers and bytes moved by one orchestrator. The zero value
// is ready to use and all methods are safe for concurrent use.
type Stats struct {
	Started   atomic.Int64 // transfers that reached the Transferring state
	Completed atomic.Int64
	Failed    atomic.Int64
	BytesSent atomic.Int64 // body bytes written to peers
	BytesRecv atomic.Int64 // body bytes read from peers
}

func (s *Stats) AddStarted()    { s.Started.Add(1) }
func (s *Stats) AddCompleted()  { s.Completed.Add(1) }
func (s *Stats) AddFailed()     { s.Failed.Add(1) }
func (s *Stats) AddSent(n int)  { s.BytesSent.Add(int64(n)) }
func (s *Stats) AddRecv(n int)  { s.BytesRecv.Add(int64(n)) }
func (s *Stats) Active() int64  { return s.Started.Load() - s.Completed.Load() - s.Failed.Load() }
func (s *Stats) String() string { return formatTotals(s) }

// ──────────────────────────────────────────────────────────────────────────────
// Periodic reporter
// ──────────────────────────────────────────────────────────────────────────────

// StartStatsReporter launches a goroutine that logs throughput every interval
// while something is moving. It stops when ctx is cancelled.
func StartStatsReporter(ctx context.Context, s *Stats, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		secs := interval.Seconds()
		var prevSent, prevRecv int64
		for {
			select {
			case <-ticker.C:
				sent := s.BytesSent.Load()
				recv := s.BytesRecv.Load()

				outS := float64(sent-prevSent) / secs
				inS := float64(recv-prevRecv) / secs

				if inS > 10 || outS > 10 {
					pterm.DefaultLogger.Info(formatRates(inS, outS, s.Active()))
				}

				prevSent = sent
				prevRecv = recv

			case <-ctx.Done():
				return
			}
		}
	}()
}

// byteUnits defines the units for formatting byte counts in a human-readable way.
var byteUnits = []string{"B", "KiB", "MiB", "GiB", "TiB", "PiB"}

// FormatBytes formats a byte count into a human-readable string with fixed width (exactly 8 chars)
// for example: "99.0   B", " 1.5 KiB", " 0.1 MiB", "98.9 GiB", etc.
func FormatBytes(b float64) string {
	unitIdx := 0

	// to prevent "100.0 KiB", which is 9 chars
	for b > 99 && unitIdx < 5 {
		b /= 1024
		unitIdx++
	}

	return fmt.Sprintf("%4.1f %3s", b, byteUnits[unitIdx])
}

func formatRates(inS, outS float64, active int64) string {
	return fmt.Sprintf("In: %s/s | Out: %s/s | Active: %2d",
		FormatBytes(inS),
		FormatBytes(outS),
		active,
	)
}

func formatTotals(s *Stats) string {
	return fmt.Sprintf("transfers: %d ok, %d failed | sent %s | received %s",
		s.Completed.Load(),
		s.Failed.Load(),
		FormatBytes(float64(s.BytesSent.Load())),
		FormatBytes(float64(s.BytesRecv.Load())),
	)
}

// Preview shortens s to at most n runes for display, marking the cut with
// an ellipsis. It never splits a UTF-8 sequence.
func Preview(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos] + "…"
		}
		i++
	}
	return s
}
