package app

import (
	"context"
	"time"

	"github.com/1ureka/tangysync/internal/signaling"
	"github.com/1ureka/tangysync/internal/util"
)

// RunHeartbeat reports presence every Heartbeat.Interval, starting after
// Heartbeat.InitialDelay, until ctx is cancelled. A tick that finds the
// previous heartbeat still in flight is skipped. Failures are logged only.
func (o *Orchestrator) RunHeartbeat(ctx context.Context) error {
	defer o.beats.Wait()

	delay := time.NewTimer(o.cfg.Heartbeat.InitialDelay)
	defer delay.Stop()
	select {
	case <-delay.C:
	case <-ctx.Done():
		return nil
	}

	o.beat(ctx)

	ticker := time.NewTicker(o.cfg.Heartbeat.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			o.beat(ctx)
		case <-ctx.Done():
			return nil
		}
	}
}

func (o *Orchestrator) beat(ctx context.Context) {
	if !o.beating.CompareAndSwap(false, true) {
		util.LogDebug("heartbeat still in flight, skipping tick")
		return
	}

	o.beats.Add(1)
	go func() {
		defer o.beats.Done()
		defer o.beating.Store(false)

		status, err := o.relay.Heartbeat(ctx, signaling.Presence{Busy: o.Busy()})
		if err != nil && ctx.Err() == nil {
			util.LogWarning("heartbeat failed (status %d): %v", status, err)
		}
	}()
}
