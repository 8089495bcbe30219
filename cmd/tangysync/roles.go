package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pterm/pterm"

	"github.com/1ureka/tangysync/internal/app"
	"github.com/1ureka/tangysync/internal/bridge"
	"github.com/1ureka/tangysync/internal/config"
	"github.com/1ureka/tangysync/internal/mcdf"
	"github.com/1ureka/tangysync/internal/signaling"
	"github.com/1ureka/tangysync/internal/util"
)

// statsInterval is how often throughput is logged while transferring.
const statsInterval = 2 * time.Second

// newOrchestrator wires the relay client, statistics, heartbeat and event
// printing shared by the network roles.
func newOrchestrator(ctx context.Context, cfg config.Config) *app.Orchestrator {
	o := app.New(cfg, signaling.NewClient(cfg.Relay), &util.Stats{})

	util.StartStatsReporter(ctx, o.Stats(), statsInterval)
	go o.RunHeartbeat(ctx)

	events, unsubscribe := o.Subscribe()
	context.AfterFunc(ctx, unsubscribe)
	go printEvents(events)

	return o
}

func printEvents(events <-chan app.Event) {
	for e := range events {
		switch e.State {
		case app.StateAwaitingPeer:
			pterm.Info.Printfln("offered %s to %s, waiting for them to connect", e.Name, e.Peer)
		case app.StateCompleted:
			pterm.Success.Printfln("%s %s (%s) with %s",
				verb(e.Direction), e.Name, util.FormatBytes(float64(e.Total)), e.Peer)
		case app.StateFailed:
			pterm.Error.Printfln("%s %s with %s failed: %v", verb(e.Direction), e.Name, e.Peer, e.Err)
		}
	}
}

func verb(d app.Direction) string {
	if d == app.DirSend {
		return "sent"
	}
	return "received"
}

func runSend(ctx context.Context, cfg config.Config, opts options) error {
	o := newOrchestrator(ctx, cfg)
	if err := o.SendFile(ctx, opts.to, opts.file); err != nil {
		return err
	}
	util.LogInfo("%s", o.Stats())
	return nil
}

func runReceive(ctx context.Context, cfg config.Config, opts options) error {
	o := newOrchestrator(ctx, cfg)
	n, err := o.ReceiveOnce(ctx, opts.dir)
	if err != nil {
		return err
	}
	if n == 0 {
		util.LogInfo("nothing received")
	}
	util.LogInfo("%s", o.Stats())
	return nil
}

func runWatch(ctx context.Context, cfg config.Config, opts options) error {
	o := newOrchestrator(ctx, cfg)
	util.LogInfo("watching for offers, saving to %s", opts.dir)

	err := o.Watch(ctx, opts.dir)
	util.LogInfo("%s", o.Stats())
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func runPack(opts options) error {
	p, err := mcdf.Load(opts.in)
	if err != nil {
		return err
	}
	rec, dropped := mcdf.NewRecord(*p, opts.desc)
	if len(dropped) > 0 {
		util.LogWarning("container has no slot for %s, not packed", strings.Join(dropped, ", "))
	}
	if err := mcdf.WriteFile(opts.out, rec); err != nil {
		return fmt.Errorf("write %s: %w", opts.out, err)
	}
	util.LogSuccess("wrote %s", opts.out)
	return nil
}

func runInspect(opts options) error {
	p, err := mcdf.Load(opts.in)
	if err != nil {
		return err
	}

	rows := pterm.TableData{{"Field", "Size", "Preview"}}
	add := func(name, v string) {
		if v == "" {
			rows = append(rows, []string{name, "-", ""})
			return
		}
		rows = append(rows, []string{name, util.FormatBytes(float64(len(v))), util.Preview(v, 32)})
	}
	add("Glamourer", p.GlamourerBase64)
	add("Customize+", p.CustomizePlusJSON)
	add("Heels", p.HeelsJSON)
	add("Honorific", p.HonorificJSON)
	add("Penumbra", p.PenumbraCollection)

	return pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
}

func runApply(ctx context.Context, opts options) error {
	p, err := mcdf.Load(opts.in)
	if err != nil {
		return err
	}

	var caps []*bridge.Capability
	for _, f := range bridge.Features {
		var candidates []bridge.Binding
		if opts.out != "" {
			candidates = append(candidates, bridge.DirBinding(opts.out, f))
		}
		candidates = append(candidates, bridge.LogBinding(f))

		c, err := bridge.Negotiate(ctx, f, candidates...)
		if err != nil {
			util.LogWarning("%v", err)
			continue
		}
		util.LogDebug("%s bound to %s", f, c.Binding())
		caps = append(caps, c)
	}

	report := bridge.NewApplier(caps...).Apply(ctx, *p)
	util.LogInfo("apply: %s", report)
	return report.Err()
}
