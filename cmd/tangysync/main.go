// tangysync — CLI entry point.
//
// Sends appearance files directly between two machines. The relay is only
// used to announce where the sender is listening; the file itself moves over
// a direct TCP connection.
//
// It can be launched interactively (no flags) or non-interactively via
// -role and the flags that role needs.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/pterm/pterm"

	"github.com/1ureka/tangysync/internal/config"
	"github.com/1ureka/tangysync/internal/util"
)

var version = "dev"

// options are the per-run flags that are not part of config.Config.
type options struct {
	to   string
	file string
	dir  string
	in   string
	out  string
	desc string
}

func main() {
	// Root context — cancelled on Ctrl+C.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	configPath := flag.String("config", "", "Config file (yaml, json or toml)")
	role := flag.String("role", "", "Role: send, receive, watch, pack, inspect or apply")
	rate := flag.Int64("rate", 0, "Send rate limit in bytes per second (overrides config)")
	ip := flag.String("ip", "", "IP address to advertise in offers (overrides config)")
	debugMode := flag.Bool("debug", false, "Enable debug logging")

	var opts options
	flag.StringVar(&opts.to, "to", "", "Recipient handle (send)")
	flag.StringVar(&opts.file, "file", "", "File to send (send)")
	flag.StringVar(&opts.dir, "dir", "", "Directory for received files (receive, watch)")
	flag.StringVar(&opts.in, "in", "", "Input payload or container (pack, inspect, apply)")
	flag.StringVar(&opts.out, "out", "", "Output container (pack) or directory (apply)")
	flag.StringVar(&opts.desc, "desc", "", "Description stored in the container (pack)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		util.LogError("%v", err)
		os.Exit(1)
	}
	if *rate > 0 {
		cfg.Transfer.BytesPerSecond = *rate
	}
	if *ip != "" {
		cfg.Transfer.AdvertiseIP = *ip
	}
	if *debugMode || cfg.Debug {
		util.EnableDebug()
	}
	if opts.dir == "" {
		opts.dir = cfg.Transfer.SaveDir
	}

	pterm.Info.Println(fmt.Sprintf("tangysync — v%s", version))
	pterm.Println()

	r := config.Role(*role)
	if r == "" {
		r, opts = runInteractive(opts)
	}

	if err := run(ctx, cfg, r, opts); err != nil {
		if ctx.Err() != nil {
			util.LogInfo("interrupted")
			return
		}
		util.LogError("%v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, role config.Role, opts options) error {
	switch role {
	case config.RoleSend:
		if opts.to == "" || opts.file == "" {
			return fmt.Errorf("send needs -to and -file")
		}
		return runSend(ctx, cfg, opts)
	case config.RoleReceive:
		return runReceive(ctx, cfg, opts)
	case config.RoleWatch:
		return runWatch(ctx, cfg, opts)
	case config.RolePack:
		if opts.in == "" || opts.out == "" {
			return fmt.Errorf("pack needs -in and -out")
		}
		return runPack(opts)
	case config.RoleInspect:
		if opts.in == "" {
			return fmt.Errorf("inspect needs -in")
		}
		return runInspect(opts)
	case config.RoleApply:
		if opts.in == "" {
			return fmt.Errorf("apply needs -in")
		}
		return runApply(ctx, opts)
	}
	return fmt.Errorf("invalid -role %q", role)
}

// ---------------------------------------------------------------------------
// Interactive mode
// ---------------------------------------------------------------------------

var roleLabels = []struct {
	role  config.Role
	label string
}{
	{config.RoleSend, "Send    — Offer a file to another user"},
	{config.RoleReceive, "Receive — Fetch files offered to you"},
	{config.RoleWatch, "Watch   — Receive offers as they arrive"},
	{config.RoleInspect, "Inspect — Show what a container holds"},
	{config.RoleApply, "Apply   — Apply a container's payload"},
}

// runInteractive asks for the role and whatever that role needs.
func runInteractive(opts options) (config.Role, options) {
	labels := make([]string, len(roleLabels))
	for i, rl := range roleLabels {
		labels[i] = rl.label
	}
	choice, _ := pterm.DefaultInteractiveSelect.
		WithOptions(labels).
		WithDefaultText("Select what to do").
		Show()
	pterm.Println()

	var role config.Role
	for _, rl := range roleLabels {
		if rl.label == choice {
			role = rl.role
		}
	}

	switch role {
	case config.RoleSend:
		opts.to = ask("Recipient handle")
		opts.file = askFile("File to send")
	case config.RoleInspect, config.RoleApply:
		opts.in = askFile("Container or payload file")
	}
	return role, opts
}

func ask(prompt string) string {
	for {
		raw, _ := pterm.DefaultInteractiveTextInput.
			WithDefaultText(prompt).
			Show()
		pterm.Println()

		if s := strings.TrimSpace(raw); s != "" {
			return s
		}
		util.LogWarning("a value is required")
	}
}

func askFile(prompt string) string {
	for {
		path := strings.Trim(ask(prompt), `"'`)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
		util.LogWarning("no such file: %s", path)
	}
}
