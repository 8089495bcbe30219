// relay — development signaling relay.
//
// Serves the relay endpoints from memory so two machines on a LAN (or a test
// run) can exchange offers without a hosted relay. Nothing is persisted.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/gin-gonic/gin"
	"github.com/pterm/pterm"

	"github.com/1ureka/tangysync/internal/config"
	"github.com/1ureka/tangysync/internal/relay"
	"github.com/1ureka/tangysync/internal/util"
)

var version = "dev"

func main() {
	// Root context — cancelled on Ctrl+C.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	configPath := flag.String("config", "", "Config file (yaml, json or toml)")
	listen := flag.String("listen", "", "Listen address (overrides config)")
	debugMode := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		util.LogError("%v", err)
		os.Exit(1)
	}
	if *listen != "" {
		cfg.Server.ListenAddr = *listen
	}

	if *debugMode || cfg.Debug {
		util.EnableDebug()
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	pterm.Info.Println(fmt.Sprintf("tangysync relay — v%s", version))
	pterm.Println()

	if err := relay.New(cfg.Server).Run(ctx, cfg.Server.ListenAddr); err != nil {
		util.LogError("relay stopped: %v", err)
		os.Exit(1)
	}
	util.LogInfo("relay closed")
}
