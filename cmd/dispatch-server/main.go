// Copyright 2025 James Ross
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/flyingrobots/aider-dispatch/internal/clock"
	"github.com/flyingrobots/aider-dispatch/internal/config"
	"github.com/flyingrobots/aider-dispatch/internal/costs"
	"github.com/flyingrobots/aider-dispatch/internal/dispatch"
	"github.com/flyingrobots/aider-dispatch/internal/mcpserver"
	"github.com/flyingrobots/aider-dispatch/internal/monitor"
	"github.com/flyingrobots/aider-dispatch/internal/obs"
)

var version = "dev"

func main() {
	var overlayList string
	var showVersion bool
	fs := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	fs.StringVar(&overlayList, "config", "", "Comma-separated overlay config files, ascending priority")
	fs.BoolVar(&showVersion, "version", false, "Print version and exit")
	_ = fs.Parse(os.Args[1:])

	if showVersion {
		fmt.Println(version)
		return
	}

	var overlays []string
	for _, p := range strings.Split(overlayList, ",") {
		if p = strings.TrimSpace(p); p != "" {
			overlays = append(overlays, p)
		}
	}

	cfgMgr, err := config.Load(overlays...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	cfg := cfgMgr.Current()

	logger, err := obs.NewLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	clk := clock.Real()
	ledger, err := costs.OpenLedger(cfg.Cost.LedgerDir, clk, logger)
	if err != nil {
		logger.Error("failed to open cost ledger", obs.Err(err))
		fmt.Fprintf(os.Stderr, "failed to open cost ledger: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mon := monitor.New(cfg.Resilience, logger)
	monDone := make(chan struct{})
	go func() {
		defer close(monDone)
		mon.Run(ctx)
	}()

	if cfg.Observability.Enabled {
		httpSrv := obs.StartHTTPServer(cfg.Observability.MetricsPort, nil)
		defer func() { _ = httpSrv.Shutdown(context.Background()) }()
	}

	core := dispatch.NewCore(cfgMgr, ledger, mon, logger, clk)

	// SIGHUP reloads configuration; a failed reload keeps the old snapshot.
	hupCh := make(chan os.Signal, 1)
	signal.Notify(hupCh, syscall.SIGHUP)
	go func() {
		for range hupCh {
			if err := core.Reload(); err != nil {
				logger.Warn("config reload failed, keeping previous snapshot", obs.Err(err))
				continue
			}
			logger.Info("configuration reloaded")
		}
	}()

	// Handle signals for graceful shutdown
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("signal received, shutting down", obs.String("signal", sig.String()))
		cancel()
		select {
		case sig2 := <-sigCh:
			logger.Warn("second signal received, exiting immediately", obs.String("signal", sig2.String()))
			os.Exit(1)
		case <-time.After(5 * time.Second):
		}
	}()

	srv := mcpserver.NewServer(core, version, logger)
	logger.Info("dispatch server listening on stdio",
		obs.String("version", version),
		obs.Int("max_concurrent_tasks", cfg.Resilience.MaxConcurrentTasks),
		obs.Int("max_queue_size", cfg.Resilience.MaxQueueSize))

	if err := srv.Start(ctx); err != nil && ctx.Err() == nil {
		logger.Error("server error", obs.Err(err))
	}

	cancel()
	<-monDone
	core.Shutdown()
	logger.Info("shutdown complete")
}
