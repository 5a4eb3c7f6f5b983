package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"sigil-attest/go-engine/internal/composition/engineserver"
	"sigil-attest/go-engine/internal/config"
	"sigil-attest/go-engine/internal/platform/privacylog"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	listenAddr := flag.String("listen-addr", "", "HTTP listen address (overrides config)")
	configPath := flag.String("config", "", "Path to engine.yaml (optional)")
	dataDir := flag.String("data-dir", "", "Directory for engine local data (optional)")
	flag.Parse()
	if *showVersion {
		fmt.Printf("sigild version=%s commit=%s build_date=%s\n", version, commit, buildDate)
		return
	}

	logger := slog.New(privacylog.WrapHandler(slog.NewJSONHandler(os.Stderr, nil)))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.LoadFromPath(*configPath)
	if *listenAddr != "" {
		cfg.ListenAddr = *listenAddr
	}

	bundle, err := engineserver.Build(cfg, *dataDir, logger)
	if err != nil {
		logger.Error("sigild failed to initialize", "err", err)
		os.Exit(1)
	}
	if bundle.Mnemonic != "" {
		// Shown once on first provisioning; there is no later recovery path.
		fmt.Fprintf(os.Stdout, "recovery mnemonic (store offline, shown once):\n%s\n", bundle.Mnemonic)
	}

	logger.Info("sigild starting", "addr", cfg.ListenAddr)
	if err := bundle.Server.Run(ctx); err != nil {
		logger.Error("sigild failed", "err", err)
		os.Exit(1)
	}
	logger.Info("sigild stopped")
}
