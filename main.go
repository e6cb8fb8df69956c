package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata" // exchange zones on hosts without a zoneinfo database

	"github.com/spf13/pflag"

	"stockdata/internal/config"
	"stockdata/internal/coordinator"
)

func main() {
	// Load configuration
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "stockdata: %v\n", err)
		if errors.Is(err, config.ErrUsage) {
			os.Exit(2)
		}
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Level()}))

	// Create context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Warn("received interrupt signal, shutting down")
		cancel()
	}()

	if err := coordinator.Run(ctx, cfg, logger); err != nil {
		logger.Error("run failed", "error", err)
		os.Exit(1)
	}
}
