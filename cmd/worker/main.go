// Package main is the entry point of the purchases worker. It consumes
// catalog replication from Redis and relays purchase order movements to the
// inventory service.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"purchases/internal/app"
	"purchases/internal/config"
	"purchases/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithLogger(ctx, log)

	log.Infow("starting purchases worker",
		"env", cfg.App.Env,
		"delivery_mode", cfg.Purchasing.DeliveryMode,
		"outbox", cfg.Outbox.Enabled,
	)

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatalw("failed to start", "error", err)
	}
	defer a.Close()

	if err := a.Run(ctx); err != nil {
		log.Errorw("worker stopped with error", "error", err)
		return
	}
	log.Info("worker stopped")
}
