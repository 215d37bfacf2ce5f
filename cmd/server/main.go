// Command server runs the Mintora marketplace API.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/mintora/mintora/internal/config"
	"github.com/mintora/mintora/internal/logging"
	"github.com/mintora/mintora/internal/server"
)

// Set via -ldflags at release build time.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := run(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "server:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := logging.New(cfg.LogLevel, "text")
	logger.Info("starting mintora",
		"version", Version,
		"commit", Commit,
		"build_time", BuildTime,
		"env", cfg.Env,
		"payment_deadline", cfg.PaymentDeadline.String(),
		"auto_release", cfg.AutoRelease.String(),
	)

	srv, err := server.New(cfg, server.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	return srv.Run(ctx)
}
