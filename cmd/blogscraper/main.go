// Package main wires together the blog archive scraper.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/JakeFAU/blog-archive-scraper/internal/config"
	"github.com/JakeFAU/blog-archive-scraper/internal/logging"
	"github.com/JakeFAU/blog-archive-scraper/internal/telemetry"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := config.Load(os.Getenv(config.EnvConfigPath))
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(logging.Config{
		Development: cfg.Logging.Development,
		Level:       cfg.Logging.Level,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Config{
		ServiceName:    "blogscraper",
		ServiceVersion: version,
	})
	if err != nil {
		logger.Warn("tracing init failed", zap.Error(err))
	} else {
		defer func() {
			if err := shutdownTracing(context.WithoutCancel(ctx)); err != nil {
				logger.Warn("tracing shutdown failed", zap.Error(err))
			}
		}()
	}

	run, cleanup, err := build(ctx, cfg, logger)
	if err != nil {
		logger.Error("scraper init failed", zap.Error(err))
		return
	}
	defer cleanup()

	run.Run(ctx)
}
