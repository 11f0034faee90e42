package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"progressreport/internal/config"
	"progressreport/internal/container"
	"progressreport/server"
)

const shutdownTimeout = 15 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		return 1
	}
	logger := config.SetupLogger(cfg.LogLevel)

	c, err := container.NewContainer(cfg)
	if err != nil {
		logger.Error("Failed to create container", "error", err)
		return 1
	}
	if err := c.Initialize(context.Background(), true); err != nil {
		logger.Error("Failed to initialize container", "error", err)
		return 1
	}
	defer c.Close()

	srv := server.NewServer(cfg, c.Analyzer, c.Store)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	logger.Info("Progress report server started",
		"port", cfg.Port,
		"database", cfg.DatabasePath,
		"default_variant", cfg.ProjectVariant)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("Server stopped with error", "error", err)
			return 1
		}
		return 0
	case sig := <-sigChan:
		logger.Info("Shutdown signal received", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Graceful shutdown failed", "error", err)
		return 1
	}
	logger.Info("Server stopped")
	return 0
}
