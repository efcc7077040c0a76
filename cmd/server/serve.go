package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/JonMunkholm/proddash/internal/web"
)

func serveAction(c *cli.Context) error {
	a, err := build()
	if err != nil {
		return exitErr("failed to load configuration: %v", err)
	}
	cfg := a.cfg

	slog.Info("configuration loaded",
		"config", cfg.String(),
		"port", cfg.Server.Port,
		"sync_interval", cfg.Sync.Interval().String(),
		"rate_limit_enabled", cfg.Rate.Enabled,
	)

	server := web.NewServer(a.service, cfg)

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The scheduler runs its first cycle immediately.
	syncDone := make(chan struct{})
	go func() {
		defer close(syncDone)
		a.syncer.Start(ctx, cfg.Sync.Interval())
	}()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.Start(cfg.Server.Addr())
	}()

	select {
	case err := <-serveErr:
		stop()
		<-syncDone
		if err != nil {
			return exitErr("server error: %v", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}

	select {
	case <-syncDone:
	case <-shutdownCtx.Done():
		slog.Warn("sync cycle did not stop in time")
	}

	if err := <-serveErr; err != nil {
		slog.Info("server stopped", "error", err)
	}
	return nil
}
