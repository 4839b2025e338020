package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"orion/internal/app"
	"orion/internal/config"
	"orion/internal/logger"
)

func main() {
	slog.SetDefault(slog.New(logger.NewContextHandler(slog.NewJSONHandler(os.Stdout, nil))))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err == nil {
		slog.SetDefault(slog.New(logger.NewContextHandler(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))))
	}

	db, err := app.Bootstrap(cfg)
	if err != nil {
		slog.Error("failed to bootstrap dependencies", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("migrations applied successfully")

	a, err := app.New(cfg, db, slog.Default())
	if err != nil {
		slog.Error("failed to build application", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Run(ctx); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}
