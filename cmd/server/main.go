package main

import (
	"log/slog"
	"os"

	"marketplace-auth/internal/app"
	"marketplace-auth/internal/config"
	"marketplace-auth/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.New(logger.NewPrettyHandler(os.Stderr, nil)).Error("failed to load config", "error", err)
		os.Exit(1)
	}

	slog.SetDefault(slog.New(logger.New(os.Stdout, cfg.LogFormat, logger.ParseLevel(cfg.LogLevel))))

	application, err := app.New(cfg)
	if err != nil {
		slog.Error("failed to initialize application", "error", err)
		os.Exit(1)
	}

	if err := application.Run(); err != nil {
		slog.Error("application run failed", "error", err)
		os.Exit(1)
	}
}
