package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"ragchat/app/server"
	"ragchat/config"
	"ragchat/loader/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	logger := cfg.NewLogger(os.Stderr)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := server.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("build components", "error", err)
		os.Exit(1)
	}

	svc, err := service.New(service.WatchConfig{
		SourceDir:      cfg.Loader.SourceDir,
		DocFolder:      cfg.DocFolder,
		ArchiveDir:     cfg.Loader.ArchiveDir,
		BadDir:         cfg.Loader.BadDir,
		MonitoringTime: cfg.Loader.MonitoringTime,
		Workers:        cfg.IngestWorkers,
	}, c.Ingestor, logger)
	if err != nil {
		logger.Error("start loader", "error", err)
		c.Close()
		os.Exit(1)
	}

	svc.Run(ctx)
	svc.Stop()

	logger.Info("Closing database connection pool...")
	if err := c.Close(); err != nil {
		logger.Error("error closing pool", "error", err)
	}
}
