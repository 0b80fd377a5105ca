package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"easybudget/internal/amqp"
	"easybudget/internal/config"
	applog "easybudget/internal/log"
	"easybudget/internal/services"
	"easybudget/internal/storage"
	"easybudget/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.New(applog.Config{Level: slog.LevelInfo, Component: applog.ComponentMaterializer})
	applog.SetDefault(logger)

	logger.Info("Starting materializer worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	if cfg.DataBackend != "sqlite" {
		logger.Error("Materializer requires the sqlite backend", "backend", cfg.DataBackend)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()

	var events services.EventPublisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without mutation events", "error", err)
		} else {
			defer client.Close()
			events = client
			logger.Info("AMQP client initialized")
		}
	}

	store := services.NewStore(repo, events)
	materializer := worker.NewMaterializer(repo, store, cfg.MaterializeInterval, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Materializer running", "interval", cfg.MaterializeInterval)
	if err := materializer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Materializer stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Shutdown complete")
}
