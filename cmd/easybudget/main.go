package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"easybudget/internal/amqp"
	"easybudget/internal/config"
	"easybudget/internal/core"
	apphttp "easybudget/internal/http"
	applog "easybudget/internal/log"
	"easybudget/internal/services"
	"easybudget/internal/storage"
	"easybudget/internal/worker"
)

// repository is what both backends provide beyond the store's needs.
type repository interface {
	services.Repository
	worker.AccountLister
	CreateAccount(ctx context.Context, a core.Account) (int64, error)
	Close() error
}

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.New(applog.Config{Level: slog.LevelInfo, Component: applog.ComponentApp})
	applog.SetDefault(logger)

	logger.Info("Starting easybudget")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	repo, err := openRepository(cfg)
	if err != nil {
		logger.Error("Failed to initialize repository", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer repo.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := ensureDefaultAccount(ctx, repo, logger); err != nil {
		logger.Error("Failed to ensure default account", "error", err)
		os.Exit(1)
	}

	// Mutation events are optional: without a broker the store simply
	// skips publishing.
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
	server := apphttp.NewServer(cfg.Port, store, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errCh:
		if err != nil {
			logger.Error("HTTP server failed", "error", err)
			os.Exit(1)
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	logger.Info("Shutdown complete")
}

func openRepository(cfg *config.Config) (repository, error) {
	if cfg.DataBackend == "memory" {
		return storage.NewMemoryRepository(), nil
	}
	return storage.NewSQLiteRepository(cfg.SQLiteDBPath)
}

// ensureDefaultAccount seeds a first account on a fresh database so the
// API is usable out of the box.
func ensureDefaultAccount(ctx context.Context, repo repository, logger *applog.Logger) error {
	accounts, err := repo.ListAccounts(ctx)
	if err != nil {
		return err
	}
	if len(accounts) > 0 {
		return nil
	}
	id, err := repo.CreateAccount(ctx, core.Account{Name: "Default", Currency: "EUR"})
	if err != nil {
		return err
	}
	logger.Info("Created default account", "account_id", id)
	return nil
}
