package common

import (
	"context"
	"fmt"
	"log"
	"strings"

	"sms-wallet-go/internal/database"
	"sms-wallet-go/internal/models"
	"sms-wallet-go/internal/postgres"
	"sms-wallet-go/internal/store"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// init loads environment variables from .env file if it exists
func init() {
	// Try to load .env file - if it doesn't exist, that's okay
	// Environment variables can be set via other means (shell export, docker, etc.)
	if err := godotenv.Load(); err != nil {
		log.Printf("Note: No .env file found or unable to load it: %v\n", err)
	}
}

func InitializeLogger() (*zap.Logger, func()) {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	zap.ReplaceGlobals(logger)

	cleanup := func() {
		if err := logger.Sync(); err != nil {
			if !isIgnorableSyncError(err) {
				log.Printf("Failed to sync logger: %v\n", err)
			}
		}
	}

	return logger, cleanup
}

// InitializeStore opens the configured ledger backend.
func InitializeStore(ctx context.Context, cfg *models.Config) (store.LedgerStore, error) {
	switch cfg.Database.Backend {
	case "postgres":
		zap.L().Info("Using Postgres ledger backend")
		return postgres.NewService(ctx, cfg.Database)
	case "sqlite":
		zap.L().Info("Using SQLite ledger backend", zap.String("path", cfg.Database.Path))
		return database.NewService(ctx, cfg.Database)
	default:
		return nil, fmt.Errorf("unknown ledger backend %q", cfg.Database.Backend)
	}
}

func isIgnorableSyncError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "sync /dev/stderr: inappropriate ioctl for device") ||
		strings.Contains(msg, "sync /dev/stdout: inappropriate ioctl for device")
}
