package app

import (
	"context"
	"fmt"

	"attendance/internal/config"
	"attendance/internal/ledger"
	"attendance/internal/logger"
	"attendance/internal/repository"
	"attendance/internal/repository/postgres"
	"attendance/internal/repository/sqlite"
	"attendance/internal/service/storage"
)

var openGateway = OpenGateway

// OpenGateway opens the persistence backend selected by DB_DRIVER.
func OpenGateway(ctx context.Context, cfg *config.Config) (*repository.Gateway, error) {
	switch cfg.DBDriver {
	case "postgres":
		return postgres.NewGateway(ctx, cfg.DatabaseURL)
	case "sqlite", "":
		return sqlite.NewGateway(cfg.DBPath)
	default:
		return nil, fmt.Errorf("unknown DB_DRIVER %q", cfg.DBDriver)
	}
}

// NewSnapshotStore returns the snapshot backend selected by SNAPSHOT_STORE.
func NewSnapshotStore(cfg *config.Config, log *logger.Logger) (storage.SnapshotStore, error) {
	switch cfg.SnapshotStore {
	case "s3":
		return storage.NewS3Store(cfg, log)
	case "disk", "":
		return storage.NewDiskStore(cfg.UnauthorizedDirectory, log), nil
	default:
		return nil, fmt.Errorf("unknown SNAPSHOT_STORE %q", cfg.SnapshotStore)
	}
}

func ledgerOptions(ctx context.Context, cfg *config.Config) ([]ledger.Option, func() error, error) {
	switch cfg.LedgerStore {
	case "redis":
		store, err := ledger.NewRedisStore(ctx, cfg.RedisAddress, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, nil, err
		}
		return []ledger.Option{ledger.WithStore(store)}, store.Close, nil
	case "memory", "":
		return nil, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown LEDGER_STORE %q", cfg.LedgerStore)
	}
}
