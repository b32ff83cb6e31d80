package core

import (
	"context"
	"fmt"
	"io"

	"formulacore/internal/config"
	"formulacore/internal/infra/persistence/memory"
	"formulacore/internal/infra/persistence/postgres"
	"formulacore/internal/infra/persistence/sqlite"
	"formulacore/pkg/domain"
)

// StorageDriver identifies a concrete persistent storage implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

// OpenPersistentStore selects a backend from configuration. An empty driver
// means memory. SQL-backed stores also implement io.Closer.
func OpenPersistentStore(ctx context.Context, cfg config.Storage, opts ...memory.Option) (domain.PersistentStore, error) {
	switch StorageDriver(cfg.Driver) {
	case StorageMemory, "":
		return memory.NewStore(opts...), nil
	case StorageSQLite:
		store, err := sqlite.NewStore(ctx, cfg.SQLitePath, opts...)
		if err != nil {
			return nil, err
		}
		return store, nil
	case StoragePostgres:
		store, err := postgres.NewStore(ctx, cfg.PostgresDSN, opts...)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %s", cfg.Driver)
	}
}

// CloseStore releases store resources when the backend holds any.
func CloseStore(store domain.PersistentStore) error {
	if c, ok := store.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
