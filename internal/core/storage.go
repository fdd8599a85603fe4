package core

import (
	"context"
	"fmt"

	"spycats/internal/infra/persistence/memory"
	"spycats/internal/infra/persistence/postgres"
	"spycats/internal/infra/persistence/sqlite"
)

// StorageDriver identifies a concrete persistent storage implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

// StorageOptions selects and configures a backend.
type StorageOptions struct {
	Driver      StorageDriver
	SQLitePath  string
	PostgresDSN string
	// Clock stamps record timestamps; nil uses the system clock.
	Clock Clock
}

// OpenPersistentStore opens the configured backend. Driver defaults to sqlite.
// The returned close function releases any database handle.
func OpenPersistentStore(ctx context.Context, opts StorageOptions, engine *RulesEngine) (PersistentStore, func() error, error) {
	if engine == nil {
		engine = NewDefaultRulesEngine()
	}
	var memOpts []memory.Option
	if opts.Clock != nil {
		memOpts = append(memOpts, memory.WithClock(opts.Clock.Now))
	}
	noClose := func() error { return nil }

	driver := opts.Driver
	if driver == "" {
		driver = StorageSQLite
	}
	switch driver {
	case StorageMemory:
		return memory.NewStore(engine, memOpts...), noClose, nil
	case StorageSQLite:
		store, err := sqlite.NewStore(opts.SQLitePath, engine, memOpts...)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	case StoragePostgres:
		store, err := postgres.NewStore(ctx, opts.PostgresDSN, engine, memOpts...)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}
