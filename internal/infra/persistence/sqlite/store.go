// Package sqlite provides a SQLite-backed persistent store. State lives in
// relational tables managed by embedded migrations and is mirrored into an
// in-memory store that serves reads and evaluates transactions.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // pure go sqlite driver

	"spycats/internal/infra/persistence/memory"
	"spycats/internal/infra/persistence/relational"
	"spycats/pkg/domain"
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.PersistentStore = (*Store)(nil)

const (
	driverName  = "sqlite"
	defaultPath = "spycats.db"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

func init() {
	sqlx.BindDriver(driverName, sqlx.QUESTION)
}

// Store persists committed change sets to SQLite while reusing the in-memory
// implementation for transactions and reads.
type Store struct {
	*memory.Store
	db   *sqlx.DB
	path string
}

// NewStore opens (or creates) the database at path, applies pending
// migrations and hydrates the in-memory store from the tables.
func NewStore(path string, engine *domain.RulesEngine, opts ...memory.Option) (*Store, error) {
	if path == "" {
		path = defaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	raw, err := sql.Open(driverName, dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite serializes writers anyway.
	raw.SetMaxOpenConns(1)

	if err := RunMigrations(raw); err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}

	db := sqlx.NewDb(raw, driverName)
	snapshot, err := relational.Load(context.Background(), db)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("load sqlite state: %w", err)
	}

	opts = append(opts, memory.WithCommitHook(relational.CommitHook(db)))
	mem := memory.NewStore(engine, opts...)
	mem.ImportState(snapshot)
	return &Store{Store: mem, db: db, path: path}, nil
}

func dsn(path string) string {
	return "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

// RunMigrations applies every embedded migration to db. Already applied
// migrations are not an error.
func RunMigrations(db *sql.DB) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return err
	}
	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return err
	}
	m, err := migrate.NewWithInstance("iofs", source, driverName, driver)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

// DB exposes the underlying database handle for integration testing hooks.
func (s *Store) DB() *sqlx.DB { return s.db }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }
