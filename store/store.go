// Package store is the durable store adapter: named partitions with a primary key and
// secondary indices, backed by bun over SQLite (default) or Postgres.
//
// Each partition call runs as its own statement or transaction and the connection pool is
// capped at one connection, so writes to a partition are applied in call order.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/goliatone/go-restaurant-sync/model"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// Partition names.
const (
	PartitionRestaurants = "restaurants"
	PartitionReviews     = "reviews"
	PartitionMutations   = "pending_mutations"
)

// Config selects the database backing the store.
type Config struct {
	Driver string `toml:"driver"`
	DSN    string `toml:"dsn"`
}

// DefaultConfig returns an in-memory SQLite configuration.
func DefaultConfig() Config {
	return Config{Driver: DriverSQLite, DSN: ":memory:"}
}

// Option customizes a Store.
type Option func(*Store)

// WithLogger sets the logger used for schema upgrades and driver errors.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Store owns the database handle and the partitions defined over it.
type Store struct {
	db     *bun.DB
	driver string
	logger *slog.Logger
	closed atomic.Bool

	Restaurants *Partition[model.Restaurant]
	Reviews     *Partition[model.Review]
	Mutations   *Partition[model.PendingMutation]
}

// Open connects to the configured database and upgrades its schema to SchemaVersion.
func Open(ctx context.Context, cfg Config, opts ...Option) (*Store, error) {
	if cfg.Driver == "" {
		cfg.Driver = DriverSQLite
	}

	sqldb, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, newError("open", "", ErrStoreUnavailable, err)
	}
	sqldb.SetMaxOpenConns(1)
	sqldb.SetMaxIdleConns(1)

	var db *bun.DB
	switch cfg.Driver {
	case DriverSQLite:
		db = bun.NewDB(sqldb, sqlitedialect.New())
	case DriverPostgres:
		db = bun.NewDB(sqldb, pgdialect.New())
	default:
		sqldb.Close()
		return nil, newError("open", "", ErrStoreUnavailable, fmt.Errorf("unsupported driver %q", cfg.Driver))
	}

	s := newStore(db, cfg.Driver, opts...)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, newError("open", "", ErrStoreUnavailable, err)
	}

	if err := upgrade(ctx, db, SchemaVersion, s.upgradeSteps(), s.logger); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func newStore(db *bun.DB, driver string, opts ...Option) *Store {
	s := &Store{
		db:     db,
		driver: driver,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.Restaurants = newPartition[model.Restaurant](s, PartitionRestaurants, "id",
		Index{Name: "name", Column: "name", Unique: true},
	)
	s.Reviews = newPartition[model.Review](s, PartitionReviews, "id",
		Index{Name: "restaurant_id", Column: "restaurant_id"},
	)
	s.Mutations = newPartition[model.PendingMutation](s, PartitionMutations, "hash",
		Index{Name: "seq", Column: "seq"},
	)
	return s
}

// DB exposes the bun handle for callers that need raw queries.
func (s *Store) DB() *bun.DB {
	return s.db
}

// Driver reports the configured driver name.
func (s *Store) Driver() string {
	return s.driver
}

// Version returns the schema version recorded in the database.
func (s *Store) Version(ctx context.Context) (int, error) {
	if err := s.checkOpen("version", ""); err != nil {
		return 0, err
	}
	return currentVersion(ctx, s.db)
}

// Close releases the database. Subsequent calls fail with ErrStoreUnavailable.
func (s *Store) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}

func (s *Store) checkOpen(op, partition string) error {
	if s.closed.Load() {
		return newError(op, partition, ErrStoreUnavailable, nil)
	}
	return nil
}

func (s *Store) wrap(op, partition string, err error) error {
	if err == nil {
		return nil
	}
	kind := classify(err)
	if kind != nil && kind != ErrNotFound && kind != ErrKeyExists {
		s.logger.Warn("store operation failed", "op", op, "partition", partition, "error", err)
	}
	return newError(op, partition, kind, err)
}
