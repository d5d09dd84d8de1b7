package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"ffcalendar/internal/calendar"
	"ffcalendar/internal/config"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
	// ErrLocked indicates another process holds the dataset.
	ErrLocked = errors.New("storage: dataset locked by another run")
)

// Store persists the event dataset. Merge owns the deduplication policy;
// Persist must leave previously written state intact if interrupted.
type Store interface {
	Load(ctx context.Context) ([]calendar.Event, error)
	Merge(existing, incoming []calendar.Event) []calendar.Event
	Persist(ctx context.Context, events []calendar.Event) error
	Close()
}

// RangeReader is implemented by stores that can filter by time natively.
type RangeReader interface {
	ListBetween(ctx context.Context, from, to time.Time) ([]calendar.Event, error)
}

// Resetter is implemented by stores that can discard their dataset before a fresh run.
type Resetter interface {
	Reset(ctx context.Context) error
}

// ListBetween returns stored events in [from, to).
func ListBetween(ctx context.Context, store Store, from, to time.Time) ([]calendar.Event, error) {
	if rr, ok := store.(RangeReader); ok {
		return rr.ListBetween(ctx, from, to)
	}
	events, err := store.Load(ctx)
	if err != nil {
		return nil, err
	}
	return calendar.Between(events, from, to), nil
}

// Open builds the backend selected by cfg.Storage.Driver.
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.Storage.Driver {
	case "", "csv":
		return NewCSVStore(cfg.Storage.CSVPath), nil
	case "postgres":
		pool, err := NewPool(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		store := NewPostgresStore(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			store.Close()
			return nil, err
		}
		if cfg.Database.AdvisoryLockKey != 0 {
			acquired, err := store.Lock(ctx, cfg.Database.AdvisoryLockKey)
			if err != nil {
				store.Close()
				return nil, err
			}
			if !acquired {
				store.Close()
				return nil, ErrLocked
			}
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

// NewPool configures a PostgreSQL connection pool from runtime settings.
func NewPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse database dsn: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = int32(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	return pool, nil
}
