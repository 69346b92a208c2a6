package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PoolOptions tunes the connection pool; zero values keep pgx defaults.
type PoolOptions struct {
	MaxConns        int32
	MaxConnIdleTime time.Duration
}

// New creates a new PostgreSQL connection pool and verifies connectivity.
func New(ctx context.Context, dsn string, opts ...PoolOptions) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("platform/db: parse config: %w", err)
	}
	for _, o := range opts {
		if o.MaxConns > 0 {
			config.MaxConns = o.MaxConns
		}
		if o.MaxConnIdleTime > 0 {
			config.MaxConnIdleTime = o.MaxConnIdleTime
		}
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("platform/db: new pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("platform/db: ping: %w", err)
	}
	return pool, nil
}
