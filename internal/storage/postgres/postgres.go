// Package postgres provides Postgres-backed cache and showtime persistence.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PoolConfig controls the Postgres connection pool shared by the stores.
type PoolConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// pool is the subset of *pgxpool.Pool used by the stores. pgxmock satisfies it.
type pool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Begin(context.Context) (pgx.Tx, error)
	Close()
}

// NewPool opens a pgx pool using cfg.
func NewPool(ctx context.Context, cfg PoolConfig) (*pgxpool.Pool, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return p, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS showtime_cache (
	key        TEXT PRIMARY KEY,
	value      BYTEA NOT NULL,
	expires_at TIMESTAMPTZ NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS showtime_cache_hits (
	key  TEXT PRIMARY KEY,
	hits BIGINT NOT NULL DEFAULT 0
)`,
	`CREATE TABLE IF NOT EXISTS showtime_theatres (
	query_key    TEXT NOT NULL,
	position     INT NOT NULL,
	tid          TEXT,
	name         TEXT NOT NULL,
	address      TEXT NOT NULL,
	phone_number TEXT,
	url          TEXT,
	info         TEXT NOT NULL,
	warnings     TEXT[] NOT NULL DEFAULT '{}',
	crawled_at   TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (query_key, position)
)`,
	`CREATE TABLE IF NOT EXISTS showtime_movies (
	query_key        TEXT NOT NULL,
	theatre_position INT NOT NULL,
	position         INT NOT NULL,
	mid              TEXT,
	name             TEXT NOT NULL,
	url              TEXT,
	info             TEXT,
	runtime_minutes  INT NOT NULL,
	local_times      TEXT[] NOT NULL,
	military_times   TEXT[] NOT NULL,
	warnings         TEXT[] NOT NULL DEFAULT '{}',
	PRIMARY KEY (query_key, theatre_position, position)
)`,
	`ALTER TABLE showtime_theatres ADD COLUMN IF NOT EXISTS warnings TEXT[] NOT NULL DEFAULT '{}'`,
	`ALTER TABLE showtime_movies ADD COLUMN IF NOT EXISTS warnings TEXT[] NOT NULL DEFAULT '{}'`,
	`CREATE INDEX IF NOT EXISTS idx_showtime_cache_expires_at ON showtime_cache (expires_at)`,
}

// EnsureSchema creates the cache and showtime tables when they are missing.
func EnsureSchema(ctx context.Context, p pool) error {
	for _, stmt := range schema {
		if _, err := p.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
