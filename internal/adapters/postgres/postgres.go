// Package postgres holds the shared pgx pool setup, error classification and schema
// migrations used by the Postgres repository adapters.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SQLSTATE codes the adapters branch on.
const (
	UniqueViolationCode      = "23505"
	ForeignKeyViolationCode  = "23503"
	CheckViolationCode       = "23514"
	SerializationFailureCode = "40001"
	DeadlockDetectedCode     = "40P01"
	LockNotAvailableCode     = "55P03"
)

type PoolOptions struct {
	MaxConns        int32
	MaxConnLifetime time.Duration
	ConnectTimeout  time.Duration
}

// NewPool parses databaseURL, applies opts and verifies connectivity with a ping.
func NewPool(ctx context.Context, databaseURL string, opts PoolOptions) (*pgxpool.Pool, error) {
	if databaseURL == "" {
		return nil, errors.New("empty database url")
	}
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if opts.MaxConns > 0 {
		cfg.MaxConns = opts.MaxConns
	}
	if opts.MaxConnLifetime > 0 {
		cfg.MaxConnLifetime = opts.MaxConnLifetime
	}
	if opts.ConnectTimeout > 0 {
		cfg.ConnConfig.ConnectTimeout = opts.ConnectTimeout
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// AsPgError unwraps err to a *pgconn.PgError when the server reported one.
func AsPgError(err error) (*pgconn.PgError, bool) {
	var pe *pgconn.PgError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// IsRetryable reports whether err is a transaction-level conflict that a caller may retry.
func IsRetryable(err error) bool {
	pe, ok := AsPgError(err)
	if !ok {
		return false
	}
	switch pe.Code {
	case SerializationFailureCode, DeadlockDetectedCode, LockNotAvailableCode:
		return true
	default:
		return false
	}
}
