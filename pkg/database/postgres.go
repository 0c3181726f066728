package database

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cheerfulman/arbitrage-fund/pkg/config"
)

// DB wraps the pgxpool.Pool and carries the reconnect policy used by the
// persistence layer. The pool itself is the only shared connection state;
// repositories never hold raw connections.
type DB struct {
	Pool *pgxpool.Pool
}

// New creates a new database connection pool. A failure here is the one
// unrecoverable startup condition for the service.
func New(cfg *config.Config) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.Database.MaxConns)
	poolConfig.MinConns = int32(cfg.Database.MinConns)
	poolConfig.MaxConnLifetime = cfg.Database.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.Database.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// Close closes the database connection pool.
func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
	}
}

// Ping checks if the database is accessible.
func (db *DB) Ping(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}

// WithReconnect runs fn, and if it fails because the connection was
// dropped, pings the pool (forcing broken connections to be replaced) and
// retries exactly once. Any second failure is returned as-is; nothing
// retries further.
func (db *DB) WithReconnect(ctx context.Context, fn func(ctx context.Context) error) error {
	err := fn(ctx)
	if err == nil || !isConnectionError(err) {
		return err
	}

	if pingErr := db.Pool.Ping(ctx); pingErr != nil {
		return err
	}

	return fn(ctx)
}

// isConnectionError reports whether err looks like a dropped or unusable
// connection rather than a query-level failure.
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}

	if pgconn.SafeToRetry(err) {
		return true
	}

	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	msg := err.Error()
	return strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "conn closed")
}
