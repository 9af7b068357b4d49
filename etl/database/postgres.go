// Package database provides the PostgreSQL connector the loader and
// orchestrator treat as an opaque transactional handle supporting
// parameterized SQL and per-connection transactions.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresConfig holds the pool's connection settings.
type PostgresConfig struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
	SSLMode  string

	MaxConns int32
	MinConns int32
}

// DefaultPostgresConfig returns sensible local-dev defaults.
func DefaultPostgresConfig() *PostgresConfig {
	return &PostgresConfig{
		Host:     "localhost",
		Port:     5432,
		Database: "etl",
		User:     "etl",
		Password: "etl",
		SSLMode:  "prefer",
		MaxConns: 10,
		MinConns: 2,
	}
}

// BuildConnectionString builds a pgx-compatible DSN.
func (c *PostgresConfig) BuildConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s pool_max_conns=%d pool_min_conns=%d",
		c.Host, c.Port, c.Database, c.User, c.Password, c.SSLMode,
		c.MaxConns, c.MinConns,
	)
}

// PostgresService wraps a pgxpool.Pool. The loader and orchestrator
// never see the pool directly — only Begin/Exec/QueryRow/Query — so
// the connector stays swappable without touching ingestion logic.
type PostgresService struct {
	pool *pgxpool.Pool
}

// NewPostgresService opens (and pings) a connection pool.
func NewPostgresService(ctx context.Context, cfg *PostgresConfig) (*PostgresService, error) {
	if cfg == nil {
		cfg = DefaultPostgresConfig()
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.BuildConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	poolConfig.MaxConns = cfg.MaxConns
	poolConfig.MinConns = cfg.MinConns

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresService{pool: pool}, nil
}

// Close closes the pool.
func (s *PostgresService) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Ping checks database connectivity.
func (s *PostgresService) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Begin starts a new transaction. The loader uses one per chunk; the
// ledger-mark-failed step needs a second, independent one after a
// rollback.
func (s *PostgresService) Begin(ctx context.Context) (pgx.Tx, error) {
	return s.pool.Begin(ctx)
}

// QueryRow executes a query returning at most one row.
func (s *PostgresService) QueryRow(ctx context.Context, query string, args ...interface{}) pgx.Row {
	return s.pool.QueryRow(ctx, query, args...)
}

// Query executes a query returning rows.
func (s *PostgresService) Query(ctx context.Context, query string, args ...interface{}) (pgx.Rows, error) {
	return s.pool.Query(ctx, query, args...)
}

// Exec executes a query without returning rows.
func (s *PostgresService) Exec(ctx context.Context, query string, args ...interface{}) (pgconn.CommandTag, error) {
	return s.pool.Exec(ctx, query, args...)
}

// Stats returns connection pool statistics.
func (s *PostgresService) Stats() *pgxpool.Stat {
	return s.pool.Stat()
}
