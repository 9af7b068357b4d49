package loader

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/haoqt/mini-etl/etl/database"
)

// RowScanner is the minimal row-scanning capability the loader needs
// from a query result — satisfied structurally by pgx.Row.
type RowScanner interface {
	Scan(dest ...interface{}) error
}

// Tx is the minimal transaction capability the loader's transactional
// protocol needs.
type Tx interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (int64, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) RowScanner
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// DB opens transactions. PostgresDB (below) is the production
// implementation; tests substitute a fake.
type DB interface {
	Begin(ctx context.Context) (Tx, error)
}

// PostgresDB adapts *database.PostgresService to the loader's DB
// interface, keeping the loader's transactional protocol decoupled
// from pgx's full Tx surface.
type PostgresDB struct {
	svc *database.PostgresService
}

// NewPostgresDB wraps a PostgresService for use by the loader.
func NewPostgresDB(svc *database.PostgresService) *PostgresDB {
	return &PostgresDB{svc: svc}
}

func (p *PostgresDB) Begin(ctx context.Context) (Tx, error) {
	tx, err := p.svc.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &pgxTxAdapter{tx: tx}, nil
}

type pgxTxAdapter struct {
	tx pgx.Tx
}

func (a *pgxTxAdapter) Exec(ctx context.Context, sql string, args ...interface{}) (int64, error) {
	tag, err := a.tx.Exec(ctx, sql, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (a *pgxTxAdapter) QueryRow(ctx context.Context, sql string, args ...interface{}) RowScanner {
	return a.tx.QueryRow(ctx, sql, args...)
}

func (a *pgxTxAdapter) Commit(ctx context.Context) error   { return a.tx.Commit(ctx) }
func (a *pgxTxAdapter) Rollback(ctx context.Context) error { return a.tx.Rollback(ctx) }
