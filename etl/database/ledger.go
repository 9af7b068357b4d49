package database

import (
	"context"
	"fmt"
)

// LedgerRepository provides read access to the etl_chunks ledger for
// the orchestrator's startup resume scan. The loader owns writes to
// this table as part of its per-chunk transaction.
type LedgerRepository struct {
	db *PostgresService
}

// NewLedgerRepository creates a ledger repository over db.
func NewLedgerRepository(db *PostgresService) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// EnsureSchema creates the etl_chunks ledger table if it does not
// already exist, so a fresh target database can run the engine
// without a separate migration step.
func (r *LedgerRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS etl_chunks (
			run_id     TEXT NOT NULL,
			chunk_id   INTEGER NOT NULL,
			status     TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (run_id, chunk_id)
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to ensure etl_chunks schema: %w", err)
	}
	return nil
}

// ProcessedChunkIDs returns the set of chunk ids already recorded as
// successful for runID, letting the orchestrator skip them on resume.
func (r *LedgerRepository) ProcessedChunkIDs(ctx context.Context, runID string) (map[int]bool, error) {
	rows, err := r.db.Query(ctx, `
		SELECT chunk_id FROM etl_chunks WHERE run_id = $1 AND status = 'success'
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query processed chunks: %w", err)
	}
	defer rows.Close()

	processed := make(map[int]bool)
	for rows.Next() {
		var chunkID int
		if err := rows.Scan(&chunkID); err != nil {
			return nil, fmt.Errorf("failed to scan processed chunk id: %w", err)
		}
		processed[chunkID] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating processed chunks: %w", err)
	}

	return processed, nil
}
