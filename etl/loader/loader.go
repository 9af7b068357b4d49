// Package loader implements the chunk loader: a single transaction
// per chunk that upserts records into the target table and keeps the
// etl_chunks ledger in lockstep, plus the separate committed
// transaction needed to mark a chunk failed after a rollback.
package loader

import (
	"context"
	"fmt"
	"strings"

	"github.com/haoqt/mini-etl/etl/apperrors"
	"github.com/haoqt/mini-etl/etl/logging"
	"github.com/haoqt/mini-etl/etl/model"
)

// Loader is the contract the orchestrator drives per chunk.
type Loader interface {
	LoadChunk(ctx context.Context, runID string, chunk model.TransformedChunk) error
}

// TargetTable declares the upsert target: its name, primary key, and
// the ordered set of columns to write. Columns must include
// PrimaryKey. Record fields not present in Columns are ignored; a
// Column missing from a record is written as NULL.
type TargetTable struct {
	Name       string
	PrimaryKey string
	Columns    []string
	PageSize   int
}

// DefaultTargetTable returns the reference target: orders, keyed by
// external_id.
func DefaultTargetTable() TargetTable {
	return TargetTable{
		Name:       "orders",
		PrimaryKey: "external_id",
		Columns:    []string{"external_id", "amount", "country_code", "country_name", "created_at"},
		PageSize:   1000,
	}
}

func (t TargetTable) pageSize() int {
	if t.PageSize > 0 {
		return t.PageSize
	}
	return 1000
}

// PostgresLoader implements Loader against a transactional DB.
type PostgresLoader struct {
	db     DB
	target TargetTable
	logger logging.Logger
}

// NewPostgresLoader builds a PostgresLoader writing into target
// through db, logging through logger (or a default logger if nil).
func NewPostgresLoader(db DB, target TargetTable, logger logging.Logger) *PostgresLoader {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &PostgresLoader{db: db, target: target, logger: logger}
}

// LoadChunk implements the transactional protocol:
//  1. upsert the ledger row to (run_id, chunk_id, processing);
//  2. batch-upsert every record, paginated;
//  3. mark the ledger row success;
//  4. commit.
//
// Any failure in 1-3 rolls back the whole transaction, then marks the
// ledger failed in a second, independent transaction.
func (l *PostgresLoader) LoadChunk(ctx context.Context, runID string, chunk model.TransformedChunk) error {
	logger := l.logger.With(
		logging.String("run_id", runID),
		logging.Int("chunk_id", chunk.ChunkID),
	)

	// Empty-chunk fast path: an all-quarantined chunk has no data work
	// to do, so it never touches the database.
	if len(chunk.Records) == 0 {
		logger.Info("chunk has no records to load, skipping")
		return nil
	}

	tx, err := l.db.Begin(ctx)
	if err != nil {
		return apperrors.NewDatabaseError(apperrors.ErrCodeDatabaseConnection, "failed to begin chunk transaction", err)
	}

	if loadErr := l.loadWithinTx(ctx, tx, runID, chunk); loadErr != nil {
		_ = tx.Rollback(ctx)

		if markErr := l.markFailed(ctx, runID, chunk.ChunkID); markErr != nil {
			logger.Error("failed to record chunk failure in ledger", markErr)
		}

		appErr := apperrors.NewDatabaseError(apperrors.ErrCodeDatabaseQuery, "chunk load failed", loadErr)
		logger.Error("chunk load failed", appErr)
		return appErr
	}

	if err := tx.Commit(ctx); err != nil {
		if markErr := l.markFailed(ctx, runID, chunk.ChunkID); markErr != nil {
			logger.Error("failed to record chunk failure in ledger", markErr)
		}
		return apperrors.NewDatabaseError(apperrors.ErrCodeDatabaseQuery, "failed to commit chunk transaction", err)
	}

	logger.Info("chunk loaded successfully", logging.Int("records", len(chunk.Records)))
	return nil
}

func (l *PostgresLoader) loadWithinTx(ctx context.Context, tx Tx, runID string, chunk model.TransformedChunk) error {
	if err := l.markProcessing(ctx, tx, runID, chunk.ChunkID); err != nil {
		return fmt.Errorf("failed to mark chunk processing: %w", err)
	}

	if err := l.upsertRecords(ctx, tx, chunk.Records); err != nil {
		return fmt.Errorf("failed to upsert records: %w", err)
	}

	if err := l.markSuccess(ctx, tx, runID, chunk.ChunkID); err != nil {
		return fmt.Errorf("failed to mark chunk success: %w", err)
	}

	return nil
}

func (l *PostgresLoader) markProcessing(ctx context.Context, tx Tx, runID string, chunkID int) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO etl_chunks (run_id, chunk_id, status, updated_at)
		VALUES ($1, $2, 'processing', now())
		ON CONFLICT (run_id, chunk_id)
		DO UPDATE SET status = 'processing', updated_at = now()
	`, runID, chunkID)
	return err
}

func (l *PostgresLoader) markSuccess(ctx context.Context, tx Tx, runID string, chunkID int) error {
	_, err := tx.Exec(ctx, `
		UPDATE etl_chunks SET status = 'success', updated_at = now()
		WHERE run_id = $1 AND chunk_id = $2
	`, runID, chunkID)
	return err
}

// markFailed marks the ledger failed in a fresh transaction, since the
// data transaction that would have held this statement was just
// rolled back. If the processing row never committed in the first
// place, this UPDATE matches zero rows — an accepted, harmless outcome.
// This write is guarded by apperrors.DatabaseRetryConfig: it is the
// run's last chance to record that a chunk failed, so a transient
// connection blip here is retried rather than left to silently lose
// the failure record.
func (l *PostgresLoader) markFailed(ctx context.Context, runID string, chunkID int) error {
	retryer := apperrors.NewRetryer(apperrors.DatabaseRetryConfig())

	return retryer.Execute(ctx, func() error {
		tx, err := l.db.Begin(ctx)
		if err != nil {
			return apperrors.NewDatabaseError(apperrors.ErrCodeDatabaseConnection, "failed to begin failure-marking transaction", err)
		}

		if _, err := tx.Exec(ctx, `
			UPDATE etl_chunks SET status = 'failed', updated_at = now()
			WHERE run_id = $1 AND chunk_id = $2
		`, runID, chunkID); err != nil {
			_ = tx.Rollback(ctx)
			return apperrors.NewDatabaseError(apperrors.ErrCodeDatabaseQuery, "failed to mark chunk failed", err)
		}

		if err := tx.Commit(ctx); err != nil {
			return apperrors.NewDatabaseError(apperrors.ErrCodeDatabaseQuery, "failed to commit failure-marking transaction", err)
		}

		return nil
	})
}

// upsertRecords batch-upserts records into the target table,
// page-sized to bound memory. Duplicate primary keys are resolved
// last-write-wins: within a page buildUpsertSQL keeps only the last
// record for each key, and a later page overwrites an earlier one.
func (l *PostgresLoader) upsertRecords(ctx context.Context, tx Tx, records []model.Record) error {
	pageSize := l.target.pageSize()

	for start := 0; start < len(records); start += pageSize {
		end := start + pageSize
		if end > len(records) {
			end = len(records)
		}
		if err := l.upsertPage(ctx, tx, records[start:end]); err != nil {
			return fmt.Errorf("failed to upsert page [%d,%d): %w", start, end, err)
		}
	}

	return nil
}

func (l *PostgresLoader) upsertPage(ctx context.Context, tx Tx, page []model.Record) error {
	query, args := l.buildUpsertSQL(page)
	_, err := tx.Exec(ctx, query, args...)
	return err
}

// buildUpsertSQL builds a single parameterized, multi-row upsert
// statement for page — no string interpolation of values.
func (l *PostgresLoader) buildUpsertSQL(page []model.Record) (string, []interface{}) {
	// One ON CONFLICT DO UPDATE statement cannot update the same row
	// twice, so only the last record for each non-null key is kept.
	last := make(map[string]int, len(page))
	for i, rec := range page {
		last[fmt.Sprint(rec[l.target.PrimaryKey])] = i
	}
	deduped := make([]model.Record, 0, len(page))
	for i, rec := range page {
		if key := rec[l.target.PrimaryKey]; key == nil || last[fmt.Sprint(key)] == i {
			deduped = append(deduped, rec)
		}
	}
	page = deduped

	cols := l.target.Columns
	args := make([]interface{}, 0, len(page)*len(cols))

	valueRows := make([]string, len(page))
	argIndex := 1
	for i, rec := range page {
		placeholders := make([]string, len(cols))
		for j, col := range cols {
			placeholders[j] = fmt.Sprintf("$%d", argIndex)
			args = append(args, rec[col])
			argIndex++
		}
		valueRows[i] = "(" + strings.Join(placeholders, ", ") + ")"
	}

	updateAssignments := make([]string, 0, len(cols)-1)
	for _, col := range cols {
		if col == l.target.PrimaryKey {
			continue
		}
		updateAssignments = append(updateAssignments, fmt.Sprintf("%s = EXCLUDED.%s", col, col))
	}

	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES %s ON CONFLICT (%s) DO UPDATE SET %s",
		l.target.Name,
		strings.Join(cols, ", "),
		strings.Join(valueRows, ", "),
		l.target.PrimaryKey,
		strings.Join(updateAssignments, ", "),
	)

	return query, args
}
