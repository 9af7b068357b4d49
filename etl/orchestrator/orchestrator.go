// Package orchestrator drives a single end-to-end run: pulling chunks
// from a reader, transforming each, loading it, consulting and
// growing a persisted progress ledger, and retrying chunk-level
// failures up to a bound before giving up on that chunk and moving on.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/haoqt/mini-etl/etl/apperrors"
	"github.com/haoqt/mini-etl/etl/loader"
	"github.com/haoqt/mini-etl/etl/logging"
	"github.com/haoqt/mini-etl/etl/model"
	"github.com/haoqt/mini-etl/etl/reader"
	"github.com/haoqt/mini-etl/etl/transform"
)

// Config controls a single run.
type Config struct {
	RunID      string
	MaxRetries int
	// RetryBackoff is the delay between a chunk's failed attempt and
	// its next one. Zero retries immediately.
	RetryBackoff time.Duration
}

// LedgerStore is the minimal ledger-read capability the orchestrator
// needs for its resume scan. *database.LedgerRepository satisfies
// this structurally.
type LedgerStore interface {
	ProcessedChunkIDs(ctx context.Context, runID string) (map[int]bool, error)
}

// Orchestrator wires a reader, a transform pipeline, and a loader
// together for one run, consulting a ledger store to skip
// already-processed chunks.
type Orchestrator struct {
	src      reader.Reader
	pipeline *transform.Pipeline
	ld       loader.Loader
	ledger   LedgerStore
	logger   logging.Logger
	cfg      Config
}

// New builds an Orchestrator.
func New(src reader.Reader, pipeline *transform.Pipeline, ld loader.Loader, ledger LedgerStore, logger logging.Logger, cfg Config) *Orchestrator {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &Orchestrator{src: src, pipeline: pipeline, ld: ld, ledger: ledger, logger: logger, cfg: cfg}
}

// Run drives one pass over the source for o.cfg.RunID. It returns an
// error only for setup or reader failures — a chunk that exhausts its
// retries is logged and the run continues to the next chunk.
func (o *Orchestrator) Run(ctx context.Context) error {
	logger := o.logger.With(logging.String("run_id", o.cfg.RunID))

	processed, err := o.ledger.ProcessedChunkIDs(ctx, o.cfg.RunID)
	if err != nil {
		return fmt.Errorf("failed to load processed chunk ids: %w", err)
	}
	logger.Info("resume scan complete", logging.Int("already_processed", len(processed)))

	it, err := o.src.Iterate()
	if err != nil {
		return fmt.Errorf("failed to start reader iteration: %w", err)
	}
	defer it.Close()

	for it.Next() {
		chunk := it.Chunk()
		chunkLogger := logger.With(logging.Int("chunk_id", chunk.ChunkID))

		if processed[chunk.ChunkID] {
			chunkLogger.Info("chunk already processed, skipping")
			continue
		}

		o.attemptChunk(ctx, chunkLogger, chunk)
	}

	if err := it.Err(); err != nil {
		return fmt.Errorf("reader iteration failed: %w", err)
	}

	return nil
}

// attemptChunk runs the retry wrapper: transform then load, up to
// exactly MaxRetries total attempts (MaxRetries=0 means one attempt),
// driven through apperrors.Retryer so a load failure only consumes a
// retry when apperrors.IsRetryable says it should. It never returns an
// error — exhausted attempts are logged at critical severity and the
// run moves on to the next chunk.
func (o *Orchestrator) attemptChunk(ctx context.Context, logger logging.Logger, chunk model.Chunk) {
	retryer := apperrors.NewRetryer(&apperrors.RetryConfig{
		MaxRetries:    extraRetries(o.cfg.MaxRetries),
		BaseDelay:     o.cfg.RetryBackoff,
		MaxDelay:      o.cfg.RetryBackoff,
		BackoffFactor: 1,
	})

	attempt := 0
	var lastErr error

	err := retryer.Execute(ctx, func() error {
		attempt++
		attemptLogger := logger.With(
			logging.Int("attempt", attempt),
			logging.String("attempt_id", uuid.NewString()),
		)

		transformed := o.pipeline.ProcessChunk(chunk)
		if len(transformed.Errors) > 0 {
			attemptLogger.Warn("chunk has quarantined records", logging.Int("quarantined", len(transformed.Errors)))
		}

		if err := o.ld.LoadChunk(ctx, o.cfg.RunID, transformed); err != nil {
			lastErr = err
			attemptLogger.Warn("chunk load attempt failed", logging.Any("error", err.Error()))
			return err
		}

		attemptLogger.Info("chunk loaded successfully")
		return nil
	})

	if err != nil {
		logger.Critical("chunk permanently failed after exhausting retries",
			logging.Int("attempts", attempt),
			logging.Any("error", errString(lastErr)),
		)
	}
}

// extraRetries converts a total-attempt count into the extra-attempts
// count apperrors.Retryer expects (it already runs the first attempt
// itself). maxRetries<1 means exactly one attempt, i.e. zero extras.
func extraRetries(maxRetries int) int {
	if maxRetries < 1 {
		return 0
	}
	return maxRetries - 1
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
