// Package reader implements chunked, restartable readers over
// line-structured source files: delimiter-separated (header-driven)
// and JSON-lines variants, both producing a forward-only sequence of
// model.Chunk values.
package reader

import (
	"fmt"
	"os"

	"github.com/haoqt/mini-etl/etl/model"
)

// ChunkIterator is a forward-only, single-pass cursor over a Reader's
// chunks, in the style of bufio.Scanner: call Next until it returns
// false, then check Err.
type ChunkIterator interface {
	// Next advances to the next chunk, returning false when the
	// source is exhausted or an error occurred (check Err).
	Next() bool
	// Chunk returns the chunk produced by the most recent Next call.
	Chunk() model.Chunk
	// Err returns the first error encountered, if any. A non-nil Err
	// means the sequence ended early — no partial chunk was emitted.
	Err() error
	// Close releases the underlying file handle.
	Close() error
}

// Reader produces chunks from a file. Iterate is restartable: calling
// it again reopens the source from the beginning and chunk ids
// restart at 0.
type Reader interface {
	Iterate() (ChunkIterator, error)
}

// ensureSourceExists fails construction immediately if the file is absent.
func ensureSourceExists(path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("source file %q is not accessible: %w", path, err)
	}
	return nil
}
