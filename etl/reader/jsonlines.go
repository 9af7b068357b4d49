package reader

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/haoqt/mini-etl/etl/model"
)

// JSONLinesReader reads a UTF-8 JSON Lines file: each non-blank line
// is one JSON object. Malformed lines fail the whole iteration —
// reader errors are fatal to the chunk boundary, not per-record
// quarantined.
type JSONLinesReader struct {
	path      string
	chunkSize int
}

// NewJSONLinesReader constructs a JSONLinesReader. Fails immediately
// if path does not exist.
func NewJSONLinesReader(path string, chunkSize int) (*JSONLinesReader, error) {
	if chunkSize < 1 {
		return nil, fmt.Errorf("chunk size must be >= 1, got %d", chunkSize)
	}
	if err := ensureSourceExists(path); err != nil {
		return nil, err
	}
	return &JSONLinesReader{path: path, chunkSize: chunkSize}, nil
}

// Iterate reopens the source file from the beginning; chunk ids start
// at 0 again on every call.
func (r *JSONLinesReader) Iterate() (ChunkIterator, error) {
	f, err := os.Open(r.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %q: %w", r.path, err)
	}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	return &jsonLinesIterator{
		file:      f,
		scanner:   scanner,
		chunkSize: r.chunkSize,
	}, nil
}

type jsonLinesIterator struct {
	file      *os.File
	scanner   *bufio.Scanner
	chunkSize int

	chunkID  int
	rowStart int
	rowIndex int
	buffer   []model.Record

	current model.Chunk
	err     error
	done    bool
}

func (it *jsonLinesIterator) Next() bool {
	if it.done || it.err != nil {
		return false
	}

	for it.scanner.Scan() {
		line := strings.TrimSpace(it.scanner.Text())
		if line == "" {
			continue
		}

		var rec model.Record
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			it.err = fmt.Errorf("failed to parse JSON line at row %d: %w", it.rowIndex, err)
			it.done = true
			return false
		}
		it.buffer = append(it.buffer, rec)

		if len(it.buffer) >= it.chunkSize {
			it.current = model.Chunk{
				ChunkID:  it.chunkID,
				Records:  it.buffer,
				RowStart: it.rowStart,
				RowEnd:   it.rowIndex,
			}
			it.chunkID++
			it.rowStart = it.rowIndex + 1
			it.buffer = nil
			it.rowIndex++
			return true
		}

		it.rowIndex++
	}

	if err := it.scanner.Err(); err != nil {
		it.err = fmt.Errorf("failed to read %q: %w", it.file.Name(), err)
		it.done = true
		return false
	}

	if len(it.buffer) == 0 {
		it.done = true
		return false
	}

	it.current = model.Chunk{
		ChunkID:  it.chunkID,
		Records:  it.buffer,
		RowStart: it.rowStart,
		RowEnd:   it.rowStart + len(it.buffer) - 1,
	}
	it.buffer = nil
	it.done = true
	return true
}

func (it *jsonLinesIterator) Chunk() model.Chunk { return it.current }
func (it *jsonLinesIterator) Err() error         { return it.err }
func (it *jsonLinesIterator) Close() error       { return it.file.Close() }
