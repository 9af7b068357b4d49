package reader

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/haoqt/mini-etl/etl/model"
)

// DelimitedReader reads a header-driven, delimiter-separated text
// file. The header's field names become record keys verbatim; a row
// with fewer fields than the header maps the missing trailing fields
// to "".
type DelimitedReader struct {
	path      string
	chunkSize int
	comma     rune
}

// NewDelimitedReader constructs a DelimitedReader over path, chunking
// every chunkSize accepted records. comma is the field separator; pass
// ',' for standard CSV. Fails immediately if path does not exist.
func NewDelimitedReader(path string, chunkSize int, comma rune) (*DelimitedReader, error) {
	if chunkSize < 1 {
		return nil, fmt.Errorf("chunk size must be >= 1, got %d", chunkSize)
	}
	if err := ensureSourceExists(path); err != nil {
		return nil, err
	}
	return &DelimitedReader{path: path, chunkSize: chunkSize, comma: comma}, nil
}

// Iterate reopens the source file from the beginning; chunk ids start
// at 0 again on every call.
func (r *DelimitedReader) Iterate() (ChunkIterator, error) {
	f, err := os.Open(r.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %q: %w", r.path, err)
	}

	cr := csv.NewReader(f)
	cr.Comma = r.comma
	cr.FieldsPerRecord = -1 // tolerate short/long rows; we pad/ignore below

	header, err := cr.Read()
	if err != nil {
		if err == io.EOF {
			// Empty file: header line itself absent means zero data
			// rows and zero chunks.
			f.Close()
			return &sliceIterator{}, nil
		}
		f.Close()
		return nil, fmt.Errorf("failed to read header from %q: %w", r.path, err)
	}

	return &delimitedIterator{
		file:      f,
		csvReader: cr,
		header:    header,
		chunkSize: r.chunkSize,
	}, nil
}

type delimitedIterator struct {
	file      *os.File
	csvReader *csv.Reader
	header    []string
	chunkSize int

	chunkID  int
	rowStart int
	rowIndex int
	buffer   []model.Record

	current model.Chunk
	err     error
	done    bool
}

func (it *delimitedIterator) Next() bool {
	if it.done || it.err != nil {
		return false
	}

	for {
		row, readErr := it.csvReader.Read()
		if readErr == io.EOF {
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
		if readErr != nil {
			it.err = fmt.Errorf("failed to read delimited row %d: %w", it.rowIndex, readErr)
			it.done = true
			return false
		}

		it.buffer = append(it.buffer, rowToRecord(it.header, row))

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
}

func rowToRecord(header, row []string) model.Record {
	rec := make(model.Record, len(header))
	for i, key := range header {
		if i < len(row) {
			rec[key] = row[i]
		} else {
			rec[key] = ""
		}
	}
	return rec
}

func (it *delimitedIterator) Chunk() model.Chunk { return it.current }
func (it *delimitedIterator) Err() error         { return it.err }
func (it *delimitedIterator) Close() error       { return it.file.Close() }

// sliceIterator is a trivial ChunkIterator over an in-memory slice,
// used for the empty-input fast path.
type sliceIterator struct {
	chunks []model.Chunk
	idx    int
}

func (it *sliceIterator) Next() bool {
	if it.idx >= len(it.chunks) {
		return false
	}
	it.idx++
	return true
}

func (it *sliceIterator) Chunk() model.Chunk { return it.chunks[it.idx-1] }
func (it *sliceIterator) Err() error         { return nil }
func (it *sliceIterator) Close() error       { return nil }
