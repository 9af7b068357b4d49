// Package transform implements a composable transformer pipeline: an
// ordered list of steps applied to each record in a chunk, with
// per-record failures quarantined rather than aborting the chunk.
package transform

import "github.com/haoqt/mini-etl/etl/model"

// Step is a single, pure transformation applied to one record. A step
// may fail with a reason; the failure quarantines only that record.
type Step interface {
	Process(record model.Record) (model.Record, error)
}

// Pipeline applies an ordered list of Steps to every record in a
// chunk. Pipeline itself never fails: per-record errors are caught and
// appended to TransformedChunk.Errors.
type Pipeline struct {
	steps []Step
}

// NewPipeline builds a Pipeline from an ordered step list. Step order
// is the order of application.
func NewPipeline(steps ...Step) *Pipeline {
	return &Pipeline{steps: steps}
}

// ProcessChunk runs every record in chunk through the pipeline in
// input order, producing a TransformedChunk whose Records and Errors
// together account for every record in the source chunk exactly once.
func (p *Pipeline) ProcessChunk(chunk model.Chunk) model.TransformedChunk {
	result := model.TransformedChunk{
		ChunkID: chunk.ChunkID,
		Records: make([]model.Record, 0, len(chunk.Records)),
		Errors:  make([]model.TransformError, 0),
	}

	for i, record := range chunk.Records {
		current := record
		var stepErr error

		for _, step := range p.steps {
			next, err := step.Process(current)
			if err != nil {
				stepErr = err
				break
			}
			current = next
		}

		if stepErr != nil {
			result.Errors = append(result.Errors, model.TransformError{
				RowIndex:  chunk.RowStart + i,
				Reason:    stepErr.Error(),
				RawRecord: record,
			})
			continue
		}

		result.Records = append(result.Records, current)
	}

	return result
}
