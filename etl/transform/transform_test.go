package transform

import (
	"testing"
	"time"

	"github.com/haoqt/mini-etl/etl/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chunkOf(rowStart int, records ...model.Record) model.Chunk {
	return model.Chunk{
		ChunkID:  0,
		Records:  records,
		RowStart: rowStart,
		RowEnd:   rowStart + len(records) - 1,
	}
}

// Happy path: clean, normalize, enrich all succeed.
func TestPipeline_HappyPath(t *testing.T) {
	pipeline := NewPipeline(CleanStep{}, NormalizeStep{}, NewEnrichStep(map[string]string{"VN": "Vietnam"}))

	chunk := chunkOf(0,
		model.Record{"external_id": "a", "amount": "10", "country_code": "VN", "created_at": "2024-01-01T00:00:00"},
		model.Record{"external_id": "b", "amount": "20", "country_code": "VN", "created_at": "2024-01-01T00:00:00"},
	)

	out := pipeline.ProcessChunk(chunk)

	require.Empty(t, out.Errors)
	require.Len(t, out.Records, 2)
	assert.Equal(t, 10.0, out.Records[0]["amount"])
	assert.Equal(t, "Vietnam", out.Records[0]["country_name"])
	assert.Equal(t, 20.0, out.Records[1]["amount"])

	wantTime, _ := time.Parse("2006-01-02T15:04:05", "2024-01-01T00:00:00")
	assert.Equal(t, wantTime, out.Records[0]["created_at"])
}

// Partial transform failure: middle row has an unknown country code.
func TestPipeline_PartialFailureQuarantinesOneRow(t *testing.T) {
	pipeline := NewPipeline(CleanStep{}, NormalizeStep{}, NewEnrichStep(map[string]string{"VN": "Vietnam"}))

	chunk := chunkOf(0,
		model.Record{"external_id": "a", "country_code": "VN"},
		model.Record{"external_id": "b", "country_code": "ZZ"},
		model.Record{"external_id": "c", "country_code": "VN"},
	)

	out := pipeline.ProcessChunk(chunk)

	require.Len(t, out.Records, 2)
	require.Len(t, out.Errors, 1)
	assert.Equal(t, 1, out.Errors[0].RowIndex)
	assert.Contains(t, out.Errors[0].Reason, "ZZ")
	assert.Equal(t, "a", out.Records[0]["external_id"])
	assert.Equal(t, "c", out.Records[1]["external_id"])
}

// A row that is all blank fields fails cleaning and is quarantined.
func TestPipeline_EmptyRecordAfterCleanIsQuarantined(t *testing.T) {
	pipeline := NewPipeline(CleanStep{}, NormalizeStep{}, NewEnrichStep(nil))

	chunk := chunkOf(5, model.Record{"external_id": "  ", "amount": nil})

	out := pipeline.ProcessChunk(chunk)

	require.Empty(t, out.Records)
	require.Len(t, out.Errors, 1)
	assert.Equal(t, 5, out.Errors[0].RowIndex)
	assert.Contains(t, out.Errors[0].Reason, "Empty record after cleaning")
}

func TestPipeline_RowIndexIsAbsoluteOverRowStart(t *testing.T) {
	pipeline := NewPipeline(NewEnrichStep(map[string]string{}))

	chunk := chunkOf(100, model.Record{"country_code": "ZZ"})

	out := pipeline.ProcessChunk(chunk)

	require.Len(t, out.Errors, 1)
	assert.Equal(t, 100, out.Errors[0].RowIndex)
}

func TestPipeline_RecordsAndErrorsPartitionInput(t *testing.T) {
	pipeline := NewPipeline(NewEnrichStep(map[string]string{"VN": "Vietnam"}))

	chunk := chunkOf(0,
		model.Record{"country_code": "VN"},
		model.Record{"country_code": "ZZ"},
		model.Record{},
		model.Record{"country_code": "VN"},
	)

	out := pipeline.ProcessChunk(chunk)

	assert.Equal(t, len(chunk.Records), len(out.Records)+len(out.Errors))
}

func TestCleanStep_TrimsAndDropsBlank(t *testing.T) {
	step := CleanStep{}
	rec, err := step.Process(model.Record{"a": "  hi  ", "b": "   ", "c": nil, "d": 5})
	require.NoError(t, err)
	assert.Equal(t, "hi", rec["a"])
	assert.Equal(t, 5, rec["d"])
	_, hasB := rec["b"]
	_, hasC := rec["c"]
	assert.False(t, hasB)
	assert.False(t, hasC)
}

func TestNormalizeStep_InvalidTimestampFails(t *testing.T) {
	step := NormalizeStep{}
	_, err := step.Process(model.Record{"created_at": "not-a-date"})
	require.Error(t, err)
}

func TestNormalizeStep_InvalidAmountFails(t *testing.T) {
	step := NormalizeStep{}
	_, err := step.Process(model.Record{"amount": "not-a-number"})
	require.Error(t, err)
}

func TestEnrichStep_MissingCountryCodePassesThrough(t *testing.T) {
	step := NewEnrichStep(map[string]string{"VN": "Vietnam"})
	rec, err := step.Process(model.Record{"external_id": "a"})
	require.NoError(t, err)
	_, hasName := rec["country_name"]
	assert.False(t, hasName)
}
