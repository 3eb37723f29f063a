package ingest

import (
	"math"
	"strings"
	"time"

	"github.com/stanstork/adscope-api/internal/dataset"
)

const (
	maxRunIDLength = 128
	dateLayout     = "2006-01-02"
)

// Metadata is the envelope an agent sends with every chunk.
type Metadata struct {
	RunID            string  `json:"runId"`
	DatasetName      string  `json:"datasetName"`
	ChunkIndex       int     `json:"chunkIndex"`
	ChunkTotal       int     `json:"chunkTotal"`
	RowCount         int     `json:"rowCount"`
	DatasetsExpected *int    `json:"datasetsExpected,omitempty"`
	DateRangeStart   *string `json:"dateRangeStart,omitempty"`
	DateRangeEnd     *string `json:"dateRangeEnd,omitempty"`
}

// Batch is one chunk of one dataset within a run.
type Batch struct {
	Metadata
	Rows []dataset.Row
}

// checkedBatch is a Batch that passed validation, with its dataset resolved.
type checkedBatch struct {
	Batch
	spec             dataset.Spec
	datasetsExpected int
	start            *time.Time
	end              *time.Time
}

func validate(b Batch) (checkedBatch, error) {
	b.RunID = strings.TrimSpace(b.RunID)

	spec, ok := dataset.Lookup(b.DatasetName)
	if !ok {
		return checkedBatch{}, invalid("invalid dataset: %q", b.DatasetName)
	}
	if b.RunID == "" {
		return checkedBatch{}, invalid("runId is required")
	}
	if len(b.RunID) > maxRunIDLength {
		return checkedBatch{}, invalid("runId exceeds %d characters", maxRunIDLength)
	}
	if b.ChunkTotal < 1 || b.ChunkTotal > math.MaxInt32 {
		return checkedBatch{}, invalid("chunkTotal must be between 1 and %d", math.MaxInt32)
	}
	if b.ChunkIndex < 0 || b.ChunkIndex >= b.ChunkTotal {
		return checkedBatch{}, invalid("chunkIndex must be between 0 and %d", b.ChunkTotal-1)
	}
	if b.RowCount < 0 || b.RowCount > math.MaxInt32 {
		return checkedBatch{}, invalid("rowCount must be between 0 and %d", math.MaxInt32)
	}

	checked := checkedBatch{Batch: b, spec: spec, datasetsExpected: dataset.Count}
	if b.DatasetsExpected != nil {
		n := *b.DatasetsExpected
		if n < 1 || n > dataset.Count {
			return checkedBatch{}, invalid("datasetsExpected must be between 1 and %d", dataset.Count)
		}
		checked.datasetsExpected = n
	}

	var err error
	if checked.start, err = parseDate("dateRangeStart", b.DateRangeStart); err != nil {
		return checkedBatch{}, err
	}
	if checked.end, err = parseDate("dateRangeEnd", b.DateRangeEnd); err != nil {
		return checkedBatch{}, err
	}
	if checked.start != nil && checked.end != nil && checked.start.After(*checked.end) {
		return checkedBatch{}, invalid("dateRangeStart is after dateRangeEnd")
	}
	return checked, nil
}

func parseDate(field string, value *string) (*time.Time, error) {
	if value == nil || strings.TrimSpace(*value) == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, strings.TrimSpace(*value))
	if err != nil {
		return nil, invalid("%s must be formatted as YYYY-MM-DD", field)
	}
	return &t, nil
}

// runMetadata is what a new run records about the snapshot it belongs to.
func (b checkedBatch) runMetadata() map[string]interface{} {
	meta := map[string]interface{}{}
	if b.start != nil {
		meta["dateRangeStart"] = b.start.Format(dateLayout)
	}
	if b.end != nil {
		meta["dateRangeEnd"] = b.end.Format(dateLayout)
	}
	return meta
}
