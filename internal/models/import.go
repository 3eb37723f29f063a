package models

import (
	"encoding/json"
	"time"
)

type RunStatus string

const (
	RunInProgress RunStatus = "in_progress"
	RunCompleted  RunStatus = "completed"
	RunFailed     RunStatus = "failed"
)

// IsTerminal reports whether no further status transition is allowed.
func (s RunStatus) IsTerminal() bool {
	return s == RunCompleted || s == RunFailed
}

type ImportRun struct {
	RunID            string          `json:"run_id" db:"run_id"`
	AccountID        string          `json:"account_id" db:"account_id"`
	Status           RunStatus       `json:"status" db:"status"`
	DatasetsExpected int             `json:"datasets_expected" db:"datasets_expected"`
	DatasetsReceived int             `json:"datasets_received" db:"datasets_received"`
	TotalRows        int64           `json:"total_rows" db:"total_rows"`
	Metadata         json.RawMessage `json:"metadata,omitempty" db:"metadata"`
	StartedAt        time.Time       `json:"started_at" db:"started_at"`
	CompletedAt      *time.Time      `json:"completed_at,omitempty" db:"completed_at"`
	ErrorMessage     *string         `json:"error_message,omitempty" db:"error_message"`
	UpdatedAt        time.Time       `json:"updated_at" db:"updated_at"`
}

// ImportChunk is the ledger entry for one accepted batch. Never updated.
type ImportChunk struct {
	ID          string    `json:"id" db:"id"`
	AccountID   string    `json:"account_id" db:"account_id"`
	RunID       string    `json:"run_id" db:"run_id"`
	DatasetName string    `json:"dataset_name" db:"dataset_name"`
	ChunkIndex  int       `json:"chunk_index" db:"chunk_index"`
	ChunkTotal  int       `json:"chunk_total" db:"chunk_total"`
	RowCount    int       `json:"row_count" db:"row_count"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// DatasetProgress is the derived completion state of one dataset within a run.
type DatasetProgress struct {
	RunID          string `json:"run_id" db:"run_id"`
	DatasetName    string `json:"dataset_name" db:"dataset_name"`
	ChunksReceived int    `json:"chunks_received" db:"chunks_received"`
	ChunkTotal     int    `json:"chunk_total" db:"chunk_total"`
	Rows           int64  `json:"rows" db:"rows"`
}

// Complete reports whether every declared chunk of the dataset has been ledgered.
func (p DatasetProgress) Complete() bool {
	return p.ChunkTotal > 0 && p.ChunksReceived == p.ChunkTotal
}
