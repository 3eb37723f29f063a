package models

// IngestionDiagnostics summarizes what has been ingested for one account.
type IngestionDiagnostics struct {
	AccountID    string            `json:"account_id"`
	EntityCounts map[string]int64  `json:"entity_counts"`
	RecentRuns   []ImportRun       `json:"recent_runs"`
	RunDatasets  []DatasetProgress `json:"run_datasets"`
}
