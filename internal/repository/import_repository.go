package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stanstork/adscope-api/internal/dataset"
	"github.com/stanstork/adscope-api/internal/migration"
	"github.com/stanstork/adscope-api/internal/models"
)

// NewRun carries what a run is created with on its first chunk.
type NewRun struct {
	RunID            string
	AccountID        string
	DatasetsExpected int
	Metadata         json.RawMessage
}

// ApplyParams scopes the rows of one chunk to their account, run and reporting window.
type ApplyParams struct {
	AccountID      string
	RunID          string
	DateRangeStart *time.Time
	DateRangeEnd   *time.Time
}

// ImportTx is the set of writes performed while accepting a single chunk.
// Everything done through it commits or rolls back together.
type ImportTx interface {
	// FindOrCreateRun returns the run, creating it if needed, and holds its row lock
	// until the transaction ends.
	FindOrCreateRun(ctx context.Context, run NewRun) (models.ImportRun, error)
	DatasetChunkTotal(ctx context.Context, runID, datasetName string) (int, bool, error)
	InsertChunk(ctx context.Context, chunk models.ImportChunk) (models.ImportChunk, error)
	ApplyRows(ctx context.Context, spec dataset.Spec, params ApplyParams, rows []dataset.Row) (int64, error)
	AddRows(ctx context.Context, runID string, n int) error
	CountChunks(ctx context.Context, runID, datasetName string) (int, error)
	MarkDatasetComplete(ctx context.Context, runID string) (models.ImportRun, error)
}

type ImportRepository interface {
	GetChunk(ctx context.Context, accountID, runID, datasetName string, chunkIndex int) (models.ImportChunk, error)
	RunInTx(ctx context.Context, fn func(tx ImportTx) error) error
	MarkRunFailed(ctx context.Context, accountID, runID, message string) (bool, error)

	GetRun(ctx context.Context, accountID, runID string) (models.ImportRun, error)
	GetLatestCompletedRun(ctx context.Context, accountID string) (models.ImportRun, error)
	ListRecentRuns(ctx context.Context, accountID string, limit int) ([]models.ImportRun, error)
	ListDatasetProgress(ctx context.Context, accountID string, runIDs []string) ([]models.DatasetProgress, error)
	CountEntities(ctx context.Context, accountID string) (map[string]int64, error)
}

type importRepository struct {
	db *sql.DB
}

func NewImportRepository(db *sql.DB) ImportRepository {
	return &importRepository{db: db}
}

const runColumns = `run_id, account_id, status, datasets_expected, datasets_received, total_rows,
	metadata, started_at, completed_at, error_message, updated_at`

func (r *importRepository) GetChunk(ctx context.Context, accountID, runID, datasetName string, chunkIndex int) (models.ImportChunk, error) {
	const query = `
		SELECT id, account_id, run_id, dataset_name, chunk_index, chunk_total, row_count, created_at
		FROM ingest.import_chunks
		WHERE account_id = $1 AND run_id = $2 AND dataset_name = $3 AND chunk_index = $4
	`
	var chunk models.ImportChunk
	err := r.db.QueryRowContext(ctx, query, accountID, runID, datasetName, chunkIndex).Scan(
		&chunk.ID,
		&chunk.AccountID,
		&chunk.RunID,
		&chunk.DatasetName,
		&chunk.ChunkIndex,
		&chunk.ChunkTotal,
		&chunk.RowCount,
		&chunk.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return chunk, ErrNotFound
		}
		return chunk, fmt.Errorf("get chunk: %w", err)
	}
	return chunk, nil
}

func (r *importRepository) RunInTx(ctx context.Context, fn func(tx ImportTx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&importTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// MarkRunFailed moves an in-progress run of the account to failed. Terminal runs and
// runs of other accounts are left untouched.
func (r *importRepository) MarkRunFailed(ctx context.Context, accountID, runID, message string) (bool, error) {
	const query = `
		UPDATE ingest.import_runs
		SET status = 'failed', error_message = $2, updated_at = NOW()
		WHERE run_id = $1 AND account_id = $3 AND status = 'in_progress'
	`
	res, err := r.db.ExecContext(ctx, query, runID, message, accountID)
	if err != nil {
		return false, fmt.Errorf("mark run failed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected > 0, nil
}

func (r *importRepository) GetRun(ctx context.Context, accountID, runID string) (models.ImportRun, error) {
	query := `SELECT ` + runColumns + ` FROM ingest.import_runs WHERE run_id = $1 AND account_id = $2`
	run, err := scanRun(r.db.QueryRowContext(ctx, query, runID, accountID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return run, ErrNotFound
		}
		return run, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

func (r *importRepository) GetLatestCompletedRun(ctx context.Context, accountID string) (models.ImportRun, error) {
	query := `
		SELECT ` + runColumns + `
		FROM ingest.import_runs
		WHERE account_id = $1 AND status = 'completed'
		ORDER BY completed_at DESC
		LIMIT 1
	`
	run, err := scanRun(r.db.QueryRowContext(ctx, query, accountID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return run, ErrNotFound
		}
		return run, fmt.Errorf("get latest completed run: %w", err)
	}
	return run, nil
}

func (r *importRepository) ListRecentRuns(ctx context.Context, accountID string, limit int) ([]models.ImportRun, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	query := `
		SELECT ` + runColumns + `
		FROM ingest.import_runs
		WHERE account_id = $1
		ORDER BY started_at DESC
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	runs := make([]models.ImportRun, 0, limit)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return runs, nil
}

func (r *importRepository) ListDatasetProgress(ctx context.Context, accountID string, runIDs []string) ([]models.DatasetProgress, error) {
	if len(runIDs) == 0 {
		return []models.DatasetProgress{}, nil
	}
	const query = `
		SELECT run_id, dataset_name, COUNT(*), MAX(chunk_total), COALESCE(SUM(row_count), 0)
		FROM ingest.import_chunks
		WHERE account_id = $1 AND run_id = ANY($2)
		GROUP BY run_id, dataset_name
		ORDER BY run_id, dataset_name
	`
	rows, err := r.db.QueryContext(ctx, query, accountID, pq.Array(runIDs))
	if err != nil {
		return nil, fmt.Errorf("list dataset progress: %w", err)
	}
	defer rows.Close()

	progress := []models.DatasetProgress{}
	for rows.Next() {
		var p models.DatasetProgress
		if err := rows.Scan(&p.RunID, &p.DatasetName, &p.ChunksReceived, &p.ChunkTotal, &p.Rows); err != nil {
			return nil, err
		}
		progress = append(progress, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return progress, nil
}

// CountEntities returns the number of stored records per dataset for the account.
func (r *importRepository) CountEntities(ctx context.Context, accountID string) (map[string]int64, error) {
	counts := make(map[string]int64, dataset.Count)
	for _, spec := range dataset.All() {
		query := fmt.Sprintf(`SELECT COUNT(*) FROM %s.%s WHERE account_id = $1`, migration.Schema, spec.Table)
		var n int64
		if err := r.db.QueryRowContext(ctx, query, accountID).Scan(&n); err != nil {
			return nil, fmt.Errorf("count %s: %w", spec.Name, err)
		}
		counts[string(spec.Name)] = n
	}
	return counts, nil
}

type importTx struct {
	tx *sql.Tx
}

func (t *importTx) FindOrCreateRun(ctx context.Context, run NewRun) (models.ImportRun, error) {
	const insert = `
		INSERT INTO ingest.import_runs (run_id, account_id, datasets_expected, metadata)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (run_id) DO NOTHING
	`
	var metadata interface{}
	if len(run.Metadata) > 0 {
		metadata = string(run.Metadata)
	}
	if _, err := t.tx.ExecContext(ctx, insert, run.RunID, run.AccountID, run.DatasetsExpected, metadata); err != nil {
		return models.ImportRun{}, fmt.Errorf("create run: %w", err)
	}

	query := `SELECT ` + runColumns + ` FROM ingest.import_runs WHERE run_id = $1 FOR UPDATE`
	found, err := scanRun(t.tx.QueryRowContext(ctx, query, run.RunID))
	if err != nil {
		return found, fmt.Errorf("lock run: %w", err)
	}
	return found, nil
}

func (t *importTx) DatasetChunkTotal(ctx context.Context, runID, datasetName string) (int, bool, error) {
	const query = `
		SELECT chunk_total
		FROM ingest.import_chunks
		WHERE run_id = $1 AND dataset_name = $2
		ORDER BY created_at
		LIMIT 1
	`
	var total int
	err := t.tx.QueryRowContext(ctx, query, runID, datasetName).Scan(&total)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("get chunk total: %w", err)
	}
	return total, true, nil
}

func (t *importTx) InsertChunk(ctx context.Context, chunk models.ImportChunk) (models.ImportChunk, error) {
	const query = `
		INSERT INTO ingest.import_chunks (id, account_id, run_id, dataset_name, chunk_index, chunk_total, row_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`
	chunk.ID = uuid.New().String()
	err := t.tx.QueryRowContext(ctx, query,
		chunk.ID,
		chunk.AccountID,
		chunk.RunID,
		chunk.DatasetName,
		chunk.ChunkIndex,
		chunk.ChunkTotal,
		chunk.RowCount,
	).Scan(&chunk.CreatedAt)
	if err != nil {
		if isUniqueViolationOnConstraint(err, chunkKeyConstraint) {
			return models.ImportChunk{}, ErrDuplicateChunk
		}
		return models.ImportChunk{}, fmt.Errorf("insert chunk: %w", err)
	}
	return chunk, nil
}

func (t *importTx) ApplyRows(ctx context.Context, spec dataset.Spec, params ApplyParams, rows []dataset.Row) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	switch spec.Mode {
	case dataset.Upsert:
		return upsertRows(ctx, t.tx, spec, params, rows)
	case dataset.Append:
		return appendRows(ctx, t.tx, spec, params, rows)
	default:
		return 0, fmt.Errorf("dataset %s: unsupported reconciliation mode %s", spec.Name, spec.Mode)
	}
}

func (t *importTx) AddRows(ctx context.Context, runID string, n int) error {
	const query = `
		UPDATE ingest.import_runs
		SET total_rows = total_rows + $2, updated_at = NOW()
		WHERE run_id = $1
	`
	if _, err := t.tx.ExecContext(ctx, query, runID, n); err != nil {
		return fmt.Errorf("add rows: %w", err)
	}
	return nil
}

func (t *importTx) CountChunks(ctx context.Context, runID, datasetName string) (int, error) {
	const query = `
		SELECT COUNT(*)
		FROM ingest.import_chunks
		WHERE run_id = $1 AND dataset_name = $2
	`
	var n int
	if err := t.tx.QueryRowContext(ctx, query, runID, datasetName).Scan(&n); err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return n, nil
}

// MarkDatasetComplete counts one more finished dataset and completes the run once
// every expected dataset is in. SET expressions see the pre-update row.
func (t *importTx) MarkDatasetComplete(ctx context.Context, runID string) (models.ImportRun, error) {
	query := `
		UPDATE ingest.import_runs
		SET datasets_received = datasets_received + 1,
		    status = CASE
		        WHEN status = 'in_progress' AND datasets_received + 1 >= datasets_expected THEN 'completed'
		        ELSE status
		    END,
		    completed_at = CASE
		        WHEN status = 'in_progress' AND datasets_received + 1 >= datasets_expected THEN NOW()
		        ELSE completed_at
		    END,
		    updated_at = NOW()
		WHERE run_id = $1
		RETURNING ` + runColumns
	run, err := scanRun(t.tx.QueryRowContext(ctx, query, runID))
	if err != nil {
		return run, fmt.Errorf("mark dataset complete: %w", err)
	}
	return run, nil
}

func scanRun(scanner rowScanner) (models.ImportRun, error) {
	var (
		run         models.ImportRun
		metadataRaw []byte
		completedAt sql.NullTime
		errMsg      sql.NullString
	)
	if err := scanner.Scan(
		&run.RunID,
		&run.AccountID,
		&run.Status,
		&run.DatasetsExpected,
		&run.DatasetsReceived,
		&run.TotalRows,
		&metadataRaw,
		&run.StartedAt,
		&completedAt,
		&errMsg,
		&run.UpdatedAt,
	); err != nil {
		return models.ImportRun{}, err
	}

	if len(metadataRaw) > 0 {
		run.Metadata = append(json.RawMessage(nil), metadataRaw...)
	}
	if completedAt.Valid {
		t := completedAt.Time
		run.CompletedAt = &t
	}
	if errMsg.Valid {
		run.ErrorMessage = &errMsg.String
	}
	return run, nil
}
