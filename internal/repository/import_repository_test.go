package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stanstork/adscope-api/internal/dataset"
	"github.com/stanstork/adscope-api/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var runRowColumns = []string{
	"run_id", "account_id", "status", "datasets_expected", "datasets_received", "total_rows",
	"metadata", "started_at", "completed_at", "error_message", "updated_at",
}

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func TestInsertChunkMapsUniqueViolationToDuplicate(t *testing.T) {
	db, mock := newMock(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO ingest\.import_chunks`).
		WillReturnError(&pq.Error{Code: "23505", Constraint: chunkKeyConstraint})
	mock.ExpectRollback()

	repo := NewImportRepository(db)
	err := repo.RunInTx(ctx, func(tx ImportTx) error {
		_, err := tx.InsertChunk(ctx, models.ImportChunk{
			AccountID:   "acc",
			RunID:       "run-1",
			DatasetName: "campaigns",
			ChunkIndex:  0,
			ChunkTotal:  1,
			RowCount:    5,
		})
		return err
	})

	assert.ErrorIs(t, err, ErrDuplicateChunk)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertChunkKeepsOtherUniqueViolations(t *testing.T) {
	db, mock := newMock(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO ingest\.import_chunks`).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "import_chunks_pkey"})
	mock.ExpectRollback()

	err := NewImportRepository(db).RunInTx(ctx, func(tx ImportTx) error {
		_, err := tx.InsertChunk(ctx, models.ImportChunk{RunID: "run-1", DatasetName: "ads", ChunkTotal: 1})
		return err
	})

	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrDuplicateChunk)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunInTxCommitsOnSuccess(t *testing.T) {
	db, mock := newMock(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE ingest\.import_runs\s+SET total_rows = total_rows \+ \$2`).
		WithArgs("run-1", 15).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := NewImportRepository(db).RunInTx(ctx, func(tx ImportTx) error {
		return tx.AddRows(ctx, "run-1", 15)
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindOrCreateRunLocksRow(t *testing.T) {
	db, mock := newMock(t)
	ctx := context.Background()
	started := time.Date(2025, 1, 7, 10, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO ingest\.import_runs .* ON CONFLICT \(run_id\) DO NOTHING`).
		WithArgs("run-1", "acc", 10, `{"agent":"1.2"}`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`FROM ingest\.import_runs WHERE run_id = \$1 FOR UPDATE`).
		WithArgs("run-1").
		WillReturnRows(sqlmock.NewRows(runRowColumns).
			AddRow("run-1", "acc", "in_progress", 10, 0, 0, []byte(`{"agent":"1.2"}`), started, nil, nil, started))
	mock.ExpectCommit()

	var run models.ImportRun
	err := NewImportRepository(db).RunInTx(ctx, func(tx ImportTx) error {
		var err error
		run, err = tx.FindOrCreateRun(ctx, NewRun{
			RunID:            "run-1",
			AccountID:        "acc",
			DatasetsExpected: 10,
			Metadata:         json.RawMessage(`{"agent":"1.2"}`),
		})
		return err
	})

	require.NoError(t, err)
	assert.Equal(t, models.RunInProgress, run.Status)
	assert.Equal(t, 10, run.DatasetsExpected)
	assert.JSONEq(t, `{"agent":"1.2"}`, string(run.Metadata))
	assert.Nil(t, run.CompletedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkDatasetCompleteReturnsCompletedRun(t *testing.T) {
	db, mock := newMock(t)
	ctx := context.Background()
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE ingest\.import_runs\s+SET datasets_received = datasets_received \+ 1`).
		WithArgs("run-1").
		WillReturnRows(sqlmock.NewRows(runRowColumns).
			AddRow("run-1", "acc", "completed", 1, 1, 15, nil, now, now, nil, now))
	mock.ExpectCommit()

	var run models.ImportRun
	err := NewImportRepository(db).RunInTx(ctx, func(tx ImportTx) error {
		var err error
		run, err = tx.MarkDatasetComplete(ctx, "run-1")
		return err
	})

	require.NoError(t, err)
	assert.Equal(t, models.RunCompleted, run.Status)
	assert.Equal(t, 1, run.DatasetsReceived)
	assert.EqualValues(t, 15, run.TotalRows)
	require.NotNil(t, run.CompletedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDatasetChunkTotalWhenNoChunks(t *testing.T) {
	db, mock := newMock(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT chunk_total\s+FROM ingest\.import_chunks`).
		WithArgs("run-1", "ads").
		WillReturnRows(sqlmock.NewRows([]string{"chunk_total"}))
	mock.ExpectCommit()

	err := NewImportRepository(db).RunInTx(ctx, func(tx ImportTx) error {
		total, found, err := tx.DatasetChunkTotal(ctx, "run-1", "ads")
		assert.Zero(t, total)
		assert.False(t, found)
		return err
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyRowsUpsertsEachRow(t *testing.T) {
	db, mock := newMock(t)
	ctx := context.Background()
	spec, ok := dataset.Lookup("campaigns")
	require.True(t, ok)

	mock.ExpectBegin()
	prep := mock.ExpectPrepare(`INSERT INTO ingest\.campaigns .* ON CONFLICT \(account_id, run_id, campaign_id\) DO UPDATE SET`)
	prep.ExpectExec().WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	var applied int64
	err := NewImportRepository(db).RunInTx(ctx, func(tx ImportTx) error {
		var err error
		applied, err = tx.ApplyRows(ctx, spec, ApplyParams{AccountID: "acc", RunID: "run-1"}, []dataset.Row{
			{"campaignId": "1", "campaignName": "Brand", "impressions": json.Number("100")},
			{"campaignId": "2", "campaignName": "Generic", "cost": "12.50"},
		})
		return err
	})

	require.NoError(t, err)
	assert.EqualValues(t, 2, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyRowsCopiesAppendDatasets(t *testing.T) {
	db, mock := newMock(t)
	ctx := context.Background()
	spec, ok := dataset.Lookup("search_terms")
	require.True(t, ok)
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	prep := mock.ExpectPrepare(regexp.QuoteMeta(`COPY "ingest"."search_terms"`))
	prep.ExpectExec().WillReturnResult(sqlmock.NewResult(0, 0))
	prep.ExpectExec().WillReturnResult(sqlmock.NewResult(0, 0))
	prep.ExpectExec().WillReturnResult(sqlmock.NewResult(0, 0))
	prep.ExpectExec().WithArgs().WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	params := ApplyParams{AccountID: "acc", RunID: "run-1", DateRangeStart: &start, DateRangeEnd: &end}
	var applied int64
	err := NewImportRepository(db).RunInTx(ctx, func(tx ImportTx) error {
		var err error
		applied, err = tx.ApplyRows(ctx, spec, params, []dataset.Row{
			{"searchTerm": "running shoes"},
			{"searchTerm": "trail shoes"},
			{"searchTerm": "running shoes"},
		})
		return err
	})

	require.NoError(t, err)
	assert.EqualValues(t, 3, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyRowsWithoutRowsTouchesNothing(t *testing.T) {
	db, mock := newMock(t)
	ctx := context.Background()
	spec, _ := dataset.Lookup("ads")

	mock.ExpectBegin()
	mock.ExpectCommit()

	err := NewImportRepository(db).RunInTx(ctx, func(tx ImportTx) error {
		n, err := tx.ApplyRows(ctx, spec, ApplyParams{}, nil)
		assert.Zero(t, n)
		return err
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertStatementSkipsKeyColumnsInUpdate(t *testing.T) {
	spec, ok := dataset.Lookup("ads")
	require.True(t, ok)

	stmt := upsertStatement(spec)

	assert.Contains(t, stmt, "INSERT INTO ingest.ads (account_id, run_id, date_range_start, date_range_end, ad_id, ad_group_id")
	assert.Contains(t, stmt, "ON CONFLICT (account_id, run_id, ad_group_id, ad_id)")
	assert.Contains(t, stmt, "status = EXCLUDED.status")
	assert.Contains(t, stmt, "date_range_start = EXCLUDED.date_range_start")
	assert.Contains(t, stmt, "updated_at = NOW()")
	assert.NotContains(t, stmt, "ad_id = EXCLUDED.ad_id")
	assert.NotContains(t, stmt, "run_id = EXCLUDED.run_id")
}

func TestMarkRunFailedOnlyTouchesInProgressRuns(t *testing.T) {
	db, mock := newMock(t)
	ctx := context.Background()

	mock.ExpectExec(`UPDATE ingest\.import_runs\s+SET status = 'failed'.*WHERE run_id = \$1 AND account_id = \$3 AND status = 'in_progress'`).
		WithArgs("run-1", "boom", "acc").
		WillReturnResult(sqlmock.NewResult(0, 0))

	changed, err := NewImportRepository(db).MarkRunFailed(ctx, "acc", "run-1", "boom")

	require.NoError(t, err)
	assert.False(t, changed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetChunkNotFound(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectQuery(`FROM ingest\.import_chunks`).
		WithArgs("acc", "run-1", "ads", 2).
		WillReturnError(sql.ErrNoRows)

	_, err := NewImportRepository(db).GetChunk(context.Background(), "acc", "run-1", "ads", 2)

	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListDatasetProgress(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectQuery(`FROM ingest\.import_chunks\s+WHERE account_id = \$1 AND run_id = ANY\(\$2\)`).
		WillReturnRows(sqlmock.NewRows([]string{"run_id", "dataset_name", "count", "max", "sum"}).
			AddRow("run-1", "ads", 2, 3, 40).
			AddRow("run-1", "campaigns", 1, 1, 15))

	progress, err := NewImportRepository(db).ListDatasetProgress(context.Background(), "acc", []string{"run-1"})

	require.NoError(t, err)
	require.Len(t, progress, 2)
	assert.False(t, progress[0].Complete())
	assert.True(t, progress[1].Complete())
	assert.EqualValues(t, 15, progress[1].Rows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
