package ingest

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stanstork/adscope-api/internal/dataset"
	"github.com/stanstork/adscope-api/internal/metrics"
	"github.com/stanstork/adscope-api/internal/models"
	"github.com/stanstork/adscope-api/internal/repository"
)

const (
	MessageAccepted  = "chunk accepted"
	MessageDuplicate = "duplicate, already processed"

	notifyTimeout = 10 * time.Second
)

var (
	errRunOwnership = &ValidationError{Message: "run belongs to another account"}
	errDuplicate    = errors.New("duplicate chunk")
)

// Store is the persistence the coordinator needs.
type Store interface {
	GetChunk(ctx context.Context, accountID, runID, datasetName string, chunkIndex int) (models.ImportChunk, error)
	RunInTx(ctx context.Context, fn func(tx repository.ImportTx) error) error
	MarkRunFailed(ctx context.Context, accountID, runID, message string) (bool, error)
}

// RunNotifier is told about run lifecycle transitions after they are durable.
type RunNotifier interface {
	NotifyRunCompleted(ctx context.Context, run models.ImportRun) error
	NotifyRunFailed(ctx context.Context, accountID, runID, reason string) error
}

type Result struct {
	Accepted  bool
	Duplicate bool
	ChunkID   string
	Message   string
}

type Coordinator struct {
	store    Store
	notifier RunNotifier
	metrics  *metrics.Metrics
	logger   zerolog.Logger
}

func NewCoordinator(store Store, notifier RunNotifier, m *metrics.Metrics, logger zerolog.Logger) *Coordinator {
	return &Coordinator{
		store:    store,
		notifier: notifier,
		metrics:  m,
		logger:   logger.With().Str("component", "ingest_coordinator").Logger(),
	}
}

// Ingest accepts one chunk for the authenticated account. A chunk is either fully
// applied together with its ledger entry and run counters, or not at all. Resending an
// accepted chunk is a successful no-op.
func (c *Coordinator) Ingest(ctx context.Context, account models.Account, batch Batch) (Result, error) {
	checked, err := validate(batch)
	if err != nil {
		c.metrics.ChunksTotal.WithLabelValues(metrics.OutcomeRejected, datasetLabel(batch.DatasetName)).Inc()
		return Result{}, err
	}

	log := c.logger.With().
		Str("account_id", account.ID).
		Str("run_id", checked.RunID).
		Str("dataset", checked.DatasetName).
		Int("chunk_index", checked.ChunkIndex).
		Int("chunk_total", checked.ChunkTotal).
		Logger()

	existing, err := c.store.GetChunk(ctx, account.ID, checked.RunID, checked.DatasetName, checked.ChunkIndex)
	switch {
	case err == nil:
		return c.duplicate(log, checked, existing.ID), nil
	case !errors.Is(err, repository.ErrNotFound):
		c.metrics.ChunksTotal.WithLabelValues(metrics.OutcomeFailed, checked.DatasetName).Inc()
		return Result{}, &ProcessingError{RunID: checked.RunID, Err: errors.Wrap(err, "duplicate check")}
	}

	started := time.Now()
	var (
		chunk     models.ImportChunk
		before    models.ImportRun
		after     models.ImportRun
		rowsTaken int64
	)
	err = c.store.RunInTx(ctx, func(tx repository.ImportTx) error {
		var err error
		before, err = tx.FindOrCreateRun(ctx, repository.NewRun{
			RunID:            checked.RunID,
			AccountID:        account.ID,
			DatasetsExpected: checked.datasetsExpected,
			Metadata:         encodeMetadata(checked.runMetadata()),
		})
		if err != nil {
			return errors.Wrap(err, "find or create run")
		}
		if before.AccountID != account.ID {
			return errRunOwnership
		}

		total, seen, err := tx.DatasetChunkTotal(ctx, checked.RunID, checked.DatasetName)
		if err != nil {
			return errors.Wrap(err, "read chunk total")
		}
		if seen && total != checked.ChunkTotal {
			return invalid("inconsistent chunkTotal: dataset %s of run %s was declared with %d chunks", checked.DatasetName, checked.RunID, total)
		}

		chunk, err = tx.InsertChunk(ctx, models.ImportChunk{
			AccountID:   account.ID,
			RunID:       checked.RunID,
			DatasetName: checked.DatasetName,
			ChunkIndex:  checked.ChunkIndex,
			ChunkTotal:  checked.ChunkTotal,
			RowCount:    checked.RowCount,
		})
		if err != nil {
			if errors.Is(err, repository.ErrDuplicateChunk) {
				return errDuplicate
			}
			return errors.Wrap(err, "record chunk")
		}

		rowsTaken, err = tx.ApplyRows(ctx, checked.spec, repository.ApplyParams{
			AccountID:      account.ID,
			RunID:          checked.RunID,
			DateRangeStart: checked.start,
			DateRangeEnd:   checked.end,
		}, checked.Rows)
		if err != nil {
			return errors.Wrapf(err, "apply %s rows", checked.DatasetName)
		}

		if err := tx.AddRows(ctx, checked.RunID, checked.RowCount); err != nil {
			return errors.Wrap(err, "update run rows")
		}
		after = before
		after.TotalRows += int64(checked.RowCount)

		received, err := tx.CountChunks(ctx, checked.RunID, checked.DatasetName)
		if err != nil {
			return errors.Wrap(err, "count dataset chunks")
		}
		if received == checked.ChunkTotal {
			after, err = tx.MarkDatasetComplete(ctx, checked.RunID)
			if err != nil {
				return errors.Wrap(err, "complete dataset")
			}
		}
		return nil
	})
	c.metrics.IngestTxSeconds.Observe(time.Since(started).Seconds())

	if err != nil {
		var validationErr *ValidationError
		switch {
		case errors.Is(err, errDuplicate):
			return c.raceDuplicate(ctx, log, account, checked), nil
		case errors.As(err, &validationErr):
			c.metrics.ChunksTotal.WithLabelValues(metrics.OutcomeRejected, checked.DatasetName).Inc()
			log.Warn().Str("reason", validationErr.Message).Msg("Rejected chunk")
			return Result{}, validationErr
		default:
			c.metrics.ChunksTotal.WithLabelValues(metrics.OutcomeFailed, checked.DatasetName).Inc()
			log.Error().Err(err).Msg("Chunk transaction rolled back")
			c.failRun(ctx, log, account.ID, checked.RunID, err)
			return Result{}, &ProcessingError{RunID: checked.RunID, Err: err}
		}
	}

	c.metrics.ChunksTotal.WithLabelValues(metrics.OutcomeAccepted, checked.DatasetName).Inc()
	c.metrics.RowsApplied.WithLabelValues(checked.DatasetName).Add(float64(rowsTaken))
	log.Info().
		Str("chunk_id", chunk.ID).
		Int64("rows_applied", rowsTaken).
		Int("datasets_received", after.DatasetsReceived).
		Int("datasets_expected", after.DatasetsExpected).
		Str("run_status", string(after.Status)).
		Msg("Chunk accepted")
	if before.Status.IsTerminal() {
		log.Info().Str("run_status", string(before.Status)).Msg("Chunk landed on a finished run; status unchanged")
	}

	if before.Status == models.RunInProgress && after.Status == models.RunCompleted {
		c.metrics.RunsCompleted.Inc()
		log.Info().Int64("total_rows", after.TotalRows).Msg("Import run completed")
		c.notify(ctx, log, func(ctx context.Context) error {
			return c.notifier.NotifyRunCompleted(ctx, after)
		})
	}

	return Result{Accepted: true, ChunkID: chunk.ID, Message: MessageAccepted}, nil
}

func (c *Coordinator) duplicate(log zerolog.Logger, b checkedBatch, chunkID string) Result {
	c.metrics.ChunksTotal.WithLabelValues(metrics.OutcomeDuplicate, b.DatasetName).Inc()
	log.Info().Str("chunk_id", chunkID).Msg("Duplicate chunk ignored")
	return Result{Accepted: true, Duplicate: true, ChunkID: chunkID, Message: MessageDuplicate}
}

// raceDuplicate handles a concurrent sender that ledgered the same chunk first.
// The winner has committed by now, so its chunk id is normally readable.
func (c *Coordinator) raceDuplicate(ctx context.Context, log zerolog.Logger, account models.Account, b checkedBatch) Result {
	var chunkID string
	if existing, err := c.store.GetChunk(ctx, account.ID, b.RunID, b.DatasetName, b.ChunkIndex); err == nil {
		chunkID = existing.ID
	}
	return c.duplicate(log, b, chunkID)
}

// failRun marks the run failed outside the rolled back transaction. It only touches a
// run that is still in progress; a run whose creation was rolled back is left absent.
func (c *Coordinator) failRun(ctx context.Context, log zerolog.Logger, accountID, runID string, cause error) {
	ctx = context.WithoutCancel(ctx)
	marked, err := c.store.MarkRunFailed(ctx, accountID, runID, cause.Error())
	if err != nil {
		log.Error().Err(err).Msg("Failed to mark run as failed")
		return
	}
	if !marked {
		return
	}
	c.metrics.RunsFailed.Inc()
	log.Warn().Msg("Import run marked failed")
	c.notify(ctx, log, func(ctx context.Context) error {
		return c.notifier.NotifyRunFailed(ctx, accountID, runID, cause.Error())
	})
}

func (c *Coordinator) notify(ctx context.Context, log zerolog.Logger, send func(ctx context.Context) error) {
	if c.notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()
	if err := send(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to publish run notification")
	}
}

// datasetLabel keeps arbitrary client input out of metric labels.
func datasetLabel(name string) string {
	if _, ok := dataset.Lookup(name); ok {
		return name
	}
	return "unknown"
}

func encodeMetadata(meta map[string]interface{}) json.RawMessage {
	if len(meta) == 0 {
		return nil
	}
	b, err := json.Marshal(meta)
	if err != nil {
		return nil
	}
	return b
}
