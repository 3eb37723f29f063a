package ingest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/stanstork/adscope-api/internal/dataset"
	"github.com/stanstork/adscope-api/internal/models"
	"github.com/stanstork/adscope-api/internal/repository"
)

type chunkKey struct {
	runID   string
	dataset string
	index   int
}

type memState struct {
	runs    map[string]models.ImportRun
	chunks  map[chunkKey]models.ImportChunk
	upserts map[dataset.Name]map[string]dataset.Row
	appends map[dataset.Name][]dataset.Row
}

func (s memState) clone() memState {
	c := memState{
		runs:    make(map[string]models.ImportRun, len(s.runs)),
		chunks:  make(map[chunkKey]models.ImportChunk, len(s.chunks)),
		upserts: make(map[dataset.Name]map[string]dataset.Row, len(s.upserts)),
		appends: make(map[dataset.Name][]dataset.Row, len(s.appends)),
	}
	for k, v := range s.runs {
		c.runs[k] = v
	}
	for k, v := range s.chunks {
		c.chunks[k] = v
	}
	for name, rows := range s.upserts {
		m := make(map[string]dataset.Row, len(rows))
		for k, v := range rows {
			m[k] = v
		}
		c.upserts[name] = m
	}
	for name, rows := range s.appends {
		c.appends[name] = append([]dataset.Row(nil), rows...)
	}
	return c
}

// memStore serializes transactions the way the run row lock does and only publishes a
// transaction's writes when its callback succeeds.
type memStore struct {
	mu    sync.Mutex
	state memState
	seq   int

	// applyErr makes ApplyRows fail for the named dataset.
	applyErr map[string]error
	// hideChunks makes the next n duplicate pre-checks miss, as if a concurrent sender
	// committed between the check and the insert.
	hideChunks int
	getErr     error
	// findErr makes FindOrCreateRun fail before the run's owner is known.
	findErr error
}

func newMemStore() *memStore {
	return &memStore{
		state: memState{
			runs:    map[string]models.ImportRun{},
			chunks:  map[chunkKey]models.ImportChunk{},
			upserts: map[dataset.Name]map[string]dataset.Row{},
			appends: map[dataset.Name][]dataset.Row{},
		},
		applyErr: map[string]error{},
	}
}

func (s *memStore) GetChunk(_ context.Context, accountID, runID, datasetName string, chunkIndex int) (models.ImportChunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return models.ImportChunk{}, s.getErr
	}
	if s.hideChunks > 0 {
		s.hideChunks--
		return models.ImportChunk{}, repository.ErrNotFound
	}
	chunk, ok := s.state.chunks[chunkKey{runID, datasetName, chunkIndex}]
	if !ok || chunk.AccountID != accountID {
		return models.ImportChunk{}, repository.ErrNotFound
	}
	return chunk, nil
}

func (s *memStore) RunInTx(ctx context.Context, fn func(tx repository.ImportTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{store: s, state: s.state.clone()}
	if err := fn(tx); err != nil {
		return err
	}
	s.state = tx.state
	return nil
}

func (s *memStore) MarkRunFailed(_ context.Context, accountID, runID, message string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.state.runs[runID]
	if !ok || run.AccountID != accountID || run.Status != models.RunInProgress {
		return false, nil
	}
	run.Status = models.RunFailed
	run.ErrorMessage = &message
	s.state.runs[runID] = run
	return true, nil
}

func (s *memStore) run(runID string) (models.ImportRun, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.state.runs[runID]
	return run, ok
}

func (s *memStore) chunkCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.state.chunks)
}

func (s *memStore) storedRows(name dataset.Name) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.state.upserts[name]) + len(s.state.appends[name])
}

type memTx struct {
	store *memStore
	state memState
}

func (t *memTx) FindOrCreateRun(_ context.Context, run repository.NewRun) (models.ImportRun, error) {
	if t.store.findErr != nil {
		return models.ImportRun{}, t.store.findErr
	}
	if existing, ok := t.state.runs[run.RunID]; ok {
		return existing, nil
	}
	now := time.Now()
	created := models.ImportRun{
		RunID:            run.RunID,
		AccountID:        run.AccountID,
		Status:           models.RunInProgress,
		DatasetsExpected: run.DatasetsExpected,
		Metadata:         run.Metadata,
		StartedAt:        now,
		UpdatedAt:        now,
	}
	t.state.runs[run.RunID] = created
	return created, nil
}

func (t *memTx) DatasetChunkTotal(_ context.Context, runID, datasetName string) (int, bool, error) {
	for key, chunk := range t.state.chunks {
		if key.runID == runID && key.dataset == datasetName {
			return chunk.ChunkTotal, true, nil
		}
	}
	return 0, false, nil
}

func (t *memTx) InsertChunk(_ context.Context, chunk models.ImportChunk) (models.ImportChunk, error) {
	key := chunkKey{chunk.RunID, chunk.DatasetName, chunk.ChunkIndex}
	if _, ok := t.state.chunks[key]; ok {
		return models.ImportChunk{}, repository.ErrDuplicateChunk
	}
	t.store.seq++
	chunk.ID = fmt.Sprintf("chunk-%d", t.store.seq)
	chunk.CreatedAt = time.Now()
	t.state.chunks[key] = chunk
	return chunk, nil
}

func (t *memTx) ApplyRows(_ context.Context, spec dataset.Spec, params repository.ApplyParams, rows []dataset.Row) (int64, error) {
	if err := t.store.applyErr[string(spec.Name)]; err != nil {
		return 0, err
	}
	for _, row := range rows {
		if spec.Mode == dataset.Append {
			t.state.appends[spec.Name] = append(t.state.appends[spec.Name], row)
			continue
		}
		if t.state.upserts[spec.Name] == nil {
			t.state.upserts[spec.Name] = map[string]dataset.Row{}
		}
		t.state.upserts[spec.Name][naturalKey(spec, params, row)] = row
	}
	return int64(len(rows)), nil
}

func naturalKey(spec dataset.Spec, params repository.ApplyParams, row dataset.Row) string {
	values := spec.Values(row)
	parts := []string{params.AccountID, params.RunID}
	for _, key := range spec.Key {
		for i, col := range spec.Columns {
			if col.Name == key {
				parts = append(parts, fmt.Sprint(values[i]))
			}
		}
	}
	return strings.Join(parts, "|")
}

func (t *memTx) AddRows(_ context.Context, runID string, n int) error {
	run := t.state.runs[runID]
	run.TotalRows += int64(n)
	t.state.runs[runID] = run
	return nil
}

func (t *memTx) CountChunks(_ context.Context, runID, datasetName string) (int, error) {
	n := 0
	for key := range t.state.chunks {
		if key.runID == runID && key.dataset == datasetName {
			n++
		}
	}
	return n, nil
}

func (t *memTx) MarkDatasetComplete(_ context.Context, runID string) (models.ImportRun, error) {
	run := t.state.runs[runID]
	run.DatasetsReceived++
	if run.Status == models.RunInProgress && run.DatasetsReceived >= run.DatasetsExpected {
		now := time.Now()
		run.Status = models.RunCompleted
		run.CompletedAt = &now
	}
	t.state.runs[runID] = run
	return run, nil
}

type recordingNotifier struct {
	mu        sync.Mutex
	completed []models.ImportRun
	failed    []string
}

func (n *recordingNotifier) NotifyRunCompleted(_ context.Context, run models.ImportRun) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.completed = append(n.completed, run)
	return nil
}

func (n *recordingNotifier) NotifyRunFailed(_ context.Context, _, runID, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failed = append(n.failed, runID)
	return nil
}
