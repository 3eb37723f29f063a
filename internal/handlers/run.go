package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/stanstork/adscope-api/internal/models"
	"github.com/stanstork/adscope-api/internal/repository"
)

// RunReader is the read side of the run tracker.
type RunReader interface {
	GetRun(ctx context.Context, accountID, runID string) (models.ImportRun, error)
	GetLatestCompletedRun(ctx context.Context, accountID string) (models.ImportRun, error)
	ListRecentRuns(ctx context.Context, accountID string, limit int) ([]models.ImportRun, error)
	ListDatasetProgress(ctx context.Context, accountID string, runIDs []string) ([]models.DatasetProgress, error)
	CountEntities(ctx context.Context, accountID string) (map[string]int64, error)
}

type RunHandler struct {
	runs   RunReader
	logger zerolog.Logger
}

type datasetProgressView struct {
	models.DatasetProgress
	Complete bool `json:"complete"`
}

type runView struct {
	models.ImportRun
	Datasets []datasetProgressView `json:"datasets"`
}

func NewRunHandler(runs RunReader, logger zerolog.Logger) *RunHandler {
	return &RunHandler{
		runs:   runs,
		logger: logger.With().Str("handler", "run").Logger(),
	}
}

func (h *RunHandler) Latest(w http.ResponseWriter, r *http.Request) {
	accountID, ok := requireAccount(w, r)
	if !ok {
		return
	}

	run, err := h.runs.GetLatestCompletedRun(r.Context(), accountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			http.Error(w, "No completed import run", http.StatusNotFound)
			return
		}
		h.logger.Error().Err(err).Str("account_id", accountID).Msg("failed to load latest run")
		http.Error(w, "Failed to load run", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, run)
}

func (h *RunHandler) Get(w http.ResponseWriter, r *http.Request) {
	accountID, ok := requireAccount(w, r)
	if !ok {
		return
	}
	runID := strings.TrimSpace(mux.Vars(r)["runID"])

	run, err := h.runs.GetRun(r.Context(), accountID, runID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			http.Error(w, "Import run not found", http.StatusNotFound)
			return
		}
		h.logger.Error().Err(err).Str("run_id", runID).Msg("failed to load run")
		http.Error(w, "Failed to load run", http.StatusInternalServerError)
		return
	}

	progress, err := h.runs.ListDatasetProgress(r.Context(), accountID, []string{runID})
	if err != nil {
		h.logger.Error().Err(err).Str("run_id", runID).Msg("failed to load dataset progress")
		http.Error(w, "Failed to load run", http.StatusInternalServerError)
		return
	}

	view := runView{ImportRun: run, Datasets: make([]datasetProgressView, 0, len(progress))}
	for _, p := range progress {
		view.Datasets = append(view.Datasets, datasetProgressView{DatasetProgress: p, Complete: p.Complete()})
	}
	writeJSON(w, http.StatusOK, view)
}

// Diagnostics summarizes stored entities and the most recent runs of the account.
func (h *RunHandler) Diagnostics(w http.ResponseWriter, r *http.Request) {
	accountID, ok := requireAccount(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	counts, err := h.runs.CountEntities(ctx, accountID)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to count entities")
		http.Error(w, "Failed to load diagnostics", http.StatusInternalServerError)
		return
	}

	runs, err := h.runs.ListRecentRuns(ctx, accountID, queryLimit(r, 10, 100))
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list runs")
		http.Error(w, "Failed to load diagnostics", http.StatusInternalServerError)
		return
	}

	runIDs := make([]string, len(runs))
	for i, run := range runs {
		runIDs[i] = run.RunID
	}
	progress, err := h.runs.ListDatasetProgress(ctx, accountID, runIDs)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to load dataset progress")
		http.Error(w, "Failed to load diagnostics", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, models.IngestionDiagnostics{
		AccountID:    accountID,
		EntityCounts: counts,
		RecentRuns:   runs,
		RunDatasets:  progress,
	})
}
