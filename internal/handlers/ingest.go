package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/stanstork/adscope-api/internal/authz"
	"github.com/stanstork/adscope-api/internal/dataset"
	"github.com/stanstork/adscope-api/internal/ingest"
	"github.com/stanstork/adscope-api/internal/models"
)

type Ingester interface {
	Ingest(ctx context.Context, account models.Account, batch ingest.Batch) (ingest.Result, error)
}

type IngestHandler struct {
	ingester Ingester
	logger   zerolog.Logger
}

type ingestRequest struct {
	Metadata *ingest.Metadata `json:"metadata"`
	Data     []dataset.Row    `json:"data"`
}

type ingestResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	ChunkID string `json:"chunkId,omitempty"`
}

func NewIngestHandler(ingester Ingester, logger zerolog.Logger) *IngestHandler {
	return &IngestHandler{
		ingester: ingester,
		logger:   logger.With().Str("handler", "ingest").Logger(),
	}
}

// Ingest accepts one signed chunk. It must sit behind authz.RequireSignature.
func (h *IngestHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	account, ok := authz.AccountFromRequest(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ingestResponse{Message: "missing credentials"})
		return
	}

	var req ingestRequest
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ingestResponse{Message: "invalid request body"})
		return
	}
	if req.Metadata == nil {
		writeJSON(w, http.StatusBadRequest, ingestResponse{Message: "metadata is required"})
		return
	}

	result, err := h.ingester.Ingest(r.Context(), account, ingest.Batch{
		Metadata: *req.Metadata,
		Rows:     req.Data,
	})
	if err != nil {
		var validationErr *ingest.ValidationError
		if errors.As(err, &validationErr) {
			writeJSON(w, http.StatusBadRequest, ingestResponse{Message: validationErr.Message})
			return
		}
		h.logger.Error().Err(err).Str("account_id", account.ID).Msg("Failed to ingest chunk")
		writeJSON(w, http.StatusInternalServerError, ingestResponse{
			Message: "failed to process chunk; nothing was recorded and it can be resent",
		})
		return
	}

	writeJSON(w, http.StatusOK, ingestResponse{
		Success: true,
		Message: result.Message,
		ChunkID: result.ChunkID,
	})
}
