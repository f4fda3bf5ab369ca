package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/V4T54L/ghostlog/internal/domain"
)

// LogQuerier is the read side of indexed records.
type LogQuerier interface {
	Get(ctx context.Context, id string) (domain.Record, error)
	List(ctx context.Context) ([]domain.Record, error)
	ListBySource(ctx context.Context, source string) ([]domain.Record, error)
	Delete(ctx context.Context, id string) error
}

// LogsHandler serves the read API over indexed records.
type LogsHandler struct {
	uc     LogQuerier
	logger *slog.Logger
	now    func() time.Time
}

func NewLogsHandler(uc LogQuerier, logger *slog.Logger) *LogsHandler {
	return &LogsHandler{uc: uc, logger: logger.With("component", "logs_handler"), now: time.Now}
}

// List returns every indexed record, or only those of one source.
// GET /api/v1/logs?source={source}
func (h *LogsHandler) List(w http.ResponseWriter, r *http.Request) {
	var (
		records []domain.Record
		err     error
	)
	if q := r.URL.Query(); q.Has("source") {
		records, err = h.uc.ListBySource(r.Context(), q.Get("source"))
	} else {
		records, err = h.uc.List(r.Context())
	}
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	out := make([]json.RawMessage, 0, len(records))
	for _, rec := range records {
		raw, err := domain.MarshalRecord(rec)
		if err != nil {
			h.respondWithError(w, err)
			return
		}
		out = append(out, raw)
	}
	respondWithJSON(w, h.logger, http.StatusOK, out)
}

// Get returns a single record.
// GET /api/v1/logs/{id}
func (h *LogsHandler) Get(w http.ResponseWriter, r *http.Request) {
	rec, err := h.uc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	raw, err := domain.MarshalRecord(rec)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, json.RawMessage(raw))
}

// Delete removes a record. Deleting an unknown id still succeeds.
// DELETE /api/v1/logs/{id}
func (h *LogsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.uc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.respondWithError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Health reports liveness of the ingest service.
// GET /api/v1/health
func (h *LogsHandler) Health(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, h.logger, http.StatusOK, map[string]string{
		"status":    "UP",
		"message":   "Ghost Logger is running",
		"timestamp": h.now().UTC().Format(time.RFC3339Nano),
	})
}

func (h *LogsHandler) respondWithError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		h.logger.Error("failed to serve log query", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func respondWithJSON(w http.ResponseWriter, logger *slog.Logger, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		logger.Error("failed to marshal JSON response", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
