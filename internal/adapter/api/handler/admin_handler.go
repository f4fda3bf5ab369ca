package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/V4T54L/ghostlog/internal/domain"
)

// StreamAdmin is the buffer administration use case.
type StreamAdmin interface {
	GetGroupInfo(ctx context.Context, stream string) ([]domain.ConsumerGroupInfo, error)
	GetConsumerInfo(ctx context.Context, stream, group string) ([]domain.ConsumerInfo, error)
	GetPendingSummary(ctx context.Context, stream, group string) (*domain.PendingMessageSummary, error)
	GetPendingMessages(ctx context.Context, stream, group, consumer, startID string, count int64) ([]domain.PendingMessageDetail, error)
	ClaimMessages(ctx context.Context, stream, group, consumer string, minIdleTime time.Duration, messageIDs []string) ([]domain.BufferedRecord, error)
	AcknowledgeMessages(ctx context.Context, stream, group string, messageIDs ...string) (int64, error)
	TrimStream(ctx context.Context, stream string, maxLen int64) (int64, error)
	RequeueDeadLetters(ctx context.Context, count int64) (int64, error)
}

// claimedRecord is the wire form of a claimed buffer entry.
type claimedRecord struct {
	StreamMessageID string          `json:"stream_message_id"`
	Record          json.RawMessage `json:"record"`
}

// AdminHandler handles HTTP requests for stream administration.
type AdminHandler struct {
	uc     StreamAdmin
	logger *slog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(uc StreamAdmin, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{uc: uc, logger: logger.With("component", "admin_handler")}
}

// HealthCheck is a simple health check endpoint.
func (h *AdminHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, h.logger, http.StatusOK, map[string]string{"status": "ok"})
}

// GetGroupInfo handles requests to get consumer group info.
// GET /admin/streams/{streamName}/groups
func (h *AdminHandler) GetGroupInfo(w http.ResponseWriter, r *http.Request) {
	groups, err := h.uc.GetGroupInfo(r.Context(), chi.URLParam(r, "streamName"))
	if err != nil {
		h.respondWithError(w, "failed to get group info", err)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, groups)
}

// GetConsumerInfo handles requests to get consumer info for a group.
// GET /admin/streams/{streamName}/groups/{groupName}/consumers
func (h *AdminHandler) GetConsumerInfo(w http.ResponseWriter, r *http.Request) {
	consumers, err := h.uc.GetConsumerInfo(r.Context(), chi.URLParam(r, "streamName"), chi.URLParam(r, "groupName"))
	if err != nil {
		h.respondWithError(w, "failed to get consumer info", err)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, consumers)
}

// GetPendingSummary handles requests to get a summary of pending messages.
// GET /admin/streams/{streamName}/groups/{groupName}/pending
func (h *AdminHandler) GetPendingSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.uc.GetPendingSummary(r.Context(), chi.URLParam(r, "streamName"), chi.URLParam(r, "groupName"))
	if err != nil {
		h.respondWithError(w, "failed to get pending summary", err)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, summary)
}

// GetPendingMessages handles requests to list pending messages.
// GET /admin/streams/{streamName}/groups/{groupName}/pending/messages?consumer={consumerName}&start={startID}&count={count}
func (h *AdminHandler) GetPendingMessages(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var count int64
	if countStr := q.Get("count"); countStr != "" {
		var err error
		count, err = strconv.ParseInt(countStr, 10, 64)
		if err != nil {
			http.Error(w, "invalid count parameter", http.StatusBadRequest)
			return
		}
	}

	messages, err := h.uc.GetPendingMessages(r.Context(),
		chi.URLParam(r, "streamName"), chi.URLParam(r, "groupName"),
		q.Get("consumer"), q.Get("start"), count)
	if err != nil {
		h.respondWithError(w, "failed to get pending messages", err)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, messages)
}

// ClaimMessages handles requests to claim pending messages.
// POST /admin/streams/{streamName}/groups/{groupName}/claim
func (h *AdminHandler) ClaimMessages(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Consumer    string   `json:"consumer"`
		MinIdleTime string   `json:"min_idle_time"`
		MessageIDs  []string `json:"message_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	minIdle, err := time.ParseDuration(payload.MinIdleTime)
	if err != nil {
		http.Error(w, "invalid min_idle_time format", http.StatusBadRequest)
		return
	}

	claimed, err := h.uc.ClaimMessages(r.Context(),
		chi.URLParam(r, "streamName"), chi.URLParam(r, "groupName"),
		payload.Consumer, minIdle, payload.MessageIDs)
	if err != nil {
		h.respondWithError(w, "failed to claim messages", err)
		return
	}

	out := make([]claimedRecord, 0, len(claimed))
	for _, b := range claimed {
		raw, err := domain.MarshalRecord(b.Record)
		if err != nil {
			h.respondWithError(w, "failed to encode claimed record", err)
			return
		}
		out = append(out, claimedRecord{StreamMessageID: b.StreamMessageID, Record: raw})
	}
	respondWithJSON(w, h.logger, http.StatusOK, out)
}

// AcknowledgeMessages handles requests to acknowledge messages.
// POST /admin/streams/{streamName}/groups/{groupName}/ack
func (h *AdminHandler) AcknowledgeMessages(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		MessageIDs []string `json:"message_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	count, err := h.uc.AcknowledgeMessages(r.Context(),
		chi.URLParam(r, "streamName"), chi.URLParam(r, "groupName"), payload.MessageIDs...)
	if err != nil {
		h.respondWithError(w, "failed to acknowledge messages", err)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, map[string]int64{"acknowledged": count})
}

// TrimStream handles requests to trim a stream.
// POST /admin/streams/{streamName}/trim
func (h *AdminHandler) TrimStream(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		MaxLen int64 `json:"maxlen"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	trimmed, err := h.uc.TrimStream(r.Context(), chi.URLParam(r, "streamName"), payload.MaxLen)
	if err != nil {
		h.respondWithError(w, "failed to trim stream", err)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, map[string]int64{"trimmed": trimmed})
}

// RequeueDeadLetters handles requests to return dead-lettered records to the buffer.
// POST /admin/dlq/requeue
func (h *AdminHandler) RequeueDeadLetters(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Count int64 `json:"count"`
	}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
	}

	moved, err := h.uc.RequeueDeadLetters(r.Context(), payload.Count)
	if err != nil {
		h.respondWithError(w, "failed to requeue dead letters", err)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, map[string]int64{"requeued": moved})
}

func (h *AdminHandler) respondWithError(w http.ResponseWriter, msg string, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	h.logger.Error(msg, "error", err)
	http.Error(w, "Internal server error", http.StatusInternalServerError)
}
