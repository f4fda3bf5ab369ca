package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/V4T54L/ghostlog/internal/domain"
)

// SSEMessage is a single event on the live batch feed. Batch events carry
// the summary of one finished batch; rate events carry the accepted
// records per second over the last tick.
type SSEMessage struct {
	Event    string             `json:"event"`
	Rate     float64            `json:"rate,omitempty"`
	BatchID  string             `json:"batchId,omitempty"`
	TraceID  string             `json:"traceId,omitempty"`
	Status   domain.BatchStatus `json:"status,omitempty"`
	Accepted int                `json:"accepted,omitempty"`
	Rejected int                `json:"rejected,omitempty"`
}

// SSEBroker manages SSE client connections and broadcasts batch summaries.
type SSEBroker struct {
	logger   *slog.Logger
	clients  map[chan []byte]struct{}
	mu       sync.RWMutex
	reports  chan domain.BatchResult
	interval time.Duration
}

// NewSSEBroker creates a new SSEBroker and starts its processing loop,
// which stops when ctx is cancelled.
func NewSSEBroker(ctx context.Context, logger *slog.Logger) *SSEBroker {
	return newSSEBroker(ctx, logger, time.Second)
}

func newSSEBroker(ctx context.Context, logger *slog.Logger, interval time.Duration) *SSEBroker {
	broker := &SSEBroker{
		logger:   logger.With("component", "sse_broker"),
		clients:  make(map[chan []byte]struct{}),
		reports:  make(chan domain.BatchResult, 1000),
		interval: interval,
	}
	go broker.run(ctx)
	return broker
}

// ServeHTTP handles new client connections for the SSE stream.
func (b *SSEBroker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported!", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	messageChan := make(chan []byte, 16)
	b.addClient(messageChan)
	defer b.removeClient(messageChan)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messageChan:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

// ReportBatch queues a finished batch for the feed. It never blocks the
// ingest path; reports are dropped while the queue is full.
func (b *SSEBroker) ReportBatch(result domain.BatchResult) {
	select {
	case b.reports <- result:
	default:
		b.logger.Warn("SSE report queue is full, dropping batch report", "batch_id", result.BatchID)
	}
}

// ClientCount returns the number of connected feed clients.
func (b *SSEBroker) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

func (b *SSEBroker) addClient(client chan []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clients[client] = struct{}{}
	b.logger.Info("SSE client connected")
}

func (b *SSEBroker) removeClient(client chan []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.clients[client]; ok {
		delete(b.clients, client)
		close(client)
		b.logger.Info("SSE client disconnected")
	}
}

func (b *SSEBroker) broadcast(msg SSEMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		b.logger.Error("Failed to marshal SSE message", "error", err)
		return
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for client := range b.clients {
		select {
		case client <- data:
		default:
			// Slow client; skip rather than stall the others.
		}
	}
}

// run is the main processing loop for the broker.
func (b *SSEBroker) run(ctx context.Context) {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	var accepted int
	lastTimestamp := time.Now()

	for {
		select {
		case <-ctx.Done():
			return
		case res := <-b.reports:
			accepted += res.TotalAccepted
			b.broadcast(SSEMessage{
				Event:    "batch",
				BatchID:  res.BatchID,
				TraceID:  res.TraceID,
				Status:   res.Status,
				Accepted: res.TotalAccepted,
				Rejected: res.TotalRejected,
			})
		case <-ticker.C:
			now := time.Now()
			rate := 0.0
			if d := now.Sub(lastTimestamp).Seconds(); d > 0 {
				rate = float64(accepted) / d
			}
			b.broadcast(SSEMessage{Event: "rate", Rate: rate})

			lastTimestamp = now
			accepted = 0
		}
	}
}
