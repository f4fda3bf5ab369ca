package handler

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/V4T54L/ghostlog/internal/adapter/metrics"
	"github.com/V4T54L/ghostlog/internal/domain"
)

// BatchIngester is the use case behind the ingest endpoint.
type BatchIngester interface {
	IngestBatch(ctx context.Context, inputs []domain.RecordInput) (domain.BatchResult, error)
}

// batchRequest is the JSON body of an ingest request.
type batchRequest struct {
	Logs []domain.RecordInput `json:"logs"`
}

var (
	errEmptyBatch  = errors.New("batch contains no log entries")
	errBodyTooLong = errors.New("decompressed body too large")
)

// IngestHandler handles HTTP requests for batch log ingestion.
type IngestHandler struct {
	useCase      BatchIngester
	logger       *slog.Logger
	maxBatchSize int64
	metrics      *metrics.IngestMetrics
}

// NewIngestHandler creates a new IngestHandler. maxBatchSize bounds both the
// wire body and its decompressed form.
func NewIngestHandler(uc BatchIngester, logger *slog.Logger, maxBatchSize int64, m *metrics.IngestMetrics) *IngestHandler {
	return &IngestHandler{
		useCase:      uc,
		logger:       logger.With("component", "ingest_handler"),
		maxBatchSize: maxBatchSize,
		metrics:      m,
	}
}

// ServeHTTP decodes a batch, hands it to the coordinator and replies with
// the batch result.
func (h *IngestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBatchSize)

	body, err := h.decodedBody(r)
	if err != nil {
		h.writeDecodeError(w, err, "Bad Request: Failed to decode body encoding")
		return
	}
	defer body.Close()

	mediaType := "application/json"
	if ct := r.Header.Get("Content-Type"); ct != "" {
		if mediaType, _, err = mime.ParseMediaType(ct); err != nil {
			http.Error(w, "Unsupported Media Type: "+ct, http.StatusUnsupportedMediaType)
			return
		}
	}

	var inputs []domain.RecordInput
	switch mediaType {
	case "application/json":
		if inputs, err = decodeJSONBatch(body); err != nil {
			h.writeDecodeError(w, err, "Bad Request: Failed to decode JSON")
			return
		}
	case "application/x-ndjson":
		if inputs, err = decodeNDJSONBatch(body); err != nil {
			h.writeDecodeError(w, err, "Bad Request: Failed to decode NDJSON line")
			return
		}
	default:
		http.Error(w, "Unsupported Media Type: "+mediaType, http.StatusUnsupportedMediaType)
		return
	}
	if len(inputs) == 0 {
		http.Error(w, "Bad Request: "+errEmptyBatch.Error(), http.StatusBadRequest)
		return
	}

	result, err := h.useCase.IngestBatch(r.Context(), inputs)
	if err != nil {
		if errors.Is(err, domain.ErrRateLimitExceeded) {
			w.Header().Set("Retry-After", "1")
			http.Error(w, err.Error(), http.StatusTooManyRequests)
			return
		}
		h.logger.Error("failed to ingest batch", "error", err, "batch_size", len(inputs))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Trace-ID", result.TraceID)
	w.WriteHeader(http.StatusAccepted)
	if err := json.NewEncoder(w).Encode(result); err != nil {
		h.logger.Error("failed to write batch result", "error", err, "batch_id", result.BatchID)
	}
}

// decodedBody unwraps the request body according to Content-Encoding.
func (h *IngestHandler) decodedBody(r *http.Request) (io.ReadCloser, error) {
	counted := &countingReader{r: r.Body, metrics: h.metrics}

	var rc io.ReadCloser
	switch enc := strings.ToLower(strings.TrimSpace(r.Header.Get("Content-Encoding"))); enc {
	case "", "identity":
		return io.NopCloser(counted), nil
	case "gzip":
		zr, err := gzip.NewReader(counted)
		if err != nil {
			return nil, fmt.Errorf("open gzip body: %w", err)
		}
		rc = zr
	case "zstd":
		zr, err := zstd.NewReader(counted)
		if err != nil {
			return nil, fmt.Errorf("open zstd body: %w", err)
		}
		rc = zr.IOReadCloser()
	default:
		return nil, fmt.Errorf("unsupported content encoding %q", enc)
	}
	return &limitedReadCloser{rc: rc, remaining: h.maxBatchSize}, nil
}

func (h *IngestHandler) writeDecodeError(w http.ResponseWriter, err error, badRequestMsg string) {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) || errors.Is(err, errBodyTooLong) {
		http.Error(w, "http: request body too large", http.StatusRequestEntityTooLarge)
		return
	}
	h.logger.Warn("rejected malformed ingest request", "error", err)
	http.Error(w, badRequestMsg, http.StatusBadRequest)
}

func decodeJSONBatch(body io.Reader) ([]domain.RecordInput, error) {
	var req batchRequest
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		return nil, err
	}
	return req.Logs, nil
}

func decodeNDJSONBatch(body io.Reader) ([]domain.RecordInput, error) {
	var inputs []domain.RecordInput
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		var in domain.RecordInput
		if err := json.Unmarshal(raw, &in); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		inputs = append(inputs, in)
	}
	return inputs, scanner.Err()
}

// countingReader reports wire bytes to the ingest metrics.
type countingReader struct {
	r       io.Reader
	metrics *metrics.IngestMetrics
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.metrics.AddBytes(int64(n))
	return n, err
}

// limitedReadCloser fails once more than remaining bytes have been read.
type limitedReadCloser struct {
	rc        io.ReadCloser
	remaining int64
}

func (l *limitedReadCloser) Read(p []byte) (int, error) {
	if l.remaining < 0 {
		return 0, errBodyTooLong
	}
	if int64(len(p)) > l.remaining+1 {
		p = p[:l.remaining+1]
	}
	n, err := l.rc.Read(p)
	l.remaining -= int64(n)
	if l.remaining < 0 {
		return n, errBodyTooLong
	}
	return n, err
}

func (l *limitedReadCloser) Close() error { return l.rc.Close() }
