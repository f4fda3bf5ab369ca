package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/avast/retry-go"
	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"
)

const maxAttempts = 3

// entry is the wire form of one record in an ingest batch.
type entry struct {
	Type          string            `json:"type"`
	Message       string            `json:"message"`
	Source        string            `json:"source"`
	Timestamp     time.Time         `json:"timestamp"`
	TraceContext  *traceContext     `json:"traceContext,omitempty"`
	Severity      string            `json:"severity,omitempty"`
	ExceptionType string            `json:"exceptionType,omitempty"`
	UserID        string            `json:"userId,omitempty"`
	Action        string            `json:"action,omitempty"`
	ResourceType  string            `json:"resourceType,omitempty"`
	ResourceID    string            `json:"resourceId,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	MetricName    string            `json:"metricName,omitempty"`
	Value         *float64          `json:"value,omitempty"`
	Unit          string            `json:"unit,omitempty"`
	Tags          map[string]string `json:"tags,omitempty"`
}

type traceContext struct {
	TraceID       string `json:"traceId"`
	SpanID        string `json:"spanId"`
	CorrelationID string `json:"correlationId"`
}

type batchResult struct {
	TraceID       string   `json:"traceId"`
	TotalAccepted int      `json:"totalAccepted"`
	TotalRejected int      `json:"totalRejected"`
	Errors        []string `json:"errors"`
	Status        string   `json:"status"`
}

// buildBatch returns size entries cycling ERROR, AUDIT and METRIC. All
// entries share one trace carried on the first.
func buildBatch(workerID, size int, now time.Time) []entry {
	traceID := uuid.NewString()
	source := fmt.Sprintf("load-tester-%d", workerID)
	batch := make([]entry, 0, size)
	for i := 0; i < size; i++ {
		e := entry{Source: source, Timestamp: now}
		switch i % 3 {
		case 0:
			e.Type = "ERROR"
			e.Message = fmt.Sprintf("synthetic failure %d", i)
			e.Severity = "ERROR"
			e.ExceptionType = "LoadTestException"
		case 1:
			e.Type = "AUDIT"
			e.Message = "synthetic user action"
			e.UserID = uuid.NewString()
			e.Action = "LOGIN"
			e.ResourceType = "session"
			e.Metadata = map[string]string{"email": "load@test.local"}
		default:
			v := float64(i)
			e.Type = "METRIC"
			e.Message = "synthetic measurement"
			e.MetricName = "load_test.value"
			e.Value = &v
			e.Unit = "count"
		}
		batch = append(batch, e)
	}
	if len(batch) > 0 {
		batch[0].TraceContext = &traceContext{TraceID: traceID, SpanID: uuid.NewString(), CorrelationID: traceID}
	}
	return batch
}

type sender struct {
	client  *http.Client
	url     string
	apiKey  string
	gzip    bool
	backoff time.Duration
}

// errRetryable marks responses worth another attempt.
var errRetryable = errors.New("retryable response")

// send posts a batch, retrying up to maxAttempts times on transport
// errors, 429 and 5xx. The delay doubles from backoff after each attempt.
func (s *sender) send(ctx context.Context, batch []entry) (batchResult, error) {
	body, err := s.encode(batch)
	if err != nil {
		return batchResult{}, err
	}

	var res batchResult
	err = retry.Do(
		func() error {
			var err error
			res, err = s.post(ctx, body)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(maxAttempts),
		retry.Delay(s.backoff),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(func(err error) bool { return errors.Is(err, errRetryable) }),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return batchResult{}, err
	}
	return res, nil
}

func (s *sender) encode(batch []entry) ([]byte, error) {
	raw, err := json.Marshal(map[string][]entry{"logs": batch})
	if err != nil {
		return nil, err
	}
	if !s.gzip {
		return raw, nil
	}
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *sender) post(ctx context.Context, body []byte) (batchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return batchResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.gzip {
		req.Header.Set("Content-Encoding", "gzip")
	}
	if s.apiKey != "" {
		req.Header.Set("X-API-Key", s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return batchResult{}, ctx.Err()
		}
		return batchResult{}, fmt.Errorf("%w: %v", errRetryable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusAccepted:
		var res batchResult
		if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
			return batchResult{}, fmt.Errorf("decode batch result: %w", err)
		}
		return res, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		io.Copy(io.Discard, resp.Body)
		return batchResult{}, fmt.Errorf("%w: status %d", errRetryable, resp.StatusCode)
	default:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return batchResult{}, fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
}
