package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"

	"github.com/V4T54L/ghostlog/internal/adapter/metrics"
	"github.com/V4T54L/ghostlog/internal/domain"
	"github.com/V4T54L/ghostlog/internal/pkg/tracectx"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func errorRecord() domain.ErrorRecord {
	return domain.ErrorRecord{
		Header: domain.Header{
			ID:        "rec-1",
			Message:   "payment failed",
			Source:    "billing",
			Timestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			Trace:     domain.TraceContext{TraceID: "trace-1", SpanID: "span-1", CorrelationID: "corr-1"},
		},
		Severity:      domain.SeverityFatal,
		ExceptionType: "TimeoutException",
	}
}

func TestWebhookNotifier(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		wantErr    bool
	}{
		{"Accepted", http.StatusAccepted, false},
		{"Server error", http.StatusInternalServerError, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var (
				got       Alert
				traceHdr  string
				gotMethod string
			)
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotMethod = r.Method
				traceHdr = r.Header.Get("X-Trace-ID")
				_ = json.NewDecoder(r.Body).Decode(&got)
				w.WriteHeader(tt.statusCode)
			}))
			defer srv.Close()

			n := NewWebhookNotifier(srv.URL, srv.Client())
			rec := errorRecord()
			ctx := tracectx.With(context.Background(), rec.Trace)

			err := n.Notify(ctx, rec)
			if (err != nil) != tt.wantErr {
				t.Fatalf("expected error=%v, got %v", tt.wantErr, err)
			}
			if gotMethod != http.MethodPost {
				t.Errorf("expected POST, got %s", gotMethod)
			}
			if got.RecordID != "rec-1" || got.Severity != "FATAL" {
				t.Errorf("unexpected alert body %+v", got)
			}
			if traceHdr != "trace-1" {
				t.Errorf("expected trace header trace-1, got %q", traceHdr)
			}
		})
	}
}

func TestWebhookNotifier_HonoursCancellation(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	n := NewWebhookNotifier(srv.URL, srv.Client())
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	if err := n.Notify(ctx, errorRecord()); err == nil {
		t.Fatal("expected error on cancelled request")
	}
	if time.Since(start) > time.Second {
		t.Error("expected notify to return promptly after cancellation")
	}
}

func TestRedisNotifier(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ctx := context.Background()
	sub := client.Subscribe(ctx, "alerts")
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	n := NewRedisNotifier(client, "alerts")
	if err := n.Notify(ctx, errorRecord()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	recvCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	msg, err := sub.ReceiveMessage(recvCtx)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	var alert Alert
	if err := json.Unmarshal([]byte(msg.Payload), &alert); err != nil {
		t.Fatalf("decode alert: %v", err)
	}
	if alert.RecordID != "rec-1" || alert.TraceID != "trace-1" {
		t.Errorf("unexpected alert %+v", alert)
	}
}

type fakeWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func TestKafkaNotifier(t *testing.T) {
	w := &fakeWriter{}
	n := NewKafkaNotifier(w)

	if err := n.Notify(context.Background(), errorRecord()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(w.msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(w.msgs))
	}
	if string(w.msgs[0].Key) != "billing" {
		t.Errorf("expected message keyed by source, got %q", w.msgs[0].Key)
	}

	w.err = errors.New("broker unavailable")
	if err := n.Notify(context.Background(), errorRecord()); err == nil {
		t.Error("expected writer error to propagate")
	}
}

type slowNotifier struct{}

func (slowNotifier) Notify(ctx context.Context, rec domain.ErrorRecord) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestInstrumented(t *testing.T) {
	m := metrics.NewIngestMetrics(prometheus.NewRegistry())

	ok := NewInstrumented(NewLogNotifier(discardLogger()), ChannelLog, time.Second, discardLogger(), m, nil)
	if err := ok.Notify(context.Background(), errorRecord()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	slow := NewInstrumented(slowNotifier{}, ChannelWebhook, 10*time.Millisecond, discardLogger(), m, nil)
	if err := slow.Notify(context.Background(), errorRecord()); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}

	if got := testutil.ToFloat64(m.AlertsTotal.WithLabelValues(ChannelLog, "sent")); got != 1 {
		t.Errorf("expected 1 sent alert, got %v", got)
	}
	if got := testutil.ToFloat64(m.AlertsTotal.WithLabelValues(ChannelWebhook, "failed")); got != 1 {
		t.Errorf("expected 1 failed alert, got %v", got)
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		want    string
		wantErr bool
	}{
		{name: "Default is log", cfg: Config{}, want: ChannelLog},
		{name: "Webhook", cfg: Config{Channel: ChannelWebhook, WebhookURL: "http://localhost"}, want: ChannelWebhook},
		{name: "Webhook without URL", cfg: Config{Channel: ChannelWebhook}, wantErr: true},
		{name: "Redis without client", cfg: Config{Channel: ChannelRedis, RedisChannel: "a"}, wantErr: true},
		{name: "Kafka", cfg: Config{Channel: ChannelKafka, KafkaBrokers: []string{"localhost:9092"}, KafkaTopic: "alerts"}, want: ChannelKafka},
		{name: "Kafka without topic", cfg: Config{Channel: ChannelKafka, KafkaBrokers: []string{"localhost:9092"}}, wantErr: true},
		{name: "Unknown", cfg: Config{Channel: "pager"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := New(tt.cfg, discardLogger(), nil)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			defer n.Close()
			if n.Channel() != tt.want {
				t.Errorf("expected channel %s, got %s", tt.want, n.Channel())
			}
		})
	}
}
