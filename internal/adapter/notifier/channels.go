package notifier

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"

	"github.com/V4T54L/ghostlog/internal/domain"
	"github.com/V4T54L/ghostlog/internal/pkg/tracectx"
)

// LogNotifier writes alerts to the application log.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With("component", "log_notifier")}
}

func (n *LogNotifier) Notify(ctx context.Context, rec domain.ErrorRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n.logger.Error("ALERT",
		"record_id", rec.ID,
		"source", rec.Source,
		"severity", rec.Severity.String(),
		"message", rec.Message,
		"exception_type", rec.ExceptionType,
		"trace_id", rec.Trace.TraceID,
	)
	return nil
}

// WebhookNotifier POSTs alerts as JSON to a URL.
type WebhookNotifier struct {
	url    string
	client *http.Client
}

// NewWebhookNotifier creates a WebhookNotifier. A nil client uses a default
// client with a 10 second timeout.
func NewWebhookNotifier(url string, client *http.Client) *WebhookNotifier {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &WebhookNotifier{url: url, client: client}
}

func (n *WebhookNotifier) Notify(ctx context.Context, rec domain.ErrorRecord) error {
	body, err := encodeAlert(rec)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	tc := tracectx.Current(ctx)
	req.Header.Set("X-Trace-ID", tc.TraceID)
	req.Header.Set("X-Correlation-ID", tc.CorrelationID)

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// RedisNotifier publishes alerts on a Redis Pub/Sub channel.
type RedisNotifier struct {
	client  *redis.Client
	channel string
}

func NewRedisNotifier(client *redis.Client, channel string) *RedisNotifier {
	return &RedisNotifier{client: client, channel: channel}
}

func (n *RedisNotifier) Notify(ctx context.Context, rec domain.ErrorRecord) error {
	payload, err := encodeAlert(rec)
	if err != nil {
		return err
	}
	if err := n.client.Publish(ctx, n.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish alert: %w", err)
	}
	return nil
}

// MessageWriter is the subset of *kafka.Writer used for alerts.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaNotifier produces alerts to a Kafka topic keyed by source.
type KafkaNotifier struct {
	writer MessageWriter
}

func NewKafkaNotifier(writer MessageWriter) *KafkaNotifier {
	return &KafkaNotifier{writer: writer}
}

func (n *KafkaNotifier) Notify(ctx context.Context, rec domain.ErrorRecord) error {
	payload, err := encodeAlert(rec)
	if err != nil {
		return err
	}
	msg := kafka.Message{
		Key:   []byte(rec.Source),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "trace_id", Value: []byte(rec.Trace.TraceID)},
			{Key: "severity", Value: []byte(rec.Severity.String())},
		},
	}
	if err := n.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("produce alert: %w", err)
	}
	return nil
}
