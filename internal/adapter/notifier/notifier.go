// Package notifier delivers error records to an alerting channel.
package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"

	"github.com/V4T54L/ghostlog/internal/adapter/metrics"
	"github.com/V4T54L/ghostlog/internal/domain"
)

// Supported alert channels.
const (
	ChannelLog     = "log"
	ChannelWebhook = "webhook"
	ChannelRedis   = "redis"
	ChannelKafka   = "kafka"
)

// Notifier sends an alert for a single error record.
type Notifier interface {
	Notify(ctx context.Context, rec domain.ErrorRecord) error
}

// Alert is the message delivered to every channel.
type Alert struct {
	RecordID      string    `json:"recordId"`
	Source        string    `json:"source"`
	Severity      string    `json:"severity"`
	Message       string    `json:"message"`
	ExceptionType string    `json:"exceptionType,omitempty"`
	TraceID       string    `json:"traceId"`
	SpanID        string    `json:"spanId"`
	CorrelationID string    `json:"correlationId"`
	Timestamp     time.Time `json:"timestamp"`
}

// NewAlert builds the alert message for rec.
func NewAlert(rec domain.ErrorRecord) Alert {
	return Alert{
		RecordID:      rec.ID,
		Source:        rec.Source,
		Severity:      rec.Severity.String(),
		Message:       rec.Message,
		ExceptionType: rec.ExceptionType,
		TraceID:       rec.Trace.TraceID,
		SpanID:        rec.Trace.SpanID,
		CorrelationID: rec.Trace.CorrelationID,
		Timestamp:     rec.Timestamp,
	}
}

func encodeAlert(rec domain.ErrorRecord) ([]byte, error) {
	data, err := json.Marshal(NewAlert(rec))
	if err != nil {
		return nil, fmt.Errorf("encode alert: %w", err)
	}
	return data, nil
}

// Config selects and configures the alert channel.
type Config struct {
	Channel      string
	WebhookURL   string
	RedisClient  *redis.Client
	RedisChannel string
	KafkaBrokers []string
	KafkaTopic   string
	Timeout      time.Duration
}

// New builds the notifier for cfg.Channel, wrapped with a per-call timeout
// and metrics.
func New(cfg Config, logger *slog.Logger, m *metrics.IngestMetrics) (*Instrumented, error) {
	var (
		n      Notifier
		closer func() error
	)
	switch cfg.Channel {
	case "", ChannelLog:
		cfg.Channel = ChannelLog
		n = NewLogNotifier(logger)
	case ChannelWebhook:
		if cfg.WebhookURL == "" {
			return nil, fmt.Errorf("alert channel %q requires a webhook URL", cfg.Channel)
		}
		n = NewWebhookNotifier(cfg.WebhookURL, nil)
	case ChannelRedis:
		if cfg.RedisClient == nil || cfg.RedisChannel == "" {
			return nil, fmt.Errorf("alert channel %q requires a redis client and channel", cfg.Channel)
		}
		n = NewRedisNotifier(cfg.RedisClient, cfg.RedisChannel)
	case ChannelKafka:
		if len(cfg.KafkaBrokers) == 0 || cfg.KafkaTopic == "" {
			return nil, fmt.Errorf("alert channel %q requires brokers and a topic", cfg.Channel)
		}
		w := &kafka.Writer{
			Addr:         kafka.TCP(cfg.KafkaBrokers...),
			Topic:        cfg.KafkaTopic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
		}
		n = NewKafkaNotifier(w)
		closer = w.Close
	default:
		return nil, fmt.Errorf("unknown alert channel %q", cfg.Channel)
	}
	return NewInstrumented(n, cfg.Channel, cfg.Timeout, logger, m, closer), nil
}

// Instrumented decorates a Notifier with a timeout, logging and metrics.
type Instrumented struct {
	next    Notifier
	channel string
	timeout time.Duration
	logger  *slog.Logger
	metrics *metrics.IngestMetrics
	closer  func() error
}

// NewInstrumented wraps next. A non-positive timeout disables the deadline.
func NewInstrumented(next Notifier, channel string, timeout time.Duration, logger *slog.Logger, m *metrics.IngestMetrics, closer func() error) *Instrumented {
	return &Instrumented{
		next:    next,
		channel: channel,
		timeout: timeout,
		logger:  logger.With("component", "alert_notifier", "channel", channel),
		metrics: m,
		closer:  closer,
	}
}

func (n *Instrumented) Notify(ctx context.Context, rec domain.ErrorRecord) error {
	if n.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.timeout)
		defer cancel()
	}
	err := n.next.Notify(ctx, rec)
	n.metrics.ObserveAlert(n.channel, err)
	if err != nil {
		n.logger.Warn("alert delivery failed", "record_id", rec.ID, "trace_id", rec.Trace.TraceID, "error", err)
		return err
	}
	n.logger.Debug("alert delivered", "record_id", rec.ID, "trace_id", rec.Trace.TraceID)
	return nil
}

// Channel returns the configured channel name.
func (n *Instrumented) Channel() string { return n.channel }

// Close releases channel resources such as the Kafka writer.
func (n *Instrumented) Close() error {
	if n.closer == nil {
		return nil
	}
	return n.closer()
}
