package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/V4T54L/ghostlog/internal/adapter/metrics"
	"github.com/V4T54L/ghostlog/internal/domain"
)

// RecordStream is the stream that buffers ingested records.
const RecordStream = "log_records"

const defaultBlockTimeout = 2 * time.Second

// LogRepository buffers records on a Redis Stream. On the ingest side it is
// the durable domain.Storage, with a Write-Ahead Log for failover. On the
// consumer side it is the domain.BufferRepository.
type LogRepository struct {
	client       *redis.Client
	logger       *slog.Logger
	wal          domain.WALRepository
	metrics      *metrics.IngestMetrics
	dlqStreamKey string
	blockTimeout time.Duration
	isAvailable  atomic.Bool
}

// NewLogRepository creates a new Redis-backed LogRepository.
// The WAL is optional; pass nil if not needed (e.g., for consumers).
func NewLogRepository(client *redis.Client, logger *slog.Logger, group, dlqStreamKey string, wal domain.WALRepository, m *metrics.IngestMetrics) *LogRepository {
	repo := &LogRepository{
		client:       client,
		logger:       logger.With("component", "redis_repository"),
		wal:          wal,
		metrics:      m,
		dlqStreamKey: dlqStreamKey,
		blockTimeout: defaultBlockTimeout,
	}
	repo.isAvailable.Store(true) // Assume available initially

	if err := repo.setupConsumerGroup(context.Background(), group); err != nil {
		repo.markUnavailable(err)
		repo.logger.Error("Failed to setup consumer group, Redis may be unavailable on startup", "error", err)
	}

	return repo
}

// StartHealthCheck monitors Redis connectivity and replays the WAL once the
// connection recovers. It blocks until ctx is cancelled.
func (r *LogRepository) StartHealthCheck(ctx context.Context, interval time.Duration) {
	if r.wal == nil {
		r.logger.Info("WAL is not configured, skipping health check/replayer")
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.logger.Info("Starting Redis health check and WAL replayer")

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Stopping Redis health check")
			return
		case <-ticker.C:
			r.checkHealth(ctx)
		}
	}
}

func (r *LogRepository) checkHealth(ctx context.Context) {
	if err := r.client.Ping(ctx).Err(); err != nil {
		r.markUnavailable(err)
		return
	}
	if r.isAvailable.CompareAndSwap(false, true) {
		r.logger.Info("Redis connection recovered")
		if err := r.ReplayWAL(ctx); err != nil {
			r.logger.Error("Failed to replay WAL after Redis recovery", "error", err)
			r.isAvailable.Store(false)
			return
		}
		r.metrics.SetWALActive(false)
	}
}

func (r *LogRepository) markUnavailable(err error) {
	if r.isAvailable.CompareAndSwap(true, false) {
		r.logger.Error("Redis connection lost", "error", err)
	}
}

// ReplayWAL replays records from the WAL to Redis and truncates the WAL on success.
func (r *LogRepository) ReplayWAL(ctx context.Context) error {
	r.logger.Info("Attempting to replay WAL to Redis")
	replayHandler := func(rec domain.Record) error {
		return r.bufferToRedis(ctx, rec)
	}

	if err := r.wal.Replay(ctx, replayHandler); err != nil {
		return fmt.Errorf("WAL replay failed: %w", err)
	}

	if err := r.wal.Truncate(ctx); err != nil {
		return fmt.Errorf("failed to truncate WAL after successful replay: %w", err)
	}

	r.logger.Info("WAL replay to Redis completed successfully")
	return nil
}

func (r *LogRepository) setupConsumerGroup(ctx context.Context, group string) error {
	if group == "" {
		return nil
	}
	err := r.client.XGroupCreateMkStream(ctx, RecordStream, group, "0").Err()
	if err != nil && !isRedisBusyGroupError(err) {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}
	return nil
}

// Store adds a record to the Redis Stream, falling back to the WAL if Redis is unavailable.
func (r *LogRepository) Store(ctx context.Context, rec domain.Record) error {
	if !r.isAvailable.Load() {
		return r.writeWAL(ctx, rec, nil)
	}

	err := r.bufferToRedis(ctx, rec)
	if err == nil {
		return nil
	}
	// A cancelled caller is not a Redis outage.
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if isNetworkError(err) {
		r.markUnavailable(err)
		return r.writeWAL(ctx, rec, err)
	}
	return err
}

func (r *LogRepository) writeWAL(ctx context.Context, rec domain.Record, cause error) error {
	if r.wal == nil {
		if cause != nil {
			return fmt.Errorf("redis became unavailable and WAL is not configured: %w", cause)
		}
		return errors.New("redis is unavailable and WAL is not configured")
	}
	r.logger.Warn("Redis is unavailable, writing to WAL", "record_id", rec.Meta().ID)
	r.metrics.SetWALActive(true)
	return r.wal.Write(ctx, rec)
}

func (r *LogRepository) bufferToRedis(ctx context.Context, rec domain.Record) error {
	payload, err := domain.MarshalRecord(rec)
	if err != nil {
		return err
	}

	args := &redis.XAddArgs{
		Stream: RecordStream,
		Values: map[string]interface{}{"payload": payload, "kind": string(rec.Kind())},
	}

	if err := r.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("failed to XADD to redis stream: %w", err)
	}
	return nil
}

// ReadBatch reads a batch of records from the Redis Stream for a consumer group.
func (r *LogRepository) ReadBatch(ctx context.Context, group, consumer string, count int) ([]domain.BufferedRecord, error) {
	args := &redis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  []string{RecordStream, ">"},
		Count:    int64(count),
		Block:    r.blockTimeout,
	}

	streams, err := r.client.XReadGroup(ctx, args).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to XREADGROUP from redis: %w", err)
	}

	if len(streams) == 0 || len(streams[0].Messages) == 0 {
		return nil, nil
	}

	return decodeMessages(r.logger, streams[0].Messages), nil
}

// decodeMessages turns stream messages into records, skipping any message
// that does not carry a decodable payload.
func decodeMessages(logger *slog.Logger, messages []redis.XMessage) []domain.BufferedRecord {
	records := make([]domain.BufferedRecord, 0, len(messages))
	for _, msg := range messages {
		payload, ok := msg.Values["payload"].(string)
		if !ok {
			logger.Warn("Invalid message format in stream, skipping", "message_id", msg.ID)
			continue
		}

		rec, err := domain.UnmarshalRecord([]byte(payload))
		if err != nil {
			logger.Warn("Failed to decode record from stream, skipping", "message_id", msg.ID, "error", err)
			continue
		}
		records = append(records, domain.BufferedRecord{StreamMessageID: msg.ID, Record: rec})
	}
	return records
}

// Acknowledge acknowledges processed messages in the Redis Stream.
func (r *LogRepository) Acknowledge(ctx context.Context, group string, messageIDs ...string) error {
	if len(messageIDs) == 0 {
		return nil
	}
	if err := r.client.XAck(ctx, RecordStream, group, messageIDs...).Err(); err != nil {
		return fmt.Errorf("failed to XACK messages in redis: %w", err)
	}
	return nil
}

// MoveToDLQ moves a batch of records to the Dead-Letter Queue stream.
func (r *LogRepository) MoveToDLQ(ctx context.Context, records []domain.BufferedRecord) error {
	if len(records) == 0 {
		return nil
	}

	pipe := r.client.Pipeline()
	for _, b := range records {
		payload, err := domain.MarshalRecord(b.Record)
		if err != nil {
			r.logger.Error("Failed to marshal record for DLQ", "record_id", b.Record.Meta().ID, "error", err)
			continue
		}
		args := &redis.XAddArgs{
			Stream: r.dlqStreamKey,
			Values: map[string]interface{}{
				"payload":         payload,
				"original_stream": RecordStream,
				"original_msg_id": b.StreamMessageID,
				"failed_at":       time.Now().UTC().Format(time.RFC3339),
			},
		}
		pipe.XAdd(ctx, args)
	}

	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to execute DLQ pipeline: %w", err)
	}
	r.logger.Warn("Moved records to DLQ", "count", len(records))
	return nil
}

func isRedisBusyGroupError(err error) bool {
	return err != nil && err.Error() == "BUSYGROUP Consumer Group name already exists"
}

func isNetworkError(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) || errors.Is(err, redis.ErrClosed)
}
