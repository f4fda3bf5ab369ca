package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/V4T54L/ghostlog/internal/adapter/metrics"
	"github.com/V4T54L/ghostlog/internal/domain"
)

const (
	defaultBatchSize    = 1000
	defaultRetryCount   = 3
	defaultRetryBackoff = 1 * time.Second
)

// ProcessLogsUseCase drains buffered records into the long-term sink.
type ProcessLogsUseCase struct {
	bufferRepo   domain.BufferRepository
	sinkRepo     domain.SinkRepository
	logger       *slog.Logger
	metrics      *metrics.IngestMetrics
	group        string
	consumer     string
	batchSize    int
	retryCount   int
	retryBackoff time.Duration
}

// NewProcessLogsUseCase creates a new use case for processing logs.
// Non-positive retry settings fall back to defaults.
func NewProcessLogsUseCase(bufferRepo domain.BufferRepository, sinkRepo domain.SinkRepository, logger *slog.Logger, group, consumer string, retryCount int, retryBackoff time.Duration) *ProcessLogsUseCase {
	if retryCount <= 0 {
		retryCount = defaultRetryCount
	}
	if retryBackoff <= 0 {
		retryBackoff = defaultRetryBackoff
	}
	return &ProcessLogsUseCase{
		bufferRepo:   bufferRepo,
		sinkRepo:     sinkRepo,
		logger:       logger.With("component", "log_processor", "consumer", consumer),
		group:        group,
		consumer:     consumer,
		batchSize:    defaultBatchSize,
		retryCount:   retryCount,
		retryBackoff: retryBackoff,
	}
}

// WithBatchSize sets how many records are read per batch.
func (uc *ProcessLogsUseCase) WithBatchSize(n int) *ProcessLogsUseCase {
	if n > 0 {
		uc.batchSize = n
	}
	return uc
}

// WithMetrics attaches sink and DLQ counters.
func (uc *ProcessLogsUseCase) WithMetrics(m *metrics.IngestMetrics) *ProcessLogsUseCase {
	uc.metrics = m
	return uc
}

// ProcessBatch reads a batch of records, writes them to the sink and
// acknowledges them. A batch the sink keeps rejecting is moved to the
// dead-letter stream and still acknowledged so it is not redelivered.
func (uc *ProcessLogsUseCase) ProcessBatch(ctx context.Context) (int, error) {
	buffered, err := uc.bufferRepo.ReadBatch(ctx, uc.group, uc.consumer, uc.batchSize)
	if err != nil {
		uc.logger.Error("failed to read record batch from buffer", "error", err)
		return 0, err
	}
	if len(buffered) == 0 {
		return 0, nil
	}

	uc.logger.Debug("read batch of records from buffer", "count", len(buffered))

	records := make([]domain.Record, len(buffered))
	messageIDs := make([]string, len(buffered))
	for i, b := range buffered {
		records[i] = b.Record
		messageIDs[i] = b.StreamMessageID
	}

	writeErr := uc.writeWithRetry(ctx, records)
	if writeErr != nil && ctx.Err() != nil {
		// Shutting down; leave the batch pending for the next consumer.
		return 0, writeErr
	}
	if writeErr != nil {
		uc.logger.Error("failed to write record batch to sink after retries, moving to DLQ", "error", writeErr, "count", len(buffered))
		if err := uc.bufferRepo.MoveToDLQ(ctx, buffered); err != nil {
			// Leave the batch pending so it is redelivered.
			uc.logger.Error("failed to move batch to DLQ", "error", err)
			return 0, err
		}
		uc.metrics.ObserveSink(0, len(buffered))
	}

	if err := uc.bufferRepo.Acknowledge(ctx, uc.group, messageIDs...); err != nil {
		// The sink upserts by id, so redelivery is harmless.
		uc.logger.Error("failed to acknowledge records in buffer", "error", err)
		return 0, err
	}

	if writeErr != nil {
		return 0, writeErr
	}

	uc.metrics.ObserveSink(len(buffered), 0)
	uc.logger.Info("successfully processed and sinked record batch", "count", len(buffered))
	return len(buffered), nil
}

func (uc *ProcessLogsUseCase) writeWithRetry(ctx context.Context, records []domain.Record) error {
	var lastErr error
	for i := 0; i < uc.retryCount; i++ {
		err := uc.sinkRepo.WriteBatch(ctx, records)
		if err == nil {
			return nil
		}
		lastErr = err
		uc.logger.Warn("failed to write batch to sink, retrying...", "attempt", i+1, "error", err)
		if i == uc.retryCount-1 {
			break
		}
		select {
		case <-time.After(uc.retryBackoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}
