package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/V4T54L/ghostlog/internal/adapter/metrics"
	"github.com/V4T54L/ghostlog/internal/adapter/pii"
	"github.com/V4T54L/ghostlog/internal/domain"
	"github.com/V4T54L/ghostlog/internal/pkg/tracectx"
)

// Admitter gates entry into the ingestion pipeline.
type Admitter interface {
	TryAdmit() bool
}

// RecordProcessor handles a single validated record.
type RecordProcessor interface {
	Process(ctx context.Context, tc domain.TraceContext, rec domain.Record) error
}

// BatchObserver is told about every completed batch. Implementations must
// not block.
type BatchObserver interface {
	ReportBatch(result domain.BatchResult)
}

// IngestBatchUseCase coordinates admission, validation and per-record
// processing of a batch, and aggregates the outcome.
type IngestBatchUseCase struct {
	admitter  Admitter
	processor RecordProcessor
	redactor  *pii.Redactor
	factory   *domain.RecordFactory
	ids       domain.IDGenerator
	now       func() time.Time
	observers []BatchObserver
	logger    *slog.Logger
	metrics   *metrics.IngestMetrics
}

// BatchOption configures an IngestBatchUseCase.
type BatchOption func(*IngestBatchUseCase)

// WithIDGenerator overrides the generator used for batch, trace, span and record ids.
func WithIDGenerator(ids domain.IDGenerator) BatchOption {
	return func(uc *IngestBatchUseCase) { uc.ids = ids }
}

// WithClock overrides the time source for default timestamps and completion times.
func WithClock(now func() time.Time) BatchOption {
	return func(uc *IngestBatchUseCase) { uc.now = now }
}

// WithObserver registers a BatchObserver.
func WithObserver(o BatchObserver) BatchOption {
	return func(uc *IngestBatchUseCase) { uc.observers = append(uc.observers, o) }
}

// NewIngestBatchUseCase creates a new IngestBatchUseCase. redactor and m may be nil.
func NewIngestBatchUseCase(admitter Admitter, processor RecordProcessor, redactor *pii.Redactor, logger *slog.Logger, m *metrics.IngestMetrics, opts ...BatchOption) *IngestBatchUseCase {
	uc := &IngestBatchUseCase{
		admitter:  admitter,
		processor: processor,
		redactor:  redactor,
		ids:       domain.UUIDGenerator{},
		now:       time.Now,
		logger:    logger.With("component", "batch_coordinator"),
		metrics:   m,
	}
	for _, opt := range opts {
		opt(uc)
	}
	uc.factory = domain.NewRecordFactory(uc.ids, uc.now)
	return uc
}

// IngestBatch admits, validates and processes a batch in input order.
//
// Per-record failures are folded into the returned result. The call itself
// fails only with domain.ErrRateLimitExceeded, when admission control
// rejects the batch, or when batch, trace or record identifiers cannot be
// created.
func (uc *IngestBatchUseCase) IngestBatch(ctx context.Context, inputs []domain.RecordInput) (domain.BatchResult, error) {
	if !uc.admitter.TryAdmit() {
		uc.metrics.ObserveBatch("rate_limited")
		uc.logger.Warn("rate limit exceeded for log ingestion", "batch_size", len(inputs))
		return domain.BatchResult{}, domain.ErrRateLimitExceeded
	}

	batchID, err := uc.ids.NewID()
	if err != nil {
		uc.metrics.ObserveBatch("failed")
		return domain.BatchResult{}, fmt.Errorf("generate batch id: %w", err)
	}
	tc, err := uc.resolveTrace(inputs)
	if err != nil {
		uc.metrics.ObserveBatch("failed")
		return domain.BatchResult{}, fmt.Errorf("create trace context: %w", err)
	}

	var result domain.BatchResult
	err = tracectx.Run(ctx, tc, func(ctx context.Context) error {
		var err error
		result, err = uc.process(ctx, batchID, tc, inputs)
		return err
	})
	if err != nil {
		uc.metrics.ObserveBatch("failed")
		return domain.BatchResult{}, err
	}

	uc.metrics.ObserveBatch(string(result.Status))
	for _, o := range uc.observers {
		o.ReportBatch(result)
	}
	return result, nil
}

func (uc *IngestBatchUseCase) process(ctx context.Context, batchID string, tc domain.TraceContext, inputs []domain.RecordInput) (domain.BatchResult, error) {
	ctx, span := otel.Tracer("batch-coordinator").Start(ctx, "IngestBatch")
	defer span.End()
	span.SetAttributes(
		attribute.String("batch.id", batchID),
		attribute.String("trace.id", tc.TraceID),
		attribute.Int("batch.size", len(inputs)),
	)

	logger := uc.logger.With(append([]any{"batch_id", batchID}, tracectx.LogAttrs(ctx)...)...)
	builder := domain.NewBatchResultBuilder(batchID, tc.TraceID, len(inputs))

	if len(inputs) == 0 {
		logger.Warn("received empty log batch")
		return builder.Build(uc.now()), nil
	}
	logger.Info("ingesting batch", "batch_size", len(inputs))

	for i, in := range inputs {
		if uc.redactor != nil {
			in = uc.redactor.Redact(in)
		}
		rec, err := uc.factory.Build(in, tc)
		if err != nil && !errors.Is(err, domain.ErrInvalidRecord) {
			logger.Error("aborting batch on internal fault", "index", i, "error", err)
			span.RecordError(err)
			span.SetStatus(codes.Error, "record construction failed")
			return domain.BatchResult{}, fmt.Errorf("entry %d: %w", i, err)
		}
		if err != nil {
			logger.Warn("rejected invalid record", "index", i, "error", err)
			uc.metrics.ObserveRecord(kindLabel(in.Type), "invalid", 0)
			builder.Reject(i, err)
			continue
		}
		if err := uc.processor.Process(ctx, tc, rec); err != nil {
			logger.Warn("failed to process record", "index", i, "record_id", rec.Meta().ID, "error", err)
			builder.Reject(i, err)
			continue
		}
		builder.Accept()
	}

	result := builder.Build(uc.now())
	span.SetAttributes(
		attribute.Int("batch.accepted", result.TotalAccepted),
		attribute.Int("batch.rejected", result.TotalRejected),
	)
	logger.Info("batch processed",
		"status", result.Status, "accepted", result.TotalAccepted, "rejected", result.TotalRejected)
	return result, nil
}

// resolveTrace takes the trace context supplied on the first record, or
// generates a fresh one.
func (uc *IngestBatchUseCase) resolveTrace(inputs []domain.RecordInput) (domain.TraceContext, error) {
	if len(inputs) > 0 && inputs[0].Trace != nil {
		t := inputs[0].Trace
		return domain.NewTraceContext(uc.ids, t.TraceID, t.SpanID, t.CorrelationID, t.UserID)
	}
	return domain.NewRootTraceContext(uc.ids)
}

func kindLabel(t string) string {
	kind, err := domain.ParseKind(t)
	if err != nil {
		return "unknown"
	}
	return string(kind)
}
