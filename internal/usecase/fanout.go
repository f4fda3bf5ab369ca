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
	"github.com/V4T54L/ghostlog/internal/domain"
	"github.com/V4T54L/ghostlog/internal/pkg/tracectx"
)

// errSiblingFailed is the cancellation cause delivered to the surviving
// unit of a fan-out pair.
var errSiblingFailed = errors.New("sibling unit failed")

// FanOutProcessor persists records and, for error records, notifies the
// alert channel in parallel with all-or-nothing semantics.
type FanOutProcessor struct {
	storage domain.Storage
	alerter domain.Alerter
	logger  *slog.Logger
	metrics *metrics.IngestMetrics
}

// NewFanOutProcessor creates a new FanOutProcessor. m may be nil.
func NewFanOutProcessor(storage domain.Storage, alerter domain.Alerter, logger *slog.Logger, m *metrics.IngestMetrics) *FanOutProcessor {
	return &FanOutProcessor{
		storage: storage,
		alerter: alerter,
		logger:  logger.With("component", "fanout_processor"),
		metrics: m,
	}
}

// unitResult is what a fan-out unit reports back to the join.
type unitResult struct {
	unit string
	err  error
}

// Process handles one record under the given trace context.
//
// Non-error records are stored once. Error records launch an alert unit
// and a store unit concurrently; the first failure cancels the other unit
// and is returned immediately without waiting for the cancelled unit to
// finish. Success is reported only after both units have completed.
func (p *FanOutProcessor) Process(ctx context.Context, tc domain.TraceContext, rec domain.Record) error {
	start := time.Now()
	kind := string(rec.Kind())

	var err error
	switch r := rec.(type) {
	case domain.ErrorRecord:
		err = p.processError(ctx, tc, r)
	case domain.AuditRecord, domain.MetricRecord:
		if err = p.store(ctx, tc, rec); err != nil {
			err = fmt.Errorf("store: %w", err)
		}
	default:
		err = fmt.Errorf("unsupported record type %T", rec)
	}

	outcome := "accepted"
	if err != nil {
		outcome = "rejected"
	}
	p.metrics.ObserveRecord(kind, outcome, time.Since(start))
	return err
}

func (p *FanOutProcessor) processError(ctx context.Context, tc domain.TraceContext, rec domain.ErrorRecord) error {
	ctx, span := otel.Tracer("fanout-processor").Start(ctx, "ProcessErrorRecord")
	defer span.End()
	span.SetAttributes(
		attribute.String("record.id", rec.ID),
		attribute.String("trace.id", tc.TraceID),
		attribute.String("record.severity", rec.Severity.String()),
	)

	logger := p.logger.With("record_id", rec.ID, "trace_id", tc.TraceID)
	logger.Debug("processing error record with parallel alert and store")

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	// Buffered for both units so a unit finishing after the join has
	// returned never blocks.
	results := make(chan unitResult, 2)
	dispatch := func(unit string, fn func(ctx context.Context, tc domain.TraceContext) error) {
		go func() {
			results <- unitResult{unit: unit, err: fn(ctx, tc)}
		}()
	}

	dispatch("alert", func(ctx context.Context, tc domain.TraceContext) error {
		return p.alerter.Notify(tracectx.With(ctx, tc), rec)
	})
	dispatch("store", func(ctx context.Context, tc domain.TraceContext) error {
		return p.store(ctx, tc, rec)
	})

	for pending := 2; pending > 0; pending-- {
		select {
		case res := <-results:
			if res.err != nil {
				cancel(fmt.Errorf("%w: %s", errSiblingFailed, res.unit))
				logger.Error("parallel processing failed", "unit", res.unit, "error", res.err)
				span.RecordError(res.err)
				span.SetStatus(codes.Error, res.unit+" failed")
				return fmt.Errorf("%s: %w", res.unit, res.err)
			}
		case <-ctx.Done():
			err := context.Cause(ctx)
			logger.Warn("parallel processing cancelled", "error", err)
			span.SetStatus(codes.Error, "cancelled")
			return err
		}
	}

	logger.Debug("parallel processing completed")
	return nil
}

func (p *FanOutProcessor) store(ctx context.Context, tc domain.TraceContext, rec domain.Record) error {
	if err := p.storage.Store(tracectx.With(ctx, tc), rec); err != nil {
		return err
	}
	if er, ok := rec.(domain.ErrorRecord); ok && er.Severity.IsCritical() {
		p.logger.Warn("critical error record received",
			"source", er.Source, "severity", er.Severity.String(), "record_id", er.ID, "trace_id", tc.TraceID)
	}
	return nil
}
