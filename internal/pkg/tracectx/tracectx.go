// Package tracectx binds a domain.TraceContext to a context.Context so that
// every goroutine handed the context (or a context derived from it) sees
// the same trace.
package tracectx

import (
	"context"

	"github.com/google/uuid"

	"github.com/V4T54L/ghostlog/internal/domain"
)

type ctxKey struct{}

// With returns a copy of ctx carrying tc.
func With(ctx context.Context, tc domain.TraceContext) context.Context {
	return context.WithValue(ctx, ctxKey{}, tc)
}

// From returns the trace context bound to ctx, if any.
func From(ctx context.Context) (domain.TraceContext, bool) {
	tc, ok := ctx.Value(ctxKey{}).(domain.TraceContext)
	return tc, ok
}

// Current returns the trace context bound to ctx, or a freshly generated
// one when nothing is bound. The result always has trace and span ids.
func Current(ctx context.Context) domain.TraceContext {
	return CurrentWith(ctx, domain.UUIDGenerator{})
}

// CurrentWith is Current with the generator used for a fresh context. If
// ids fails, random UUIDs are used instead so the result is still valid.
func CurrentWith(ctx context.Context, ids domain.IDGenerator) domain.TraceContext {
	if tc, ok := From(ctx); ok && tc.IsValid() {
		return tc
	}
	if tc, err := domain.NewRootTraceContext(ids); err == nil {
		return tc
	}
	traceID := uuid.NewString()
	return domain.TraceContext{
		TraceID:       traceID,
		SpanID:        uuid.NewString(),
		CorrelationID: traceID,
	}
}

// Run calls task with a context carrying tc. The binding is visible only
// through the context passed to task and anything derived from it.
func Run(ctx context.Context, tc domain.TraceContext, task func(ctx context.Context) error) error {
	return task(With(ctx, tc))
}

// LogAttrs returns slog key/value pairs identifying the bound trace.
func LogAttrs(ctx context.Context) []any {
	tc, ok := From(ctx)
	if !ok {
		return nil
	}
	return []any{"trace_id", tc.TraceID, "span_id", tc.SpanID, "correlation_id", tc.CorrelationID}
}
