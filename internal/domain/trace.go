package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// TraceContext correlates all work done on behalf of one inbound batch.
// It is a value type and is never mutated after construction.
type TraceContext struct {
	TraceID       string `json:"traceId"`
	SpanID        string `json:"spanId"`
	CorrelationID string `json:"correlationId"`
	UserID        string `json:"userId,omitempty"`
}

// IDGenerator produces opaque unique identifiers.
type IDGenerator interface {
	NewID() (string, error)
}

// UUIDGenerator generates random (v4) UUID strings.
type UUIDGenerator struct{}

// NewID returns a fresh random UUID.
func (UUIDGenerator) NewID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// IDFunc adapts a plain function to IDGenerator.
type IDFunc func() (string, error)

// NewID calls f.
func (f IDFunc) NewID() (string, error) { return f() }

// NewTraceContext builds a TraceContext from caller-supplied fields.
// Missing trace and span ids are generated; a missing correlation id
// defaults to the trace id.
func NewTraceContext(ids IDGenerator, traceID, spanID, correlationID, userID string) (TraceContext, error) {
	var err error
	if traceID == "" {
		if traceID, err = ids.NewID(); err != nil {
			return TraceContext{}, fmt.Errorf("generate trace id: %w", err)
		}
	}
	if spanID == "" {
		if spanID, err = ids.NewID(); err != nil {
			return TraceContext{}, fmt.Errorf("generate span id: %w", err)
		}
	}
	if correlationID == "" {
		correlationID = traceID
	}
	return TraceContext{
		TraceID:       traceID,
		SpanID:        spanID,
		CorrelationID: correlationID,
		UserID:        userID,
	}, nil
}

// NewRootTraceContext builds a TraceContext with every id freshly generated.
func NewRootTraceContext(ids IDGenerator) (TraceContext, error) {
	return NewTraceContext(ids, "", "", "", "")
}

// IsValid reports whether both trace and span ids are present.
func (tc TraceContext) IsValid() bool {
	return tc.TraceID != "" && tc.SpanID != ""
}
