package domain

import (
	"fmt"
	"time"
)

// RecordInput is an unvalidated record as submitted by a client. The Type
// field selects the variant; variant-specific fields for other variants
// are ignored.
type RecordInput struct {
	Type      string        `json:"type"`
	Message   string        `json:"message"`
	Source    string        `json:"source"`
	Timestamp *time.Time    `json:"timestamp,omitempty"`
	Trace     *TraceContext `json:"traceContext,omitempty"`

	// ERROR
	Severity      string `json:"severity,omitempty"`
	ExceptionType string `json:"exceptionType,omitempty"`
	StackTrace    string `json:"stackTrace,omitempty"`

	// AUDIT
	UserID       string            `json:"userId,omitempty"`
	Action       string            `json:"action,omitempty"`
	ResourceType string            `json:"resourceType,omitempty"`
	ResourceID   string            `json:"resourceId,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`

	// METRIC
	MetricName string            `json:"metricName,omitempty"`
	Value      *float64          `json:"value,omitempty"`
	Unit       string            `json:"unit,omitempty"`
	Tags       map[string]string `json:"tags,omitempty"`
}

// RecordFactory turns RecordInputs into validated Records, filling in the
// record id and timestamp when the input omits them.
type RecordFactory struct {
	ids IDGenerator
	now func() time.Time
}

// NewRecordFactory creates a RecordFactory. A nil now defaults to time.Now.
func NewRecordFactory(ids IDGenerator, now func() time.Time) *RecordFactory {
	if now == nil {
		now = time.Now
	}
	return &RecordFactory{ids: ids, now: now}
}

// Build validates in and returns the matching Record variant stamped with
// the given trace context. Validation failures wrap ErrInvalidRecord.
func (f *RecordFactory) Build(in RecordInput, trace TraceContext) (Record, error) {
	kind, err := ParseKind(in.Type)
	if err != nil {
		return nil, err
	}

	id, err := f.ids.NewID()
	if err != nil {
		return nil, fmt.Errorf("generate record id: %w", err)
	}
	ts := f.now().UTC()
	if in.Timestamp != nil && !in.Timestamp.IsZero() {
		ts = in.Timestamp.UTC()
	}
	h := Header{
		ID:        id,
		Message:   in.Message,
		Source:    in.Source,
		Timestamp: ts,
		Trace:     trace,
	}

	switch kind {
	case KindError:
		// Check the common fields first so a blank message is reported
		// ahead of a missing severity.
		if err := validateHeader(h); err != nil {
			return nil, err
		}
		severity, err := ParseSeverity(in.Severity)
		if err != nil {
			return nil, err
		}
		return NewErrorRecord(h, severity, in.ExceptionType, in.StackTrace)
	case KindAudit:
		return NewAuditRecord(h, in.UserID, in.Action, in.ResourceType, in.ResourceID, in.Metadata)
	case KindMetric:
		if in.Value == nil {
			if err := validateHeader(h); err != nil {
				return nil, err
			}
			return nil, &ValidationError{Field: "value", Reason: "is required"}
		}
		return NewMetricRecord(h, in.MetricName, *in.Value, in.Unit, in.Tags)
	}
	return nil, &ValidationError{Field: "type", Reason: fmt.Sprintf("%q is not a known record type", in.Type)}
}
