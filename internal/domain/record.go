package domain

import (
	"fmt"
	"maps"
	"math"
	"strings"
	"time"
)

// Kind discriminates the closed set of record variants.
type Kind string

const (
	KindError  Kind = "ERROR"
	KindAudit  Kind = "AUDIT"
	KindMetric Kind = "METRIC"
)

// Kinds lists every record variant.
var Kinds = []Kind{KindError, KindAudit, KindMetric}

// ParseKind resolves a wire discriminator, case-insensitively.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToUpper(strings.TrimSpace(s))) {
	case KindError:
		return KindError, nil
	case KindAudit:
		return KindAudit, nil
	case KindMetric:
		return KindMetric, nil
	}
	return "", &ValidationError{Field: "type", Reason: fmt.Sprintf("%q is not a known record type", s)}
}

// Severity is the level of an error record.
type Severity uint8

const (
	SeverityUnknown Severity = iota
	SeverityTrace
	SeverityDebug
	SeverityInfo
	SeverityWarn
	SeverityError
	SeverityFatal
)

var severityNames = [...]string{"UNKNOWN", "TRACE", "DEBUG", "INFO", "WARN", "ERROR", "FATAL"}

func (s Severity) String() string {
	if int(s) < len(severityNames) {
		return severityNames[s]
	}
	return severityNames[SeverityUnknown]
}

// ParseSeverity resolves a severity name, case-insensitively.
func ParseSeverity(s string) (Severity, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	if name == "" {
		return SeverityUnknown, &ValidationError{Field: "severity", Reason: "cannot be empty"}
	}
	for i := SeverityTrace; i <= SeverityFatal; i++ {
		if severityNames[i] == name {
			return i, nil
		}
	}
	return SeverityUnknown, &ValidationError{Field: "severity", Reason: fmt.Sprintf("%q is not a valid level", s)}
}

// IsCritical reports whether the severity is ERROR or FATAL.
func (s Severity) IsCritical() bool {
	return s == SeverityError || s == SeverityFatal
}

func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Severity) UnmarshalText(text []byte) error {
	parsed, err := ParseSeverity(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Header holds the fields shared by every record variant.
type Header struct {
	ID        string       `json:"id"`
	Message   string       `json:"message"`
	Source    string       `json:"source"`
	Timestamp time.Time    `json:"timestamp"`
	Trace     TraceContext `json:"traceContext"`
}

// Record is a validated, immutable log record. The set of implementations
// is closed: ErrorRecord, AuditRecord and MetricRecord.
type Record interface {
	Meta() Header
	Kind() Kind
	sealed()
}

// ErrorRecord captures an error event. It is the only variant that is
// fanned out to the alert channel.
type ErrorRecord struct {
	Header
	Severity      Severity `json:"severity"`
	ExceptionType string   `json:"exceptionType,omitempty"`
	StackTrace    string   `json:"stackTrace,omitempty"`
}

// AuditRecord captures a user action for compliance.
type AuditRecord struct {
	Header
	UserID       string            `json:"userId"`
	Action       string            `json:"action"`
	ResourceType string            `json:"resourceType,omitempty"`
	ResourceID   string            `json:"resourceId,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// MetricRecord captures a single measurement.
type MetricRecord struct {
	Header
	MetricName string            `json:"metricName"`
	Value      float64           `json:"value"`
	Unit       string            `json:"unit"`
	Tags       map[string]string `json:"tags,omitempty"`
}

func (r ErrorRecord) Meta() Header  { return r.Header }
func (r AuditRecord) Meta() Header  { return r.Header }
func (r MetricRecord) Meta() Header { return r.Header }

func (ErrorRecord) Kind() Kind  { return KindError }
func (AuditRecord) Kind() Kind  { return KindAudit }
func (MetricRecord) Kind() Kind { return KindMetric }

func (ErrorRecord) sealed()  {}
func (AuditRecord) sealed()  {}
func (MetricRecord) sealed() {}

// NewErrorRecord validates and builds an ErrorRecord.
func NewErrorRecord(h Header, severity Severity, exceptionType, stackTrace string) (ErrorRecord, error) {
	if err := validateHeader(h); err != nil {
		return ErrorRecord{}, err
	}
	if severity < SeverityTrace || severity > SeverityFatal {
		return ErrorRecord{}, &ValidationError{Field: "severity", Reason: "cannot be empty"}
	}
	return ErrorRecord{
		Header:        h,
		Severity:      severity,
		ExceptionType: exceptionType,
		StackTrace:    stackTrace,
	}, nil
}

// NewAuditRecord validates and builds an AuditRecord. The metadata map is copied.
func NewAuditRecord(h Header, userID, action, resourceType, resourceID string, metadata map[string]string) (AuditRecord, error) {
	if err := validateHeader(h); err != nil {
		return AuditRecord{}, err
	}
	if isBlank(userID) {
		return AuditRecord{}, &ValidationError{Field: "userId", Reason: "cannot be blank"}
	}
	if isBlank(action) {
		return AuditRecord{}, &ValidationError{Field: "action", Reason: "cannot be blank"}
	}
	return AuditRecord{
		Header:       h,
		UserID:       userID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Metadata:     maps.Clone(metadata),
	}, nil
}

// NewMetricRecord validates and builds a MetricRecord. The tags map is copied.
func NewMetricRecord(h Header, name string, value float64, unit string, tags map[string]string) (MetricRecord, error) {
	if err := validateHeader(h); err != nil {
		return MetricRecord{}, err
	}
	if isBlank(name) {
		return MetricRecord{}, &ValidationError{Field: "metricName", Reason: "cannot be blank"}
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return MetricRecord{}, &ValidationError{Field: "value", Reason: "must be a finite number"}
	}
	if isBlank(unit) {
		return MetricRecord{}, &ValidationError{Field: "unit", Reason: "cannot be blank"}
	}
	return MetricRecord{
		Header:     h,
		MetricName: name,
		Value:      value,
		Unit:       unit,
		Tags:       maps.Clone(tags),
	}, nil
}

func validateHeader(h Header) error {
	switch {
	case isBlank(h.Message):
		return &ValidationError{Field: "message", Reason: "cannot be blank"}
	case isBlank(h.Source):
		return &ValidationError{Field: "source", Reason: "cannot be blank"}
	case h.ID == "":
		return &ValidationError{Field: "id", Reason: "cannot be empty"}
	case h.Timestamp.IsZero():
		return &ValidationError{Field: "timestamp", Reason: "cannot be zero"}
	case !h.Trace.IsValid():
		return &ValidationError{Field: "traceContext", Reason: "must carry trace and span ids"}
	}
	return nil
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
