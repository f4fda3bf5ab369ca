package pii

import (
	"log/slog"
	"maps"
	"strings"

	"github.com/V4T54L/ghostlog/internal/domain"
)

const RedactedPlaceholder = "[REDACTED]"

// Redactor replaces sensitive values in audit metadata and metric tags.
type Redactor struct {
	fieldsToRedact map[string]struct{} // Use a map for O(1) lookups
	logger         *slog.Logger
}

// NewRedactor creates a new Redactor instance with a given set of keys to redact.
// Keys are matched case-insensitively; blank keys are ignored.
func NewRedactor(fields []string, logger *slog.Logger) *Redactor {
	fieldSet := make(map[string]struct{}, len(fields))
	for _, field := range fields {
		field = strings.ToLower(strings.TrimSpace(field))
		if field == "" {
			continue
		}
		fieldSet[field] = struct{}{}
	}
	return &Redactor{
		fieldsToRedact: fieldSet,
		logger:         logger.With("component", "pii_redactor"),
	}
}

// Redact returns a copy of in whose metadata and tags have sensitive values
// replaced. The caller's maps are never modified.
func (r *Redactor) Redact(in domain.RecordInput) domain.RecordInput {
	if len(r.fieldsToRedact) == 0 {
		return in
	}

	var n int
	in.Metadata, n = r.redactMap(in.Metadata)
	redacted := n
	in.Tags, n = r.redactMap(in.Tags)
	redacted += n

	if redacted > 0 {
		r.logger.Debug("redacted sensitive fields", "type", in.Type, "source", in.Source, "count", redacted)
	}
	return in
}

func (r *Redactor) redactMap(m map[string]string) (map[string]string, int) {
	if len(m) == 0 {
		return m, 0
	}
	var out map[string]string
	count := 0
	for k := range m {
		if _, ok := r.fieldsToRedact[strings.ToLower(k)]; !ok {
			continue
		}
		if out == nil {
			out = maps.Clone(m)
		}
		out[k] = RedactedPlaceholder
		count++
	}
	if out == nil {
		return m, 0
	}
	return out, count
}
