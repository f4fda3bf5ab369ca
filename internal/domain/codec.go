package domain

import (
	"encoding/json"
	"fmt"
)

// MarshalRecord encodes a record as JSON with a "type" discriminator.
func MarshalRecord(r Record) ([]byte, error) {
	switch rec := r.(type) {
	case ErrorRecord:
		return json.Marshal(struct {
			Type Kind `json:"type"`
			ErrorRecord
		}{KindError, rec})
	case AuditRecord:
		return json.Marshal(struct {
			Type Kind `json:"type"`
			AuditRecord
		}{KindAudit, rec})
	case MetricRecord:
		return json.Marshal(struct {
			Type Kind `json:"type"`
			MetricRecord
		}{KindMetric, rec})
	}
	return nil, fmt.Errorf("marshal record: unsupported type %T", r)
}

// UnmarshalRecord decodes a record produced by MarshalRecord.
func UnmarshalRecord(data []byte) (Record, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("unmarshal record: %w", err)
	}
	kind, err := ParseKind(envelope.Type)
	if err != nil {
		return nil, fmt.Errorf("unmarshal record: %w", err)
	}

	switch kind {
	case KindError:
		var rec ErrorRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("unmarshal error record: %w", err)
		}
		return rec, nil
	case KindAudit:
		var rec AuditRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("unmarshal audit record: %w", err)
		}
		return rec, nil
	default:
		var rec MetricRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("unmarshal metric record: %w", err)
		}
		return rec, nil
	}
}
