package postgres

import (
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/V4T54L/ghostlog/internal/domain"
)

func TestRecordRow(t *testing.T) {
	h := domain.Header{
		ID:        "r1",
		Message:   "disk almost full",
		Source:    "node-1",
		Timestamp: time.Date(2024, 2, 3, 4, 5, 6, 0, time.FixedZone("CET", 3600)),
		Trace:     domain.TraceContext{TraceID: "t", SpanID: "s", CorrelationID: "c"},
	}

	tests := []struct {
		name         string
		rec          domain.Record
		wantKind     string
		wantSeverity sql.NullString
	}{
		{
			name:         "Error record carries severity",
			rec:          domain.ErrorRecord{Header: h, Severity: domain.SeverityFatal},
			wantKind:     "ERROR",
			wantSeverity: sql.NullString{String: "FATAL", Valid: true},
		},
		{
			name:     "Metric record has null severity",
			rec:      domain.MetricRecord{Header: h, MetricName: "disk", Value: 0.97, Unit: "ratio"},
			wantKind: "METRIC",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row, err := recordRow(tt.rec)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(row) != len(recordColumns) {
				t.Fatalf("expected %d columns, got %d", len(recordColumns), len(row))
			}
			if row[1] != tt.wantKind {
				t.Errorf("expected kind %s, got %v", tt.wantKind, row[1])
			}
			if ts := row[2].(time.Time); ts.Location() != time.UTC {
				t.Errorf("expected UTC event_time, got %v", ts.Location())
			}
			if row[5] != tt.wantSeverity {
				t.Errorf("expected severity %+v, got %+v", tt.wantSeverity, row[5])
			}
			if !strings.Contains(row[9].(string), `"type":"`+tt.wantKind+`"`) {
				t.Errorf("expected payload to carry type discriminator, got %s", row[9])
			}
		})
	}
}
