package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"github.com/V4T54L/ghostlog/internal/domain"
)

const (
	recordsTableName = "log_records"
	tempTableName    = "log_records_temp_import"
)

var recordColumns = []string{
	"record_id", "kind", "event_time", "source", "message", "severity",
	"trace_id", "span_id", "correlation_id", "payload",
}

// LogRepository is the PostgreSQL long-term sink for records.
type LogRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewLogRepository creates a new PostgreSQL log repository.
func NewLogRepository(db *sql.DB, logger *slog.Logger) *LogRepository {
	return &LogRepository{db: db, logger: logger.With("component", "postgres_sink")}
}

// recordRow flattens a record into the column order of recordColumns. The
// full record is kept as JSON in payload; severity is NULL for non-error kinds.
func recordRow(rec domain.Record) ([]any, error) {
	payload, err := domain.MarshalRecord(rec)
	if err != nil {
		return nil, err
	}
	meta := rec.Meta()

	var severity sql.NullString
	if er, ok := rec.(domain.ErrorRecord); ok {
		severity = sql.NullString{String: er.Severity.String(), Valid: true}
	}

	return []any{
		meta.ID,
		string(rec.Kind()),
		meta.Timestamp.UTC(),
		meta.Source,
		meta.Message,
		severity,
		meta.Trace.TraceID,
		meta.Trace.SpanID,
		meta.Trace.CorrelationID,
		string(payload),
	}, nil
}

// WriteBatch writes records using the COPY protocol into a staging table and
// upserts them by record_id, so a redelivered batch is harmless.
func (r *LogRepository) WriteBatch(ctx context.Context, records []domain.Record) error {
	if len(records) == 0 {
		return nil
	}
	start := time.Now()

	txn, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer txn.Rollback() // Rollback is a no-op if Commit() is called

	_, err = txn.ExecContext(ctx, `CREATE TEMP TABLE `+tempTableName+` (LIKE `+recordsTableName+` INCLUDING DEFAULTS) ON COMMIT DROP;`)
	if err != nil {
		return fmt.Errorf("create staging table: %w", err)
	}

	stmt, err := txn.PrepareContext(ctx, pq.CopyIn(tempTableName, recordColumns...))
	if err != nil {
		return fmt.Errorf("prepare copy: %w", err)
	}

	for _, rec := range records {
		row, err := recordRow(rec)
		if err != nil {
			_ = stmt.Close()
			return err
		}
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			// Close the statement to avoid connection issues
			_ = stmt.Close()
			return fmt.Errorf("copy record %s: %w", rec.Meta().ID, err)
		}
	}

	// Flush the COPY buffer.
	if _, err := stmt.ExecContext(ctx); err != nil {
		_ = stmt.Close()
		return fmt.Errorf("flush copy: %w", err)
	}
	if err := stmt.Close(); err != nil {
		return err
	}

	upsertQuery := `
		INSERT INTO ` + recordsTableName + ` (record_id, kind, event_time, source, message, severity, trace_id, span_id, correlation_id, payload)
		SELECT record_id, kind, event_time, source, message, severity, trace_id, span_id, correlation_id, payload FROM ` + tempTableName + `
		ON CONFLICT (record_id) DO UPDATE SET
			kind = EXCLUDED.kind,
			event_time = EXCLUDED.event_time,
			source = EXCLUDED.source,
			message = EXCLUDED.message,
			severity = EXCLUDED.severity,
			trace_id = EXCLUDED.trace_id,
			span_id = EXCLUDED.span_id,
			correlation_id = EXCLUDED.correlation_id,
			payload = EXCLUDED.payload;
	`
	if _, err := txn.ExecContext(ctx, upsertQuery); err != nil {
		return fmt.Errorf("upsert records: %w", err)
	}

	if err := txn.Commit(); err != nil {
		return err
	}
	r.logger.Debug("wrote record batch", "count", len(records), "duration", time.Since(start))
	return nil
}
