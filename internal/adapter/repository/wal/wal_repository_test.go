package wal

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/V4T54L/ghostlog/internal/domain"
)

func setupTestWAL(t *testing.T, maxSegmentSize, maxTotalSize int64) *WALRepository {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	wal, err := NewWALRepository(t.TempDir(), maxSegmentSize, maxTotalSize, logger)
	if err != nil {
		t.Fatalf("failed to create WALRepository: %v", err)
	}
	t.Cleanup(func() { wal.Close() })
	return wal
}

func testRecord(message string) domain.Record {
	return domain.ErrorRecord{
		Header: domain.Header{
			ID:        uuid.NewString(),
			Message:   message,
			Source:    "wal-test",
			Timestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			Trace:     domain.TraceContext{TraceID: "t", SpanID: "s", CorrelationID: "t"},
		},
		Severity: domain.SeverityError,
	}
}

func TestWAL_WriteAndReplay(t *testing.T) {
	wal := setupTestWAL(t, 1024, 10*1024)

	records := []domain.Record{
		testRecord("record 1"),
		domain.MetricRecord{Header: testRecord("record 2").Meta(), MetricName: "cpu", Value: 0.9, Unit: "ratio"},
		domain.AuditRecord{Header: testRecord("record 3").Meta(), UserID: "u", Action: "LOGIN"},
	}

	for _, rec := range records {
		if err := wal.Write(context.Background(), rec); err != nil {
			t.Fatalf("failed to write record: %v", err)
		}
	}
	wal.Close()

	// Re-open the WAL to simulate a restart
	reopened, err := NewWALRepository(wal.dir, 1024, 10*1024, wal.logger)
	if err != nil {
		t.Fatalf("failed to re-open WAL: %v", err)
	}
	defer reopened.Close()

	var replayed []domain.Record
	err = reopened.Replay(context.Background(), func(rec domain.Record) error {
		replayed = append(replayed, rec)
		return nil
	})
	if err != nil {
		t.Fatalf("failed to replay records: %v", err)
	}

	if len(replayed) != len(records) {
		t.Fatalf("expected %d replayed records, got %d", len(records), len(replayed))
	}
	for i, rec := range records {
		if replayed[i].Meta().ID != rec.Meta().ID || replayed[i].Kind() != rec.Kind() {
			t.Errorf("replayed record mismatch at index %d: got %+v, want %+v", i, replayed[i], rec)
		}
	}
}

func TestWAL_ReplayStopsOnHandlerError(t *testing.T) {
	wal := setupTestWAL(t, 1024, 10*1024)
	for i := 0; i < 3; i++ {
		_ = wal.Write(context.Background(), testRecord("r"))
	}

	calls := 0
	boom := errors.New("redis down")
	err := wal.Replay(context.Background(), func(domain.Record) error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected handler error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected replay to stop after first failure, got %d calls", calls)
	}
}

func TestWAL_ReplaySkipsCorruptLines(t *testing.T) {
	wal := setupTestWAL(t, 1024, 10*1024)
	_ = wal.Write(context.Background(), testRecord("good"))
	wal.Close()

	corrupt := filepath.Join(wal.dir, segmentPrefix+"99999999999999999999-000000"+segmentSuffix)
	if err := os.WriteFile(corrupt, []byte("not json\n"), filePerm); err != nil {
		t.Fatalf("failed to write corrupt segment: %v", err)
	}

	count := 0
	if err := wal.Replay(context.Background(), func(domain.Record) error { count++; return nil }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 replayed record, got %d", count)
	}
}

func TestWAL_SegmentRotation(t *testing.T) {
	// Set a very small segment size to force rotation
	wal := setupTestWAL(t, 100, 64*1024)

	for i := 0; i < 5; i++ {
		if err := wal.Write(context.Background(), testRecord("a message long enough to cause rotation")); err != nil {
			t.Fatalf("failed to write record: %v", err)
		}
	}

	segments, err := wal.getSortedSegments()
	if err != nil {
		t.Fatalf("failed to get segments: %v", err)
	}
	if len(segments) < 2 {
		t.Errorf("expected at least 2 segments, got %d", len(segments))
	}
}

func TestWAL_Truncate(t *testing.T) {
	wal := setupTestWAL(t, 1024, 1024)

	if err := wal.Write(context.Background(), testRecord("some data")); err != nil {
		t.Fatalf("failed to write record: %v", err)
	}
	if wal.Size() == 0 {
		t.Fatal("expected non-zero WAL size before truncate")
	}

	if err := wal.Truncate(context.Background()); err != nil {
		t.Fatalf("failed to truncate WAL: %v", err)
	}

	segments, _ := wal.getSortedSegments()
	if len(segments) != 1 { // Truncate creates a new empty segment
		t.Fatalf("expected 1 segment after truncate, got %d", len(segments))
	}
	info, _ := os.Stat(segments[0])
	if info.Size() != 0 {
		t.Errorf("expected new segment to be empty, size is %d", info.Size())
	}
	if wal.Size() != 0 {
		t.Errorf("expected WAL size 0 after truncate, got %d", wal.Size())
	}
}

func TestWAL_MaxTotalSize(t *testing.T) {
	wal := setupTestWAL(t, 100, 300) // Max total size is very small

	var err error
	for i := 0; i < 10; i++ {
		if err = wal.Write(context.Background(), testRecord("some data that will fill up the WAL")); err != nil {
			break
		}
	}

	if !errors.Is(err, ErrWALFull) {
		t.Fatalf("expected ErrWALFull when writing beyond max total size, got %v", err)
	}
}
