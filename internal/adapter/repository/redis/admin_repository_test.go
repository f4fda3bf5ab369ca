package redis

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/redis/go-redis/v9"

	"github.com/V4T54L/ghostlog/internal/domain"
)

func newTestAdmin(client *redis.Client) *AdminRepository {
	return NewAdminRepository(client, slog.New(slog.NewTextHandler(io.Discard, nil)), testDLQ)
}

func TestAdminRepository_PendingClaimAck(t *testing.T) {
	repo, _, client := setupRepo(t, nil, nil)
	admin := newTestAdmin(client)
	ctx := context.Background()

	for _, id := range []string{"r1", "r2", "r3"} {
		if err := repo.Store(ctx, record(id)); err != nil {
			t.Fatalf("Store(%s): %v", id, err)
		}
	}
	if _, err := repo.ReadBatch(ctx, testGroup, testConsumer, 10); err != nil {
		t.Fatalf("ReadBatch: %v", err)
	}

	summary, err := admin.GetPendingSummary(ctx, RecordStream, testGroup)
	if err != nil {
		t.Fatalf("GetPendingSummary: %v", err)
	}
	if summary.Total != 3 || summary.ConsumerTotals[testConsumer] != 3 {
		t.Errorf("unexpected summary %+v", summary)
	}

	pending, err := admin.GetPendingMessages(ctx, RecordStream, testGroup, "", "-", 10)
	if err != nil {
		t.Fatalf("GetPendingMessages: %v", err)
	}
	if len(pending) != 3 || pending[0].Consumer != testConsumer {
		t.Fatalf("unexpected pending messages %+v", pending)
	}

	claimed, err := admin.ClaimMessages(ctx, RecordStream, testGroup, "consumer-2", 0, []string{pending[0].ID})
	if err != nil {
		t.Fatalf("ClaimMessages: %v", err)
	}
	if len(claimed) != 1 || claimed[0].Record.Meta().ID != "r1" || claimed[0].StreamMessageID != pending[0].ID {
		t.Fatalf("unexpected claimed records %+v", claimed)
	}

	acked, err := admin.AcknowledgeMessages(ctx, RecordStream, testGroup, pending[0].ID, pending[1].ID)
	if err != nil {
		t.Fatalf("AcknowledgeMessages: %v", err)
	}
	if acked != 2 {
		t.Errorf("expected 2 acknowledged, got %d", acked)
	}

	summary, err = admin.GetPendingSummary(ctx, RecordStream, testGroup)
	if err != nil {
		t.Fatalf("GetPendingSummary: %v", err)
	}
	if summary.Total != 1 {
		t.Errorf("expected 1 pending after ack, got %d", summary.Total)
	}

	if _, err := admin.AcknowledgeMessages(ctx, RecordStream, testGroup); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument for empty id list, got %v", err)
	}
}

func TestAdminRepository_TrimStream(t *testing.T) {
	_, _, client := setupRepo(t, nil, nil)
	admin := newTestAdmin(client)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := client.XAdd(ctx, &redis.XAddArgs{Stream: testDLQ, Values: map[string]interface{}{"payload": "{}"}}).Err(); err != nil {
			t.Fatal(err)
		}
	}

	trimmed, err := admin.TrimStream(ctx, testDLQ, 2)
	if err != nil {
		t.Fatalf("TrimStream: %v", err)
	}
	if trimmed != 3 {
		t.Errorf("expected 3 trimmed, got %d", trimmed)
	}
	if n := client.XLen(ctx, testDLQ).Val(); n != 2 {
		t.Errorf("expected 2 entries left, got %d", n)
	}
}

func TestAdminRepository_RefusesOtherStreams(t *testing.T) {
	_, _, client := setupRepo(t, nil, nil)
	admin := newTestAdmin(client)
	ctx := context.Background()

	if err := client.XAdd(ctx, &redis.XAddArgs{Stream: "sessions", Values: map[string]interface{}{"k": "v"}}).Err(); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		call func() error
	}{
		{"groups", func() error { _, err := admin.GetGroupInfo(ctx, "sessions"); return err }},
		{"pending", func() error { _, err := admin.GetPendingSummary(ctx, "sessions", testGroup); return err }},
		{"claim", func() error {
			_, err := admin.ClaimMessages(ctx, "sessions", testGroup, "c", 0, []string{"0-1"})
			return err
		}},
		{"ack", func() error { _, err := admin.AcknowledgeMessages(ctx, "sessions", testGroup, "0-1"); return err }},
		{"trim", func() error { _, err := admin.TrimStream(ctx, "sessions", 0); return err }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.call(); !errors.Is(err, domain.ErrInvalidArgument) {
				t.Errorf("expected ErrInvalidArgument, got %v", err)
			}
		})
	}
	if n := client.XLen(ctx, "sessions").Val(); n != 1 {
		t.Errorf("expected foreign stream untouched, got %d entries", n)
	}
}

func TestAdminRepository_UnknownGroupIsNotFound(t *testing.T) {
	repo, _, client := setupRepo(t, nil, nil)
	admin := newTestAdmin(client)
	ctx := context.Background()

	if err := repo.Store(ctx, record("r1")); err != nil {
		t.Fatalf("Store: %v", err)
	}

	_, err := admin.GetPendingSummary(ctx, RecordStream, "no-such-group")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestAdminRepository_RequeueDeadLetters(t *testing.T) {
	repo, _, client := setupRepo(t, nil, nil)
	admin := newTestAdmin(client)
	ctx := context.Background()

	if err := repo.MoveToDLQ(ctx, []domain.BufferedRecord{
		{StreamMessageID: "1-0", Record: record("r1")},
		{StreamMessageID: "2-0", Record: record("r2")},
		{StreamMessageID: "3-0", Record: record("r3")},
	}); err != nil {
		t.Fatalf("MoveToDLQ: %v", err)
	}
	if err := client.XAdd(ctx, &redis.XAddArgs{Stream: testDLQ, Values: map[string]interface{}{"payload": "not json"}}).Err(); err != nil {
		t.Fatal(err)
	}

	moved, err := admin.RequeueDeadLetters(ctx, 2)
	if err != nil {
		t.Fatalf("RequeueDeadLetters: %v", err)
	}
	if moved != 2 {
		t.Fatalf("expected 2 requeued, got %d", moved)
	}

	msgs, err := client.XRange(ctx, RecordStream, "-", "+").Result()
	if err != nil {
		t.Fatal(err)
	}
	got := decodeMessages(slog.New(slog.NewTextHandler(io.Discard, nil)), msgs)
	if len(got) != 2 || got[0].Record.Meta().ID != "r1" || got[1].Record.Meta().ID != "r2" {
		t.Errorf("unexpected records on the buffer stream: %+v", got)
	}

	// The rest, including the undecodable entry, is requested but only r3 moves.
	moved, err = admin.RequeueDeadLetters(ctx, 10)
	if err != nil {
		t.Fatalf("RequeueDeadLetters: %v", err)
	}
	if moved != 1 {
		t.Errorf("expected 1 requeued, got %d", moved)
	}
	if n := client.XLen(ctx, testDLQ).Val(); n != 1 {
		t.Errorf("expected only the undecodable entry left in the DLQ, got %d", n)
	}
}
