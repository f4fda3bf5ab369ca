package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/V4T54L/ghostlog/internal/domain"
	"github.com/V4T54L/ghostlog/internal/domain/mocks"
)

func TestAdminStreamUseCase_Validation(t *testing.T) {
	ctx := context.Background()
	repo := &mocks.MockStreamAdminRepository{}
	uc := NewAdminStreamUseCase(repo)

	tests := []struct {
		name string
		call func() error
	}{
		{name: "blank group", call: func() error { _, err := uc.GetPendingSummary(ctx, "log_records", " "); return err }},
		{name: "blank claim consumer", call: func() error {
			_, err := uc.ClaimMessages(ctx, "log_records", "g", "", time.Minute, []string{"1-0"})
			return err
		}},
		{name: "claim without ids", call: func() error {
			_, err := uc.ClaimMessages(ctx, "log_records", "g", "c", time.Minute, nil)
			return err
		}},
		{name: "negative idle", call: func() error {
			_, err := uc.ClaimMessages(ctx, "log_records", "g", "c", -time.Second, []string{"1-0"})
			return err
		}},
		{name: "ack without ids", call: func() error { _, err := uc.AcknowledgeMessages(ctx, "log_records", "g"); return err }},
		{name: "non-positive maxlen", call: func() error { _, err := uc.TrimStream(ctx, "log_records_dlq", 0); return err }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.call(); !errors.Is(err, domain.ErrInvalidArgument) {
				t.Errorf("expected ErrInvalidArgument, got %v", err)
			}
		})
	}
	if repo.LastStream != "" {
		t.Errorf("expected no repository calls, got stream %q", repo.LastStream)
	}
}

func TestAdminStreamUseCase_PendingDefaults(t *testing.T) {
	repo := &mocks.MockStreamAdminRepository{}
	uc := NewAdminStreamUseCase(repo)

	if _, err := uc.GetPendingMessages(context.Background(), "log_records", "g", "", "", 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.LastStart != "-" || repo.LastCount != defaultPendingCount {
		t.Errorf("expected defaults start=- count=%d, got start=%q count=%d", defaultPendingCount, repo.LastStart, repo.LastCount)
	}
}

func TestAdminStreamUseCase_PassesThroughRepositoryErrors(t *testing.T) {
	boom := errors.New("redis down")
	uc := NewAdminStreamUseCase(&mocks.MockStreamAdminRepository{Err: boom})

	if _, err := uc.TrimStream(context.Background(), "log_records", 10); !errors.Is(err, boom) {
		t.Errorf("expected repository error, got %v", err)
	}
}

func TestAdminStreamUseCase_RequeueDeadLetters(t *testing.T) {
	tests := []struct {
		name      string
		count     int64
		wantCount int64
	}{
		{name: "explicit count", count: 5, wantCount: 5},
		{name: "zero uses default", count: 0, wantCount: defaultRequeueCount},
		{name: "negative uses default", count: -3, wantCount: defaultRequeueCount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mocks.MockStreamAdminRepository{Requeued: 2}
			moved, err := NewAdminStreamUseCase(repo).RequeueDeadLetters(context.Background(), tt.count)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if moved != 2 || repo.LastCount != tt.wantCount {
				t.Errorf("expected count %d and 2 moved, got count %d and %d moved", tt.wantCount, repo.LastCount, moved)
			}
		})
	}
}
