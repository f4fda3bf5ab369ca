package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/V4T54L/ghostlog/internal/domain"
)

const (
	defaultPendingCount = 100
	defaultRequeueCount = 100
)

// AdminStreamUseCase inspects and repairs the record buffer and its
// dead-letter stream. The repository decides which streams are addressable.
type AdminStreamUseCase struct {
	repo domain.StreamAdminRepository
}

// NewAdminStreamUseCase creates a new AdminStreamUseCase.
func NewAdminStreamUseCase(repo domain.StreamAdminRepository) *AdminStreamUseCase {
	return &AdminStreamUseCase{repo: repo}
}

func (uc *AdminStreamUseCase) GetGroupInfo(ctx context.Context, stream string) ([]domain.ConsumerGroupInfo, error) {
	return uc.repo.GetGroupInfo(ctx, stream)
}

func (uc *AdminStreamUseCase) GetConsumerInfo(ctx context.Context, stream, group string) ([]domain.ConsumerInfo, error) {
	if err := checkGroup(group); err != nil {
		return nil, err
	}
	return uc.repo.GetConsumerInfo(ctx, stream, group)
}

func (uc *AdminStreamUseCase) GetPendingSummary(ctx context.Context, stream, group string) (*domain.PendingMessageSummary, error) {
	if err := checkGroup(group); err != nil {
		return nil, err
	}
	return uc.repo.GetPendingSummary(ctx, stream, group)
}

func (uc *AdminStreamUseCase) GetPendingMessages(ctx context.Context, stream, group, consumer, startID string, count int64) ([]domain.PendingMessageDetail, error) {
	if err := checkGroup(group); err != nil {
		return nil, err
	}
	if startID == "" {
		startID = "-"
	}
	if count <= 0 {
		count = defaultPendingCount
	}
	return uc.repo.GetPendingMessages(ctx, stream, group, consumer, startID, count)
}

// ClaimMessages moves stuck messages to consumer, typically a healthy
// replacement for a consumer that died holding them.
func (uc *AdminStreamUseCase) ClaimMessages(ctx context.Context, stream, group, consumer string, minIdleTime time.Duration, messageIDs []string) ([]domain.BufferedRecord, error) {
	if err := checkGroup(group); err != nil {
		return nil, err
	}
	if strings.TrimSpace(consumer) == "" {
		return nil, fmt.Errorf("%w: consumer cannot be blank", domain.ErrInvalidArgument)
	}
	if len(messageIDs) == 0 {
		return nil, fmt.Errorf("%w: message_ids cannot be empty", domain.ErrInvalidArgument)
	}
	if minIdleTime < 0 {
		return nil, fmt.Errorf("%w: min_idle_time cannot be negative", domain.ErrInvalidArgument)
	}
	return uc.repo.ClaimMessages(ctx, stream, group, consumer, minIdleTime, messageIDs)
}

func (uc *AdminStreamUseCase) AcknowledgeMessages(ctx context.Context, stream, group string, messageIDs ...string) (int64, error) {
	if err := checkGroup(group); err != nil {
		return 0, err
	}
	if len(messageIDs) == 0 {
		return 0, fmt.Errorf("%w: message_ids cannot be empty", domain.ErrInvalidArgument)
	}
	return uc.repo.AcknowledgeMessages(ctx, stream, group, messageIDs...)
}

func (uc *AdminStreamUseCase) TrimStream(ctx context.Context, stream string, maxLen int64) (int64, error) {
	if maxLen <= 0 {
		return 0, fmt.Errorf("%w: maxlen must be a positive integer", domain.ErrInvalidArgument)
	}
	return uc.repo.TrimStream(ctx, stream, maxLen)
}

// RequeueDeadLetters returns up to count dead-lettered records to the
// buffer for another delivery attempt. A non-positive count means the
// default of 100.
func (uc *AdminStreamUseCase) RequeueDeadLetters(ctx context.Context, count int64) (int64, error) {
	if count <= 0 {
		count = defaultRequeueCount
	}
	return uc.repo.RequeueDeadLetters(ctx, count)
}

func checkGroup(group string) error {
	if strings.TrimSpace(group) == "" {
		return fmt.Errorf("%w: group cannot be blank", domain.ErrInvalidArgument)
	}
	return nil
}
