package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/V4T54L/ghostlog/internal/domain"
)

// QueryLogsUseCase serves the read side of indexed records.
type QueryLogsUseCase struct {
	repo   domain.LogRepository
	logger *slog.Logger
}

func NewQueryLogsUseCase(repo domain.LogRepository, logger *slog.Logger) *QueryLogsUseCase {
	return &QueryLogsUseCase{repo: repo, logger: logger.With("component", "log_query")}
}

// Get returns the record with the given id or domain.ErrNotFound.
func (uc *QueryLogsUseCase) Get(ctx context.Context, id string) (domain.Record, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: id cannot be blank", domain.ErrInvalidArgument)
	}
	return uc.repo.FindByID(ctx, id)
}

func (uc *QueryLogsUseCase) List(ctx context.Context) ([]domain.Record, error) {
	return uc.repo.FindAll(ctx)
}

// ListBySource returns records emitted by source. A blank source is rejected.
func (uc *QueryLogsUseCase) ListBySource(ctx context.Context, source string) ([]domain.Record, error) {
	if strings.TrimSpace(source) == "" {
		return nil, fmt.Errorf("%w: source cannot be blank", domain.ErrInvalidArgument)
	}
	return uc.repo.FindBySource(ctx, source)
}

func (uc *QueryLogsUseCase) Delete(ctx context.Context, id string) error {
	if err := uc.repo.DeleteByID(ctx, id); err != nil {
		return err
	}
	uc.logger.Info("deleted record", "record_id", id)
	return nil
}
