// Package storage composes the durable buffer with the read-side index.
package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/V4T54L/ghostlog/internal/domain"
)

// IndexedStorage persists a record durably and then indexes it for the
// read API. A record is indexed only once the durable write succeeded.
type IndexedStorage struct {
	durable domain.Storage
	index   domain.LogRepository
	logger  *slog.Logger
}

func NewIndexedStorage(durable domain.Storage, index domain.LogRepository, logger *slog.Logger) *IndexedStorage {
	return &IndexedStorage{
		durable: durable,
		index:   index,
		logger:  logger.With("component", "indexed_storage"),
	}
}

func (s *IndexedStorage) Store(ctx context.Context, rec domain.Record) error {
	if err := s.durable.Store(ctx, rec); err != nil {
		return err
	}
	if err := s.index.Save(ctx, rec); err != nil {
		return fmt.Errorf("index record: %w", err)
	}
	s.logger.Debug("stored record", "record_id", rec.Meta().ID, "kind", rec.Kind(), "trace_id", rec.Meta().Trace.TraceID)
	return nil
}
