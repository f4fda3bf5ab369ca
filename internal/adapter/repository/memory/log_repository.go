package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/V4T54L/ghostlog/internal/domain"
)

// LogRepository is an in-process keyed store of records used by the read
// API. Saves are last-write-wins per record id.
type LogRepository struct {
	mu      sync.RWMutex
	records map[string]domain.Record
}

// NewLogRepository creates an empty LogRepository.
func NewLogRepository() *LogRepository {
	return &LogRepository{records: make(map[string]domain.Record)}
}

func (r *LogRepository) Save(ctx context.Context, rec domain.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[rec.Meta().ID] = rec
	return nil
}

func (r *LogRepository) FindByID(ctx context.Context, id string) (domain.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return rec, nil
}

// FindAll returns every record ordered by timestamp, then id.
func (r *LogRepository) FindAll(ctx context.Context) ([]domain.Record, error) {
	return r.filter(func(domain.Record) bool { return true }), nil
}

func (r *LogRepository) FindBySource(ctx context.Context, source string) ([]domain.Record, error) {
	return r.filter(func(rec domain.Record) bool { return rec.Meta().Source == source }), nil
}

// DeleteByID removes a record. Deleting an unknown id is not an error.
func (r *LogRepository) DeleteByID(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.records, id)
	return nil
}

func (r *LogRepository) filter(keep func(domain.Record) bool) []domain.Record {
	r.mu.RLock()
	out := make([]domain.Record, 0, len(r.records))
	for _, rec := range r.records {
		if keep(rec) {
			out = append(out, rec)
		}
	}
	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b domain.Record) int {
		ma, mb := a.Meta(), b.Meta()
		if c := ma.Timestamp.Compare(mb.Timestamp); c != 0 {
			return c
		}
		switch {
		case ma.ID < mb.ID:
			return -1
		case ma.ID > mb.ID:
			return 1
		}
		return 0
	})
	return out
}
