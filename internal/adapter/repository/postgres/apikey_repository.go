package postgres

import (
	"context"
	"database/sql"
	"log/slog"
	"sync"
	"time"

	"github.com/V4T54L/ghostlog/internal/adapter/metrics"
)

const apiKeyQuery = `SELECT EXISTS(SELECT 1 FROM api_keys WHERE key = $1 AND is_active = true AND (expires_at IS NULL OR expires_at > NOW()))`

type cacheEntry struct {
	isValid   bool
	expiresAt time.Time
}

// APIKeyRepository validates ingest API keys against PostgreSQL, caching
// each verdict for a fixed TTL.
type APIKeyRepository struct {
	lookup   func(ctx context.Context, key string) (bool, error)
	logger   *slog.Logger
	metrics  *metrics.IngestMetrics
	cacheTTL time.Duration
	now      func() time.Time

	mu    sync.RWMutex
	cache map[string]cacheEntry
}

// NewAPIKeyRepository creates a new instance of the PostgreSQL API key repository.
func NewAPIKeyRepository(db *sql.DB, logger *slog.Logger, cacheTTL time.Duration, m *metrics.IngestMetrics) *APIKeyRepository {
	lookup := func(ctx context.Context, key string) (bool, error) {
		var isValid bool
		err := db.QueryRowContext(ctx, apiKeyQuery, key).Scan(&isValid)
		return isValid, err
	}
	return newAPIKeyRepository(lookup, logger, cacheTTL, m)
}

func newAPIKeyRepository(lookup func(context.Context, string) (bool, error), logger *slog.Logger, cacheTTL time.Duration, m *metrics.IngestMetrics) *APIKeyRepository {
	return &APIKeyRepository{
		lookup:   lookup,
		logger:   logger.With("component", "apikey_repository"),
		metrics:  m,
		cacheTTL: cacheTTL,
		now:      time.Now,
		cache:    make(map[string]cacheEntry),
	}
}

// IsValid reports whether key is an active API key. Lookup errors are not cached.
func (r *APIKeyRepository) IsValid(ctx context.Context, key string) (bool, error) {
	if valid, ok := r.cached(key); ok {
		r.metrics.CacheHit()
		return valid, nil
	}
	r.metrics.CacheMiss()

	r.mu.Lock()
	defer r.mu.Unlock()

	// Another request may have filled the entry while we waited for the lock.
	if entry, found := r.cache[key]; found && r.now().Before(entry.expiresAt) {
		return entry.isValid, nil
	}

	isValid, err := r.lookup(ctx, key)
	if err != nil {
		r.logger.Error("failed to validate API key in database", "error", err)
		return false, err
	}

	r.cache[key] = cacheEntry{isValid: isValid, expiresAt: r.now().Add(r.cacheTTL)}
	return isValid, nil
}

func (r *APIKeyRepository) cached(key string) (bool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, found := r.cache[key]
	if !found || !r.now().Before(entry.expiresAt) {
		return false, false
	}
	return entry.isValid, true
}
