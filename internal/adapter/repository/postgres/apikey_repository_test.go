package postgres

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/V4T54L/ghostlog/internal/adapter/metrics"
)

func TestAPIKeyRepository_IsValid(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.NewIngestMetrics(prometheus.NewRegistry())

	lookups := 0
	var lookupErr error
	lookup := func(ctx context.Context, key string) (bool, error) {
		lookups++
		if lookupErr != nil {
			return false, lookupErr
		}
		return key == "good-key", nil
	}

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	repo := newAPIKeyRepository(lookup, logger, time.Minute, m)
	repo.now = func() time.Time { return now }
	ctx := context.Background()

	valid, err := repo.IsValid(ctx, "good-key")
	if err != nil || !valid {
		t.Fatalf("expected valid key, got %v, %v", valid, err)
	}
	valid, _ = repo.IsValid(ctx, "good-key")
	if !valid || lookups != 1 {
		t.Errorf("expected cached verdict without a second lookup, lookups=%d", lookups)
	}
	if got := testutil.ToFloat64(m.APIKeyCacheHits); got != 1 {
		t.Errorf("expected 1 cache hit, got %v", got)
	}

	valid, _ = repo.IsValid(ctx, "bad-key")
	if valid {
		t.Error("expected bad key to be rejected")
	}

	now = now.Add(2 * time.Minute)
	_, _ = repo.IsValid(ctx, "good-key")
	if lookups != 3 {
		t.Errorf("expected expired entry to trigger a lookup, lookups=%d", lookups)
	}

	lookupErr = errors.New("connection reset")
	if _, err := repo.IsValid(ctx, "other-key"); err == nil {
		t.Fatal("expected lookup error")
	}
	lookupErr = nil
	if valid, err := repo.IsValid(ctx, "other-key"); err != nil || valid {
		t.Errorf("expected errors not to be cached, got %v, %v", valid, err)
	}
}
