package ratelimit

import (
	"fmt"
	"sync"
	"time"
)

// Limiter is a non-blocking admission controller over a sliding window.
// Any window of length period contains at most limit admissions.
type Limiter struct {
	mu     sync.Mutex
	period time.Duration
	// admitted holds the last limit admission times as a ring; next is the
	// oldest entry and the slot the next admission overwrites.
	admitted []time.Time
	next     int
	now      func() time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock overrides the time source used for admission decisions.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

// NewLimiter creates a Limiter admitting limit calls every period.
func NewLimiter(limit int, period time.Duration, opts ...Option) (*Limiter, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("rate limit must be positive, got %d", limit)
	}
	if period <= 0 {
		return nil, fmt.Errorf("rate limit period must be positive, got %s", period)
	}

	l := &Limiter{
		period:   period,
		admitted: make([]time.Time, limit),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// TryAdmit admits the call if fewer than limit calls were admitted during
// the last period. It never blocks and records nothing when it returns
// false. Safe for concurrent use.
func (l *Limiter) TryAdmit() bool {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	oldest := l.admitted[l.next]
	if !oldest.IsZero() && now.Sub(oldest) < l.period {
		return false
	}
	l.admitted[l.next] = now
	l.next = (l.next + 1) % len(l.admitted)
	return true
}
