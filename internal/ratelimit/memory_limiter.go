package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type bucket struct {
	limiter  *rate.Limiter
	limit    int
	window   time.Duration
	lastSeen time.Time
}

// MemoryLimiter is an in-process token-bucket Limiter: a key may spend limit
// tokens at once and regains them evenly over window.
type MemoryLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	log     *slog.Logger
	now     func() time.Time
}

// NewMemoryLimiter returns an in-memory limiter implementation.
func NewMemoryLimiter(log *slog.Logger) *MemoryLimiter {
	if log == nil {
		log = slog.Default()
	}

	return &MemoryLimiter{
		buckets: make(map[string]*bucket),
		log:     log,
		now:     time.Now,
	}
}

// Check spends one token for key if one is available.
func (m *MemoryLimiter) Check(_ context.Context, key string, limit int, window time.Duration) (*Result, error) {
	now := m.now()

	if limit <= 0 || window <= 0 {
		return &Result{Allowed: false, Remaining: 0, ResetAt: now.Add(window)}, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	bkt := m.buckets[key]
	if bkt == nil || bkt.limit != limit || bkt.window != window {
		bkt = &bucket{
			limiter: rate.NewLimiter(rate.Every(window/time.Duration(limit)), limit),
			limit:   limit,
			window:  window,
		}
		m.buckets[key] = bkt
	}
	bkt.lastSeen = now

	allowed := bkt.limiter.AllowN(now, 1)

	tokens := bkt.limiter.TokensAt(now)
	remaining := int(tokens)
	if remaining < 0 {
		remaining = 0
	}

	resetAt := now
	if tokens < 1 {
		perToken := window / time.Duration(limit)
		resetAt = now.Add(time.Duration((1 - tokens) * float64(perToken)))
	}

	return &Result{
		Allowed:   allowed,
		Remaining: remaining,
		ResetAt:   resetAt,
	}, nil
}

// Cleanup removes buckets that have been inactive for more than maxAge.
func (m *MemoryLimiter) Cleanup(maxAge time.Duration) int {
	if maxAge <= 0 {
		return 0
	}

	cutoff := m.now().Add(-maxAge)

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, bkt := range m.buckets {
		if bkt.lastSeen.Before(cutoff) {
			delete(m.buckets, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked keys.
func (m *MemoryLimiter) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.buckets)
}
