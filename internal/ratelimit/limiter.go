// Package ratelimit throttles bot updates per client and admin logins per IP.
package ratelimit

import (
	"context"
	"time"
)

// Result captures the outcome of a rate-limit evaluation.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// RetryAfter returns the whole seconds until the window frees up, at least 1.
func (r *Result) RetryAfter(now time.Time) int {
	if r == nil {
		return 1
	}
	secs := int(r.ResetAt.Sub(now).Seconds() + 0.999)
	if secs < 1 {
		return 1
	}
	return secs
}

// Limiter describes a rate-limiting strategy interface. Over-limit requests
// yield Allowed=false with a nil error; errors are reserved for backend failures.
type Limiter interface {
	Check(ctx context.Context, key string, limit int, window time.Duration) (*Result, error)
}
