package ratelimit

import (
	"context"
	"log/slog"
	"time"
)

// Cleaner periodically drops idle in-memory buckets so one-off clients do not accumulate.
type Cleaner struct {
	limiter  *MemoryLimiter
	log      *slog.Logger
	interval time.Duration
	maxAge   time.Duration
}

// NewCleaner constructs a Cleaner instance.
func NewCleaner(limiter *MemoryLimiter, log *slog.Logger, interval, maxAge time.Duration) *Cleaner {
	if log == nil {
		log = slog.Default()
	}

	return &Cleaner{
		limiter:  limiter,
		log:      log,
		interval: interval,
		maxAge:   maxAge,
	}
}

// Run starts the cleaner loop until the context is cancelled.
func (c *Cleaner) Run(ctx context.Context) error {
	if c.limiter == nil || c.interval <= 0 {
		return nil
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if removed := c.limiter.Cleanup(c.maxAge); removed > 0 {
				c.log.Debug("rate limit buckets cleaned", slog.Int("removed", removed))
			}
		}
	}
}
