package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Shutdown releases process resources in reverse registration order, like deferred calls.
// Resources opened later (job queue, redis) are closed before the ones they were built on.
type Shutdown struct {
	mu      sync.Mutex
	hooks   []Hook
	started atomic.Bool
	once    sync.Once
	err     error
	log     *slog.Logger
}

// NewShutdown constructs a new Shutdown coordinator.
func NewShutdown(log *slog.Logger) *Shutdown {
	if log == nil {
		log = slog.Default()
	}

	return &Shutdown{log: log}
}

// Register adds a named hook. Nil hooks are ignored.
func (s *Shutdown) Register(name string, fn func(context.Context) error) {
	if fn == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.hooks = append(s.hooks, Hook{Name: name, Fn: fn})
}

// Started reports whether Execute has been called. Readiness turns false from that moment.
func (s *Shutdown) Started() bool {
	return s.started.Load()
}

// Execute runs the hooks once, newest first, and joins their errors.
// Later calls return the result of the first one.
func (s *Shutdown) Execute(ctx context.Context) error {
	s.once.Do(func() {
		s.started.Store(true)
		s.err = s.run(ctx)
	})
	return s.err
}

func (s *Shutdown) run(ctx context.Context) error {
	s.mu.Lock()
	hooks := make([]Hook, len(s.hooks))
	copy(hooks, s.hooks)
	s.mu.Unlock()

	start := time.Now()
	s.log.Info("shutdown sequence started", slog.Int("hook_count", len(hooks)))

	var errs []error
	for i := len(hooks) - 1; i >= 0; i-- {
		h := hooks[i]
		if ctx.Err() != nil {
			errs = append(errs, fmt.Errorf("%s: skipped: %w", h.Name, ctx.Err()))
			continue
		}

		hookStart := time.Now()
		if err := h.Fn(ctx); err != nil {
			s.log.Error("shutdown hook failed", slog.String("hook", h.Name), slog.Any("error", err))
			errs = append(errs, fmt.Errorf("%s: %w", h.Name, err))
			continue
		}
		s.log.Info("shutdown hook completed",
			slog.String("hook", h.Name),
			slog.Duration("took", time.Since(hookStart)),
		)
	}

	s.log.Info("shutdown sequence finished", slog.Duration("elapsed", time.Since(start)))
	return errors.Join(errs...)
}
