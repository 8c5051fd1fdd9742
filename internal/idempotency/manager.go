package idempotency

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// ErrDuplicate is returned by Execute when key was already claimed.
var ErrDuplicate = errors.New("duplicate request")

const processingTTL = 5 * time.Minute

type Operation func(ctx context.Context) error

// Manager runs an operation at most once per key within the retention window.
type Manager interface {
	Execute(ctx context.Context, key string, fn Operation) error
}

type manager struct {
	store     Store
	log       *slog.Logger
	retention time.Duration
}

// NewManager creates a Manager that remembers completed keys for retention.
func NewManager(store Store, log *slog.Logger, retention time.Duration) Manager {
	if log == nil {
		log = slog.Default()
	}
	if retention <= 0 {
		retention = 24 * time.Hour
	}

	return &manager{
		store:     store,
		log:       log,
		retention: retention,
	}
}

// Execute claims key and runs fn. A key that is already claimed or completed yields ErrDuplicate
// without running fn. If fn fails or panics the claim is released so a redelivery is processed again.
func (m *manager) Execute(ctx context.Context, key string, fn Operation) (err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if fn == nil {
		return errors.New("operation fn cannot be nil")
	}

	claimed, err := m.store.Claim(ctx, key, processingTTL)
	if err != nil {
		return err
	}

	if !claimed {
		status, statusErr := m.store.Status(ctx, key)
		if statusErr != nil {
			return statusErr
		}
		m.log.Info("skipping duplicate request", slog.String("key", key), slog.String("status", status))
		return ErrDuplicate
	}

	completed := false
	defer func() {
		if completed {
			return
		}
		if releaseErr := m.store.Release(context.WithoutCancel(ctx), key); releaseErr != nil {
			m.log.Warn("failed to release idempotency claim", slog.String("key", key), slog.Any("error", releaseErr))
		}
	}()

	if err := fn(ctx); err != nil {
		return err
	}

	completed = true
	if err := m.store.Complete(ctx, key, m.retention); err != nil {
		m.log.Warn("failed to mark request completed", slog.String("key", key), slog.Any("error", err))
	}

	return nil
}
