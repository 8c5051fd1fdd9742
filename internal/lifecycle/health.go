package lifecycle

import (
	"context"
	"errors"
	"log/slog"

	"github.com/Proton-105/promo-bot/internal/health"
)

// ErrNotReady is returned by Readiness while a dependency is failing or shutdown has begun.
var ErrNotReady = errors.New("service not ready")

// HealthChecker exposes liveness and readiness probes.
type HealthChecker interface {
	Liveness(ctx context.Context) error
	Readiness(ctx context.Context) (map[string]string, error)
}

// Probes answers liveness from the process itself and readiness from the component checks.
type Probes struct {
	checker  *health.Checker
	shutdown *Shutdown
	log      *slog.Logger
}

// NewProbes creates a new Probes instance. shutdown may be nil.
func NewProbes(checker *health.Checker, shutdown *Shutdown, log *slog.Logger) *Probes {
	if log == nil {
		log = slog.Default()
	}
	return &Probes{checker: checker, shutdown: shutdown, log: log}
}

// Liveness reports success while the process can serve requests.
func (p *Probes) Liveness(ctx context.Context) error {
	p.log.Debug("liveness probe called")
	return nil
}

// Readiness runs every component check.
func (p *Probes) Readiness(ctx context.Context) (map[string]string, error) {
	if p.shutdown != nil && p.shutdown.Started() {
		return map[string]string{"shutdown": "in progress"}, ErrNotReady
	}
	if p.checker == nil {
		return map[string]string{}, nil
	}

	results, healthy := p.checker.Check(ctx)
	if !healthy {
		return results, ErrNotReady
	}
	return results, nil
}
