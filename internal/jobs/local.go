package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// LocalScheduler runs jobs in-process. It stands in for the asynq pair when Redis is disabled.
type LocalScheduler struct {
	scheduler gocron.Scheduler
	log       *slog.Logger
}

// NewLocalScheduler creates a UTC gocron scheduler.
func NewLocalScheduler(log *slog.Logger) (*LocalScheduler, error) {
	s, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, fmt.Errorf("create local scheduler: %w", err)
	}

	return &LocalScheduler{scheduler: s, log: log}, nil
}

// AddJob schedules fn on a five-field cron expression. fn receives a context that is
// cancelled when the scheduler shuts down.
func (s *LocalScheduler) AddJob(ctx context.Context, name, cronExpr string, fn func(context.Context) error) error {
	job, err := s.scheduler.NewJob(
		gocron.CronJob(cronExpr, false),
		gocron.NewTask(func() {
			if err := fn(ctx); err != nil {
				s.log.Error("local job failed", slog.String("job", name), slog.Any("error", err))
			}
		}),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("schedule job %s: %w", name, err)
	}

	attrs := []any{slog.String("job", name), slog.String("cron", cronExpr)}
	if next, err := job.NextRun(); err == nil {
		attrs = append(attrs, slog.Time("next_run", next))
	}
	s.log.Info("local job scheduled", attrs...)

	return nil
}

// Run starts the scheduler and blocks until ctx is cancelled.
func (s *LocalScheduler) Run(ctx context.Context) error {
	s.scheduler.Start()
	<-ctx.Done()

	if err := s.scheduler.Shutdown(); err != nil {
		return fmt.Errorf("shutdown local scheduler: %w", err)
	}
	return nil
}
