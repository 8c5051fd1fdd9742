package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
)

// Scheduler enqueues periodic tasks until its context is cancelled.
type Scheduler interface {
	RegisterTasks() error
	Run(ctx context.Context) error
}

type scheduler struct {
	asynqScheduler *asynq.Scheduler
	cronSpec       string
	log            *slog.Logger
}

func NewScheduler(redisOpt asynq.RedisConnOpt, cronSpec string, log *slog.Logger) Scheduler {
	if cronSpec == "" {
		cronSpec = DefaultExpiryCron
	}

	return &scheduler{
		asynqScheduler: asynq.NewScheduler(redisOpt, nil),
		cronSpec:       cronSpec,
		log:            log,
	}
}

func (s *scheduler) RegisterTasks() error {
	task, err := NewPromoExpireTask("scheduler")
	if err != nil {
		return err
	}

	if _, err := s.asynqScheduler.Register(s.cronSpec, task); err != nil {
		return fmt.Errorf("register promo expiry task: %w", err)
	}

	s.log.Info("scheduler: registered promo expiry task", slog.String("cron", s.cronSpec))
	return nil
}

func (s *scheduler) Run(ctx context.Context) error {
	s.log.InfoContext(ctx, "scheduler: starting")

	if err := s.asynqScheduler.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	<-ctx.Done()

	s.log.Info("scheduler: shutting down")
	s.asynqScheduler.Shutdown()
	return nil
}
