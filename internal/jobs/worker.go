package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
)

// Worker provides APIs to register handlers and control the background worker lifecycle.
type Worker interface {
	RegisterHandler(taskType string, handler asynq.Handler)
	Run(ctx context.Context) error
}

type worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	log    *slog.Logger
}

var _ Worker = (*worker)(nil)

// NewWorker constructs a Worker backed by an asynq.Server instance.
func NewWorker(redisOpt asynq.RedisConnOpt, concurrency int, log *slog.Logger) Worker {
	if concurrency <= 0 {
		concurrency = 2
	}

	server := asynq.NewServer(redisOpt, asynq.Config{
		Queues:      Queues(),
		Concurrency: concurrency,
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			log.ErrorContext(ctx, "jobs worker: task failed", slog.String("task_type", task.Type()), slog.Any("error", err))
		}),
	})

	return &worker{
		server: server,
		mux:    asynq.NewServeMux(),
		log:    log,
	}
}

// RegisterHandler wires a task type to the provided handler.
func (w *worker) RegisterHandler(taskType string, handler asynq.Handler) {
	w.mux.Handle(taskType, handler)
}

// Run processes tasks until ctx is cancelled.
func (w *worker) Run(ctx context.Context) error {
	w.log.InfoContext(ctx, "jobs worker: starting processing loop")

	if err := w.server.Start(w.mux); err != nil {
		return fmt.Errorf("start jobs worker: %w", err)
	}

	<-ctx.Done()

	w.log.Info("jobs worker: shutting down")
	w.server.Shutdown()
	return nil
}
