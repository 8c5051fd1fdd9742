package middleware

import (
	"context"
	"time"

	"github.com/Proton-105/promo-bot/internal/bot/handlers"
	"github.com/Proton-105/promo-bot/pkg/metrics"
)

// Metrics measures execution time and status of every update, reporting them to Prometheus.
func Metrics(next handlers.Handler) handlers.Handler {
	if next == nil {
		return nil
	}

	return func(ctx context.Context, req *handlers.Request) error {
		start := time.Now()
		err := next(ctx, req)

		status := "ok"
		if err != nil {
			status = "error"
		}

		metrics.RecordUpdate(actionName(req), status, time.Since(start))

		return err
	}
}

func actionName(req *handlers.Request) string {
	if req == nil || req.Action == "" {
		return "unknown"
	}
	return req.Action
}
