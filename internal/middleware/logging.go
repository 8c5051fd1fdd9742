package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/Proton-105/promo-bot/internal/bot/handlers"
	"github.com/Proton-105/promo-bot/pkg/logger"
)

// Logging logs every update together with its outcome and duration.
func Logging(log *slog.Logger) handlers.Middleware {
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(ctx context.Context, req *handlers.Request) error {
			start := time.Now()

			attrs := []any{
				slog.Int("update_id", req.Update.ID),
				slog.Int64("user_id", req.UserID()),
				slog.String("action", actionName(req)),
				slog.String("correlation_id", logger.CorrelationIDFromContext(ctx)),
			}
			if req.Message != nil && req.Message.Text != "" {
				attrs = append(attrs, slog.String("text", req.Message.Text))
			}

			log.Debug("handling update", attrs...)
			err := next(ctx, req)

			attrs = append(attrs, slog.Duration("duration", time.Since(start)))
			if err != nil {
				log.Warn("update handled with error", append(attrs, slog.Any("error", err))...)
				return err
			}

			log.Info("handled update", attrs...)
			return nil
		}
	}
}
