// Package middleware holds the update pipeline middlewares shared by the bot.
package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Proton-105/promo-bot/internal/bot/handlers"
	"github.com/Proton-105/promo-bot/internal/idempotency"
)

// Idempotency drops redelivered updates so each update_id is handled at most once.
func Idempotency(manager idempotency.Manager, log *slog.Logger) handlers.Middleware {
	if manager == nil {
		return func(next handlers.Handler) handlers.Handler {
			return next
		}
	}
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(ctx context.Context, req *handlers.Request) error {
			key := extractIdempotencyKey(req)
			if key == "" {
				return next(ctx, req)
			}

			ran := false
			err := manager.Execute(ctx, key, func(execCtx context.Context) error {
				ran = true
				return next(execCtx, req)
			})

			switch {
			case errors.Is(err, idempotency.ErrDuplicate):
				log.Info("duplicate update skipped", slog.String("key", key))
				return nil
			case err != nil && !ran:
				log.Warn("idempotency store unavailable, handling update anyway", slog.String("key", key), slog.Any("error", err))
				return next(ctx, req)
			default:
				return err
			}
		}
	}
}

func extractIdempotencyKey(req *handlers.Request) string {
	if req == nil {
		return ""
	}

	if req.Update.ID != 0 {
		return fmt.Sprintf("update:%d", req.Update.ID)
	}

	if msg := req.Message; msg != nil && msg.ID != 0 {
		chatID := int64(0)
		if msg.Chat != nil {
			chatID = msg.Chat.ID
		}
		return fmt.Sprintf("msg:%d:%d", chatID, msg.ID)
	}

	return ""
}
