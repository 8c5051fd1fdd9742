package middleware

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Proton-105/promo-bot/internal/bot/handlers"
	"github.com/Proton-105/promo-bot/internal/ratelimit"
)

// RateLimitMiddleware enforces per-client rate limits for incoming Telegram updates.
type RateLimitMiddleware struct {
	limiter ratelimit.Limiter
	rules   *ratelimit.Rules
	log     *slog.Logger
}

// NewRateLimitMiddleware constructs a rate-limit middleware component.
func NewRateLimitMiddleware(limiter ratelimit.Limiter, rules *ratelimit.Rules, log *slog.Logger) *RateLimitMiddleware {
	if log == nil {
		log = slog.Default()
	}

	return &RateLimitMiddleware{
		limiter: limiter,
		rules:   rules,
		log:     log,
	}
}

// Handle drops updates of clients over their limit without replying.
func (m *RateLimitMiddleware) Handle(next handlers.Handler) handlers.Handler {
	return func(ctx context.Context, req *handlers.Request) error {
		if m.limiter == nil || !m.rules.Enabled() {
			return next(ctx, req)
		}

		userID := req.UserID()
		if userID == 0 || m.rules.IsWhitelisted(userID) {
			return next(ctx, req)
		}

		limit, window, err := m.rules.GetPerClientLimit()
		if err != nil {
			m.log.Error("failed to load per-client rate limit", slog.Int64("user_id", userID), slog.Any("error", err))
			return next(ctx, req)
		}

		key := fmt.Sprintf("client:%d", userID)
		result, err := m.limiter.Check(ctx, key, limit, window)
		if err != nil {
			m.log.Warn("rate limiter error", slog.Int64("user_id", userID), slog.Any("error", err))
			return next(ctx, req)
		}

		if !result.Allowed {
			m.log.Warn("rate limit exceeded, update dropped",
				slog.Int64("user_id", userID),
				slog.Time("reset_at", result.ResetAt),
			)
			return nil
		}

		return next(ctx, req)
	}
}
