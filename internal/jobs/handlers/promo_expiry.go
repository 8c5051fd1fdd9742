// Package handlers contains the asynq task handlers.
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/Proton-105/promo-bot/internal/jobs"
)

// Expirer deactivates promos whose expiry has passed.
type Expirer interface {
	ExpireStale(ctx context.Context) (int64, error)
}

type PromoExpiryHandler struct {
	expirer Expirer
	log     *slog.Logger
}

func NewPromoExpiryHandler(expirer Expirer, log *slog.Logger) *PromoExpiryHandler {
	return &PromoExpiryHandler{expirer: expirer, log: log}
}

func (h *PromoExpiryHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload jobs.PromoExpirePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		h.log.ErrorContext(ctx, "promo expiry: failed to decode payload", slog.String("task_type", t.Type()), slog.Any("error", err))
		return fmt.Errorf("decode promo expiry payload: %w: %w", err, asynq.SkipRetry)
	}

	n, err := h.expirer.ExpireStale(ctx)
	if err != nil {
		return err
	}

	h.log.InfoContext(ctx, "promo expiry sweep finished",
		slog.Int64("deactivated", n),
		slog.String("source", payload.Source),
		slog.Time("requested_at", payload.RequestedAt),
	)
	return nil
}
