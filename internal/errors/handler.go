package errors

import (
	"context"
	"log/slog"

	"github.com/getsentry/sentry-go"

	"github.com/Proton-105/promo-bot/pkg/logger"
	"github.com/Proton-105/promo-bot/pkg/metrics"
)

// Handler reports errors: it logs them, counts them and forwards severe ones to Sentry.
type Handler struct {
	log           *slog.Logger
	sentryEnabled bool
}

func NewHandler(log *slog.Logger, sentryEnabled bool) *Handler {
	return &Handler{
		log:           log,
		sentryEnabled: sentryEnabled,
	}
}

// Handle reports err and returns its severity. Plain errors are treated as high severity.
func (h *Handler) Handle(ctx context.Context, err error) Severity {
	if err == nil {
		return ""
	}

	if ctx == nil {
		ctx = context.Background()
	}

	log := slog.Default()
	if h != nil && h.log != nil {
		log = h.log
	}

	attrs := []slog.Attr{slog.String("message", err.Error())}
	if correlationID := logger.CorrelationIDFromContext(ctx); correlationID != "" {
		attrs = append(attrs, slog.String("correlation_id", correlationID))
	}

	severity := SeverityHigh
	errType := "unknown"

	if appErr, ok := As(err); ok {
		severity = appErr.Severity
		errType = appErr.Type()
		attrs = append(attrs,
			slog.String("code", appErr.Code),
			slog.String("severity", string(appErr.Severity)),
			slog.Bool("retryable", appErr.Retryable),
		)
		log.LogAttrs(ctx, slog.LevelError, "application error", attrs...)
	} else {
		attrs = append(attrs, slog.String("severity", string(severity)))
		log.LogAttrs(ctx, slog.LevelError, "unknown error", attrs...)
	}

	metrics.RecordError(errType, string(severity))

	if h != nil && h.sentryEnabled && (severity == SeverityCritical || severity == SeverityHigh) {
		h.sendToSentry(ctx, err)
	}

	return severity
}

func (h *Handler) sendToSentry(ctx context.Context, err error) {
	if err == nil {
		return
	}

	sentry.WithScope(func(scope *sentry.Scope) {
		if appErr, ok := As(err); ok {
			if appErr.Code != "" {
				scope.SetTag("code", appErr.Code)
			}

			if appErr.Severity != "" {
				scope.SetTag("severity", string(appErr.Severity))
			}
		}

		if correlationID := logger.CorrelationIDFromContext(ctx); correlationID != "" {
			scope.SetTag("correlation_id", correlationID)
		}

		sentry.CaptureException(err)
	})
}
