package logger

import (
	"context"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CorrelationIDHeader is echoed back on every HTTP response.
const CorrelationIDHeader = "X-Correlation-ID"

type correlationIDKey struct{}

// WithCorrelationID returns a copy of ctx carrying id.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey{}, id)
}

// NewCorrelationID returns a fresh random identifier.
func NewCorrelationID() string {
	return uuid.NewString()
}

// CorrelationIDFromContext returns the correlation identifier stored in ctx, or an empty string when absent.
func CorrelationIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(correlationIDKey{}).(string); ok {
		return id
	}

	return ""
}

// Middleware injects a correlation identifier into the request context, reusing the
// caller's X-Correlation-ID header when it is present.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		correlationID := c.GetHeader(CorrelationIDHeader)
		if correlationID == "" {
			correlationID = NewCorrelationID()
		}

		c.Request = c.Request.WithContext(WithCorrelationID(c.Request.Context(), correlationID))
		c.Header(CorrelationIDHeader, correlationID)
		c.Next()
	}
}

// RequestLogger logs method, path, status and latency of every HTTP request.
func RequestLogger(log *slog.Logger) gin.HandlerFunc {
	if log == nil {
		log = slog.Default()
	}

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.Int("status", status),
			slog.Duration("duration", time.Since(start)),
			slog.String("correlation_id", CorrelationIDFromContext(c.Request.Context())),
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, slog.String("errors", c.Errors.String()))
		}

		switch {
		case status >= 500:
			log.Error("handled http request", attrs...)
		case status >= 400:
			log.Warn("handled http request", attrs...)
		default:
			log.Info("handled http request", attrs...)
		}
	}
}
