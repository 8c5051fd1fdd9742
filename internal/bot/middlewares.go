package bot

import (
	"context"
	"errors"
	"log/slog"
	"runtime/debug"
	"strconv"

	"github.com/Proton-105/promo-bot/internal/bot/handlers"
	"github.com/Proton-105/promo-bot/internal/clientlock"
	apperrors "github.com/Proton-105/promo-bot/internal/errors"
)

// RecoveryMiddleware turns a panic into a reported critical AppError, which the webhook answers with 500.
func RecoveryMiddleware(log *slog.Logger, errHandler *apperrors.Handler) handlers.Middleware {
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(ctx context.Context, req *handlers.Request) (err error) {
			defer func() {
				if r := recover(); r != nil {
					log.Error("panic recovered in update handler",
						slog.Any("panic", r),
						slog.String("stack", string(debug.Stack())),
					)

					appErr := apperrors.NewPanicError(r)
					errHandler.Handle(ctx, appErr)
					err = appErr
				}
			}()

			return next(ctx, req)
		}
	}
}

// ClientLockMiddleware serializes updates of the same client. A nil locker disables it.
func ClientLockMiddleware(locker clientlock.Locker, log *slog.Logger) handlers.Middleware {
	if locker == nil {
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
			userID := req.UserID()
			if userID == 0 {
				return next(ctx, req)
			}

			unlock, err := locker.Lock(ctx, strconv.FormatInt(userID, 10))
			if err != nil {
				if errors.Is(err, clientlock.ErrLockTimeout) {
					log.Warn("client lock wait timed out, handling update unserialized", slog.Int64("user_id", userID))
				} else {
					log.Error("failed to acquire client lock", slog.Int64("user_id", userID), slog.Any("error", err))
				}
				return next(ctx, req)
			}
			defer unlock()

			return next(ctx, req)
		}
	}
}

// IsPanic reports whether err came from a recovered panic.
func IsPanic(err error) bool {
	appErr, ok := apperrors.As(err)
	return ok && appErr.Code == apperrors.CodePanic
}
