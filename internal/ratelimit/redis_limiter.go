package ratelimit

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "promo-bot:ratelimit:"

var errNoRedis = errors.New("ratelimit: redis client is not configured")

// RedisLimiter keeps a sliding window per key in a Redis sorted set scored by
// unix milliseconds. Every attempt is recorded, rejected ones included, so a
// client hammering the bot stays blocked until it backs off for a full window.
type RedisLimiter struct {
	client redis.Cmdable
	log    *slog.Logger
	now    func() time.Time
}

var _ Limiter = (*RedisLimiter)(nil)

func NewRedisLimiter(client redis.Cmdable, log *slog.Logger) *RedisLimiter {
	if log == nil {
		log = slog.Default()
	}

	return &RedisLimiter{client: client, log: log, now: time.Now}
}

// Check records an attempt for key and reports whether it fits in limit per window.
// ResetAt is when the oldest attempt still in the window falls out of it.
func (l *RedisLimiter) Check(ctx context.Context, key string, limit int, window time.Duration) (*Result, error) {
	if l.client == nil {
		return nil, errNoRedis
	}

	now := l.now()
	if limit <= 0 {
		return &Result{ResetAt: now.Add(window)}, nil
	}

	redisKey := redisKeyPrefix + key
	nowMs := now.UnixMilli()
	cutoff := now.Add(-window).UnixMilli()

	pipe := l.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "-inf", "("+strconv.FormatInt(cutoff, 10))
	pipe.ZAdd(ctx, redisKey, redis.Z{Score: float64(nowMs), Member: uuid.NewString()})
	countCmd := pipe.ZCard(ctx, redisKey)
	oldestCmd := pipe.ZRangeWithScores(ctx, redisKey, 0, 0)
	pipe.PExpire(ctx, redisKey, window)

	if _, err := pipe.Exec(ctx); err != nil {
		l.log.Error("rate limiter pipeline failed", slog.String("key", key), slog.Any("error", err))
		return nil, err
	}

	count := countCmd.Val()
	resetAt := now.Add(window)
	if oldest := oldestCmd.Val(); len(oldest) == 1 {
		resetAt = time.UnixMilli(int64(oldest[0].Score)).Add(window)
	}

	remaining := limit - int(count)
	if remaining < 0 {
		remaining = 0
	}

	return &Result{
		Allowed:   count <= int64(limit),
		Remaining: remaining,
		ResetAt:   resetAt,
	}, nil
}
