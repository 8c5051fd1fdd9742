package clientlock

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

const lockKeyPattern = "client:lock:%s"

var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker serializes callers across processes with SET NX and a per-holder token.
type RedisLocker struct {
	client goredis.Cmdable
	log    *slog.Logger
	ttl    time.Duration
	wait   time.Duration
	poll   time.Duration
}

// NewRedisLocker creates a distributed locker. The lock TTL bounds how long a crashed holder blocks others.
func NewRedisLocker(client goredis.Cmdable, log *slog.Logger, ttl, wait time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if wait <= 0 {
		wait = defaultWait
	}
	return &RedisLocker{
		client: client,
		log:    log,
		ttl:    ttl,
		wait:   wait,
		poll:   25 * time.Millisecond,
	}
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := fmt.Sprintf(lockKeyPattern, key)
	token := uuid.NewString()

	deadline := time.NewTimer(l.wait)
	defer deadline.Stop()

	ticker := time.NewTicker(l.poll)
	defer ticker.Stop()

	for {
		acquired, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			l.log.Error("failed to acquire client lock", slog.String("key", key), slog.Any("error", err))
			return nil, fmt.Errorf("acquire client lock: %w", err)
		}
		if acquired {
			return func() { l.unlock(redisKey, token) }, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			l.log.Warn("client lock already held", slog.String("key", key))
			return nil, ErrLockTimeout
		case <-ticker.C:
		}
	}
}

func (l *RedisLocker) unlock(redisKey, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := releaseScript.Run(ctx, l.client, []string{redisKey}, token).Err(); err != nil {
		l.log.Error("failed to release client lock", slog.String("key", redisKey), slog.Any("error", err))
	}
}
