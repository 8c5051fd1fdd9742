package idempotency

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
)

// Store records which keys have been claimed and completed.
type Store interface {
	// Claim marks key as processing unless a record already exists and reports whether it did.
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Complete(ctx context.Context, key string, ttl time.Duration) error
	Status(ctx context.Context, key string) (string, error)
	Release(ctx context.Context, key string) error
}

type RedisStore struct {
	client redis.Cmdable
	log    *slog.Logger
}

func NewRedisStore(client redis.Cmdable, log *slog.Logger) Store {
	if log == nil {
		log = slog.Default()
	}

	return &RedisStore{
		client: client,
		log:    log,
	}
}

func (s *RedisStore) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	acquired, err := s.client.SetNX(ctx, recordKey(key), StatusProcessing, ttl).Result()
	if err != nil {
		s.log.Error("failed to claim idempotency key", slog.String("key", key), slog.Any("error", err))
		return false, err
	}

	return acquired, nil
}

func (s *RedisStore) Complete(ctx context.Context, key string, ttl time.Duration) error {
	if err := s.client.Set(ctx, recordKey(key), StatusCompleted, ttl).Err(); err != nil {
		s.log.Error("failed to store idempotency record", slog.String("key", key), slog.Any("error", err))
		return err
	}

	return nil
}

// Status returns the stored status, or "" when the key is unknown.
func (s *RedisStore) Status(ctx context.Context, key string) (string, error) {
	status, err := s.client.Get(ctx, recordKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		s.log.Error("failed to fetch idempotency record", slog.String("key", key), slog.Any("error", err))
		return "", err
	}

	return status, nil
}

func (s *RedisStore) Release(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, recordKey(key)).Err(); err != nil {
		s.log.Error("failed to release idempotency key", slog.String("key", key), slog.Any("error", err))
		return err
	}

	return nil
}

func recordKey(key string) string {
	return fmt.Sprintf("idempotency:%s", key)
}
