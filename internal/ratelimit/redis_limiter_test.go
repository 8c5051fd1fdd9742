package ratelimit

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRedisLimiter(t *testing.T) (*RedisLimiter, *miniredis.Miniredis, *time.Time) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	limiter := NewRedisLimiter(client, testLogger())
	limiter.now = func() time.Time { return now }

	return limiter, mr, &now
}

func TestRedisLimiter_CountsEveryAttempt(t *testing.T) {
	limiter, mr, now := newTestRedisLimiter(t)
	ctx := context.Background()

	var allowed []bool
	for i := 0; i < 4; i++ {
		res, err := limiter.Check(ctx, "client:42", 2, time.Minute)
		require.NoError(t, err)
		allowed = append(allowed, res.Allowed)
	}
	assert.Equal(t, []bool{true, true, false, false}, allowed)

	members, err := mr.ZMembers(redisKeyPrefix + "client:42")
	require.NoError(t, err)
	assert.Len(t, members, 4)

	// rejected attempts keep the window full
	*now = now.Add(30 * time.Second)
	res, err := limiter.Check(ctx, "client:42", 2, time.Minute)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 0, res.Remaining)
}

func TestRedisLimiter_WindowSlides(t *testing.T) {
	limiter, _, now := newTestRedisLimiter(t)
	ctx := context.Background()
	start := *now

	for i := 0; i < 2; i++ {
		res, err := limiter.Check(ctx, "login:10.0.0.1", 2, time.Minute)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
	}

	res, err := limiter.Check(ctx, "login:10.0.0.1", 2, time.Minute)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, start.Add(time.Minute), res.ResetAt)
	assert.Equal(t, 60, res.RetryAfter(start))

	*now = start.Add(61 * time.Second)
	res, err = limiter.Check(ctx, "login:10.0.0.1", 2, time.Minute)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, 1, res.Remaining)
}

func TestRedisLimiter_KeysAreIndependent(t *testing.T) {
	limiter, _, _ := newTestRedisLimiter(t)
	ctx := context.Background()

	res, err := limiter.Check(ctx, "client:1", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	res, err = limiter.Check(ctx, "client:2", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestRedisLimiter_Errors(t *testing.T) {
	_, err := NewRedisLimiter(nil, testLogger()).Check(context.Background(), "k", 1, time.Minute)
	assert.ErrorIs(t, err, errNoRedis)

	limiter, mr, _ := newTestRedisLimiter(t)
	mr.Close()
	_, err = limiter.Check(context.Background(), "k", 1, time.Minute)
	assert.Error(t, err)
}
