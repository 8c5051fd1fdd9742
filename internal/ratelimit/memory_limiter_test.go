package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/promo-bot/pkg/config"
)

func newClockedLimiter(start time.Time) (*MemoryLimiter, *time.Time) {
	clock := start
	l := NewMemoryLimiter(testLogger())
	l.now = func() time.Time { return clock }
	return l, &clock
}

func TestMemoryLimiter_BurstThenRefill(t *testing.T) {
	l, clock := newClockedLimiter(time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := l.Check(ctx, "client:1", 3, 3*time.Second)
		require.NoError(t, err)
		assert.True(t, res.Allowed, "request %d", i)
	}

	res, err := l.Check(ctx, "client:1", 3, 3*time.Second)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 0, res.Remaining)
	assert.Equal(t, 1, res.RetryAfter(*clock))

	*clock = clock.Add(time.Second)
	res, err = l.Check(ctx, "client:1", 3, 3*time.Second)
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	res, err = l.Check(ctx, "client:2", 3, 3*time.Second)
	require.NoError(t, err)
	assert.True(t, res.Allowed, "keys are independent")
}

func TestMemoryLimiter_InvalidRuleRejects(t *testing.T) {
	l := NewMemoryLimiter(testLogger())

	res, err := l.Check(context.Background(), "k", 0, time.Minute)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
}

func TestMemoryLimiter_Cleanup(t *testing.T) {
	l, clock := newClockedLimiter(time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()

	_, _ = l.Check(ctx, "old", 1, time.Minute)
	*clock = clock.Add(10 * time.Minute)
	_, _ = l.Check(ctx, "fresh", 1, time.Minute)

	assert.Equal(t, 1, l.Cleanup(5*time.Minute))
	assert.Equal(t, 1, l.Len())
	assert.Equal(t, 0, l.Cleanup(0))
}

type failingLimiter struct{}

func (failingLimiter) Check(context.Context, string, int, time.Duration) (*Result, error) {
	return nil, errors.New("redis down")
}

func TestAdaptiveLimiter_FallsBackAtHalfLimit(t *testing.T) {
	fallback := NewMemoryLimiter(testLogger())
	l := NewAdaptiveLimiter(failingLimiter{}, fallback, testLogger())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		res, err := l.Check(ctx, "k", 4, time.Hour)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
	}

	res, err := l.Check(ctx, "k", 4, time.Hour)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
}

func TestAdaptiveLimiter_UsesPrimary(t *testing.T) {
	primary := NewMemoryLimiter(testLogger())
	fallback := NewMemoryLimiter(testLogger())
	l := NewAdaptiveLimiter(primary, fallback, testLogger())

	res, err := l.Check(context.Background(), "k", 1, time.Hour)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, 1, primary.Len())
	assert.Equal(t, 0, fallback.Len())
}

func TestRules(t *testing.T) {
	rules := NewRules(config.RateLimitConfig{
		Enabled:   true,
		PerClient: config.RateLimitRule{Limit: 20, Window: "1m"},
		Login:     config.RateLimitRule{Limit: 5, Window: "bogus"},
		Whitelist: []int64{7},
	})

	assert.True(t, rules.Enabled())
	assert.True(t, rules.IsWhitelisted(7))
	assert.False(t, rules.IsWhitelisted(8))

	limit, window, err := rules.GetPerClientLimit()
	require.NoError(t, err)
	assert.Equal(t, 20, limit)
	assert.Equal(t, time.Minute, window)

	_, _, err = rules.GetLoginLimit()
	assert.Error(t, err)

	var disabled *Rules
	assert.False(t, disabled.Enabled())
}
