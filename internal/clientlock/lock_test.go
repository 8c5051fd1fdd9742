package clientlock

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newRedisLocker(t *testing.T, wait time.Duration) (*RedisLocker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisLocker(rdb, testLogger(), time.Minute, wait), mr
}

// assertSerialized runs workers that each hold the lock for a moment and checks they never overlap.
func assertSerialized(t *testing.T, locker Locker) {
	t.Helper()

	var (
		inside  int32
		overlap int32
		wg      sync.WaitGroup
	)

	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := locker.Lock(context.Background(), "42")
			if !assert.NoError(t, err) {
				return
			}
			if atomic.AddInt32(&inside, 1) > 1 {
				atomic.StoreInt32(&overlap, 1)
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&inside, -1)
			unlock()
		}()
	}

	wg.Wait()
	assert.Zero(t, atomic.LoadInt32(&overlap))
}

func TestMemoryLocker_Serializes(t *testing.T) {
	assertSerialized(t, NewMemoryLocker(time.Second))
}

func TestMemoryLocker_Timeout(t *testing.T) {
	locker := NewMemoryLocker(20 * time.Millisecond)

	unlock, err := locker.Lock(context.Background(), "1")
	require.NoError(t, err)
	defer unlock()

	_, err = locker.Lock(context.Background(), "1")
	assert.ErrorIs(t, err, ErrLockTimeout)

	other, err := locker.Lock(context.Background(), "2")
	require.NoError(t, err)
	other()
}

func TestMemoryLocker_ReleasesSlots(t *testing.T) {
	locker := NewMemoryLocker(time.Second)

	unlock, err := locker.Lock(context.Background(), "1")
	require.NoError(t, err)
	unlock()

	assert.Empty(t, locker.slots)
}

func TestRedisLocker_Serializes(t *testing.T) {
	locker, _ := newRedisLocker(t, 2*time.Second)
	assertSerialized(t, locker)
}

func TestRedisLocker_TimeoutAndRelease(t *testing.T) {
	locker, mr := newRedisLocker(t, 60*time.Millisecond)
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "7")
	require.NoError(t, err)
	assert.True(t, mr.Exists("client:lock:7"))

	_, err = locker.Lock(ctx, "7")
	assert.ErrorIs(t, err, ErrLockTimeout)

	unlock()
	assert.False(t, mr.Exists("client:lock:7"))

	again, err := locker.Lock(ctx, "7")
	require.NoError(t, err)
	again()
}

func TestRedisLocker_ReleaseKeepsForeignLock(t *testing.T) {
	locker, mr := newRedisLocker(t, 60*time.Millisecond)

	unlock, err := locker.Lock(context.Background(), "9")
	require.NoError(t, err)

	// Simulate the TTL expiring and another holder taking over.
	require.NoError(t, mr.Set("client:lock:9", "someone-else"))
	unlock()

	got, err := mr.Get("client:lock:9")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", got)
}
