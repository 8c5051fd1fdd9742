// Package clientlock serializes update handling per client.
package clientlock

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrLockTimeout is returned when the lock could not be acquired within the wait budget.
var ErrLockTimeout = errors.New("client lock wait timed out")

// Locker hands out exclusive per-key locks. The returned func releases the lock.
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

const (
	defaultTTL  = 10 * time.Second
	defaultWait = 5 * time.Second
)

// MemoryLocker serializes callers within one process.
type MemoryLocker struct {
	mu    sync.Mutex
	slots map[string]*slot
	wait  time.Duration
}

type slot struct {
	ch   chan struct{}
	refs int
}

// NewMemoryLocker creates an in-process locker. wait bounds how long Lock blocks.
func NewMemoryLocker(wait time.Duration) *MemoryLocker {
	if wait <= 0 {
		wait = defaultWait
	}
	return &MemoryLocker{
		slots: make(map[string]*slot),
		wait:  wait,
	}
}

func (l *MemoryLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	s, ok := l.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	l.mu.Unlock()

	timer := time.NewTimer(l.wait)
	defer timer.Stop()

	select {
	case s.ch <- struct{}{}:
		return func() { l.release(key, s) }, nil
	case <-ctx.Done():
		l.drop(key, s)
		return nil, ctx.Err()
	case <-timer.C:
		l.drop(key, s)
		return nil, ErrLockTimeout
	}
}

func (l *MemoryLocker) release(key string, s *slot) {
	<-s.ch
	l.drop(key, s)
}

func (l *MemoryLocker) drop(key string, s *slot) {
	l.mu.Lock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
	l.mu.Unlock()
}
