package errors

import (
	"errors"
	"sync"
	"time"
)

// BreakerSettings tunes when the breaker opens and how it recovers.
type BreakerSettings struct {
	ErrorThreshold      float64
	MinRequests         int
	OpenTimeout         time.Duration
	HalfOpenMaxRequests int
	// Interval clears the closed-state counters once it has passed since the last reset.
	Interval time.Duration
	// IsSuccessful reports whether an error returned by fn still counts as a healthy call.
	// Nil treats every error as a failure.
	IsSuccessful func(err error) bool
}

// DefaultBreakerSettings opens after half of at least 10 calls within a minute fail
// and probes again after 30s.
var DefaultBreakerSettings = BreakerSettings{
	ErrorThreshold:      0.5,
	MinRequests:         10,
	OpenTimeout:         30 * time.Second,
	HalfOpenMaxRequests: 3,
	Interval:            time.Minute,
}

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

var (
	ErrCircuitOpen             = errors.New("circuit breaker is open")
	ErrHalfOpenTooManyRequests = errors.New("too many requests in half-open")
)

type CircuitBreaker struct {
	mu              sync.Mutex
	settings        BreakerSettings
	state           State
	failures        int
	successes       int
	requests        int
	lastFailureTime time.Time
	windowStart     time.Time
	now             func() time.Time
}

func NewCircuitBreaker(settings BreakerSettings) *CircuitBreaker {
	if settings.MinRequests <= 0 {
		settings.MinRequests = DefaultBreakerSettings.MinRequests
	}
	if settings.ErrorThreshold <= 0 {
		settings.ErrorThreshold = DefaultBreakerSettings.ErrorThreshold
	}
	if settings.OpenTimeout <= 0 {
		settings.OpenTimeout = DefaultBreakerSettings.OpenTimeout
	}
	if settings.HalfOpenMaxRequests <= 0 {
		settings.HalfOpenMaxRequests = DefaultBreakerSettings.HalfOpenMaxRequests
	}

	return &CircuitBreaker{
		settings: settings,
		state:    StateClosed,
		now:      time.Now,
	}
}

// Call runs fn unless the breaker is open. fn's error is returned unchanged.
func (cb *CircuitBreaker) Call(fn func() error) error {
	if fn == nil {
		return nil
	}

	cb.mu.Lock()
	if cb.state == StateOpen {
		if cb.now().Sub(cb.lastFailureTime) >= cb.settings.OpenTimeout {
			cb.transitionToHalfOpenLocked()
		} else {
			cb.mu.Unlock()
			return ErrCircuitOpen
		}
	}

	if cb.state == StateClosed && cb.settings.Interval > 0 && cb.now().Sub(cb.windowStart) >= cb.settings.Interval {
		cb.resetCountersLocked()
	}

	if cb.state == StateHalfOpen && cb.requests >= cb.settings.HalfOpenMaxRequests {
		cb.mu.Unlock()
		return ErrHalfOpenTooManyRequests
	}
	cb.mu.Unlock()

	callErr := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.requests++

	if callErr != nil && !cb.successful(callErr) {
		cb.failures++

		if cb.state == StateHalfOpen {
			cb.tripToOpenLocked()
		} else {
			cb.evaluateState()
		}

		return callErr
	}

	cb.successes++

	if cb.state == StateHalfOpen && cb.successes >= cb.settings.HalfOpenMaxRequests {
		cb.state = StateClosed
		cb.resetCountersLocked()
	}

	return callErr
}

func (cb *CircuitBreaker) successful(err error) bool {
	return cb.settings.IsSuccessful != nil && cb.settings.IsSuccessful(err)
}

func (cb *CircuitBreaker) evaluateState() {
	if cb.requests < cb.settings.MinRequests {
		return
	}

	errorRate := float64(cb.failures) / float64(cb.requests)
	if errorRate >= cb.settings.ErrorThreshold {
		cb.tripToOpenLocked()
	}
}

func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) resetCountersLocked() {
	cb.windowStart = cb.now()
	cb.failures = 0
	cb.successes = 0
	cb.requests = 0
}

func (cb *CircuitBreaker) transitionToHalfOpenLocked() {
	cb.state = StateHalfOpen
	cb.resetCountersLocked()
}

func (cb *CircuitBreaker) tripToOpenLocked() {
	cb.state = StateOpen
	cb.lastFailureTime = cb.now()
	cb.resetCountersLocked()
}
