package backend

import (
	"errors"
	"sync"
	"time"
)

// BreakerState represents the state of the backend circuit breaker.
type BreakerState int

const (
	// BreakerClosed allows requests through normally.
	BreakerClosed BreakerState = iota
	// BreakerOpen rejects requests immediately.
	BreakerOpen
	// BreakerHalfOpen allows a probe request after the cooldown.
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrBreakerOpen is returned when the breaker is rejecting requests.
var ErrBreakerOpen = errors.New("backend circuit breaker is open")

// breaker guards the backend control-plane queries. A flapping backend
// would otherwise add a timeout's worth of latency to every status
// poll and restore attempt.
type breaker struct {
	failureThreshold int
	successThreshold int
	cooldown         time.Duration

	mu          sync.Mutex
	state       BreakerState
	failures    int
	successes   int
	lastFailure time.Time
}

func newBreaker(failureThreshold int, cooldown time.Duration) *breaker {
	return &breaker{
		failureThreshold: failureThreshold,
		successThreshold: 2,
		cooldown:         cooldown,
		state:            BreakerClosed,
	}
}

// Allow reports whether a request may proceed, transitioning open to
// half-open once the cooldown has passed.
func (b *breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == BreakerOpen && time.Since(b.lastFailure) >= b.cooldown {
		b.state = BreakerHalfOpen
		b.successes = 0
	}
	return b.state != BreakerOpen
}

// RecordSuccess notes a successful request.
func (b *breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerHalfOpen:
		b.successes++
		if b.successes >= b.successThreshold {
			b.state = BreakerClosed
			b.failures = 0
		}
	case BreakerClosed:
		b.failures = 0
	}
}

// RecordFailure notes a failed request, opening the breaker at the
// threshold. A half-open failure reopens immediately.
func (b *breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastFailure = time.Now()
	switch b.state {
	case BreakerHalfOpen:
		b.state = BreakerOpen
	case BreakerClosed:
		b.failures++
		if b.failures >= b.failureThreshold {
			b.state = BreakerOpen
		}
	}
}

// State returns the current breaker state.
func (b *breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == BreakerOpen && time.Since(b.lastFailure) >= b.cooldown {
		return BreakerHalfOpen
	}
	return b.state
}
