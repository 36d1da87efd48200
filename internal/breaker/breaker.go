// Copyright 2025 James Ross

// Package breaker is a three-state gate around the editor adapter:
// consecutive failures trip it Open, a cooldown admits one HalfOpen probe,
// and a successful probe closes it again.
package breaker

import (
	"errors"
	"sync"
	"time"

	"github.com/flyingrobots/aider-dispatch/internal/clock"
	"github.com/flyingrobots/aider-dispatch/internal/obs"
)

type State int

const (
	Closed State = iota
	HalfOpen
	Open
)

func (s State) String() string {
	switch s {
	case Closed:
		return "CLOSED"
	case HalfOpen:
		return "HALF_OPEN"
	case Open:
		return "OPEN"
	}
	return "UNKNOWN"
}

// ErrOpen is returned without invoking the wrapped call while the breaker
// is open.
var ErrOpen = errors.New("Circuit breaker is OPEN; call rejected")

// CircuitBreaker counts consecutive failures. All transitions happen under
// one mutex; the clock is injected so cooldowns are testable.
type CircuitBreaker struct {
	mu               sync.Mutex
	state            State
	failureThreshold int
	resetTimeout     time.Duration
	failureCount     int
	lastFailure      time.Time
	halfOpenInFlight bool
	clk              clock.Clock
}

func New(failureThreshold int, resetTimeout time.Duration, clk clock.Clock) *CircuitBreaker {
	return &CircuitBreaker{
		state:            Closed,
		failureThreshold: failureThreshold,
		resetTimeout:     resetTimeout,
		clk:              clk,
	}
}

// Call runs fn under the breaker. While Open and before the reset timeout
// it returns ErrOpen without invoking fn; after the timeout the call is the
// HalfOpen probe.
func (cb *CircuitBreaker) Call(fn func() error) error {
	if err := cb.allow(); err != nil {
		return err
	}
	err := fn()
	cb.record(err == nil)
	return err
}

func (cb *CircuitBreaker) allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	switch cb.state {
	case Open:
		if cb.clk.Now().Sub(cb.lastFailure) > cb.resetTimeout {
			cb.transition(HalfOpen)
			cb.halfOpenInFlight = true
			return nil
		}
		return ErrOpen
	case HalfOpen:
		if cb.halfOpenInFlight {
			return ErrOpen
		}
		cb.halfOpenInFlight = true
		return nil
	default:
		return nil
	}
}

func (cb *CircuitBreaker) record(ok bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	switch cb.state {
	case HalfOpen:
		cb.halfOpenInFlight = false
		if ok {
			cb.failureCount = 0
			cb.transition(Closed)
		} else {
			cb.lastFailure = cb.clk.Now()
			cb.transition(Open)
		}
	case Closed:
		if ok {
			cb.failureCount = 0
			return
		}
		cb.failureCount++
		cb.lastFailure = cb.clk.Now()
		if cb.failureCount >= cb.failureThreshold {
			cb.transition(Open)
		}
	case Open:
		// a call admitted before the trip finished late; nothing to do
	}
}

func (cb *CircuitBreaker) transition(next State) {
	if cb.state == next {
		return
	}
	cb.state = next
	switch next {
	case Closed:
		obs.CircuitBreakerState.Set(0)
	case HalfOpen:
		obs.CircuitBreakerState.Set(1)
	case Open:
		obs.CircuitBreakerState.Set(2)
		obs.CircuitBreakerTrips.Inc()
	}
}

// State reports the current state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Snapshot returns state, consecutive failure count and the last failure
// time for health reporting.
func (cb *CircuitBreaker) Snapshot() (State, int, time.Time) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state, cb.failureCount, cb.lastFailure
}

// Reset forces the breaker closed and clears the failure count.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failureCount = 0
	cb.transition(Closed)
}
