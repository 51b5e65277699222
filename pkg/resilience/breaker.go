package resilience

import (
	"sync"
	"time"
)

// BreakerState represents the circuit breaker state
type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

// String returns the state name for logging and metrics
func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half_open"
	}
	return "unknown"
}

const (
	// DefaultFailureThreshold is the consecutive-failure count that opens
	// the breaker.
	DefaultFailureThreshold = 5

	// DefaultRecoveryTimeout is how long the breaker stays open before
	// allowing a probe.
	DefaultRecoveryTimeout = 60 * time.Second
)

// CircuitBreaker guards calls to a downstream dependency. After
// FailureThreshold consecutive failures it opens and rejects execution;
// after RecoveryTimeout it lets a single probe through (half-open) and
// closes again on success.
//
// Safe for concurrent use, though consumers typically drive one breaker
// from a single goroutine.
type CircuitBreaker struct {
	now              func() time.Time
	onStateChange    func(from, to BreakerState)
	openedAt         time.Time
	failureThreshold int
	recoveryTimeout  time.Duration
	failureCount     int
	state            BreakerState
	mu               sync.Mutex
}

// NewCircuitBreaker creates a closed breaker with the given threshold and
// recovery timeout. Non-positive arguments fall back to the defaults.
func NewCircuitBreaker(failureThreshold int, recoveryTimeout time.Duration) *CircuitBreaker {
	if failureThreshold <= 0 {
		failureThreshold = DefaultFailureThreshold
	}
	if recoveryTimeout <= 0 {
		recoveryTimeout = DefaultRecoveryTimeout
	}
	return &CircuitBreaker{
		failureThreshold: failureThreshold,
		recoveryTimeout:  recoveryTimeout,
		state:            BreakerClosed,
		now:              time.Now,
	}
}

// OnStateChange registers a callback invoked on every state transition.
// Used to keep the breaker state gauge current.
func (cb *CircuitBreaker) OnStateChange(fn func(from, to BreakerState)) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.onStateChange = fn
}

// CanExecute reports whether a call may proceed. When the breaker is open
// and the recovery timeout has elapsed it transitions to half-open and
// admits the probe.
func (cb *CircuitBreaker) CanExecute() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case BreakerClosed, BreakerHalfOpen:
		return true
	case BreakerOpen:
		if !cb.now().Before(cb.openedAt.Add(cb.recoveryTimeout)) {
			cb.transition(BreakerHalfOpen)
			return true
		}
		return false
	}
	return false
}

// RecordSuccess resets the failure count and closes a half-open breaker.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failureCount = 0
	if cb.state == BreakerHalfOpen {
		cb.transition(BreakerClosed)
	}
}

// RecordFailure counts a failure and opens the breaker once the threshold
// is reached. A failed half-open probe reopens immediately because the
// count was never reset.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failureCount++
	if cb.failureCount >= cb.failureThreshold {
		cb.openedAt = cb.now()
		cb.transition(BreakerOpen)
	}
}

// State returns the current breaker state
func (cb *CircuitBreaker) State() BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// transition changes state and fires the callback. Callers must hold mu.
func (cb *CircuitBreaker) transition(to BreakerState) {
	if cb.state == to {
		return
	}
	from := cb.state
	cb.state = to
	if cb.onStateChange != nil {
		cb.onStateChange(from, to)
	}
}
