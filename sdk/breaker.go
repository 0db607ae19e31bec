package rollgate

import (
	"sync"
	"time"
)

// CircuitState is the state of the circuit breaker.
type CircuitState string

const (
	// CircuitClosed lets all requests through.
	CircuitClosed CircuitState = "closed"
	// CircuitOpen rejects all requests without touching the network.
	CircuitOpen CircuitState = "open"
	// CircuitHalfOpen lets a limited number of trial requests through.
	CircuitHalfOpen CircuitState = "half-open"
)

// CircuitBreakerStats is a snapshot of the breaker's counters.
type CircuitBreakerStats struct {
	State            CircuitState
	Failures         int
	Successes        int
	ConsecutiveFails int
	LastFailure      time.Time
	LastStateChange  time.Time
}

// CircuitBreaker protects the server from request storms during outages.
// Failures are counted over a sliding monitoring window; once the threshold
// is reached the breaker opens and rejects everything until the recovery
// timeout passes, after which trial requests probe the server. A run of
// successful trials closes the breaker; any trial failure reopens it.
type CircuitBreaker struct {
	mu sync.Mutex

	state            CircuitState
	failureTimes     []time.Time
	halfOpenSuccess  int
	totalFailures    int
	totalSuccesses   int
	consecutiveFails int
	lastFailure      time.Time
	lastStateChange  time.Time

	failureThreshold int
	recoveryTimeout  time.Duration
	monitoringWindow time.Duration
	successThreshold int

	onStateChange func(from, to CircuitState)
}

// NewCircuitBreaker creates a breaker in the closed state.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	return &CircuitBreaker{
		state:            CircuitClosed,
		failureThreshold: cfg.FailureThreshold,
		recoveryTimeout:  cfg.RecoveryTimeout,
		monitoringWindow: cfg.MonitoringWindow,
		successThreshold: cfg.SuccessThreshold,
		lastStateChange:  time.Now(),
	}
}

// OnStateChange registers a callback invoked on every state transition.
// The callback runs outside the breaker's lock.
func (cb *CircuitBreaker) OnStateChange(fn func(from, to CircuitState)) {
	cb.mu.Lock()
	cb.onStateChange = fn
	cb.mu.Unlock()
}

// Execute runs fn if the breaker allows it and records the outcome. When
// the breaker is open it returns ErrCircuitOpen without calling fn.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if !cb.Allow() {
		return NewCircuitOpenError("request rejected")
	}
	err := fn()
	if err != nil {
		cb.RecordFailure()
		return err
	}
	cb.RecordSuccess()
	return nil
}

// Allow reports whether a request may proceed, transitioning open to
// half-open when the recovery timeout has elapsed.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	var notify func()
	switch cb.state {
	case CircuitClosed, CircuitHalfOpen:
		cb.mu.Unlock()
		return true
	case CircuitOpen:
		if time.Since(cb.lastStateChange) >= cb.recoveryTimeout {
			notify = cb.transition(CircuitHalfOpen)
			cb.mu.Unlock()
			if notify != nil {
				notify()
			}
			return true
		}
		cb.mu.Unlock()
		return false
	}
	cb.mu.Unlock()
	return false
}

// RecordSuccess records a successful request.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	cb.totalSuccesses++
	cb.consecutiveFails = 0
	var notify func()
	if cb.state == CircuitHalfOpen {
		cb.halfOpenSuccess++
		if cb.halfOpenSuccess >= cb.successThreshold {
			cb.failureTimes = nil
			notify = cb.transition(CircuitClosed)
		}
	}
	cb.mu.Unlock()
	if notify != nil {
		notify()
	}
}

// RecordFailure records a failed request, opening the breaker when the
// windowed failure count reaches the threshold. Any failure while
// half-open reopens immediately.
func (cb *CircuitBreaker) RecordFailure() {
	now := time.Now()
	cb.mu.Lock()
	cb.totalFailures++
	cb.consecutiveFails++
	cb.lastFailure = now

	var notify func()
	switch cb.state {
	case CircuitHalfOpen:
		notify = cb.transition(CircuitOpen)
	case CircuitClosed:
		cb.failureTimes = append(cb.failureTimes, now)
		cb.pruneWindow(now)
		if len(cb.failureTimes) >= cb.failureThreshold {
			notify = cb.transition(CircuitOpen)
		}
	}
	cb.mu.Unlock()
	if notify != nil {
		notify()
	}
}

// State returns the current state, applying the open-to-half-open
// transition if the recovery timeout has elapsed.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	state := cb.state
	if state == CircuitOpen && time.Since(cb.lastStateChange) >= cb.recoveryTimeout {
		state = CircuitHalfOpen
	}
	cb.mu.Unlock()
	return state
}

// ForceOpen opens the breaker regardless of failure counts.
func (cb *CircuitBreaker) ForceOpen() {
	cb.mu.Lock()
	notify := cb.transition(CircuitOpen)
	cb.mu.Unlock()
	if notify != nil {
		notify()
	}
}

// ForceReset closes the breaker and clears all windowed failures.
func (cb *CircuitBreaker) ForceReset() {
	cb.mu.Lock()
	cb.failureTimes = nil
	cb.consecutiveFails = 0
	notify := cb.transition(CircuitClosed)
	cb.mu.Unlock()
	if notify != nil {
		notify()
	}
}

// Stats returns a snapshot of the breaker's counters.
func (cb *CircuitBreaker) Stats() CircuitBreakerStats {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return CircuitBreakerStats{
		State:            cb.state,
		Failures:         cb.totalFailures,
		Successes:        cb.totalSuccesses,
		ConsecutiveFails: cb.consecutiveFails,
		LastFailure:      cb.lastFailure,
		LastStateChange:  cb.lastStateChange,
	}
}

// transition must be called with cb.mu held. It returns the callback to
// invoke after the lock is released, or nil when no transition happened.
func (cb *CircuitBreaker) transition(to CircuitState) func() {
	if cb.state == to {
		return nil
	}
	from := cb.state
	cb.state = to
	cb.lastStateChange = time.Now()
	if to == CircuitHalfOpen {
		cb.halfOpenSuccess = 0
	}
	if fn := cb.onStateChange; fn != nil {
		return func() { fn(from, to) }
	}
	return nil
}

func (cb *CircuitBreaker) pruneWindow(now time.Time) {
	cutoff := now.Add(-cb.monitoringWindow)
	kept := cb.failureTimes[:0]
	for _, t := range cb.failureTimes {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	cb.failureTimes = kept
}
