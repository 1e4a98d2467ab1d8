// Package healthcheck circuit breaker implementation
// Stops calling a failing dependency until it has had time to recover
package healthcheck

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by Execute while the breaker rejects calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreakerState represents the state of a circuit breaker
type CircuitBreakerState int

const (
	StateClosed CircuitBreakerState = iota
	StateHalfOpen
	StateOpen
)

// String returns the string representation of the state
func (s CircuitBreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig holds configuration for circuit breaker
type CircuitBreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that opens the circuit
	FailureThreshold int

	// SuccessThreshold is the number of successes required to close the circuit when half-open
	SuccessThreshold int

	// Timeout is how long the circuit stays open before probing again
	Timeout time.Duration

	// MaxRequests is the maximum number of concurrent probes when half-open
	MaxRequests int

	// IsFailure decides whether an error counts against the dependency.
	// Errors it rejects leave the breaker unchanged. Nil counts every error.
	IsFailure func(error) bool

	// OnStateChange is called when the state changes, with the lock held
	OnStateChange func(name string, from, to CircuitBreakerState)
}

// CircuitBreakerStats holds statistics about circuit breaker operations
type CircuitBreakerStats struct {
	TotalRequests        int64 `json:"total_requests"`
	TotalSuccesses       int64 `json:"total_successes"`
	TotalFailures        int64 `json:"total_failures"`
	TotalRejections      int64 `json:"total_rejections"`
	ConsecutiveFailures  int   `json:"consecutive_failures"`
	ConsecutiveSuccesses int   `json:"consecutive_successes"`
}

// CircuitBreaker implements the circuit breaker pattern. The protected call
// runs without the lock held, so concurrent callers are not serialised.
type CircuitBreaker struct {
	name        string
	config      CircuitBreakerConfig
	now         func() time.Time
	mu          sync.Mutex
	state       CircuitBreakerState
	stats       CircuitBreakerStats
	nextAttempt time.Time
	probes      int
}

// NewCircuitBreaker creates a new circuit breaker with the given configuration
func NewCircuitBreaker(name string, config CircuitBreakerConfig) *CircuitBreaker {
	d := DefaultCircuitBreakerConfig()
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = d.FailureThreshold
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = d.SuccessThreshold
	}
	if config.Timeout <= 0 {
		config.Timeout = d.Timeout
	}
	if config.MaxRequests <= 0 {
		config.MaxRequests = d.MaxRequests
	}

	return &CircuitBreaker{
		name:   name,
		config: config,
		now:    time.Now,
		state:  StateClosed,
	}
}

// Execute runs fn unless the circuit is open, in which case it returns
// ErrCircuitOpen without calling fn.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	probe, err := cb.before()
	if err != nil {
		return err
	}

	err = fn()
	cb.after(probe, err)
	return err
}

func (cb *CircuitBreaker) before() (bool, error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.stats.TotalRequests++

	if cb.state == StateOpen && !cb.now().Before(cb.nextAttempt) {
		cb.setState(StateHalfOpen)
	}

	switch cb.state {
	case StateOpen:
		cb.stats.TotalRejections++
		return false, ErrCircuitOpen
	case StateHalfOpen:
		if cb.probes >= cb.config.MaxRequests {
			cb.stats.TotalRejections++
			return false, ErrCircuitOpen
		}
		cb.probes++
		return true, nil
	}
	return false, nil
}

func (cb *CircuitBreaker) after(probe bool, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if probe && cb.probes > 0 {
		cb.probes--
	}

	switch {
	case err == nil:
		cb.onSuccess()
	case cb.config.IsFailure == nil || cb.config.IsFailure(err):
		cb.onFailure()
	}
}

func (cb *CircuitBreaker) onSuccess() {
	cb.stats.TotalSuccesses++
	cb.stats.ConsecutiveFailures = 0
	cb.stats.ConsecutiveSuccesses++

	if cb.state == StateHalfOpen && cb.stats.ConsecutiveSuccesses >= cb.config.SuccessThreshold {
		cb.setState(StateClosed)
	}
}

func (cb *CircuitBreaker) onFailure() {
	cb.stats.TotalFailures++
	cb.stats.ConsecutiveSuccesses = 0
	cb.stats.ConsecutiveFailures++

	switch cb.state {
	case StateClosed:
		if cb.stats.ConsecutiveFailures >= cb.config.FailureThreshold {
			cb.setState(StateOpen)
		}
	case StateHalfOpen:
		// Any failure in half-open state opens the circuit
		cb.setState(StateOpen)
	}
}

func (cb *CircuitBreaker) setState(newState CircuitBreakerState) {
	if cb.state == newState {
		return
	}

	oldState := cb.state
	cb.state = newState

	switch newState {
	case StateOpen:
		cb.nextAttempt = cb.now().Add(cb.config.Timeout)
	case StateHalfOpen:
		cb.stats.ConsecutiveSuccesses = 0
		cb.probes = 0
	case StateClosed:
		cb.stats.ConsecutiveFailures = 0
		cb.stats.ConsecutiveSuccesses = 0
	}

	if cb.config.OnStateChange != nil {
		cb.config.OnStateChange(cb.name, oldState, newState)
	}
}

// GetState returns the current state of the circuit breaker
func (cb *CircuitBreaker) GetState() CircuitBreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// GetStats returns statistics about the circuit breaker
func (cb *CircuitBreaker) GetStats() CircuitBreakerStats {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.stats
}

// Reset closes the circuit and clears statistics
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.setState(StateClosed)
	cb.stats = CircuitBreakerStats{}
	cb.nextAttempt = time.Time{}
	cb.probes = 0
}

// Checker reports the breaker as a health check: degraded while open or
// half-open.
func (cb *CircuitBreaker) Checker() Checker {
	return NewCustomChecker(cb.name, func(context.Context) (Status, string, interface{}) {
		cb.mu.Lock()
		state, stats := cb.state, cb.stats
		cb.mu.Unlock()

		metadata := map[string]interface{}{
			"state":                state.String(),
			"consecutive_failures": stats.ConsecutiveFailures,
			"total_rejections":     stats.TotalRejections,
		}
		if state == StateClosed {
			return StatusHealthy, "", metadata
		}
		return StatusDegraded, "circuit " + state.String(), metadata
	})
}

// DefaultCircuitBreakerConfig returns a default configuration for circuit breakers
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Timeout:          30 * time.Second,
		MaxRequests:      1,
	}
}
