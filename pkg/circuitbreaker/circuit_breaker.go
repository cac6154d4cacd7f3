package circuitbreaker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// State represents the state of a circuit breaker
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// Options tunes a CircuitBreaker beyond its failure threshold and timeout.
type Options struct {
	// HalfOpenMaxCalls is the number of probe calls allowed while half-open.
	HalfOpenMaxCalls uint32
	// CountsAsFailure decides whether an error trips the breaker. Errors it
	// rejects are returned to the caller without affecting the state.
	CountsAsFailure func(error) bool
	// OnStateChange is called after every transition, outside the lock.
	OnStateChange func(name string, from, to State)
	Logger        *logrus.Logger
	Now           func() time.Time
}

// CircuitBreaker guards calls to the chat backend
type CircuitBreaker struct {
	name        string
	maxFailures uint32
	timeout     time.Duration
	opts        Options

	mu              sync.Mutex
	state           State
	failures        uint32
	halfOpenCalls   uint32
	halfOpenSuccess uint32
	lastFailureTime time.Time
	requests        uint64
	successes       uint64
}

// New creates a new circuit breaker
func New(name string, maxFailures uint32, timeout time.Duration) *CircuitBreaker {
	return NewWithOptions(name, maxFailures, timeout, Options{})
}

// NewWithLogger creates a new circuit breaker with a custom logger
func NewWithLogger(name string, maxFailures uint32, timeout time.Duration, logger *logrus.Logger) *CircuitBreaker {
	return NewWithOptions(name, maxFailures, timeout, Options{Logger: logger})
}

func NewWithOptions(name string, maxFailures uint32, timeout time.Duration, opts Options) *CircuitBreaker {
	if maxFailures == 0 {
		maxFailures = 1
	}
	if opts.HalfOpenMaxCalls == 0 {
		opts.HalfOpenMaxCalls = 3
	}
	if opts.CountsAsFailure == nil {
		opts.CountsAsFailure = func(err error) bool { return err != nil }
	}
	if opts.Logger == nil {
		opts.Logger = logrus.New()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &CircuitBreaker{
		name:        name,
		maxFailures: maxFailures,
		timeout:     timeout,
		opts:        opts,
		state:       StateClosed,
	}
}

// Execute runs fn if the breaker allows it and records the outcome
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := cb.acquire(); err != nil {
		return err
	}

	err := fn(ctx)
	// a cancelled caller says nothing about the backend
	if err != nil && ctx.Err() == nil && cb.opts.CountsAsFailure(err) {
		cb.onFailure()
		return err
	}
	cb.onSuccess()
	return err
}

func (cb *CircuitBreaker) acquire() error {
	cb.mu.Lock()
	from := cb.state
	if cb.state == StateOpen && cb.opts.Now().Sub(cb.lastFailureTime) >= cb.timeout {
		cb.state = StateHalfOpen
		cb.halfOpenCalls = 0
		cb.halfOpenSuccess = 0
	}

	allowed := true
	switch cb.state {
	case StateOpen:
		allowed = false
	case StateHalfOpen:
		if cb.halfOpenCalls >= cb.opts.HalfOpenMaxCalls {
			allowed = false
		} else {
			cb.halfOpenCalls++
		}
	}
	if allowed {
		cb.requests++
	}
	to := cb.state
	cb.mu.Unlock()

	cb.transitioned(from, to)
	if !allowed {
		return &CircuitBreakerError{Name: cb.name, State: to}
	}
	return nil
}

func (cb *CircuitBreaker) onSuccess() {
	cb.mu.Lock()
	from := cb.state
	cb.successes++
	switch cb.state {
	case StateClosed:
		cb.failures = 0
	case StateHalfOpen:
		cb.halfOpenSuccess++
		if cb.halfOpenSuccess >= cb.opts.HalfOpenMaxCalls {
			cb.state = StateClosed
			cb.failures = 0
		}
	}
	to := cb.state
	cb.mu.Unlock()

	cb.transitioned(from, to)
}

func (cb *CircuitBreaker) onFailure() {
	cb.mu.Lock()
	from := cb.state
	cb.failures++
	cb.lastFailureTime = cb.opts.Now()
	if cb.state == StateHalfOpen || (cb.state == StateClosed && cb.failures >= cb.maxFailures) {
		cb.state = StateOpen
	}
	to := cb.state
	failures := cb.failures
	cb.mu.Unlock()

	if from != to {
		cb.opts.Logger.WithFields(logrus.Fields{
			"circuit_breaker": cb.name,
			"failures":        failures,
		}).Warn("Circuit breaker opened")
	}
	cb.transitioned(from, to)
}

func (cb *CircuitBreaker) transitioned(from, to State) {
	if from == to {
		return
	}
	cb.opts.Logger.WithFields(logrus.Fields{
		"circuit_breaker": cb.name,
		"from":            from.String(),
		"to":              to.String(),
	}).Info("Circuit breaker state changed")
	if cb.opts.OnStateChange != nil {
		cb.opts.OnStateChange(cb.name, from, to)
	}
}

// GetState returns the current state of the circuit breaker
func (cb *CircuitBreaker) GetState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// GetStats returns statistics about the circuit breaker
func (cb *CircuitBreaker) GetStats() Stats {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return Stats{
		Name:            cb.name,
		State:           cb.state,
		Failures:        cb.failures,
		Requests:        cb.requests,
		Successes:       cb.successes,
		LastFailureTime: cb.lastFailureTime,
	}
}

// Stats represents circuit breaker statistics
type Stats struct {
	Name            string    `json:"name"`
	State           State     `json:"state"`
	Failures        uint32    `json:"failures"`
	Requests        uint64    `json:"requests"`
	Successes       uint64    `json:"successes"`
	LastFailureTime time.Time `json:"last_failure_time"`
}

// CircuitBreakerError represents an error when the circuit breaker is open
type CircuitBreakerError struct {
	Name  string
	State State
}

func (e *CircuitBreakerError) Error() string {
	return fmt.Sprintf("circuit breaker '%s' is %s", e.Name, e.State)
}

// IsCircuitBreakerError checks if an error is a circuit breaker error
func IsCircuitBreakerError(err error) bool {
	var cbErr *CircuitBreakerError
	return errors.As(err, &cbErr)
}
