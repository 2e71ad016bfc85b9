// Package resilience provides the generic failure-handling primitives every
// external call in the engine is wrapped in: a circuit breaker and a
// retrying backoff policy. The two are composable but independent; the
// typical call site runs the retry loop inside the breaker so the breaker
// accounts failures at the level of "did the whole retried operation
// ultimately fail".
package resilience

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JackSmack1971/DEX-Core-Engine/pkg/dexerr"
	"github.com/JackSmack1971/DEX-Core-Engine/pkg/metrics"
)

// State represents the state of a circuit breaker.
type State int32

const (
	// StateClosed - normal operation, requests pass through
	StateClosed State = iota
	// StateOpen - circuit is open, requests are rejected without an attempt
	StateOpen
	// StateHalfOpen - a single trial request probes for recovery
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreaker guards one external dependency. One instance per
// dependency; instances are never shared, so unrelated failure domains stay
// decoupled. All state transitions are serialized by a single mutex.
type CircuitBreaker struct {
	name             string
	failureThreshold int
	recoveryTimeout  time.Duration
	logger           *zap.Logger

	mu           sync.Mutex
	state        State
	failureCount int
	openedAt     time.Time
	trialActive  bool
}

// NewCircuitBreaker creates a breaker for the named dependency.
func NewCircuitBreaker(name string, failureThreshold int, recoveryTimeout time.Duration, logger *zap.Logger) *CircuitBreaker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CircuitBreaker{
		name:             name,
		failureThreshold: failureThreshold,
		recoveryTimeout:  recoveryTimeout,
		logger:           logger.Named("circuit-breaker"),
		state:            StateClosed,
	}
}

// Execute runs fn under breaker protection. While the circuit is open it
// fails immediately with a service_unavailable error without invoking fn.
// After the recovery timeout a single trial call is admitted half-open;
// concurrent callers during the trial are rejected.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if err := cb.beforeCall(); err != nil {
		return err
	}

	err := fn(ctx)
	cb.afterCall(err)
	return err
}

func (cb *CircuitBreaker) beforeCall() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return nil
	case StateOpen:
		if time.Since(cb.openedAt) < cb.recoveryTimeout {
			return dexerr.Newf(dexerr.CodeUnavailable, "circuit breaker %s is open", cb.name)
		}
		cb.transition(StateHalfOpen)
		cb.trialActive = true
		return nil
	case StateHalfOpen:
		if cb.trialActive {
			return dexerr.Newf(dexerr.CodeUnavailable, "circuit breaker %s is half-open with a trial in flight", cb.name)
		}
		cb.trialActive = true
		return nil
	default:
		return dexerr.Newf(dexerr.CodeUnavailable, "circuit breaker %s is in an unknown state", cb.name)
	}
}

func (cb *CircuitBreaker) afterCall(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.trialActive = false

	if err == nil {
		if cb.state != StateClosed {
			cb.transition(StateClosed)
		}
		cb.failureCount = 0
		return
	}

	cb.failureCount++
	switch cb.state {
	case StateHalfOpen:
		// Trial failed, re-open immediately.
		cb.openedAt = time.Now()
		cb.transition(StateOpen)
	case StateClosed:
		if cb.failureCount >= cb.failureThreshold {
			cb.openedAt = time.Now()
			cb.transition(StateOpen)
			cb.logger.Warn("circuit breaker opened",
				zap.String("name", cb.name),
				zap.Int("failures", cb.failureCount))
		}
	}
}

// transition updates state and emits observability signals. Caller holds
// the mutex.
func (cb *CircuitBreaker) transition(to State) {
	from := cb.state
	cb.state = to
	metrics.BreakerTransitions.WithLabelValues(cb.name, to.String()).Inc()
	metrics.BreakerState.WithLabelValues(cb.name).Set(float64(to))
	cb.logger.Info("circuit breaker state changed",
		zap.String("name", cb.name),
		zap.String("from", from.String()),
		zap.String("to", to.String()))
}

// GetState returns the current state of the circuit breaker.
func (cb *CircuitBreaker) GetState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Reset forces the breaker back to closed.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = StateClosed
	cb.failureCount = 0
	cb.trialActive = false
}
