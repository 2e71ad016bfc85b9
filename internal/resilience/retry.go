package resilience

import (
	"context"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/JackSmack1971/DEX-Core-Engine/pkg/dexerr"
)

// RetryPolicy re-invokes an operation with exponential backoff and jitter.
// The delay before attempt i is min(BaseDelay*2^i, MaxDelay) plus a uniform
// random jitter of up to half that delay, so concurrent callers do not
// produce synchronized retry storms.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration

	logger *zap.Logger
}

// NewRetryPolicy builds a policy. Zero or negative attempts are coerced
// to a single attempt.
func NewRetryPolicy(maxAttempts int, baseDelay, maxDelay time.Duration, logger *zap.Logger) *RetryPolicy {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetryPolicy{
		MaxAttempts: maxAttempts,
		BaseDelay:   baseDelay,
		MaxDelay:    maxDelay,
		logger:      logger.Named("retry"),
	}
}

// Do runs op until it succeeds, exhausts MaxAttempts, or hits an error that
// is not retryable. The last attempt's error is propagated unwrapped;
// earlier attempts' errors are logged and discarded.
func (p *RetryPolicy) Do(ctx context.Context, op func(context.Context) error) error {
	var err error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		err = op(ctx)
		if err == nil {
			return nil
		}
		if !retryable(err) || attempt == p.MaxAttempts-1 {
			return err
		}
		delay := p.backoff(attempt)
		p.logger.Warn("retrying after error",
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return err
}

func (p *RetryPolicy) backoff(attempt int) time.Duration {
	delay := p.BaseDelay << uint(attempt)
	if delay > p.MaxDelay || delay <= 0 {
		delay = p.MaxDelay
	}
	if delay > 0 {
		delay += time.Duration(rand.Int63n(int64(delay)/2 + 1))
	}
	return delay
}

// retryable rejects error kinds where re-running the operation cannot give
// a different answer: bad input, a deterministic graph miss, or a policy
// violation.
func retryable(err error) bool {
	switch dexerr.CodeOf(err) {
	case dexerr.CodeInvalidParams, dexerr.CodeNoRoute,
		dexerr.CodeSlippageExceeded, dexerr.CodePriceManipulation:
		return false
	}
	return true
}

// Guard couples a circuit breaker with a retry policy for one external
// dependency. The breaker wraps the whole retry loop, so it counts one
// failure per ultimately-failed operation, not one per attempt.
type Guard struct {
	breaker *CircuitBreaker
	retry   *RetryPolicy
}

// NewGuard builds the breaker+retry pair used by every external call site.
func NewGuard(breaker *CircuitBreaker, retry *RetryPolicy) *Guard {
	return &Guard{breaker: breaker, retry: retry}
}

// Do runs op through the breaker and retry policy.
func (g *Guard) Do(ctx context.Context, op func(context.Context) error) error {
	return g.breaker.Execute(ctx, func(ctx context.Context) error {
		return g.retry.Do(ctx, op)
	})
}

// Breaker exposes the underlying breaker, for state inspection.
func (g *Guard) Breaker() *CircuitBreaker { return g.breaker }
