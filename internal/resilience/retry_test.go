package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JackSmack1971/DEX-Core-Engine/pkg/dexerr"
)

func TestRetryPolicy_EventualSuccess(t *testing.T) {
	p := NewRetryPolicy(3, time.Millisecond, 10*time.Millisecond, nil)

	calls := 0
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errBoom
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryPolicy_LastErrorPropagatedUnwrapped(t *testing.T) {
	p := NewRetryPolicy(2, time.Millisecond, 10*time.Millisecond, nil)

	calls := 0
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		return errBoom
	})
	assert.Equal(t, errBoom, err)
	assert.Equal(t, 2, calls)
}

func TestRetryPolicy_NonRetryableShortCircuits(t *testing.T) {
	p := NewRetryPolicy(5, time.Millisecond, 10*time.Millisecond, nil)

	for _, code := range []dexerr.Code{
		dexerr.CodeInvalidParams,
		dexerr.CodeNoRoute,
		dexerr.CodeSlippageExceeded,
		dexerr.CodePriceManipulation,
	} {
		calls := 0
		err := p.Do(context.Background(), func(context.Context) error {
			calls++
			return dexerr.New(code, "nope")
		})
		assert.True(t, dexerr.IsCode(err, code))
		assert.Equal(t, 1, calls, "code %s must not be retried", code)
	}
}

func TestRetryPolicy_BackoffBounded(t *testing.T) {
	p := NewRetryPolicy(10, 100*time.Millisecond, 250*time.Millisecond, nil)
	for attempt := 0; attempt < 10; attempt++ {
		d := p.backoff(attempt)
		// Base delay doubles per attempt, capped at max, plus up to half
		// that again in jitter.
		assert.LessOrEqual(t, d, 375*time.Millisecond)
		assert.Greater(t, d, time.Duration(0))
	}
}

func TestRetryPolicy_ContextCancelled(t *testing.T) {
	p := NewRetryPolicy(5, 50*time.Millisecond, time.Second, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := p.Do(ctx, func(context.Context) error { return errBoom })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGuard_BreakerCountsWholeRetriedOperation(t *testing.T) {
	breaker := NewCircuitBreaker("dep", 2, time.Minute, nil)
	retry := NewRetryPolicy(3, time.Millisecond, 5*time.Millisecond, nil)
	g := NewGuard(breaker, retry)

	calls := 0
	op := func(context.Context) error { calls++; return errBoom }

	// One guarded call = three attempts but only one breaker failure.
	require.Error(t, g.Do(context.Background(), op))
	assert.Equal(t, 3, calls)
	assert.Equal(t, StateClosed, breaker.GetState())

	require.Error(t, g.Do(context.Background(), op))
	assert.Equal(t, StateOpen, breaker.GetState())
}
