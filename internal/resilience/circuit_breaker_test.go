package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JackSmack1971/DEX-Core-Engine/pkg/dexerr"
)

var errBoom = errors.New("boom")

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker("test", 2, time.Minute, nil)
	ctx := context.Background()

	calls := 0
	op := func(context.Context) error { calls++; return errBoom }

	require.Error(t, cb.Execute(ctx, op))
	assert.Equal(t, StateClosed, cb.GetState())

	require.Error(t, cb.Execute(ctx, op))
	assert.Equal(t, StateOpen, cb.GetState())

	// Third call fails fast without invoking the operation.
	err := cb.Execute(ctx, op)
	assert.True(t, dexerr.IsCode(err, dexerr.CodeUnavailable))
	assert.Equal(t, 2, calls)
}

func TestCircuitBreaker_HalfOpenAdmitsOneTrial(t *testing.T) {
	cb := NewCircuitBreaker("test", 1, 20*time.Millisecond, nil)
	ctx := context.Background()

	require.Error(t, cb.Execute(ctx, func(context.Context) error { return errBoom }))
	require.Equal(t, StateOpen, cb.GetState())

	time.Sleep(30 * time.Millisecond)

	// The next call after the recovery timeout is attempted.
	calls := 0
	err := cb.Execute(ctx, func(context.Context) error { calls++; return errBoom })
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, 1, calls)
	// Trial failed, so the circuit re-opened immediately.
	assert.Equal(t, StateOpen, cb.GetState())
}

func TestCircuitBreaker_SuccessFromHalfOpenCloses(t *testing.T) {
	cb := NewCircuitBreaker("test", 2, 10*time.Millisecond, nil)
	ctx := context.Background()

	require.Error(t, cb.Execute(ctx, func(context.Context) error { return errBoom }))
	require.Error(t, cb.Execute(ctx, func(context.Context) error { return errBoom }))
	require.Equal(t, StateOpen, cb.GetState())
	time.Sleep(20 * time.Millisecond)

	require.NoError(t, cb.Execute(ctx, func(context.Context) error { return nil }))
	assert.Equal(t, StateClosed, cb.GetState())

	// Failure count was reset; a single new failure does not re-open.
	require.Error(t, cb.Execute(ctx, func(context.Context) error { return errBoom }))
	assert.Equal(t, StateClosed, cb.GetState())
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb := NewCircuitBreaker("test", 2, time.Minute, nil)
	ctx := context.Background()

	require.Error(t, cb.Execute(ctx, func(context.Context) error { return errBoom }))
	require.NoError(t, cb.Execute(ctx, func(context.Context) error { return nil }))
	require.Error(t, cb.Execute(ctx, func(context.Context) error { return errBoom }))

	// One failure since the last success; still closed.
	assert.Equal(t, StateClosed, cb.GetState())
}

func TestCircuitBreaker_ConcurrentFailuresNotDoubleCounted(t *testing.T) {
	cb := NewCircuitBreaker("test", 100, time.Minute, nil)
	ctx := context.Background()

	done := make(chan struct{})
	for i := 0; i < 50; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			_ = cb.Execute(ctx, func(context.Context) error { return errBoom })
		}()
	}
	for i := 0; i < 50; i++ {
		<-done
	}

	cb.mu.Lock()
	count := cb.failureCount
	cb.mu.Unlock()
	assert.Equal(t, 50, count)
	assert.Equal(t, StateClosed, cb.GetState())
}
