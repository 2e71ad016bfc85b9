package dexerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorString(t *testing.T) {
	err := New(CodeNoRoute, "no route from A to B")
	assert.Equal(t, "[no_route] no route from A to B", err.Error())

	wrapped := Wrap(CodeUnavailable, "fetch failed", errors.New("timeout"))
	assert.Equal(t, "[service_unavailable] fetch failed: timeout", wrapped.Error())
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeInvalidParams, CodeOf(New(CodeInvalidParams, "bad amount")))
	assert.Equal(t, Code(""), CodeOf(errors.New("plain")))
	assert.Equal(t, Code(""), CodeOf(nil))

	// CodeOf sees through standard wrapping.
	err := fmt.Errorf("context: %w", New(CodeSlippageExceeded, "too deep"))
	assert.Equal(t, CodeSlippageExceeded, CodeOf(err))
}

func TestIsCode_WalksWrappedChains(t *testing.T) {
	inner := New(CodeUnavailable, "venue down")
	outer := Wrap(CodeExecutionFailed, "swap failed", inner)
	err := fmt.Errorf("hop 2: %w", outer)

	assert.True(t, IsCode(err, CodeExecutionFailed))
	assert.True(t, IsCode(err, CodeUnavailable), "nested codes must stay matchable")
	assert.False(t, IsCode(err, CodeNoRoute))
}

func TestIsCode_NonCodedErrors(t *testing.T) {
	assert.False(t, IsCode(errors.New("plain"), CodeUnavailable))
	assert.False(t, IsCode(nil, CodeUnavailable))
}

func TestUnwrapPreservesCause(t *testing.T) {
	cause := errors.New("timeout")
	err := Wrap(CodeUnavailable, "fetch failed", cause)

	require.ErrorIs(t, err, cause)
	assert.Equal(t, cause, errors.Unwrap(err))
}

func TestNewf(t *testing.T) {
	err := Newf(CodeNoRoute, "no route from %s to %s", "A", "B")
	assert.Equal(t, CodeNoRoute, err.Code)
	assert.Equal(t, "no route from A to B", err.Message)
}
