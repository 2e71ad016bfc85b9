package router

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JackSmack1971/DEX-Core-Engine/internal/dex"
	"github.com/JackSmack1971/DEX-Core-Engine/internal/marketdata"
	"github.com/JackSmack1971/DEX-Core-Engine/pkg/dexerr"
)

func TestExecuteSwap_SingleHopSingleChunk(t *testing.T) {
	p1 := newFakeAdapter("P1", []dex.Pool{pool("A", "B", "1")})
	r := newTestRouter(t, nil, nil, p1)

	txID, err := r.ExecuteSwap(context.Background(), dec("1000"), "A", "B")
	require.NoError(t, err)
	assert.Equal(t, "tx-P1-1", txID)
	assert.Equal(t, 1, p1.execCalls)
	assert.True(t, p1.execSizes[0].Equal(dec("1000")))
}

func TestExecuteSwap_ChunksLargeOrder(t *testing.T) {
	p1 := newFakeAdapter("P1", []dex.Pool{pool("A", "B", "1")})
	// Deep enough for orders of two units; anything larger moves the price
	// well past tolerance.
	p1.liqFn = func(amount decimal.Decimal) dex.LiquidityInfo {
		if amount.GreaterThan(dec("2")) {
			return dex.LiquidityInfo{Liquidity: dec("100"), PriceImpact: dec("5.0")}
		}
		return dex.LiquidityInfo{Liquidity: dec("100"), PriceImpact: dec("0.5")}
	}
	r := newTestRouter(t, nil, nil, p1)

	_, err := r.ExecuteSwap(context.Background(), dec("4"), "A", "B")
	require.NoError(t, err)

	assert.GreaterOrEqual(t, p1.execCalls, 2)
	for _, size := range p1.execSizes {
		assert.True(t, size.LessThanOrEqual(dec("2")), "chunk %s exceeds tolerable size", size)
	}
}

func TestExecuteSwap_UniformImpactExecutesFloorChunks(t *testing.T) {
	p1 := newFakeAdapter("P1", []dex.Pool{pool("A", "B", "1")})
	// Impact stays at 5.0 no matter how small the probe: halving bottoms
	// out at the floor and the order trades one unit at a time.
	p1.liquidity = dex.LiquidityInfo{Liquidity: dec("100"), PriceImpact: dec("5.0")}
	r := newTestRouter(t, nil, nil, p1)

	_, err := r.ExecuteSwap(context.Background(), dec("4"), "A", "B")
	require.NoError(t, err)

	assert.Equal(t, 4, p1.execCalls)
	for _, size := range p1.execSizes {
		assert.True(t, size.Equal(dec("1")), "got chunk %s", size)
	}
}

func TestExecuteSwap_UnsizableOrderAborts(t *testing.T) {
	p1 := newFakeAdapter("P1", []dex.Pool{pool("A", "B", "1")})
	p1.liquidity = dex.LiquidityInfo{Liquidity: dec("100"), PriceImpact: dec("5.0")}
	r := newTestRouter(t, nil, nil, p1)

	// Four halvings take 100 down to 12 with every probed size above
	// tolerance; the never-probed remainder must not be broadcast.
	_, err := r.ExecuteSwap(context.Background(), dec("100"), "A", "B")
	require.Error(t, err)
	assert.True(t, dexerr.IsCode(err, dexerr.CodeSlippageExceeded))
	assert.Zero(t, p1.execCalls)
}

func TestExecuteSwap_VolatilityTightensChunking(t *testing.T) {
	liqFn := func(amount decimal.Decimal) dex.LiquidityInfo {
		if amount.GreaterThan(dec("2")) {
			return dex.LiquidityInfo{Liquidity: dec("100"), PriceImpact: dec("0.6")}
		}
		return dex.LiquidityInfo{Liquidity: dec("100"), PriceImpact: dec("0.2")}
	}

	// A calm market takes the order in one chunk; impact 0.6 sits inside the
	// 1.0 tolerance.
	calm := newFakeAdapter("P1", []dex.Pool{pool("A", "B", "1")})
	calm.liqFn = liqFn
	r := newTestRouter(t, nil, nil, calm)
	_, err := r.ExecuteSwap(context.Background(), dec("4"), "A", "B")
	require.NoError(t, err)
	assert.Equal(t, 1, calm.execCalls)

	// Volatility 1.0 doubles the effective slippage to 1.2, forcing a split.
	stormy := newFakeAdapter("P1", []dex.Pool{pool("A", "B", "1")})
	stormy.liqFn = liqFn
	source := &stubSource{conditions: marketdata.Conditions{
		Price:      dec("1"),
		Liquidity:  dec("100"),
		Volatility: dec("1.0"),
	}}
	r = newTestRouter(t, nil, source, stormy)
	_, err = r.ExecuteSwap(context.Background(), dec("4"), "A", "B")
	require.NoError(t, err)
	assert.Equal(t, 2, stormy.execCalls)
}

func TestExecuteSwap_SequentialHopsTradeAccumulatedOutput(t *testing.T) {
	p1 := newFakeAdapter("P1", []dex.Pool{pool("A", "B", "1")})
	p2 := newFakeAdapter("P2", []dex.Pool{pool("B", "C", "1")})
	p1.quoteRate = dec("2")
	p2.quoteRate = dec("3")

	r := newTestRouter(t, nil, nil, p1, p2)

	txID, err := r.ExecuteSwap(context.Background(), dec("1000"), "A", "C")
	require.NoError(t, err)
	assert.Equal(t, "tx-P2-1", txID, "the final hop's transaction id is returned")

	require.Len(t, p2.execSizes, 1)
	assert.True(t, p2.execSizes[0].Equal(dec("2000")),
		"second hop must trade the first hop's output, got %s", p2.execSizes[0])
}

func TestExecuteSwap_FirstHopFailureIsNotPartial(t *testing.T) {
	p1 := newFakeAdapter("P1", []dex.Pool{pool("A", "B", "1")})
	p1.execErr = errors.New("nonce too low")

	r := newTestRouter(t, nil, nil, p1)

	_, err := r.ExecuteSwap(context.Background(), dec("1000"), "A", "B")
	require.Error(t, err)
	assert.True(t, dexerr.IsCode(err, dexerr.CodeExecutionFailed))
	assert.False(t, dexerr.IsCode(err, dexerr.CodePartialRoute))

	var partial *PartialRouteError
	assert.False(t, errors.As(err, &partial))
}

func TestExecuteSwap_MidRouteFailureSurfacesCompletedHops(t *testing.T) {
	p1 := newFakeAdapter("P1", []dex.Pool{pool("A", "B", "1")})
	p2 := newFakeAdapter("P2", []dex.Pool{pool("B", "C", "1")})
	p2.execErr = errors.New("reverted")

	r := newTestRouter(t, nil, nil, p1, p2)

	_, err := r.ExecuteSwap(context.Background(), dec("1000"), "A", "C")
	require.Error(t, err)
	assert.True(t, dexerr.IsCode(err, dexerr.CodePartialRoute))

	var partial *PartialRouteError
	require.ErrorAs(t, err, &partial)
	assert.Equal(t, 1, partial.FailedHop)
	require.Len(t, partial.Completed, 1)
	settled := partial.Completed[0]
	assert.Equal(t, "P1", settled.Adapter)
	assert.Equal(t, dex.Token("A"), settled.TokenIn)
	assert.Equal(t, dex.Token("B"), settled.TokenOut)
	assert.True(t, settled.AmountOut.Sign() > 0)
	assert.NotEmpty(t, settled.TxIDs)
	assert.True(t, dexerr.IsCode(partial.Cause, dexerr.CodeExecutionFailed))
}

func TestExecuteSwap_RouteErrorsPropagate(t *testing.T) {
	r := newTestRouter(t, nil, nil, newFakeAdapter("P1", []dex.Pool{pool("A", "B", "1")}))

	_, err := r.ExecuteSwap(context.Background(), dec("1000"), "A", "Z")
	assert.True(t, dexerr.IsCode(err, dexerr.CodeNoRoute))

	_, err = r.ExecuteSwap(context.Background(), decimal.Zero, "A", "B")
	assert.True(t, dexerr.IsCode(err, dexerr.CodeInvalidParams))
}
