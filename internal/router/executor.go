package router

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/JackSmack1971/DEX-Core-Engine/internal/dex"
	"github.com/JackSmack1971/DEX-Core-Engine/internal/slippage"
	"github.com/JackSmack1971/DEX-Core-Engine/pkg/dexerr"
	"github.com/JackSmack1971/DEX-Core-Engine/pkg/metrics"
)

// HopResult accounts for one settled hop of a multi-hop swap.
type HopResult struct {
	ID        uuid.UUID
	TokenIn   dex.Token
	TokenOut  dex.Token
	Adapter   string
	AmountIn  decimal.Decimal
	AmountOut decimal.Decimal
	TxIDs     []string
}

// PartialRouteError reports a multi-hop swap that failed after earlier
// hops already settled on-chain. No rollback or compensation is attempted;
// the completed hop results are surfaced so the caller can account for the
// partial state.
type PartialRouteError struct {
	Completed []HopResult
	FailedHop int
	Cause     error
}

func (e *PartialRouteError) Error() string {
	return fmt.Sprintf("[%s] hop %d failed after %d hops settled: %v",
		dexerr.CodePartialRoute, e.FailedHop, len(e.Completed), e.Cause)
}

func (e *PartialRouteError) Unwrap() error { return e.Cause }

// Is matches the partial_route_failure code so dexerr.IsCode works.
func (e *PartialRouteError) Is(target error) bool {
	var t *dexerr.Error
	if errors.As(target, &t) {
		return t.Code == dexerr.CodePartialRoute
	}
	return false
}

var two = decimal.NewFromInt(2)

// ExecuteSwap resolves the best route and executes it hop by hop, strictly
// sequentially: hop i+1 trades the accumulated output of hop i. Each hop
// is split into chunks whose size is halved (binary backoff, bounded by
// MaxChunkAttempts) until the volatility-adjusted price impact fits the
// slippage tolerance; every chunk's quoted output is bounded and audited by
// the slippage engine before broadcast. Returns the final hop's last
// transaction id.
func (r *Router) ExecuteSwap(ctx context.Context, amountIn decimal.Decimal, tokenIn, tokenOut dex.Token) (string, error) {
	start := time.Now()
	defer func() {
		metrics.SwapDuration.Observe(time.Since(start).Seconds())
	}()

	route, err := r.GetBestRoute(ctx, tokenIn, tokenOut, amountIn)
	if err != nil {
		return "", err
	}

	r.logger.Info("executing swap",
		zap.String("token_in", string(tokenIn)),
		zap.String("token_out", string(tokenOut)),
		zap.String("amount_in", amountIn.String()),
		zap.Int("hops", len(route.Adapters)))

	var (
		completed []HopResult
		hopInput  = amountIn
		lastTx    string
	)
	for i, adapter := range route.Adapters {
		hopIn, hopOut := route.Path[i], route.Path[i+1]
		result, err := r.executeHop(ctx, adapter, hopIn, hopOut, hopInput)
		if err != nil {
			if len(completed) == 0 {
				return "", err
			}
			return "", &PartialRouteError{Completed: completed, FailedHop: i, Cause: err}
		}
		completed = append(completed, result)
		hopInput = result.AmountOut
		lastTx = result.TxIDs[len(result.TxIDs)-1]
	}
	return lastTx, nil
}

// executeHop trades the full hop input through one adapter, chunk by
// chunk, until nothing remains. Volatility is sampled once per hop; every
// chunk-sizing decision within the hop uses that one snapshot.
func (r *Router) executeHop(ctx context.Context, adapter *dex.Guarded, tokenIn, tokenOut dex.Token, amountIn decimal.Decimal) (HopResult, error) {
	result := HopResult{
		ID:       uuid.New(),
		TokenIn:  tokenIn,
		TokenOut: tokenOut,
		Adapter:  adapter.Name(),
		AmountIn: amountIn,
	}

	volatility := r.hopVolatility(ctx)
	remaining := amountIn
	for remaining.Sign() > 0 {
		chunk, err := r.sizeChunk(ctx, adapter, tokenIn, tokenOut, remaining, volatility)
		if err != nil {
			return result, err
		}

		quote, err := adapter.GetQuote(ctx, tokenIn, tokenOut, chunk)
		if err != nil {
			return result, err
		}
		if quote.Sign() <= 0 {
			return result, dexerr.Newf(dexerr.CodeExecutionFailed,
				"%s returned no executable quote for %s/%s", adapter.Name(), tokenIn, tokenOut)
		}

		minOut, err := r.slippage.ProtectedSlippage(quote)
		if err != nil {
			return result, err
		}
		// Audit the quoted figure against policy before ever broadcasting.
		if err := r.slippage.ValidateTransactionSlippage(quote, minOut); err != nil {
			return result, err
		}

		txID, err := adapter.ExecuteSwap(ctx, chunk, []dex.Token{tokenIn, tokenOut}, minOut)
		if err != nil {
			return result, err
		}

		result.TxIDs = append(result.TxIDs, txID)
		// The adapter reports only a transaction id, so the quoted output
		// stands in for the realized amount on the next hop.
		result.AmountOut = result.AmountOut.Add(quote)
		remaining = remaining.Sub(chunk)
	}
	return result, nil
}

// sizeChunk finds the largest chunk of remaining whose volatility-adjusted
// price impact fits the slippage tolerance, halving up to MaxChunkAttempts
// times with a floor of 1. Every size it returns has been probed. A
// floor-sized chunk is executed even above tolerance: the order cannot
// shrink further. Exhausting the attempts with the chunk still above the
// floor and above tolerance aborts with slippage_exceeded instead of
// broadcasting at a size whose impact violates policy.
// Chunk sizes are integral base units; the floor of 1 assumes wei-scale
// amounts, where a one-unit quote is still large enough to validate
// against the bps policy.
func (r *Router) sizeChunk(ctx context.Context, adapter *dex.Guarded, tokenIn, tokenOut dex.Token, remaining, volatility decimal.Decimal) (decimal.Decimal, error) {
	one := decimal.NewFromInt(1)
	chunk := remaining
	effective := decimal.Zero

	for attempt := 0; attempt < r.cfg.MaxChunkAttempts; attempt++ {
		info, err := adapter.GetLiquidityInfo(ctx, tokenIn, tokenOut, chunk)
		if err != nil {
			return decimal.Zero, err
		}
		effective = slippage.DynamicSlippage(info.PriceImpact, volatility)
		if effective.LessThanOrEqual(r.slippage.Tolerance()) {
			return chunk, nil
		}
		if chunk.LessThanOrEqual(one) {
			return chunk, nil
		}
		chunk = chunk.Div(two).Floor()
		if chunk.LessThan(one) {
			chunk = one
		}
		metrics.ChunkSplits.Inc()
		r.logger.Debug("chunk halved",
			zap.String("adapter", adapter.Name()),
			zap.String("chunk", chunk.String()),
			zap.String("effective_slippage", effective.String()))
	}

	return decimal.Zero, dexerr.Newf(dexerr.CodeSlippageExceeded,
		"order cannot be sized within tolerance after %d halvings, effective slippage %s%%",
		r.cfg.MaxChunkAttempts, effective.StringFixed(2))
}

// hopVolatility reads live volatility for dynamic slippage adjustment,
// degrading to zero when market data is unavailable.
func (r *Router) hopVolatility(ctx context.Context) decimal.Decimal {
	conditions, err := r.slippage.MarketConditions(ctx)
	if err != nil {
		r.logger.Warn("market conditions unavailable, assuming zero volatility", zap.Error(err))
		return decimal.Zero
	}
	r.logger.Debug("market classified", zap.String("class", string(r.slippage.Analyze(conditions))))
	return conditions.Volatility
}
