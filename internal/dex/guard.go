package dex

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/JackSmack1971/DEX-Core-Engine/internal/resilience"
	"github.com/JackSmack1971/DEX-Core-Engine/pkg/dexerr"
)

// Guarded wraps an Adapter so every operation runs through one circuit
// breaker and retry policy dedicated to that adapter. A misbehaving venue
// trips its own breaker without coupling the others.
type Guarded struct {
	inner  Adapter
	guard  *resilience.Guard
	logger *zap.Logger
}

// NewGuarded builds the guarded view of an adapter.
func NewGuarded(inner Adapter, guard *resilience.Guard, logger *zap.Logger) *Guarded {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Guarded{
		inner:  inner,
		guard:  guard,
		logger: logger.Named(inner.Name()),
	}
}

// Name returns the wrapped adapter's name.
func (g *Guarded) Name() string { return g.inner.Name() }

// GasEstimate returns the wrapped adapter's gas estimate.
func (g *Guarded) GasEstimate() decimal.Decimal { return g.inner.GasEstimate() }

// Breaker exposes the adapter's breaker for state inspection.
func (g *Guarded) Breaker() *resilience.CircuitBreaker { return g.guard.Breaker() }

// Pools lists the adapter's pools. A venue that cannot report pools
// contributes no edges; the error is logged, not propagated, so one dead
// adapter cannot block a graph rebuild.
func (g *Guarded) Pools(ctx context.Context) ([]Pool, error) {
	var pools []Pool
	err := g.guard.Do(ctx, func(ctx context.Context) error {
		var err error
		pools, err = g.inner.Pools(ctx)
		return err
	})
	if err != nil {
		g.logger.Warn("pool listing failed", zap.Error(err))
		return nil, nil
	}
	return pools, nil
}

// GetQuote quotes through the guard. A circuit-open or transient failure
// yields a zero quote; structural errors (bad parameters) propagate.
func (g *Guarded) GetQuote(ctx context.Context, tokenIn, tokenOut Token, amountIn decimal.Decimal) (decimal.Decimal, error) {
	if err := validatePair(tokenIn, tokenOut, amountIn); err != nil {
		return decimal.Zero, err
	}
	var out decimal.Decimal
	err := g.guard.Do(ctx, func(ctx context.Context) error {
		var err error
		out, err = g.inner.GetQuote(ctx, tokenIn, tokenOut, amountIn)
		return err
	})
	if err != nil {
		if dexerr.IsCode(err, dexerr.CodeInvalidParams) {
			return decimal.Zero, err
		}
		g.logger.Warn("quote failed", zap.Error(err))
		return decimal.Zero, nil
	}
	return out, nil
}

// ExecuteSwap trades through the guard. Unavailable propagates as-is so
// callers can tell a down venue from a failed trade; other failures are
// surfaced as execution_failed.
func (g *Guarded) ExecuteSwap(ctx context.Context, amountIn decimal.Decimal, route []Token, amountOutMin decimal.Decimal) (string, error) {
	if amountIn.Sign() <= 0 || len(route) < 2 {
		return "", dexerr.New(dexerr.CodeInvalidParams, "invalid swap parameters")
	}
	for _, t := range route {
		if t == "" {
			return "", dexerr.New(dexerr.CodeInvalidParams, "empty token in route")
		}
	}
	var txID string
	err := g.guard.Do(ctx, func(ctx context.Context) error {
		var err error
		txID, err = g.inner.ExecuteSwap(ctx, amountIn, route, amountOutMin)
		return err
	})
	if err != nil {
		if dexerr.IsCode(err, dexerr.CodeUnavailable) || dexerr.IsCode(err, dexerr.CodeInvalidParams) {
			return "", err
		}
		return "", dexerr.Wrap(dexerr.CodeExecutionFailed, "swap failed on "+g.inner.Name(), err)
	}
	return txID, nil
}

// GetBestRoute resolves the adapter-local route through the guard. A down
// or erroring venue yields no route rather than an error.
func (g *Guarded) GetBestRoute(ctx context.Context, tokenIn, tokenOut Token, amountIn decimal.Decimal) ([]Token, error) {
	if err := validatePair(tokenIn, tokenOut, amountIn); err != nil {
		return nil, err
	}
	var route []Token
	err := g.guard.Do(ctx, func(ctx context.Context) error {
		var err error
		route, err = g.inner.GetBestRoute(ctx, tokenIn, tokenOut, amountIn)
		return err
	})
	if err != nil {
		if dexerr.IsCode(err, dexerr.CodeInvalidParams) {
			return nil, err
		}
		g.logger.Warn("route lookup failed", zap.Error(err))
		return nil, nil
	}
	return route, nil
}

// GetLiquidityInfo estimates depth through the guard. Failures degrade to
// zero impact, matching adapters that do not support liquidity sampling.
func (g *Guarded) GetLiquidityInfo(ctx context.Context, tokenIn, tokenOut Token, amountIn decimal.Decimal) (LiquidityInfo, error) {
	if err := validatePair(tokenIn, tokenOut, amountIn); err != nil {
		return LiquidityInfo{}, err
	}
	var info LiquidityInfo
	err := g.guard.Do(ctx, func(ctx context.Context) error {
		var err error
		info, err = g.inner.GetLiquidityInfo(ctx, tokenIn, tokenOut, amountIn)
		return err
	})
	if err != nil {
		g.logger.Debug("liquidity info unavailable", zap.Error(err))
		return LiquidityInfo{}, nil
	}
	return info, nil
}

func validatePair(tokenIn, tokenOut Token, amountIn decimal.Decimal) error {
	if tokenIn == "" || tokenOut == "" {
		return dexerr.New(dexerr.CodeInvalidParams, "token identifiers required")
	}
	if amountIn.Sign() <= 0 {
		return dexerr.New(dexerr.CodeInvalidParams, "amount_in must be positive")
	}
	return nil
}
