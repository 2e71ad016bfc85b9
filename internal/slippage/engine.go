// Package slippage turns volatile, externally-observed market state into a
// hard floor on acceptable trade output. It is both a pre-trade gate
// (derive a minimum output before building the transaction) and a
// post-trade auditor (confirm the realized output was within policy); both
// sides share the same basis-point arithmetic so they stay consistent.
package slippage

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/JackSmack1971/DEX-Core-Engine/internal/marketdata"
	"github.com/JackSmack1971/DEX-Core-Engine/pkg/dexerr"
	"github.com/JackSmack1971/DEX-Core-Engine/pkg/metrics"
)

// ZeroSlippageMsg names the rejection of a transaction reporting exactly
// zero basis points of deviation. A perfect fill is treated as a likely
// stubbed or manipulated report; disable via Config.RejectZeroSlippage for
// venues where perfect fills are genuine.
const ZeroSlippageMsg = "transaction reported exactly zero slippage"

var (
	// MinTolerancePercent is the floor tolerances are clamped to at
	// construction. A zero or near-zero tolerance would make every trade a
	// guaranteed revert.
	MinTolerancePercent = decimal.RequireFromString("0.5")

	volatilityThreshold = decimal.RequireFromString("0.5")
	liquidityFloor      = decimal.NewFromInt(10)

	bpsDenominator = decimal.NewFromInt(10000)
	one            = decimal.NewFromInt(1)
	hundred        = decimal.NewFromInt(100)
)

// Classification of a market snapshot, for logging and telemetry only.
type Classification string

const (
	ClassVolatile Classification = "volatile"
	ClassIlliquid Classification = "illiquid"
	ClassStable   Classification = "stable"
)

// Source supplies market snapshots. Implemented by marketdata.Client.
type Source interface {
	Conditions(ctx context.Context) (marketdata.Conditions, error)
}

// Params controls slippage protection for one engine instance.
type Params struct {
	TolerancePercent decimal.Decimal
}

// Config carries the policy knobs shared by validation.
type Config struct {
	MaxSlippageBps     int64
	RejectZeroSlippage bool
}

// DefaultConfig mirrors the engine's shipped policy.
func DefaultConfig() Config {
	return Config{MaxSlippageBps: 50, RejectZeroSlippage: true}
}

// Engine checks slippage tolerance using external market data.
type Engine struct {
	params Params
	cfg    Config
	source Source
	logger *zap.Logger
}

// NewEngine builds an engine. The tolerance is clamped to
// MinTolerancePercent rather than silently accepted.
func NewEngine(params Params, cfg Config, source Source, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("slippage")
	if params.TolerancePercent.LessThan(MinTolerancePercent) {
		logger.Warn("tolerance below enforced minimum, clamping",
			zap.String("requested", params.TolerancePercent.String()),
			zap.String("minimum", MinTolerancePercent.String()))
		params.TolerancePercent = MinTolerancePercent
	}
	return &Engine{params: params, cfg: cfg, source: source, logger: logger}
}

// Tolerance returns the effective (clamped) tolerance percent.
func (e *Engine) Tolerance() decimal.Decimal { return e.params.TolerancePercent }

// MarketConditions fetches a snapshot from the configured source.
func (e *Engine) MarketConditions(ctx context.Context) (marketdata.Conditions, error) {
	if e.source == nil {
		return marketdata.Conditions{}, dexerr.New(dexerr.CodeUnavailable, "no market data source configured")
	}
	return e.source.Conditions(ctx)
}

// Analyze classifies a market snapshot. Volatility is checked before
// liquidity; the order matters.
func (e *Engine) Analyze(m marketdata.Conditions) Classification {
	if m.Volatility.GreaterThan(volatilityThreshold) {
		return ClassVolatile
	}
	if m.Liquidity.LessThan(liquidityFloor) {
		return ClassIlliquid
	}
	return ClassStable
}

// Check compares the observed price against an expected price and fails
// with a price_manipulation error when the deviation exceeds tolerance.
// A trade amount above observed liquidity is a warning, not a failure.
func (e *Engine) Check(ctx context.Context, expectedPrice, amount decimal.Decimal) error {
	if expectedPrice.Sign() <= 0 || amount.Sign() < 0 {
		return dexerr.New(dexerr.CodeInvalidParams, "expected price must be positive and amount non-negative")
	}
	metrics.SlippageChecks.Inc()

	market, err := e.MarketConditions(ctx)
	if err != nil {
		return err
	}

	pct := market.Price.Sub(expectedPrice).Abs().Div(expectedPrice).Mul(hundred)
	if pct.GreaterThan(e.params.TolerancePercent) {
		metrics.SlippageRejected.Inc()
		return dexerr.Newf(dexerr.CodePriceManipulation,
			"slippage %s%% exceeds tolerance %s%%", pct.StringFixed(2), e.params.TolerancePercent.StringFixed(2))
	}
	if amount.GreaterThan(market.Liquidity) {
		e.logger.Warn("trade amount exceeds liquidity",
			zap.String("amount", amount.String()),
			zap.String("liquidity", market.Liquidity.String()))
	}
	e.logger.Info("slippage within tolerance",
		zap.String("slippage_pct", pct.StringFixed(2)),
		zap.String("tolerance_pct", e.params.TolerancePercent.StringFixed(2)))
	return nil
}

// ProtectedSlippage derives the minimum acceptable output for an expected
// amount: max(1, floor(expected * (10000 - maxSlippageBps) / 10000)).
// Deterministic and synchronous; no I/O.
func (e *Engine) ProtectedSlippage(expected decimal.Decimal) (decimal.Decimal, error) {
	if expected.Sign() <= 0 {
		return decimal.Zero, dexerr.New(dexerr.CodeInvalidParams, "expected amount must be positive")
	}
	factor := bpsDenominator.Sub(decimal.NewFromInt(e.cfg.MaxSlippageBps))
	min := expected.Mul(factor).Div(bpsDenominator).Floor()
	if min.LessThan(one) {
		min = one
	}
	return min, nil
}

// ValidateTransactionSlippage audits an expected-vs-actual output pair in
// basis points. Zero deviation is rejected when RejectZeroSlippage is set;
// deviation beyond MaxSlippageBps always is.
func (e *Engine) ValidateTransactionSlippage(expected, actual decimal.Decimal) error {
	if expected.Sign() <= 0 {
		return dexerr.New(dexerr.CodeInvalidParams, "expected amount must be positive")
	}
	// Whole basis points; the fractional part is truncated so a minimum
	// derived by ProtectedSlippage always validates against the same
	// policy despite its floor.
	diffBps := expected.Sub(actual).Abs().Mul(bpsDenominator).Div(expected).Floor()
	if diffBps.IsZero() && e.cfg.RejectZeroSlippage {
		metrics.SlippageRejected.Inc()
		return dexerr.New(dexerr.CodePriceManipulation, ZeroSlippageMsg)
	}
	if diffBps.GreaterThan(decimal.NewFromInt(e.cfg.MaxSlippageBps)) {
		metrics.SlippageRejected.Inc()
		return dexerr.Newf(dexerr.CodePriceManipulation,
			"deviation %s bps exceeds maximum %d bps", diffBps.String(), e.cfg.MaxSlippageBps)
	}
	return nil
}

// DynamicSlippage adjusts a price impact for live volatility:
// impact * (1 + volatility). Pure function.
func DynamicSlippage(priceImpact, volatility decimal.Decimal) decimal.Decimal {
	return priceImpact.Mul(one.Add(volatility))
}
