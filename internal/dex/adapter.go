// Package dex defines the capability contract every exchange integration
// must satisfy, plus the guarded dispatch wrapper the router calls adapters
// through. Concrete venue adapters live in subpackages or outside this
// module; the router never depends on their internals.
package dex

import (
	"context"

	"github.com/shopspring/decimal"
)

// Token is an opaque asset identifier (a chain address on EVM venues).
// Equality is by value.
type Token string

// Pool is one tradable pair an adapter knows about, with its protocol fee
// expressed in the same unit as gas estimates.
type Pool struct {
	TokenA Token
	TokenB Token
	Fee    decimal.Decimal
}

// LiquidityInfo is an ephemeral per-quote estimate of available depth and
// the price impact of trading into it.
type LiquidityInfo struct {
	Liquidity   decimal.Decimal
	PriceImpact decimal.Decimal
}

// Adapter is the closed contract for one exchange integration. All four
// trading operations are invoked only through a circuit-breaker+retry pair
// owned by the caller, never directly.
type Adapter interface {
	// Name identifies the adapter for logging and breaker ownership.
	Name() string

	// Pools lists the pairs this adapter can trade, for graph construction.
	Pools(ctx context.Context) ([]Pool, error)

	// GasEstimate is the adapter's per-swap gas cost in fee units; it is
	// added to the pool fee to form an edge cost.
	GasEstimate() decimal.Decimal

	// GetQuote returns the amount of tokenOut received for amountIn of
	// tokenIn. Implementations return 0 for a missing pool rather than
	// failing, but propagate structural errors.
	GetQuote(ctx context.Context, tokenIn, tokenOut Token, amountIn decimal.Decimal) (decimal.Decimal, error)

	// ExecuteSwap trades amountIn along route, enforcing amountOutMin, and
	// returns the transaction id. Implementations must re-derive the
	// realized output (e.g. by diffing balances) and fail if nothing was
	// received even when the chain reports success.
	ExecuteSwap(ctx context.Context, amountIn decimal.Decimal, route []Token, amountOutMin decimal.Decimal) (string, error)

	// GetBestRoute returns the adapter-local path for the pair, which may
	// be a direct hop or an adapter-internal multi-hop. The system router
	// treats it as an edge-cost input, not the final route.
	GetBestRoute(ctx context.Context, tokenIn, tokenOut Token, amountIn decimal.Decimal) ([]Token, error)

	// GetLiquidityInfo samples quotes at a small and a large size to
	// estimate price impact. Adapters without support return zero impact.
	GetLiquidityInfo(ctx context.Context, tokenIn, tokenOut Token, amountIn decimal.Decimal) (LiquidityInfo, error)
}

// ChainHeights provides the current block height used for route-cache
// segregation. Absence degrades gracefully to height 0.
type ChainHeights interface {
	BlockHeight(ctx context.Context) (uint64, error)
}
