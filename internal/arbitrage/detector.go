// Package arbitrage scans the router's aggregated liquidity for
// self-funding opportunities: two-leg round trips between token pairs and
// triangular cycles discovered by the router. The detector evaluates
// profitability only; execution goes back through the router and its
// slippage protection.
package arbitrage

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/JackSmack1971/DEX-Core-Engine/internal/dex"
	"github.com/JackSmack1971/DEX-Core-Engine/internal/router"
)

// Type of a detected opportunity.
type Type string

const (
	TypeSimple     Type = "simple"
	TypeTriangular Type = "triangular"
)

// Opportunity is one detected arbitrage candidate.
type Opportunity struct {
	Type   Type
	Path   []dex.Token
	Profit decimal.Decimal
}

// Detector scans token pairs and triangular cycles via the router.
type Detector struct {
	router *router.Router
	tokens []dex.Token
	amount decimal.Decimal
	logger *zap.Logger
}

// NewDetector builds a detector probing with the given notional amount.
func NewDetector(r *router.Router, tokens []dex.Token, amount decimal.Decimal, logger *zap.Logger) *Detector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Detector{
		router: r,
		tokens: tokens,
		amount: amount,
		logger: logger.Named("arbitrage"),
	}
}

// Scan returns every profitable opportunity currently visible. Scan
// failures on individual pairs or cycles are logged and skipped; one dead
// pair must not hide the rest.
func (d *Detector) Scan(ctx context.Context) []Opportunity {
	var opportunities []Opportunity
	opportunities = append(opportunities, d.scanPairs(ctx)...)
	opportunities = append(opportunities, d.scanCycles(ctx)...)
	return opportunities
}

func (d *Detector) scanPairs(ctx context.Context) []Opportunity {
	var out []Opportunity
	for _, tokenIn := range d.tokens {
		for _, tokenOut := range d.tokens {
			if tokenIn == tokenOut {
				continue
			}
			leg1, err := d.router.GetBestQuote(ctx, tokenIn, tokenOut, d.amount)
			if err != nil || leg1.Sign() <= 0 {
				continue
			}
			leg2, err := d.router.GetBestQuote(ctx, tokenOut, tokenIn, leg1)
			if err != nil {
				d.logger.Debug("return leg quote failed",
					zap.String("pair", string(tokenIn)+"/"+string(tokenOut)),
					zap.Error(err))
				continue
			}
			profit := leg2.Sub(d.amount)
			if profit.Sign() > 0 {
				out = append(out, Opportunity{
					Type:   TypeSimple,
					Path:   []dex.Token{tokenIn, tokenOut, tokenIn},
					Profit: profit,
				})
			}
		}
	}
	return out
}

func (d *Detector) scanCycles(ctx context.Context) []Opportunity {
	var out []Opportunity
	for _, cycle := range d.router.FindTriangularCycles(ctx) {
		amount := d.amount
		viable := true
		for i, adapter := range cycle.Adapters {
			quote, err := adapter.GetQuote(ctx, cycle.Tokens[i], cycle.Tokens[i+1], amount)
			if err != nil || quote.Sign() <= 0 {
				viable = false
				break
			}
			amount = quote
		}
		if !viable {
			continue
		}
		profit := amount.Sub(d.amount).Sub(cycle.Cost)
		if profit.Sign() > 0 {
			out = append(out, Opportunity{
				Type:   TypeTriangular,
				Path:   cycle.Tokens,
				Profit: profit,
			})
		}
	}
	return out
}

// ExecuteSimple trades a simple two-token opportunity's first leg through
// the router. Triangular execution is left to the flash-loan layer.
func (d *Detector) ExecuteSimple(ctx context.Context, opp Opportunity) (string, error) {
	return d.router.ExecuteSwap(ctx, d.amount, opp.Path[0], opp.Path[1])
}
