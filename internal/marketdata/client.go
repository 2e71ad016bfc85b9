// Package marketdata provides access to the external market-data feed the
// slippage protection engine consumes. Snapshots carry no history; each one
// is fetched (or read off the stream) once per decision.
package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/JackSmack1971/DEX-Core-Engine/internal/resilience"
	"github.com/JackSmack1971/DEX-Core-Engine/pkg/dexerr"
)

// Conditions is a point-in-time market snapshot.
type Conditions struct {
	Price      decimal.Decimal `json:"price"`
	Liquidity  decimal.Decimal `json:"liquidity"`
	Volatility decimal.Decimal `json:"volatility"`
}

// Client fetches market conditions over HTTP through a breaker+retry guard.
type Client struct {
	endpoint string
	http     *http.Client
	guard    *resilience.Guard
	logger   *zap.Logger
}

// NewClient builds a market-data client. An empty endpoint is allowed; every
// fetch then fails with a service_unavailable error.
func NewClient(endpoint string, guard *resilience.Guard, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		endpoint: endpoint,
		http:     &http.Client{Timeout: 10 * time.Second},
		guard:    guard,
		logger:   logger.Named("marketdata"),
	}
}

// Conditions fetches a fresh snapshot. Transient failures are retried by
// the guard; once retries are exhausted (or the circuit is open) the error
// carries the service_unavailable code.
func (c *Client) Conditions(ctx context.Context) (Conditions, error) {
	if c.endpoint == "" {
		return Conditions{}, dexerr.New(dexerr.CodeUnavailable, "market data endpoint not configured")
	}

	var out Conditions
	err := c.guard.Do(ctx, func(ctx context.Context) error {
		snapshot, err := c.fetch(ctx)
		if err != nil {
			return err
		}
		out = snapshot
		return nil
	})
	if err != nil {
		c.logger.Error("market data fetch failed", zap.Error(err))
		if dexerr.IsCode(err, dexerr.CodeUnavailable) {
			return Conditions{}, err
		}
		return Conditions{}, dexerr.Wrap(dexerr.CodeUnavailable, "market data fetch exhausted retries", err)
	}
	return out, nil
}

func (c *Client) fetch(ctx context.Context) (Conditions, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return Conditions{}, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return Conditions{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Conditions{}, fmt.Errorf("market data endpoint returned %d", resp.StatusCode)
	}

	var snapshot Conditions
	if err := json.NewDecoder(resp.Body).Decode(&snapshot); err != nil {
		return Conditions{}, fmt.Errorf("decode market data: %w", err)
	}
	return snapshot, nil
}
