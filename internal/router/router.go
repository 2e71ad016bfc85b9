// Package router owns the aggregate view of reachable swaps across every
// registered exchange adapter. It builds a weighted token graph from the
// adapters' pool listings, answers best-path and best-quote queries with a
// block-height-segregated cache, enumerates triangular cycles for the
// arbitrage layer, and executes multi-hop swaps through the slippage
// protection engine.
package router

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/JackSmack1971/DEX-Core-Engine/internal/dex"
	"github.com/JackSmack1971/DEX-Core-Engine/internal/resilience"
	"github.com/JackSmack1971/DEX-Core-Engine/internal/slippage"
	"github.com/JackSmack1971/DEX-Core-Engine/pkg/dexerr"
	"github.com/JackSmack1971/DEX-Core-Engine/pkg/metrics"
)

// Route is a resolved multi-hop path. Adapters holds one entry per hop
// (len(Path)-1 entries).
type Route struct {
	Path     []dex.Token
	Adapters []*dex.Guarded
	Cost     decimal.Decimal
}

// Cycle is one triangular arbitrage structure: Tokens is a 4-element
// closed path (a, b, c, a) and Adapters carries the venue per hop. The
// router discovers structure only; profitability is the arbitrage
// detector's concern.
type Cycle struct {
	Adapters []*dex.Guarded
	Tokens   []dex.Token
	Cost     decimal.Decimal
}

// Config tunes routing and execution.
type Config struct {
	// CacheTTL bounds how long a cached route may be served within one
	// block.
	CacheTTL time.Duration
	// MaxChunkAttempts bounds order-size halvings per chunk.
	MaxChunkAttempts int

	// Per-adapter resilience settings; each registered adapter gets its
	// own breaker and retry policy built from these.
	FailureThreshold int
	RecoveryTimeout  time.Duration
	RetryAttempts    int
	RetryBaseDelay   time.Duration
	RetryMaxDelay    time.Duration
}

// DefaultConfig returns the shipped routing configuration.
func DefaultConfig() Config {
	return Config{
		CacheTTL:         30 * time.Second,
		MaxChunkAttempts: 4,
		FailureThreshold: 5,
		RecoveryTimeout:  30 * time.Second,
		RetryAttempts:    3,
		RetryBaseDelay:   100 * time.Millisecond,
		RetryMaxDelay:    30 * time.Second,
	}
}

type cacheKey struct {
	in     dex.Token
	out    dex.Token
	height uint64
}

type cacheEntry struct {
	route     *Route
	expiresAt time.Time
}

// Router aggregates adapters into one routing surface.
type Router struct {
	cfg      Config
	slippage *slippage.Engine
	heights  dex.ChainHeights
	logger   *zap.Logger

	mu       sync.RWMutex
	adapters []*dex.Guarded

	// The graph is published by atomic swap; nil means "rebuild lazily on
	// next use".
	graph atomic.Pointer[graph]

	cacheMu sync.RWMutex
	cache   map[cacheKey]cacheEntry
}

// New builds a router. heights may be nil; the cache then degrades to
// TTL-only expiry at height 0.
func New(cfg Config, slippageEngine *slippage.Engine, heights dex.ChainHeights, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxChunkAttempts <= 0 {
		cfg.MaxChunkAttempts = 4
	}
	return &Router{
		cfg:      cfg,
		slippage: slippageEngine,
		heights:  heights,
		logger:   logger.Named("router"),
		cache:    make(map[cacheKey]cacheEntry),
	}
}

// RegisterAdapter appends an adapter, wrapping it in its own dedicated
// circuit breaker and retry policy. The graph is NOT rebuilt here; it is
// rebuilt lazily on the next routing call (or explicitly via RebuildGraph).
func (r *Router) RegisterAdapter(a dex.Adapter) {
	breaker := resilience.NewCircuitBreaker(a.Name(), r.cfg.FailureThreshold, r.cfg.RecoveryTimeout, r.logger)
	retry := resilience.NewRetryPolicy(r.cfg.RetryAttempts, r.cfg.RetryBaseDelay, r.cfg.RetryMaxDelay, r.logger)
	guarded := dex.NewGuarded(a, resilience.NewGuard(breaker, retry), r.logger)

	r.mu.Lock()
	r.adapters = append(r.adapters, guarded)
	r.mu.Unlock()

	r.graph.Store(nil)
	r.logger.Info("adapter registered", zap.String("adapter", a.Name()))
}

// RebuildGraph rebuilds the token graph from all adapters' pool listings
// and publishes it in one atomic swap.
func (r *Router) RebuildGraph(ctx context.Context) {
	r.mu.RLock()
	adapters := make([]*dex.Guarded, len(r.adapters))
	copy(adapters, r.adapters)
	r.mu.RUnlock()

	g := buildGraph(ctx, adapters)
	r.graph.Store(g)
	r.logger.Debug("graph rebuilt", zap.Int("tokens", len(g.edges)))
}

func (r *Router) currentGraph(ctx context.Context) *graph {
	if g := r.graph.Load(); g != nil {
		return g
	}
	r.RebuildGraph(ctx)
	return r.graph.Load()
}

// currentHeight reads the chain head, degrading to 0 when no chain
// connection is available or the read fails.
func (r *Router) currentHeight(ctx context.Context) uint64 {
	if r.heights == nil {
		return 0
	}
	height, err := r.heights.BlockHeight(ctx)
	if err != nil {
		r.logger.Debug("block height unavailable", zap.Error(err))
		return 0
	}
	return height
}

// GetBestRoute returns the lowest-cost path from tokenIn to tokenOut.
// Routes are cached per (pair, block height) with a TTL; a hit within the
// same block returns the identical route object. Duplicate concurrent
// searches for an uncached key are tolerated; the last cache write wins.
func (r *Router) GetBestRoute(ctx context.Context, tokenIn, tokenOut dex.Token, amountIn decimal.Decimal) (*Route, error) {
	if tokenIn == "" || tokenOut == "" {
		return nil, dexerr.New(dexerr.CodeInvalidParams, "token identifiers required")
	}
	if amountIn.Sign() <= 0 {
		return nil, dexerr.New(dexerr.CodeInvalidParams, "amount_in must be positive")
	}

	key := cacheKey{in: tokenIn, out: tokenOut, height: r.currentHeight(ctx)}

	r.cacheMu.RLock()
	entry, hit := r.cache[key]
	r.cacheMu.RUnlock()
	if hit && time.Now().Before(entry.expiresAt) {
		metrics.RouteCacheHits.Inc()
		return entry.route, nil
	}
	metrics.RouteCacheMisses.Inc()

	g := r.currentGraph(ctx)
	path, adapters, cost, ok := g.shortestPath(tokenIn, tokenOut)
	if !ok {
		return nil, dexerr.Newf(dexerr.CodeNoRoute, "no route from %s to %s", tokenIn, tokenOut)
	}

	route := &Route{Path: path, Adapters: adapters, Cost: cost}
	r.cacheMu.Lock()
	// Heights advance forever, so keys for old blocks would otherwise
	// accumulate unboundedly; expired entries are swept on every insert.
	now := time.Now()
	for k, e := range r.cache {
		if now.After(e.expiresAt) {
			delete(r.cache, k)
		}
	}
	r.cache[key] = cacheEntry{route: route, expiresAt: now.Add(r.cfg.CacheTTL)}
	r.cacheMu.Unlock()

	return route, nil
}

// GetBestQuote walks the best route applying each hop's adapter quote in
// sequence and returns the final output amount.
func (r *Router) GetBestQuote(ctx context.Context, tokenIn, tokenOut dex.Token, amountIn decimal.Decimal) (decimal.Decimal, error) {
	route, err := r.GetBestRoute(ctx, tokenIn, tokenOut, amountIn)
	if err != nil {
		return decimal.Zero, err
	}

	amount := amountIn
	for i, adapter := range route.Adapters {
		out, err := adapter.GetQuote(ctx, route.Path[i], route.Path[i+1], amount)
		if err != nil {
			return decimal.Zero, err
		}
		if out.Sign() <= 0 {
			r.logger.Warn("hop quoted zero",
				zap.String("adapter", adapter.Name()),
				zap.String("token_in", string(route.Path[i])),
				zap.String("token_out", string(route.Path[i+1])))
			return decimal.Zero, nil
		}
		amount = out
	}
	return amount, nil
}

// FindTriangularCycles enumerates deduplicated 3-hop cycles in the current
// graph for the arbitrage detector.
func (r *Router) FindTriangularCycles(ctx context.Context) []Cycle {
	return r.currentGraph(ctx).triangularCycles()
}
