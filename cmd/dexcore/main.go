// Command dexcore wires the routing and execution engine: configuration,
// logging, chain connectivity, market data, slippage protection, the token
// graph router, and the prometheus metrics listener.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/JackSmack1971/DEX-Core-Engine/internal/chain"
	"github.com/JackSmack1971/DEX-Core-Engine/internal/config"
	"github.com/JackSmack1971/DEX-Core-Engine/internal/dex"
	"github.com/JackSmack1971/DEX-Core-Engine/internal/dex/uniswapv2"
	"github.com/JackSmack1971/DEX-Core-Engine/internal/marketdata"
	"github.com/JackSmack1971/DEX-Core-Engine/internal/resilience"
	"github.com/JackSmack1971/DEX-Core-Engine/internal/router"
	"github.com/JackSmack1971/DEX-Core-Engine/internal/slippage"
	"github.com/JackSmack1971/DEX-Core-Engine/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("DEXCORE_CONFIG"))
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var heights *chain.Heights
	if cfg.ChainRPC != "" {
		heights, err = chain.Dial(ctx, cfg.ChainRPC)
		if err != nil {
			log.Fatal("chain connection failed", zap.Error(err))
		}
		defer heights.Close()
	} else {
		log.Warn("no chain RPC configured; route cache degrades to TTL-only expiry")
	}

	marketGuard := resilience.NewGuard(
		resilience.NewCircuitBreaker("market-data", cfg.Resilience.FailureThreshold, cfg.Resilience.RecoveryTimeout, log),
		resilience.NewRetryPolicy(cfg.Resilience.RetryAttempts, cfg.Resilience.RetryBaseDelay, cfg.Resilience.RetryMaxDelay, log),
	)
	marketClient := marketdata.NewClient(cfg.MarketData.Endpoint, marketGuard, log)

	var stream *marketdata.Stream
	if cfg.MarketData.StreamURL != "" {
		stream = marketdata.NewStream(cfg.MarketData.StreamURL, log)
		stream.Start(ctx)
		defer stream.Stop()
	}

	engine := slippage.NewEngine(
		slippage.Params{TolerancePercent: decimal.NewFromFloat(cfg.Slippage.TolerancePercent)},
		slippage.Config{
			MaxSlippageBps:     cfg.Slippage.MaxSlippageBps,
			RejectZeroSlippage: cfg.Slippage.RejectZeroSlippage,
		},
		marketdata.NewStreamingSource(stream, marketClient),
		log,
	)

	routerCfg := router.DefaultConfig()
	routerCfg.CacheTTL = cfg.Router.CacheTTL
	routerCfg.MaxChunkAttempts = cfg.Router.MaxChunkAttempts
	routerCfg.FailureThreshold = cfg.Resilience.FailureThreshold
	routerCfg.RecoveryTimeout = cfg.Resilience.RecoveryTimeout
	routerCfg.RetryAttempts = cfg.Resilience.RetryAttempts
	routerCfg.RetryBaseDelay = cfg.Resilience.RetryBaseDelay
	routerCfg.RetryMaxDelay = cfg.Resilience.RetryMaxDelay

	var chainHeights dex.ChainHeights
	if heights != nil {
		chainHeights = heights
	}
	r := router.New(routerCfg, engine, chainHeights, log)

	for _, ac := range cfg.Adapters {
		if heights == nil {
			log.Warn("skipping adapter, no chain connection", zap.String("adapter", ac.Name))
			continue
		}
		pools := make([]dex.Pool, 0, len(ac.Pools))
		for _, pc := range ac.Pools {
			pools = append(pools, dex.Pool{
				TokenA: dex.Token(pc.TokenA),
				TokenB: dex.Token(pc.TokenB),
				Fee:    decimal.NewFromFloat(pc.Fee),
			})
		}
		adapter, err := uniswapv2.New(uniswapv2.Config{
			Name:        ac.Name,
			Router:      common.HexToAddress(ac.Router),
			Pools:       pools,
			GasEstimate: decimal.NewFromFloat(ac.GasEstimate),
		}, heights.Client(), nil, log)
		if err != nil {
			log.Fatal("adapter construction failed", zap.String("adapter", ac.Name), zap.Error(err))
		}
		r.RegisterAdapter(adapter)
	}
	r.RebuildGraph(ctx)

	metricsSrv := &http.Server{Addr: cfg.Metrics.Addr, Handler: promhttp.Handler()}
	go func() {
		log.Info("metrics listener started", zap.String("addr", cfg.Metrics.Addr))
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("metrics listener failed", zap.Error(err))
		}
	}()

	log.Info("dexcore started", zap.Int("adapters", len(cfg.Adapters)))
	<-ctx.Done()

	_ = metricsSrv.Shutdown(context.Background())
	log.Info("dexcore stopped")
}
