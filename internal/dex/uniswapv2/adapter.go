// Package uniswapv2 implements the dex.Adapter contract against a Uniswap
// V2 compatible router contract. Quotes go through getAmountsOut; swaps go
// through swapExactTokensForTokens with the minimum-output bound supplied
// by the caller. The realized output is re-derived by diffing the
// recipient's token balance around the swap, so a silently-failing token
// transfer is surfaced even when the chain reports success.
package uniswapv2

import (
	"context"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/JackSmack1971/DEX-Core-Engine/internal/dex"
	"github.com/JackSmack1971/DEX-Core-Engine/pkg/dexerr"
)

// A minimal ABI is sufficient: the quote view, the swap entrypoint, and the
// ERC-20 balance view used for output re-derivation.
const routerABIJSON = `[
  {"name":"getAmountsOut","type":"function","stateMutability":"view",
   "inputs":[{"name":"amountIn","type":"uint256"},{"name":"path","type":"address[]"}],
   "outputs":[{"name":"amounts","type":"uint256[]"}]},
  {"name":"swapExactTokensForTokens","type":"function","stateMutability":"nonpayable",
   "inputs":[{"name":"amountIn","type":"uint256"},{"name":"amountOutMin","type":"uint256"},
             {"name":"path","type":"address[]"},{"name":"to","type":"address"},
             {"name":"deadline","type":"uint256"}],
   "outputs":[{"name":"amounts","type":"uint256[]"}]}
]`

const erc20ABIJSON = `[
  {"name":"balanceOf","type":"function","stateMutability":"view",
   "inputs":[{"name":"owner","type":"address"}],
   "outputs":[{"name":"","type":"uint256"}]}
]`

// CallBackend is the read-only contract surface the adapter needs.
// *ethclient.Client satisfies it.
type CallBackend interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// TxSender signs and broadcasts prepared calldata, blocking until the
// transaction is mined. Key custody stays behind this interface.
type TxSender interface {
	Send(ctx context.Context, to common.Address, data []byte) (string, error)
	From() common.Address
}

// Config describes one Uniswap V2 deployment.
type Config struct {
	Name        string
	Router      common.Address
	Pools       []dex.Pool
	GasEstimate decimal.Decimal
	// SwapDeadline bounds how long a broadcast swap stays valid.
	SwapDeadline time.Duration
}

// Adapter is the Uniswap V2 implementation of dex.Adapter.
type Adapter struct {
	cfg       Config
	backend   CallBackend
	sender    TxSender
	routerABI abi.ABI
	erc20ABI  abi.ABI
	logger    *zap.Logger
}

// New builds the adapter. Pool tokens must be hex chain addresses.
func New(cfg Config, backend CallBackend, sender TxSender, logger *zap.Logger) (*Adapter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SwapDeadline <= 0 {
		cfg.SwapDeadline = 5 * time.Minute
	}
	for _, p := range cfg.Pools {
		if !common.IsHexAddress(string(p.TokenA)) || !common.IsHexAddress(string(p.TokenB)) {
			return nil, dexerr.Newf(dexerr.CodeInvalidParams,
				"pool %s/%s: tokens must be hex addresses", p.TokenA, p.TokenB)
		}
	}
	routerABI, err := abi.JSON(strings.NewReader(routerABIJSON))
	if err != nil {
		return nil, err
	}
	erc20ABI, err := abi.JSON(strings.NewReader(erc20ABIJSON))
	if err != nil {
		return nil, err
	}
	return &Adapter{
		cfg:       cfg,
		backend:   backend,
		sender:    sender,
		routerABI: routerABI,
		erc20ABI:  erc20ABI,
		logger:    logger.Named("uniswapv2-" + cfg.Name),
	}, nil
}

// Name identifies this deployment.
func (a *Adapter) Name() string { return a.cfg.Name }

// GasEstimate is the configured per-swap gas cost in fee units.
func (a *Adapter) GasEstimate() decimal.Decimal { return a.cfg.GasEstimate }

// Pools lists the configured pairs.
func (a *Adapter) Pools(ctx context.Context) ([]dex.Pool, error) {
	out := make([]dex.Pool, len(a.cfg.Pools))
	copy(out, a.cfg.Pools)
	return out, nil
}

// GetQuote queries getAmountsOut for the direct pair. A quote that cannot
// be decoded is treated as a missing pool and reported as zero; transport
// errors propagate so the caller's retry policy can act on them.
func (a *Adapter) GetQuote(ctx context.Context, tokenIn, tokenOut dex.Token, amountIn decimal.Decimal) (decimal.Decimal, error) {
	amounts, err := a.amountsOut(ctx, amountIn.BigInt(), []dex.Token{tokenIn, tokenOut})
	if err != nil {
		return decimal.Zero, err
	}
	if len(amounts) < 2 {
		return decimal.Zero, nil
	}
	return decimal.NewFromBigInt(amounts[len(amounts)-1], 0), nil
}

// GetBestRoute returns the direct hop when a configured pool covers the
// pair, or no route otherwise. Uniswap V2 path-finding beyond the direct
// pair is the system router's job.
func (a *Adapter) GetBestRoute(ctx context.Context, tokenIn, tokenOut dex.Token, amountIn decimal.Decimal) ([]dex.Token, error) {
	for _, p := range a.cfg.Pools {
		if (p.TokenA == tokenIn && p.TokenB == tokenOut) || (p.TokenB == tokenIn && p.TokenA == tokenOut) {
			return []dex.Token{tokenIn, tokenOut}, nil
		}
	}
	return nil, nil
}

// GetLiquidityInfo samples the pair at one percent of the requested size
// and at full size; the rate decay between the two approximates price
// impact in percent.
func (a *Adapter) GetLiquidityInfo(ctx context.Context, tokenIn, tokenOut dex.Token, amountIn decimal.Decimal) (dex.LiquidityInfo, error) {
	small := amountIn.Div(decimal.NewFromInt(100)).Floor()
	if small.Sign() <= 0 {
		small = decimal.NewFromInt(1)
	}
	smallOut, err := a.GetQuote(ctx, tokenIn, tokenOut, small)
	if err != nil {
		return dex.LiquidityInfo{}, err
	}
	largeOut, err := a.GetQuote(ctx, tokenIn, tokenOut, amountIn)
	if err != nil {
		return dex.LiquidityInfo{}, err
	}
	if smallOut.Sign() <= 0 || largeOut.Sign() <= 0 {
		return dex.LiquidityInfo{}, nil
	}
	smallRate := smallOut.Div(small)
	largeRate := largeOut.Div(amountIn)
	impact := decimal.Zero
	if smallRate.Sign() > 0 && largeRate.LessThan(smallRate) {
		impact = smallRate.Sub(largeRate).Div(smallRate).Mul(decimal.NewFromInt(100))
	}
	return dex.LiquidityInfo{Liquidity: largeOut, PriceImpact: impact}, nil
}

// ExecuteSwap broadcasts swapExactTokensForTokens and verifies receipt by
// balance diff. A swap that settles without delivering any tokenOut fails
// with execution_failed even though the chain reported success.
func (a *Adapter) ExecuteSwap(ctx context.Context, amountIn decimal.Decimal, route []dex.Token, amountOutMin decimal.Decimal) (string, error) {
	if a.sender == nil {
		return "", dexerr.New(dexerr.CodeUnavailable, "no transaction sender configured")
	}
	path := make([]common.Address, len(route))
	for i, t := range route {
		if !common.IsHexAddress(string(t)) {
			return "", dexerr.Newf(dexerr.CodeInvalidParams, "token %s is not a hex address", t)
		}
		path[i] = common.HexToAddress(string(t))
	}
	recipient := a.sender.From()
	outToken := path[len(path)-1]

	before, err := a.balanceOf(ctx, outToken, recipient)
	if err != nil {
		return "", err
	}

	deadline := big.NewInt(time.Now().Add(a.cfg.SwapDeadline).Unix())
	data, err := a.routerABI.Pack("swapExactTokensForTokens",
		amountIn.BigInt(), amountOutMin.BigInt(), path, recipient, deadline)
	if err != nil {
		return "", dexerr.Wrap(dexerr.CodeInvalidParams, "encode swap", err)
	}

	txID, err := a.sender.Send(ctx, a.cfg.Router, data)
	if err != nil {
		return "", err
	}

	after, err := a.balanceOf(ctx, outToken, recipient)
	if err != nil {
		return "", err
	}
	received := new(big.Int).Sub(after, before)
	if received.Sign() <= 0 {
		return "", dexerr.Newf(dexerr.CodeExecutionFailed,
			"swap %s settled but no %s was received", txID, route[len(route)-1])
	}

	a.logger.Info("swap executed",
		zap.String("tx", txID),
		zap.String("amount_in", amountIn.String()),
		zap.String("received", received.String()))
	return txID, nil
}

func (a *Adapter) amountsOut(ctx context.Context, amountIn *big.Int, route []dex.Token) ([]*big.Int, error) {
	path := make([]common.Address, len(route))
	for i, t := range route {
		if !common.IsHexAddress(string(t)) {
			return nil, dexerr.Newf(dexerr.CodeInvalidParams, "token %s is not a hex address", t)
		}
		path[i] = common.HexToAddress(string(t))
	}
	data, err := a.routerABI.Pack("getAmountsOut", amountIn, path)
	if err != nil {
		return nil, dexerr.Wrap(dexerr.CodeInvalidParams, "encode quote", err)
	}
	raw, err := a.backend.CallContract(ctx, ethereum.CallMsg{To: &a.cfg.Router, Data: data}, nil)
	if err != nil {
		return nil, err
	}
	var amounts []*big.Int
	if err := a.routerABI.UnpackIntoInterface(&amounts, "getAmountsOut", raw); err != nil {
		// Missing pool or malformed return: a zero quote, not a failure.
		a.logger.Debug("quote decode failed", zap.Error(err))
		return nil, nil
	}
	return amounts, nil
}

func (a *Adapter) balanceOf(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	data, err := a.erc20ABI.Pack("balanceOf", owner)
	if err != nil {
		return nil, err
	}
	raw, err := a.backend.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
	if err != nil {
		return nil, err
	}
	var balance *big.Int
	if err := a.erc20ABI.UnpackIntoInterface(&balance, "balanceOf", raw); err != nil {
		return nil, err
	}
	return balance, nil
}
