package strategyrt

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"stratexec/internal/executor"
	"stratexec/internal/ledger"
	"stratexec/internal/metrics"
	"stratexec/internal/poolmath"
	"stratexec/internal/subgraph"
)

var weiPerEth = decimal.New(1, 18)

func decimalToWei(d decimal.Decimal) *big.Int {
	return d.Mul(weiPerEth).BigInt()
}

func weiToDecimal(wei *big.Int) decimal.Decimal {
	return decimal.NewFromBigInt(wei, -18)
}

// PairReader resolves a pair's current constant-product reserves, used for
// live price and market-cap quoting. internal/executor.PairClient satisfies
// this directly.
type PairReader interface {
	Reserves(ctx context.Context, pair common.Address) (poolmath.Reserves, error)
}

// BalanceReader resolves the configured wallet's live on-chain token
// balance.
type BalanceReader interface {
	TokenBalance(ctx context.Context, token common.Address) (*big.Int, error)
}

// EthUsdSource supplies a live ETH/USD price, used only to derive market
// cap.
type EthUsdSource interface {
	EthUsd(ctx context.Context) (*big.Rat, error)
}

// MarketData is the subset of the subgraph client the capability surface
// reads from.
type MarketData interface {
	ListCoins(ctx context.Context, sort subgraph.Sort, limit, offset int) ([]subgraph.Coin, error)
}

// TradeRecorder is the run-scoped write handle to the Ledger a Capability
// holds instead of ledger-wide authority, breaking the capability/runtime/
// ledger reference cycle: the capability can append a trade to its own Run
// and nothing else.
type TradeRecorder interface {
	AppendTrade(runID, side, pair string, ethAmountWei, tokenAmountWei *big.Int, txHash string) (*ledger.Trade, error)
}

// CapabilityConfig wires a Capability to the rest of the core: market-data
// reads, reserve/balance reads, the trade executor, the run-scoped ledger
// write handle, and the per-strategy rate limiter and log buffer.
type CapabilityConfig struct {
	Market   MarketData
	Pairs    PairReader
	Balances BalanceReader
	EthUsd   EthUsdSource
	Trader   *executor.Executor
	Recorder TradeRecorder
	RunID    string
	Wallet   common.Address
	Limiter  *RateLimiter
	Logs     *LogBuffer
}

// Capability is the StrategyAPI object handed to one tick of a running
// strategy. It is the only object reachable from user code, and exposes
// exactly listCoins, getPrice, getMarketCap, buy, sell, getBalance, log,
// and schedule — nothing else is reachable.
type Capability struct {
	cfg           CapabilityConfig
	requestedNext string
	rescheduled   bool
}

// NewCapability builds a Capability for one tick.
func NewCapability(cfg CapabilityConfig) *Capability {
	return &Capability{cfg: cfg}
}

// ListCoins reads a ranked coin list from the subgraph. Non-mutating.
func (c *Capability) ListCoins(ctx context.Context, sort subgraph.Sort, limit int) ([]subgraph.Coin, error) {
	if err := c.cfg.Limiter.AcquireRead(ctx); err != nil {
		return nil, err
	}
	defer c.cfg.Limiter.ReleaseRead()
	return c.cfg.Market.ListCoins(ctx, sort, limit, 0)
}

// GetPrice quotes a pair's current price in ETH per token, live against
// its reserves.
func (c *Capability) GetPrice(ctx context.Context, pair common.Address) (decimal.Decimal, error) {
	if err := c.cfg.Limiter.AcquireRead(ctx); err != nil {
		return decimal.Decimal{}, err
	}
	defer c.cfg.Limiter.ReleaseRead()

	r, err := c.cfg.Pairs.Reserves(ctx, pair)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if r.Token.Sign() == 0 {
		return decimal.Zero, nil
	}
	price := new(big.Rat).SetFrac(r.ETH, r.Token)
	f, _ := price.Float64()
	return decimal.NewFromFloat(f), nil
}

// GetMarketCap derives a pair's market cap from its reserves and a live
// ETH/USD price.
func (c *Capability) GetMarketCap(ctx context.Context, pair common.Address) (decimal.Decimal, error) {
	if err := c.cfg.Limiter.AcquireRead(ctx); err != nil {
		return decimal.Decimal{}, err
	}
	defer c.cfg.Limiter.ReleaseRead()

	r, err := c.cfg.Pairs.Reserves(ctx, pair)
	if err != nil {
		return decimal.Decimal{}, err
	}
	ethUsd, err := c.cfg.EthUsd.EthUsd(ctx)
	if err != nil {
		return decimal.Decimal{}, err
	}
	capWei := poolmath.MarketCapWei(r.ETH, ethUsd)
	f, _ := capWei.Float64()
	return decimal.NewFromFloat(f), nil
}

// Buy submits a buy via the Executor and returns its outcome.
func (c *Capability) Buy(ctx context.Context, pair common.Address, ethAmount decimal.Decimal) (executor.Result, error) {
	return c.trade(ctx, executor.Buy, pair, ethAmount)
}

// Sell is Buy's symmetric counterpart.
func (c *Capability) Sell(ctx context.Context, pair common.Address, tokenAmount decimal.Decimal) (executor.Result, error) {
	return c.trade(ctx, executor.Sell, pair, tokenAmount)
}

func (c *Capability) trade(ctx context.Context, side executor.Side, pair common.Address, amount decimal.Decimal) (executor.Result, error) {
	if err := c.cfg.Limiter.AcquireSubmit(ctx); err != nil {
		return executor.Result{}, err
	}
	metrics.SubmissionsInFlight.WithLabelValues(c.cfg.RunID).Inc()
	defer func() {
		metrics.SubmissionsInFlight.WithLabelValues(c.cfg.RunID).Dec()
		c.cfg.Limiter.ReleaseSubmit()
	}()

	result, err := c.cfg.Trader.Execute(ctx, executor.Intent{Side: side, Pair: pair, Amount: amount, User: c.cfg.Wallet})
	if err != nil {
		c.Log(LogError, "trade failed: "+err.Error())
		return executor.Result{}, err
	}

	ethWei, tokenWei := decimalToWei(amount), big.NewInt(0)
	if side == executor.Buy {
		if result.TokensOut != nil {
			tokenWei = result.TokensOut
		}
	} else {
		tokenWei = decimalToWei(amount)
		ethWei = big.NewInt(0)
		if result.EthOut != nil {
			ethWei = result.EthOut
		}
	}
	if c.cfg.Recorder != nil {
		if _, err := c.cfg.Recorder.AppendTrade(c.cfg.RunID, string(side), pair.Hex(), ethWei, tokenWei, result.Hash.Hex()); err != nil {
			c.Log(LogError, "failed to record trade: "+err.Error())
			return executor.Result{}, err
		}
	}

	metrics.RecordTrade(string(side))
	c.Log(LogTrade, string(side)+" "+amount.String()+" on "+pair.Hex())
	return result, nil
}

// GetBalance reads the configured wallet's live on-chain token balance.
func (c *Capability) GetBalance(ctx context.Context, token common.Address) (*big.Int, error) {
	if err := c.cfg.Limiter.AcquireRead(ctx); err != nil {
		return nil, err
	}
	defer c.cfg.Limiter.ReleaseRead()
	return c.cfg.Balances.TokenBalance(ctx, token)
}

// Log appends a line to the run's rolling log buffer.
func (c *Capability) Log(level LogLevel, message string) {
	c.cfg.Logs.Append(level, message, time.Now())
}

// Schedule records the tick's next-run request. once (or an empty string)
// ends the run after the current tick; any other recognized interval arms
// the next tick at that offset. An unrecognized form is refused and the
// request is not recorded.
func (c *Capability) Schedule(interval string) error {
	_, once, err := ParseInterval(interval)
	if err != nil {
		return err
	}
	c.requestedNext = interval
	c.rescheduled = !once
	return nil
}

// Scheduled reports what the completed tick requested: the interval string
// passed to schedule (if any) and whether it disables rescheduling.
func (c *Capability) Scheduled() (interval string, rescheduled bool) {
	return c.requestedNext, c.rescheduled
}
