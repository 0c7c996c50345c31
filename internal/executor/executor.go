// Package executor implements the Trade Executor: it takes a validated
// trade intent, computes slippage bounds via internal/poolmath, and submits
// the trade either directly (signed from a stored key against the pair
// contract) or via internal/custody's delegate path, then blocks for the
// receipt through pkg/txlistener.
package executor

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"regexp"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"stratexec/internal/custody"
	"stratexec/internal/errs"
	"stratexec/internal/poolmath"
	"stratexec/pkg/contractclient"
	"stratexec/pkg/txlistener"
)

// Side is a trade's direction.
type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

// Mode is how a trade intent was actually carried out.
type Mode string

const (
	ModeDirect    Mode = "direct"
	ModeDelegate  Mode = "delegate"
	ModeSimulated Mode = "simulated"
)

// Intent is the validated trade request the Strategy Runtime hands to the
// executor; amount is ETH for a buy, token units for a sell, always a
// human-scale decimal (18 fractional digits).
type Intent struct {
	Side   Side
	Pair   common.Address
	Amount decimal.Decimal
	User   common.Address // delegate mode only
}

// Result is what a tick sees back from buy/sell: the submission outcome plus
// the mode that actually carried out the trade. TokensOut and EthOut hold the
// slippage-bounded minimum output the trade was submitted with, not the
// amount the pool settled.
type Result struct {
	Hash      common.Hash
	Status    string // "submitted" | "simulated"
	Mode      Mode
	TokensOut *big.Int // buys: minTokensOut
	EthOut    *big.Int // sells: minEthOut
}

var weiPerEth = decimal.New(1, 18)

// Pool is the constant-product pair reader/writer the Executor quotes and
// trades against in direct mode.
type Pool interface {
	Reserves(ctx context.Context, pair common.Address) (poolmath.Reserves, error)
	Buy(ctx context.Context, pair common.Address, ethIn *big.Int, minTokensOut *big.Int, deadline time.Time, key *ecdsa.PrivateKey, from common.Address) (*contractclient.TxReceipt, error)
	Sell(ctx context.Context, pair common.Address, tokenIn *big.Int, minEthOut *big.Int, deadline time.Time, key *ecdsa.PrivateKey, from common.Address) (*contractclient.TxReceipt, error)
}

// Config carries the Executor's configuration-derived behavior: the risk
// ceiling, default slippage, dry-run flag, and the credentials that decide
// mode selection.
type Config struct {
	MaxEthPerTrade     decimal.Decimal
	DefaultSlippageBps int64
	DryRun             bool

	CustodyConfigured bool
	OperatorKey       *ecdsa.PrivateKey
	OperatorAddr      common.Address
	DirectKey         *ecdsa.PrivateKey
	DirectAddr        common.Address
}

// Executor implements the six steps of the trade execution pipeline.
type Executor struct {
	cfg      Config
	pool     Pool
	custody  custody.Custody
	listener txlistener.TxListener
}

func New(cfg Config, pool Pool, cust custody.Custody, listener txlistener.TxListener) *Executor {
	return &Executor{cfg: cfg, pool: pool, custody: cust, listener: listener}
}

var addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// Execute runs the full pipeline for a single trade intent.
func (e *Executor) Execute(ctx context.Context, intent Intent) (Result, error) {
	if err := e.validate(intent); err != nil {
		return Result{}, err
	}

	if e.cfg.DryRun {
		return Result{Status: "simulated", Mode: ModeSimulated}, nil
	}

	mode, err := e.selectMode(intent)
	if err != nil {
		return Result{}, err
	}

	switch mode {
	case ModeDelegate:
		return e.executeDelegate(ctx, intent)
	case ModeDirect:
		return e.executeDirect(ctx, intent)
	default:
		return Result{}, errs.New(errs.KindVenueNotConfigured, "no execution mode is configured")
	}
}

func (e *Executor) validate(intent Intent) error {
	if !addressPattern.MatchString(intent.Pair.Hex()) {
		return errs.New(errs.KindBadAddress, "pair is not a well-formed address")
	}
	if intent.Amount.Sign() <= 0 {
		return errs.New(errs.KindBadAmount, "amount must be a positive decimal")
	}
	if intent.Side == Buy && intent.Amount.GreaterThan(e.cfg.MaxEthPerTrade) {
		return errs.New(errs.KindRiskLimitExceeded, "amount exceeds the per-trade ETH ceiling")
	}
	return nil
}

// selectMode picks delegate mode iff custody, operator key, and a user
// address are all present; otherwise direct mode iff a key is stored;
// otherwise reports that no mode is configured.
func (e *Executor) selectMode(intent Intent) (Mode, error) {
	if e.cfg.CustodyConfigured && e.cfg.OperatorKey != nil && intent.User != (common.Address{}) {
		return ModeDelegate, nil
	}
	if e.cfg.DirectKey != nil {
		return ModeDirect, nil
	}
	return "", errs.New(errs.KindDelegateNotConfigured, "neither delegate custody nor a direct signing key is configured")
}

func toWei(amount decimal.Decimal) *big.Int {
	return amount.Mul(weiPerEth).BigInt()
}

func (e *Executor) executeDirect(ctx context.Context, intent Intent) (Result, error) {
	reserves, err := e.pool.Reserves(ctx, intent.Pair)
	if err != nil {
		return Result{}, errs.Wrap(errs.KindNetworkUnavailable, "failed to read pair reserves", err)
	}

	amountWei := toWei(intent.Amount)
	deadline := time.Now().Add(time.Hour)

	if intent.Side == Buy {
		_, minOut := poolmath.BuyQuote(reserves, amountWei, e.cfg.DefaultSlippageBps)
		receipt, err := e.pool.Buy(ctx, intent.Pair, amountWei, minOut, deadline, e.cfg.DirectKey, e.cfg.DirectAddr)
		if err != nil {
			return Result{}, err
		}
		return Result{Hash: receipt.TxHash, Status: "submitted", Mode: ModeDirect, TokensOut: minOut}, nil
	}

	_, minOut := poolmath.SellQuote(reserves, amountWei, e.cfg.DefaultSlippageBps)
	receipt, err := e.pool.Sell(ctx, intent.Pair, amountWei, minOut, deadline, e.cfg.DirectKey, e.cfg.DirectAddr)
	if err != nil {
		return Result{}, err
	}
	return Result{Hash: receipt.TxHash, Status: "submitted", Mode: ModeDirect, EthOut: minOut}, nil
}

func (e *Executor) executeDelegate(ctx context.Context, intent Intent) (Result, error) {
	reserves, err := e.pool.Reserves(ctx, intent.Pair)
	if err != nil {
		return Result{}, errs.Wrap(errs.KindNetworkUnavailable, "failed to read pair reserves", err)
	}

	amountWei := toWei(intent.Amount)
	deadline := time.Now().Add(time.Hour)

	if intent.Side == Buy {
		// The pool never sees the custody fee portion: subtract it from
		// ethIn before quoting.
		feeBps, err := e.custody.FeeBps(ctx)
		if err != nil {
			return Result{}, errs.Wrap(errs.KindNetworkUnavailable, "failed to read custody fee", err)
		}
		netIn := new(big.Int).Sub(amountWei, bpsOf(amountWei, feeBps))
		_, minOut := poolmath.BuyQuote(reserves, netIn, e.cfg.DefaultSlippageBps)

		tx, err := e.custody.ExecuteBuy(ctx, e.cfg.OperatorAddr, intent.User, intent.Pair, amountWei, minOut, deadline)
		if err != nil {
			return Result{}, err
		}
		return Result{Hash: tx.Hash, Status: tx.Status, Mode: ModeDelegate, TokensOut: minOut}, nil
	}

	_, minOut := poolmath.SellQuote(reserves, amountWei, e.cfg.DefaultSlippageBps)
	tx, err := e.custody.ExecuteSell(ctx, e.cfg.OperatorAddr, intent.User, intent.Pair, amountWei, minOut, deadline)
	if err != nil {
		return Result{}, err
	}
	return Result{Hash: tx.Hash, Status: tx.Status, Mode: ModeDelegate, EthOut: minOut}, nil
}

func bpsOf(amount *big.Int, bps int64) *big.Int {
	fee := new(big.Int).Mul(amount, big.NewInt(bps))
	fee.Div(fee, big.NewInt(10000))
	return fee
}
