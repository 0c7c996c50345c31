// Package custody implements the contract-enforced split between an
// operator (who may trade) and a user (who may withdraw): delegation
// without custody. Two implementations satisfy the Custody interface: an
// on-chain binding for production delegate-mode trading, and an in-memory
// state machine for exercising the invariants in tests without a deployed
// contract. Dry-run mode does not use either: the executor short-circuits
// before reaching custody.
package custody

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"stratexec/internal/errs"
)

// MaxFeeBps is the hard ceiling on the operator fee: 1000 basis points (10%).
const MaxFeeBps = 1000

// TxResult is the outcome of a state-changing custody call.
type TxResult struct {
	Hash   common.Hash
	Status string // "submitted" | "simulated"
}

// Pool is the constant-product pair a custody contract forwards trades to.
// On-chain, this is a call into the pair contract; in the in-memory
// implementation it is backed by poolmath over a mutable Reserves value.
type Pool interface {
	Buy(ctx context.Context, netEthIn *big.Int, minTokensOut *big.Int) (tokensOut *big.Int, err error)
	Sell(ctx context.Context, tokenIn *big.Int, minEthOut *big.Int) (ethOut *big.Int, err error)
}

// Custody is the capability the Trade Executor uses in delegate mode.
// Failures are returned as *errs.Error; contract rejections carry one of the
// custody failure signals (NotAuthorized, Paused, PairNotAllowed,
// InsufficientBalance, DeadlineExpired, SlippageExceeded, Reentrancy), an
// out-of-range fee is ParameterOutOfRange, and the on-chain binding also
// reports Timeout and Unknown for receipt waits and unrecognized reverts.
type Custody interface {
	Deposit(ctx context.Context, depositor common.Address, amountWei *big.Int) error
	Withdraw(ctx context.Context, caller common.Address, amountWei *big.Int) error
	WithdrawAll(ctx context.Context, caller common.Address) (*big.Int, error)
	WithdrawTokens(ctx context.Context, caller, token common.Address) error
	BalanceOf(ctx context.Context, user common.Address) (*big.Int, error)
	FeeBps(ctx context.Context) (int64, error)

	ExecuteBuy(ctx context.Context, caller, user, pair common.Address, ethIn, minTokensOut *big.Int, deadline time.Time) (TxResult, error)
	ExecuteSell(ctx context.Context, caller, user, pair common.Address, tokenIn, minEthOut *big.Int, deadline time.Time) (TxResult, error)

	SetOperator(ctx context.Context, caller, operator common.Address) error
	SetFee(ctx context.Context, caller common.Address, feeBps int64) error
	SetFeeReceiver(ctx context.Context, caller, receiver common.Address) error
	SetPaused(ctx context.Context, caller common.Address, paused bool) error
	AllowPair(ctx context.Context, caller, pair common.Address, allowed bool) error
}

func notAuthorized(msg string) error { return errs.New(errs.KindNotAuthorized, msg) }
