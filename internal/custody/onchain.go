package custody

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"stratexec/internal/errs"
	"stratexec/pkg/contractclient"
	"stratexec/pkg/txlistener"
)

// OnChain binds the Custody interface to a deployed custody contract via
// pkg/contractclient. Every state-changing method submits a transaction
// signed by key and blocks on its receipt through the listener before
// returning; on-chain revert reasons are mapped back onto the shared
// errs.Kind taxonomy so callers never have to special-case a raw revert
// string.
type OnChain struct {
	client   contractclient.ContractClient
	key      *ecdsa.PrivateKey
	from     common.Address
	listener txlistener.TxListener
	gasLimit *uint64
}

// NewOnChain binds client to a signer key whose address is from, waiting on
// receipts through listener.
func NewOnChain(client contractclient.ContractClient, key *ecdsa.PrivateKey, from common.Address, listener txlistener.TxListener) *OnChain {
	return &OnChain{client: client, key: key, from: from, listener: listener}
}

// send submits a custody call with zero value: every method the custody
// contract exposes moves funds through its own accounting (deposit/withdraw
// amounts, executeBuy/executeSell ethIn), none of them is payable.
func (o *OnChain) send(ctx context.Context, method string, args ...interface{}) (TxResult, error) {
	hash, err := o.client.Send(contractclient.Standard, o.gasLimit, nil, &o.from, o.key, method, args...)
	if err != nil {
		return TxResult{}, classifyRevert(method, err)
	}
	receipt, err := o.listener.WaitForTransactionCtx(ctx, hash)
	if err != nil {
		return TxResult{}, errs.Wrap(errs.KindTimeout, "timed out waiting for "+method+" receipt", err)
	}
	if receipt.Status == 0 {
		return TxResult{}, errs.Revert(errs.KindUnknownRevert, method+" reverted", receipt.TxHash.Hex())
	}
	return TxResult{Hash: receipt.TxHash, Status: "submitted"}, nil
}

func (o *OnChain) Deposit(ctx context.Context, depositor common.Address, amountWei *big.Int) error {
	_, err := o.send(ctx, "deposit", depositor, amountWei)
	return err
}

func (o *OnChain) Withdraw(ctx context.Context, caller common.Address, amountWei *big.Int) error {
	_, err := o.send(ctx, "withdraw", caller, amountWei)
	return err
}

func (o *OnChain) WithdrawAll(ctx context.Context, caller common.Address) (*big.Int, error) {
	before, err := o.BalanceOf(ctx, caller)
	if err != nil {
		return nil, err
	}
	if _, err := o.send(ctx, "withdrawAll", caller); err != nil {
		return nil, err
	}
	return before, nil
}

func (o *OnChain) WithdrawTokens(ctx context.Context, caller, token common.Address) error {
	_, err := o.send(ctx, "withdrawTokens", caller, token)
	return err
}

func (o *OnChain) BalanceOf(ctx context.Context, user common.Address) (*big.Int, error) {
	out, err := o.client.Call(&o.from, "balanceOf", user)
	if err != nil {
		return nil, errs.Wrap(errs.KindUnknownRevert, "balanceOf call failed", err)
	}
	if len(out) != 1 {
		return nil, errs.New(errs.KindUnknownRevert, "balanceOf returned an unexpected shape")
	}
	bal, ok := out[0].(*big.Int)
	if !ok {
		return nil, errs.New(errs.KindUnknownRevert, "balanceOf did not return a uint256")
	}
	return bal, nil
}

// FeeBps reads the operator fee configured on the deployed contract, so
// delegate-mode quoting subtracts the actual charged fee rather than
// assuming zero.
func (o *OnChain) FeeBps(ctx context.Context) (int64, error) {
	out, err := o.client.Call(&o.from, "feeBps")
	if err != nil {
		return 0, errs.Wrap(errs.KindUnknownRevert, "feeBps call failed", err)
	}
	if len(out) != 1 {
		return 0, errs.New(errs.KindUnknownRevert, "feeBps returned an unexpected shape")
	}
	bps, ok := out[0].(*big.Int)
	if !ok {
		return 0, errs.New(errs.KindUnknownRevert, "feeBps did not return a uint256")
	}
	return bps.Int64(), nil
}

func (o *OnChain) ExecuteBuy(ctx context.Context, caller, user, pair common.Address, ethIn, minTokensOut *big.Int, deadline time.Time) (TxResult, error) {
	return o.send(ctx, "executeBuy", user, pair, ethIn, minTokensOut, big.NewInt(deadline.Unix()))
}

func (o *OnChain) ExecuteSell(ctx context.Context, caller, user, pair common.Address, tokenIn, minEthOut *big.Int, deadline time.Time) (TxResult, error) {
	return o.send(ctx, "executeSell", user, pair, tokenIn, minEthOut, big.NewInt(deadline.Unix()))
}

func (o *OnChain) SetOperator(ctx context.Context, caller, operator common.Address) error {
	_, err := o.send(ctx, "setOperator", operator)
	return err
}

func (o *OnChain) SetFee(ctx context.Context, caller common.Address, feeBps int64) error {
	if feeBps > MaxFeeBps || feeBps < 0 {
		return errs.New(errs.KindParameterOutOfRange, "fee exceeds the 1000 bps ceiling")
	}
	_, err := o.send(ctx, "setFee", big.NewInt(feeBps))
	return err
}

func (o *OnChain) SetFeeReceiver(ctx context.Context, caller, receiver common.Address) error {
	_, err := o.send(ctx, "setFeeReceiver", receiver)
	return err
}

func (o *OnChain) SetPaused(ctx context.Context, caller common.Address, paused bool) error {
	_, err := o.send(ctx, "setPaused", paused)
	return err
}

func (o *OnChain) AllowPair(ctx context.Context, caller, pair common.Address, allowed bool) error {
	_, err := o.send(ctx, "allowPair", pair, allowed)
	return err
}

// classifyRevert maps a Send() error's message onto the shared errs.Kind
// taxonomy by matching the revert reason strings the custody contract is
// expected to emit. A reason that matches none of these falls back to
// KindUnknownRevert, carrying the raw message for diagnostics.
func classifyRevert(method string, err error) error {
	msg := err.Error()
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "not authorized"), strings.Contains(lower, "not the operator"), strings.Contains(lower, "not the owner"):
		return errs.Wrap(errs.KindNotAuthorized, method+" rejected by contract", err)
	case strings.Contains(lower, "paused"):
		return errs.Wrap(errs.KindPaused, method+" rejected while paused", err)
	case strings.Contains(lower, "pair not allowed"), strings.Contains(lower, "not allowlisted"):
		return errs.Wrap(errs.KindPairNotAllowed, method+" rejected: pair not allowlisted", err)
	case strings.Contains(lower, "deadline"):
		return errs.Wrap(errs.KindDeadlineExpired, method+" rejected: deadline expired", err)
	case strings.Contains(lower, "slippage"), strings.Contains(lower, "min out"):
		return errs.Wrap(errs.KindSlippageExceeded, method+" rejected: slippage exceeded", err)
	case strings.Contains(lower, "insufficient"):
		return errs.Wrap(errs.KindInsufficientBalance, method+" rejected: insufficient balance", err)
	case strings.Contains(lower, "reentra"):
		return errs.Wrap(errs.KindReentrancy, method+" rejected: reentrant call", err)
	default:
		return errs.Revert(errs.KindUnknownRevert, method+" reverted", msg)
	}
}
