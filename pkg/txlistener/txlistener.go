// Package txlistener waits for a submitted transaction's receipt, polling
// the chain at a configurable interval up to a configurable timeout. It
// backs the Trade Executor's "await receipt" step for both direct and
// delegate submissions.
package txlistener

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"stratexec/pkg/contractclient"
)

// ErrTimeout is returned when a receipt does not arrive before the
// listener's configured timeout.
var ErrTimeout = errors.New("txlistener: timed out waiting for receipt")

// TxListener waits for transaction receipts.
type TxListener interface {
	WaitForTransaction(hash common.Hash) (*contractclient.TxReceipt, error)
	WaitForTransactionCtx(ctx context.Context, hash common.Hash) (*contractclient.TxReceipt, error)
}

type listener struct {
	eth          *ethclient.Client
	pollInterval time.Duration
	timeout      time.Duration
}

// Option configures a TxListener at construction.
type Option func(*listener)

// WithPollInterval sets how often the listener polls for a receipt.
func WithPollInterval(d time.Duration) Option {
	return func(l *listener) { l.pollInterval = d }
}

// WithTimeout sets the default deadline used by WaitForTransaction (the
// context-free entry point); WaitForTransactionCtx honors the caller's
// context instead.
func WithTimeout(d time.Duration) Option {
	return func(l *listener) { l.timeout = d }
}

// NewTxListener builds a TxListener over eth, defaulting to a 3s poll
// interval and a 1h timeout (the on-chain trade deadline default).
func NewTxListener(eth *ethclient.Client, opts ...Option) TxListener {
	l := &listener{eth: eth, pollInterval: 3 * time.Second, timeout: time.Hour}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *listener) WaitForTransaction(hash common.Hash) (*contractclient.TxReceipt, error) {
	ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
	defer cancel()
	return l.WaitForTransactionCtx(ctx, hash)
}

func (l *listener) WaitForTransactionCtx(ctx context.Context, hash common.Hash) (*contractclient.TxReceipt, error) {
	ticker := time.NewTicker(l.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := l.eth.TransactionReceipt(ctx, hash)
		if err == nil {
			return toTxReceipt(receipt), nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s", ErrTimeout, hash.Hex())
		case <-ticker.C:
		}
	}
}

func toTxReceipt(r *types.Receipt) *contractclient.TxReceipt {
	return &contractclient.TxReceipt{
		TxHash:            r.TxHash,
		Status:            r.Status,
		GasUsed:           fmt.Sprintf("%d", r.GasUsed),
		EffectiveGasPrice: r.EffectiveGasPrice.String(),
		Logs:              r.Logs,
	}
}
