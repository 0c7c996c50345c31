package executor

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"stratexec/internal/errs"
	"stratexec/internal/poolmath"
	"stratexec/pkg/contractclient"
	"stratexec/pkg/txlistener"
)

// pairABIJSON is the minimal ABI fragment PairClient calls against any pair
// contract: two view functions for reserves, two state-changing functions
// for the swap itself.
const pairABIJSON = `[
	{"constant":true,"inputs":[],"name":"ethReserve","outputs":[{"name":"","type":"uint256"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"tokenReserve","outputs":[{"name":"","type":"uint256"}],"type":"function"},
	{"constant":false,"inputs":[{"name":"minTokensOut","type":"uint256"}],"name":"buy","outputs":[],"type":"function"},
	{"constant":false,"inputs":[{"name":"tokenIn","type":"uint256"},{"name":"minEthOut","type":"uint256"}],"name":"sell","outputs":[],"type":"function"}
]`

// PairABI parses the standard pair ABI PairClient expects every pair
// contract to implement.
func PairABI() (abi.ABI, error) {
	parsed, err := abi.JSON(strings.NewReader(pairABIJSON))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("failed to parse pair abi: %w", err)
	}
	return parsed, nil
}

// PairClient implements Pool over a set of per-pair ContractClient bindings,
// reading ethReserve()/tokenReserve() and calling buy(minOut)/sell(tokenIn,
// minEthOut) on the pair contract directly. A pair bound explicitly via
// Bind is used as-is; any other pair is built and cached on first use
// against eth/pairABI, so the executor can trade a pair the moment a
// strategy names it without an upfront registration step.
type PairClient struct {
	mu       sync.Mutex
	clients  map[common.Address]contractclient.ContractClient
	listener txlistener.TxListener

	eth     *ethclient.Client
	pairABI abi.ABI
}

func NewPairClient(listener txlistener.TxListener) *PairClient {
	return &PairClient{clients: make(map[common.Address]contractclient.ContractClient), listener: listener}
}

// NewLazyPairClient is NewPairClient plus the eth client and pair ABI
// needed to bind a pair contract address the first time it's asked about,
// instead of requiring every pair to be registered via Bind beforehand.
func NewLazyPairClient(listener txlistener.TxListener, eth *ethclient.Client, pairABI abi.ABI) *PairClient {
	return &PairClient{
		clients:  make(map[common.Address]contractclient.ContractClient),
		listener: listener,
		eth:      eth,
		pairABI:  pairABI,
	}
}

// Bind registers the ContractClient to use for a given pair address.
func (p *PairClient) Bind(pair common.Address, client contractclient.ContractClient) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clients[pair] = client
}

func (p *PairClient) clientFor(pair common.Address) (contractclient.ContractClient, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if c, ok := p.clients[pair]; ok {
		return c, nil
	}
	if p.eth == nil {
		return nil, errs.New(errs.KindVenueNotConfigured, "no contract client bound for pair "+pair.Hex())
	}
	c := contractclient.NewContractClient(p.eth, pair, p.pairABI)
	p.clients[pair] = c
	return c, nil
}

func (p *PairClient) Reserves(ctx context.Context, pair common.Address) (poolmath.Reserves, error) {
	c, err := p.clientFor(pair)
	if err != nil {
		return poolmath.Reserves{}, err
	}

	ethOut, err := c.Call(nil, "ethReserve")
	if err != nil {
		return poolmath.Reserves{}, errs.Wrap(errs.KindNetworkUnavailable, "ethReserve call failed", err)
	}
	tokenOut, err := c.Call(nil, "tokenReserve")
	if err != nil {
		return poolmath.Reserves{}, errs.Wrap(errs.KindNetworkUnavailable, "tokenReserve call failed", err)
	}

	ethReserve, ok := ethOut[0].(*big.Int)
	if !ok || len(ethOut) != 1 {
		return poolmath.Reserves{}, errs.New(errs.KindUnknownRevert, "ethReserve did not return a uint256")
	}
	tokenReserve, ok := tokenOut[0].(*big.Int)
	if !ok || len(tokenOut) != 1 {
		return poolmath.Reserves{}, errs.New(errs.KindUnknownRevert, "tokenReserve did not return a uint256")
	}

	return poolmath.Reserves{ETH: ethReserve, Token: tokenReserve}, nil
}

func (p *PairClient) Buy(ctx context.Context, pair common.Address, ethIn, minTokensOut *big.Int, deadline time.Time, key *ecdsa.PrivateKey, from common.Address) (*contractclient.TxReceipt, error) {
	c, err := p.clientFor(pair)
	if err != nil {
		return nil, err
	}
	hash, err := c.Send(contractclient.Standard, nil, ethIn, &from, key, "buy", minTokensOut)
	if err != nil {
		return nil, classifyPairRevert("buy", err)
	}
	receipt, err := p.listener.WaitForTransactionCtx(ctx, hash)
	if err != nil {
		return nil, errs.Wrap(errs.KindTimeout, "timed out waiting for buy receipt", err)
	}
	if receipt.Status == 0 {
		return nil, errs.Revert(errs.KindSlippageExceeded, "buy reverted", receipt.TxHash.Hex())
	}
	return receipt, nil
}

func (p *PairClient) Sell(ctx context.Context, pair common.Address, tokenIn, minEthOut *big.Int, deadline time.Time, key *ecdsa.PrivateKey, from common.Address) (*contractclient.TxReceipt, error) {
	c, err := p.clientFor(pair)
	if err != nil {
		return nil, err
	}
	hash, err := c.Send(contractclient.Standard, nil, nil, &from, key, "sell", tokenIn, minEthOut)
	if err != nil {
		return nil, classifyPairRevert("sell", err)
	}
	receipt, err := p.listener.WaitForTransactionCtx(ctx, hash)
	if err != nil {
		return nil, errs.Wrap(errs.KindTimeout, "timed out waiting for sell receipt", err)
	}
	if receipt.Status == 0 {
		return nil, errs.Revert(errs.KindSlippageExceeded, "sell reverted", receipt.TxHash.Hex())
	}
	return receipt, nil
}

func classifyPairRevert(method string, err error) error {
	return errs.Wrap(errs.KindSlippageExceeded, method+" rejected by pair, most likely a slippage-bound revert", err)
}
