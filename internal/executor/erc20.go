package executor

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"stratexec/pkg/contractclient"
)

// erc20BalanceOfABI is the single-method ABI fragment TokenBalanceClient
// needs; it never sends a transaction, only calls balanceOf.
const erc20BalanceOfABI = `[{"constant":true,"inputs":[{"name":"account","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"type":"function"}]`

// TokenBalanceClient satisfies strategyrt.BalanceReader: it reads the
// configured holder's balance of an arbitrary ERC-20 token, building and
// caching a ContractClient per token address the first time it's asked
// about that token.
type TokenBalanceClient struct {
	eth    *ethclient.Client
	holder common.Address
	abi    abi.ABI

	mu      sync.Mutex
	clients map[common.Address]contractclient.ContractClient
}

// NewTokenBalanceClient builds a TokenBalanceClient that reports holder's
// balance for whatever token address it's asked about.
func NewTokenBalanceClient(eth *ethclient.Client, holder common.Address) (*TokenBalanceClient, error) {
	parsed, err := abi.JSON(strings.NewReader(erc20BalanceOfABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse erc20 balanceOf abi: %w", err)
	}
	return &TokenBalanceClient{
		eth:     eth,
		holder:  holder,
		abi:     parsed,
		clients: make(map[common.Address]contractclient.ContractClient),
	}, nil
}

func (t *TokenBalanceClient) clientFor(token common.Address) contractclient.ContractClient {
	t.mu.Lock()
	defer t.mu.Unlock()
	if c, ok := t.clients[token]; ok {
		return c
	}
	c := contractclient.NewContractClient(t.eth, token, t.abi)
	t.clients[token] = c
	return c
}

// TokenBalance returns the holder's balance of token.
func (t *TokenBalanceClient) TokenBalance(ctx context.Context, token common.Address) (*big.Int, error) {
	out, err := t.clientFor(token).Call(&t.holder, "balanceOf", t.holder)
	if err != nil {
		return nil, fmt.Errorf("balanceOf(%s) failed: %w", token.Hex(), err)
	}
	balance, ok := out[0].(*big.Int)
	if !ok || len(out) != 1 {
		return nil, fmt.Errorf("balanceOf(%s) did not return a uint256", token.Hex())
	}
	return balance, nil
}
