package executor

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func TestNewTokenBalanceClientParsesABI(t *testing.T) {
	client, err := NewTokenBalanceClient(nil, common.HexToAddress("0x1111111111111111111111111111111111111111"))
	require.NoError(t, err)
	require.NotNil(t, client)
}

func TestTokenBalanceClientCachesClientPerToken(t *testing.T) {
	client, err := NewTokenBalanceClient(nil, common.HexToAddress("0x1111111111111111111111111111111111111111"))
	require.NoError(t, err)

	token := common.HexToAddress("0x2222222222222222222222222222222222222222")
	first := client.clientFor(token)
	second := client.clientFor(token)
	require.Same(t, first, second)
}

func TestTokenBalanceCallsBalanceOf(t *testing.T) {
	// A nil *ethclient.Client can't make a live eth_call; this only exercises
	// the abi-pack path far enough to confirm it reaches the contract call,
	// which then reports an error because no RPC client is wired into this
	// test.
	client, err := NewTokenBalanceClient(nil, common.HexToAddress("0x1111111111111111111111111111111111111111"))
	require.NoError(t, err)

	token := common.HexToAddress("0x2222222222222222222222222222222222222222")
	_, err = client.TokenBalance(context.Background(), token)
	require.Error(t, err)
}
