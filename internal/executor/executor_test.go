package executor

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stratexec/internal/custody"
	"stratexec/internal/errs"
)

func pairAddr() common.Address {
	var a common.Address
	a[19] = 0xAA
	return a
}

func baseConfig() Config {
	return Config{
		MaxEthPerTrade:     decimal.NewFromFloat(1),
		DefaultSlippageBps: 100,
	}
}

func TestExecuteRejectsBadPairAddress(t *testing.T) {
	e := New(baseConfig(), nil, nil, nil)
	_, err := e.Execute(context.Background(), Intent{Side: Buy, Amount: decimal.NewFromFloat(0.1)})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindBadAddress))
}

func TestExecuteRejectsNonPositiveAmount(t *testing.T) {
	e := New(baseConfig(), nil, nil, nil)
	_, err := e.Execute(context.Background(), Intent{Side: Buy, Pair: pairAddr(), Amount: decimal.Zero})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindBadAmount))
}

func TestExecuteRejectsAmountAboveRiskCeiling(t *testing.T) {
	cfg := baseConfig()
	e := New(cfg, nil, nil, nil)
	_, err := e.Execute(context.Background(), Intent{Side: Buy, Pair: pairAddr(), Amount: decimal.NewFromFloat(2)})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindRiskLimitExceeded))
}

func TestExecuteDryRunShortCircuits(t *testing.T) {
	cfg := baseConfig()
	cfg.DryRun = true
	e := New(cfg, nil, nil, nil)

	res, err := e.Execute(context.Background(), Intent{Side: Buy, Pair: pairAddr(), Amount: decimal.NewFromFloat(0.1)})
	require.NoError(t, err)
	assert.Equal(t, "simulated", res.Status)
	assert.Equal(t, ModeSimulated, res.Mode)
	assert.Equal(t, common.Hash{}, res.Hash)
}

func TestExecuteFailsNotConfiguredWithNoModeAvailable(t *testing.T) {
	e := New(baseConfig(), nil, nil, nil)
	_, err := e.Execute(context.Background(), Intent{Side: Buy, Pair: pairAddr(), Amount: decimal.NewFromFloat(0.1)})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindDelegateNotConfigured))
}

func TestExecuteDelegateModeRoutesThroughCustody(t *testing.T) {
	owner, operator, user := common.Address{1}, common.Address{2}, common.Address{3}
	pair := pairAddr()

	mem := custody.NewMemory(owner, operator)
	mem.RegisterPair(pair, custody.NewMemoryPool(big.NewInt(1000), big.NewInt(1_000_000)))
	require.NoError(t, mem.SetFee(context.Background(), owner, 100))
	require.NoError(t, mem.Deposit(context.Background(), user, new(big.Int).SetUint64(1e18)))

	cfg := baseConfig()
	cfg.CustodyConfigured = true
	cfg.OperatorKey = dummyKey(t)
	cfg.OperatorAddr = operator

	e := New(cfg, nil, mem, nil)
	_, err := e.Execute(context.Background(), Intent{Side: Buy, Pair: pair, Amount: decimal.NewFromFloat(0.01), User: user})
	require.NoError(t, err)
}

func TestSelectModeDelegateRequiresUserAddress(t *testing.T) {
	cfg := baseConfig()
	cfg.CustodyConfigured = true
	cfg.OperatorKey = dummyKey(t)

	e := New(cfg, nil, nil, nil)
	_, err := e.selectMode(Intent{Side: Buy, Pair: pairAddr(), Amount: decimal.NewFromFloat(0.01)})
	assert.True(t, errs.Is(err, errs.KindDelegateNotConfigured))
}

func dummyKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	key, err := gethcrypto.GenerateKey()
	require.NoError(t, err)
	return key
}
