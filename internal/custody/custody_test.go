package custody

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stratexec/internal/errs"
)

func addr(b byte) common.Address {
	var a common.Address
	a[19] = b
	return a
}

func newTestMemory() (*Memory, common.Address, common.Address, common.Address, common.Address) {
	owner, operator, user, pair := addr(1), addr(2), addr(3), addr(4)
	m := NewMemory(owner, operator)
	m.RegisterPair(pair, NewMemoryPool(big.NewInt(10_000_000), big.NewInt(10_000_000)))
	return m, owner, operator, user, pair
}

func fund(t *testing.T, m *Memory, user common.Address, amount *big.Int) {
	t.Helper()
	require.NoError(t, m.Deposit(context.Background(), user, amount))
}

func TestWithdrawSucceedsWhilePaused(t *testing.T) {
	m, owner, _, user, _ := newTestMemory()
	fund(t, m, user, big.NewInt(1000))

	require.NoError(t, m.SetPaused(context.Background(), owner, true))

	err := m.Withdraw(context.Background(), user, big.NewInt(400))
	assert.NoError(t, err)

	bal, err := m.BalanceOf(context.Background(), user)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(600), bal)
}

func TestExecuteBuyBlockedWhilePaused(t *testing.T) {
	m, owner, operator, user, pair := newTestMemory()
	fund(t, m, user, big.NewInt(1000))
	require.NoError(t, m.SetPaused(context.Background(), owner, true))

	_, err := m.ExecuteBuy(context.Background(), operator, user, pair, big.NewInt(100), big.NewInt(0), time.Now().Add(time.Hour))
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindPaused))
}

func TestExecuteSellBlockedWhilePaused(t *testing.T) {
	m, owner, operator, user, pair := newTestMemory()
	require.NoError(t, m.SetPaused(context.Background(), owner, true))

	_, err := m.ExecuteSell(context.Background(), operator, user, pair, big.NewInt(100), big.NewInt(0), time.Now().Add(time.Hour))
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindPaused))
}

func TestOnlyOperatorMayExecuteBuy(t *testing.T) {
	m, _, _, user, pair := newTestMemory()
	fund(t, m, user, big.NewInt(1000))
	impostor := addr(99)

	_, err := m.ExecuteBuy(context.Background(), impostor, user, pair, big.NewInt(100), big.NewInt(0), time.Now().Add(time.Hour))
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindNotAuthorized))
}

func TestOnlyOperatorMayExecuteSell(t *testing.T) {
	m, _, _, user, pair := newTestMemory()
	impostor := addr(99)

	_, err := m.ExecuteSell(context.Background(), impostor, user, pair, big.NewInt(100), big.NewInt(0), time.Now().Add(time.Hour))
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindNotAuthorized))
}

func TestOnlyOwnerMayChangeOperator(t *testing.T) {
	m, owner, _, user, _ := newTestMemory()
	impostor := addr(99)

	err := m.SetOperator(context.Background(), impostor, user)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindNotAuthorized))

	assert.NoError(t, m.SetOperator(context.Background(), owner, user))
}

func TestOnlyOwnerMayChangeFeeOrReceiver(t *testing.T) {
	m, owner, _, _, _ := newTestMemory()
	impostor := addr(99)

	assert.True(t, errs.Is(m.SetFee(context.Background(), impostor, 50), errs.KindNotAuthorized))
	assert.True(t, errs.Is(m.SetFeeReceiver(context.Background(), impostor, addr(7)), errs.KindNotAuthorized))

	assert.NoError(t, m.SetFee(context.Background(), owner, 50))
	fee, err := m.FeeBps(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(50), fee)
}

func TestFeeCappedAtCeiling(t *testing.T) {
	m, owner, _, _, _ := newTestMemory()

	err := m.SetFee(context.Background(), owner, MaxFeeBps+1)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindParameterOutOfRange))

	assert.NoError(t, m.SetFee(context.Background(), owner, MaxFeeBps))
	fee, ferr := m.FeeBps(context.Background())
	require.NoError(t, ferr)
	assert.Equal(t, int64(MaxFeeBps), fee)
}

func TestReentrantCallRejected(t *testing.T) {
	m, _, _, user, _ := newTestMemory()
	m.entered = true

	err := m.Deposit(context.Background(), user, big.NewInt(1))
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindReentrancy))
}

func TestExecuteBuyRejectsUnallowlistedPair(t *testing.T) {
	m, _, operator, user, _ := newTestMemory()
	fund(t, m, user, big.NewInt(1000))
	rogue := addr(55)

	_, err := m.ExecuteBuy(context.Background(), operator, user, rogue, big.NewInt(100), big.NewInt(0), time.Now().Add(time.Hour))
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindPairNotAllowed))
}

func TestExecuteBuyRejectsExpiredDeadline(t *testing.T) {
	m, _, operator, user, pair := newTestMemory()
	fund(t, m, user, big.NewInt(1000))

	_, err := m.ExecuteBuy(context.Background(), operator, user, pair, big.NewInt(100), big.NewInt(0), time.Now().Add(-time.Minute))
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindDeadlineExpired))
}

func TestExecuteBuyMovesBalancesOnSuccess(t *testing.T) {
	m, _, operator, user, pair := newTestMemory()
	fund(t, m, user, big.NewInt(100_000))

	res, err := m.ExecuteBuy(context.Background(), operator, user, pair, big.NewInt(10_000), big.NewInt(0), time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, "simulated", res.Status)

	bal, err := m.BalanceOf(context.Background(), user)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(90_000), bal)
}
