package custody

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"stratexec/internal/errs"
	"stratexec/internal/poolmath"
)

// MemoryPool is a Pool backed by a mutable Reserves value and poolmath's
// pure quote functions. It exists so the custody invariants can be
// exercised in tests without a deployed pair contract.
type MemoryPool struct {
	mu       sync.Mutex
	Reserves poolmath.Reserves
}

func NewMemoryPool(ethReserve, tokenReserve *big.Int) *MemoryPool {
	return &MemoryPool{Reserves: poolmath.Reserves{ETH: ethReserve, Token: tokenReserve}}
}

func (p *MemoryPool) Buy(_ context.Context, netEthIn, minTokensOut *big.Int) (*big.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	expected, _ := poolmath.BuyQuote(p.Reserves, netEthIn, 0)
	if expected.Cmp(minTokensOut) < 0 {
		return nil, errs.New(errs.KindSlippageExceeded, "pool output below minTokensOut")
	}
	p.Reserves.ETH.Add(p.Reserves.ETH, netEthIn)
	p.Reserves.Token.Sub(p.Reserves.Token, expected)
	return expected, nil
}

func (p *MemoryPool) Sell(_ context.Context, tokenIn, minEthOut *big.Int) (*big.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	swapped := poolmath.Reserves{ETH: p.Reserves.Token, Token: p.Reserves.ETH}
	expected, _ := poolmath.BuyQuote(swapped, tokenIn, 0)
	if expected.Cmp(minEthOut) < 0 {
		return nil, errs.New(errs.KindSlippageExceeded, "pool output below minEthOut")
	}
	p.Reserves.Token.Add(p.Reserves.Token, tokenIn)
	p.Reserves.ETH.Sub(p.Reserves.ETH, expected)
	return expected, nil
}

// Memory is an in-process implementation of the custody state machine. It
// enforces the same invariants a deployed contract enforces: the pause
// switch blocks deposit, executeBuy and executeSell while withdrawal stays
// open (the owner-only admin setters are not gated by pause), the pair
// allowlist gates executeBuy/executeSell, the fee is capped at MaxFeeBps,
// and a single-slot reentrancy latch rejects re-entrant calls. Pools are
// looked up by pair address; a pair with no registered Pool is treated as
// not allowlisted.
type Memory struct {
	mu sync.Mutex

	owner       common.Address
	guardian    common.Address
	operator    common.Address
	feeBps      int64
	feeReceiver common.Address
	paused      bool
	entered     bool

	allowedPairs map[common.Address]bool
	pools        map[common.Address]Pool

	ethBalances   map[common.Address]*big.Int
	tokenBalances map[common.Address]map[common.Address]*big.Int // user -> token -> amount
}

// NewMemory constructs an in-memory custody contract with the given owner
// and operator, paused=false, feeBps=0.
func NewMemory(owner, operator common.Address) *Memory {
	return &Memory{
		owner:         owner,
		operator:      operator,
		allowedPairs:  make(map[common.Address]bool),
		pools:         make(map[common.Address]Pool),
		ethBalances:   make(map[common.Address]*big.Int),
		tokenBalances: make(map[common.Address]map[common.Address]*big.Int),
	}
}

// RegisterPair allowlists a pair and binds it to a Pool implementation used
// to service executeBuy/executeSell against it. Test-only convenience; a
// deployed contract's allowlist has no notion of a bound pool object.
func (m *Memory) RegisterPair(pair common.Address, pool Pool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.allowedPairs[pair] = true
	m.pools[pair] = pool
}

// enter acquires the reentrancy latch; the returned func releases it. A
// call that finds entered=true is rejected. Callers hold m.mu, so
// concurrent calls are serialized by the mutex rather than by the latch.
func (m *Memory) enter() (func(), error) {
	if m.entered {
		return func() {}, errs.New(errs.KindReentrancy, "reentrant call rejected")
	}
	m.entered = true
	return func() { m.entered = false }, nil
}

func (m *Memory) balanceOf(user common.Address) *big.Int {
	if b, ok := m.ethBalances[user]; ok {
		return b
	}
	return big.NewInt(0)
}

func (m *Memory) Deposit(_ context.Context, depositor common.Address, amountWei *big.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	done, err := m.enter()
	defer done()
	if err != nil {
		return err
	}
	if m.paused {
		return errs.New(errs.KindPaused, "deposits disabled while paused")
	}
	m.ethBalances[depositor] = new(big.Int).Add(m.balanceOf(depositor), amountWei)
	return nil
}

// Withdraw must succeed even when paused: withdrawal is the escape hatch.
func (m *Memory) Withdraw(_ context.Context, caller common.Address, amountWei *big.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	done, err := m.enter()
	defer done()
	if err != nil {
		return err
	}
	bal := m.balanceOf(caller)
	if bal.Cmp(amountWei) < 0 {
		return errs.New(errs.KindInsufficientBalance, "withdraw amount exceeds balance")
	}
	m.ethBalances[caller] = new(big.Int).Sub(bal, amountWei)
	return nil
}

func (m *Memory) WithdrawAll(ctx context.Context, caller common.Address) (*big.Int, error) {
	m.mu.Lock()
	bal := new(big.Int).Set(m.balanceOf(caller))
	m.mu.Unlock()
	if err := m.Withdraw(ctx, caller, bal); err != nil {
		return nil, err
	}
	return bal, nil
}

func (m *Memory) WithdrawTokens(_ context.Context, caller, token common.Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	done, err := m.enter()
	defer done()
	if err != nil {
		return err
	}
	if m.tokenBalances[caller] != nil {
		delete(m.tokenBalances[caller], token)
	}
	return nil
}

func (m *Memory) BalanceOf(_ context.Context, user common.Address) (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return new(big.Int).Set(m.balanceOf(user)), nil
}

func (m *Memory) ExecuteBuy(ctx context.Context, caller, user, pair common.Address, ethIn, minTokensOut *big.Int, deadline time.Time) (TxResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	done, lerr := m.enter()
	defer done()
	if lerr != nil {
		return TxResult{}, lerr
	}

	if caller != m.operator {
		return TxResult{}, notAuthorized("only the operator may executeBuy")
	}
	if m.paused {
		return TxResult{}, errs.New(errs.KindPaused, "executeBuy disabled while paused")
	}
	if !m.allowedPairs[pair] {
		return TxResult{}, errs.New(errs.KindPairNotAllowed, "pair is not allowlisted")
	}
	if time.Now().After(deadline) {
		return TxResult{}, errs.New(errs.KindDeadlineExpired, "deadline has passed")
	}
	bal := m.balanceOf(user)
	if bal.Cmp(ethIn) < 0 {
		return TxResult{}, errs.New(errs.KindInsufficientBalance, "user balance below ethIn")
	}

	fee := new(big.Int).Mul(ethIn, big.NewInt(m.feeBps))
	fee.Div(fee, big.NewInt(10000))
	netIn := new(big.Int).Sub(ethIn, fee)

	pool := m.pools[pair]
	tokensOut, err := pool.Buy(ctx, netIn, minTokensOut)
	if err != nil {
		return TxResult{}, err
	}

	m.ethBalances[user] = new(big.Int).Sub(bal, ethIn)
	if m.tokenBalances[user] == nil {
		m.tokenBalances[user] = make(map[common.Address]*big.Int)
	}
	existing := m.tokenBalances[user][pair]
	if existing == nil {
		existing = big.NewInt(0)
	}
	m.tokenBalances[user][pair] = new(big.Int).Add(existing, tokensOut)

	return TxResult{Status: "simulated"}, nil
}

func (m *Memory) ExecuteSell(ctx context.Context, caller, user, pair common.Address, tokenIn, minEthOut *big.Int, deadline time.Time) (TxResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	done, lerr := m.enter()
	defer done()
	if lerr != nil {
		return TxResult{}, lerr
	}

	if caller != m.operator {
		return TxResult{}, notAuthorized("only the operator may executeSell")
	}
	if m.paused {
		return TxResult{}, errs.New(errs.KindPaused, "executeSell disabled while paused")
	}
	if !m.allowedPairs[pair] {
		return TxResult{}, errs.New(errs.KindPairNotAllowed, "pair is not allowlisted")
	}
	if time.Now().After(deadline) {
		return TxResult{}, errs.New(errs.KindDeadlineExpired, "deadline has passed")
	}
	tokenBal := big.NewInt(0)
	if m.tokenBalances[user] != nil && m.tokenBalances[user][pair] != nil {
		tokenBal = m.tokenBalances[user][pair]
	}
	if tokenBal.Cmp(tokenIn) < 0 {
		return TxResult{}, errs.New(errs.KindInsufficientBalance, "user token balance below tokenIn")
	}

	pool := m.pools[pair]
	ethOut, err := pool.Sell(ctx, tokenIn, minEthOut)
	if err != nil {
		return TxResult{}, err
	}

	fee := new(big.Int).Mul(ethOut, big.NewInt(m.feeBps))
	fee.Div(fee, big.NewInt(10000))
	netOut := new(big.Int).Sub(ethOut, fee)

	m.tokenBalances[user][pair] = new(big.Int).Sub(tokenBal, tokenIn)
	m.ethBalances[user] = new(big.Int).Add(m.balanceOf(user), netOut)

	return TxResult{Status: "simulated"}, nil
}

func (m *Memory) SetOperator(_ context.Context, caller, operator common.Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if caller != m.owner {
		return notAuthorized("only the owner may set operator")
	}
	m.operator = operator
	return nil
}

func (m *Memory) SetFee(_ context.Context, caller common.Address, feeBps int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if caller != m.owner {
		return notAuthorized("only the owner may set fee")
	}
	if feeBps > MaxFeeBps || feeBps < 0 {
		return errs.New(errs.KindParameterOutOfRange, "fee exceeds the 1000 bps ceiling")
	}
	m.feeBps = feeBps
	return nil
}

func (m *Memory) SetFeeReceiver(_ context.Context, caller, receiver common.Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if caller != m.owner {
		return notAuthorized("only the owner may set fee receiver")
	}
	m.feeReceiver = receiver
	return nil
}

func (m *Memory) SetPaused(_ context.Context, caller common.Address, paused bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if caller != m.owner && caller != m.guardian {
		return notAuthorized("only the owner or guardian may pause/unpause")
	}
	m.paused = paused
	return nil
}

func (m *Memory) AllowPair(_ context.Context, caller, pair common.Address, allowed bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if caller != m.owner {
		return notAuthorized("only the owner may modify the pair allowlist")
	}
	m.allowedPairs[pair] = allowed
	return nil
}

// FeeBps returns the currently configured operator fee.
func (m *Memory) FeeBps(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.feeBps, nil
}
