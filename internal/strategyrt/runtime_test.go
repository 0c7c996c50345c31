package strategyrt

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stratexec/internal/executor"
	"stratexec/internal/ledger"
	"stratexec/internal/poolmath"
)

func testReserves() poolmath.Reserves {
	return poolmath.Reserves{ETH: big.NewInt(1000), Token: big.NewInt(2000)}
}

func bigZero() *big.Int { return big.NewInt(0) }

func ratOne() *big.Rat { return big.NewRat(1, 1) }

type fakeStore struct {
	mu           sync.Mutex
	strategies   map[string]*ledger.Strategy
	opened       int
	closed       map[string]bool
	lastMode     string
	lastUserAddr string
}

func newFakeStore() *fakeStore {
	return &fakeStore{strategies: map[string]*ledger.Strategy{}, closed: map[string]bool{}}
}

func (f *fakeStore) put(s *ledger.Strategy) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *s
	cp.Status = "draft"
	f.strategies[s.ID] = &cp
}

func (f *fakeStore) GetStrategy(id string) (*ledger.Strategy, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.strategies[id]
	if !ok {
		return nil, fmt.Errorf("strategy %s not found", id)
	}
	cp := *s
	return &cp, nil
}

func (f *fakeStore) SetStrategyStatus(id, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.strategies[id]
	if !ok {
		return fmt.Errorf("strategy %s not found", id)
	}
	s.Status = status
	return nil
}

func (f *fakeStore) OpenRun(strategyID, initialCapitalEth, mode, userAddr string, dryRun bool) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opened++
	f.lastMode = mode
	f.lastUserAddr = userAddr
	id := fmt.Sprintf("run-%d", f.opened)
	f.closed[id] = false
	return id, nil
}

func (f *fakeStore) CloseRun(runID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed[runID] = true
	return nil
}

func (f *fakeStore) ListActiveStrategies() ([]ledger.Strategy, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []ledger.Strategy
	for _, s := range f.strategies {
		if s.Status == "active" {
			out = append(out, *s)
		}
	}
	return out, nil
}

func buildTestCapFactory(t *testing.T) CapabilityFactory {
	t.Helper()
	trader := executor.New(executor.Config{
		MaxEthPerTrade:     decimal.NewFromInt(100),
		DefaultSlippageBps: 100,
		DryRun:             true,
	}, nil, nil, nil)

	return func(runID string, logs *LogBuffer, limiter *RateLimiter) *Capability {
		return NewCapability(CapabilityConfig{
			Market:   &fakeMarket{},
			Pairs:    &fakePairs{reserves: testReserves()},
			Balances: &fakeBalances{balance: bigZero()},
			EthUsd:   &fakeEthUsd{price: ratOne()},
			Trader:   trader,
			RunID:    runID,
			Limiter:  limiter,
			Logs:     logs,
		})
	}
}

func strategyWithProgram(id string, steps []Step, decls []string) *ledger.Strategy {
	sourceJSON, _ := json.Marshal(steps)
	schemaJSON, _ := json.Marshal(decls)
	return &ledger.Strategy{ID: id, Name: id, SourceText: string(sourceJSON), ParamSchema: string(schemaJSON)}
}

// TestRuntimeCleanBuySellRoundTripStopsAfterTick runs a buy whose tokens are
// then sold via a live balance read (Source: AmountBalance), not a second
// literal that happens to match the first in digits but not units. The
// settled pool ledger returning to zero is what proves the round trip, not
// the strategy's two steps sharing a string.
func TestRuntimeCleanBuySellRoundTripStopsAfterTick(t *testing.T) {
	store := newFakeStore()
	store.put(strategyWithProgram("strat-1", []Step{
		{Kind: StepBuy, Pair: "0x000000000000000000000000000000000000AA", Amount: "0.01"},
		{Kind: StepSell, Pair: "0x000000000000000000000000000000000000AA", Amount: "999", Source: AmountBalance},
	}, nil))

	pool := newFakeSettlingPool(big.NewInt(1000), big.NewInt(2_000_000))
	wallet := common.HexToAddress("0x000000000000000000000000000000000000aa")
	key := dummyKeyForTest(t)
	trader := executor.New(executor.Config{
		MaxEthPerTrade:     decimal.NewFromInt(100),
		DefaultSlippageBps: 100,
		DirectKey:          key,
		DirectAddr:         wallet,
	}, pool, nil, nil)

	capFactory := func(runID string, logs *LogBuffer, limiter *RateLimiter) *Capability {
		return NewCapability(CapabilityConfig{
			Market:   &fakeMarket{},
			Pairs:    pool,
			Balances: &poolBackedBalances{pool: pool, wallet: wallet},
			EthUsd:   &fakeEthUsd{price: ratOne()},
			Trader:   trader,
			RunID:    runID,
			Wallet:   wallet,
			Limiter:  limiter,
			Logs:     logs,
		})
	}

	host := NewRuntimeHost(store, capFactory, false, "direct", wallet.Hex(), 4, zerolog.Nop())
	require.NoError(t, host.Start(context.Background(), "strat-1"))

	_, live := host.Status("strat-1")
	assert.False(t, live, "a run that did not call schedule should stop after its tick")

	assert.Equal(t, 0, pool.BalanceOf(wallet).Sign(), "the sell should have traded away exactly the tokens the buy produced")

	strat, err := store.GetStrategy("strat-1")
	require.NoError(t, err)
	assert.Equal(t, "paused", strat.Status)
	assert.Equal(t, 1, store.opened)
	for _, closed := range store.closed {
		assert.True(t, closed)
	}
}

func TestRuntimeStartPersistsConfiguredModeAndUserAddr(t *testing.T) {
	store := newFakeStore()
	store.put(strategyWithProgram("strat-1", []Step{{Kind: StepLog, Message: "hi"}}, nil))

	host := NewRuntimeHost(store, buildTestCapFactory(t), false, "delegate", "0x000000000000000000000000000000000000bb", 4, zerolog.Nop())
	require.NoError(t, host.Start(context.Background(), "strat-1"))

	assert.Equal(t, "delegate", store.lastMode)
	assert.Equal(t, "0x000000000000000000000000000000000000bb", store.lastUserAddr)
}

func TestRuntimeScheduledTickArmsTimerThenStopCancelsIt(t *testing.T) {
	store := newFakeStore()
	store.put(strategyWithProgram("strat-1", []Step{
		{Kind: StepSchedule, Interval: "1h"},
	}, nil))

	host := NewRuntimeHost(store, buildTestCapFactory(t), false, "direct", "0x000000000000000000000000000000000000aa", 4, zerolog.Nop())
	require.NoError(t, host.Start(context.Background(), "strat-1"))

	status, live := host.Status("strat-1")
	require.True(t, live)
	assert.Equal(t, StatusSleeping, status)

	require.NoError(t, host.Stop("strat-1"))
	_, live = host.Status("strat-1")
	assert.False(t, live)

	// idempotent
	require.NoError(t, host.Stop("strat-1"))
}

func TestRuntimeCrashIsolatesOneStrategyFromAnother(t *testing.T) {
	store := newFakeStore()
	store.put(strategyWithProgram("strat-bad", []Step{
		{Kind: StepIf}, // missing Condition -> interpreter error
	}, nil))
	store.put(strategyWithProgram("strat-good", []Step{
		{Kind: StepLog, Message: "fine"},
	}, nil))

	host := NewRuntimeHost(store, buildTestCapFactory(t), false, "direct", "0x000000000000000000000000000000000000aa", 4, zerolog.Nop())

	require.NoError(t, host.Start(context.Background(), "strat-bad"))
	require.NoError(t, host.Start(context.Background(), "strat-good"))

	badStrat, err := store.GetStrategy("strat-bad")
	require.NoError(t, err)
	assert.Equal(t, "error", badStrat.Status)

	goodStrat, err := store.GetStrategy("strat-good")
	require.NoError(t, err)
	assert.Equal(t, "paused", goodStrat.Status)

	_, badLive := host.Status("strat-bad")
	assert.False(t, badLive)
}

func TestRuntimeStartRefusesDoubleActivation(t *testing.T) {
	store := newFakeStore()
	store.put(strategyWithProgram("strat-1", []Step{{Kind: StepSchedule, Interval: "1h"}}, nil))

	host := NewRuntimeHost(store, buildTestCapFactory(t), false, "direct", "0x000000000000000000000000000000000000aa", 4, zerolog.Nop())
	require.NoError(t, host.Start(context.Background(), "strat-1"))
	err := host.Start(context.Background(), "strat-1")
	assert.Error(t, err)
}

func TestRuntimeResumeActiveRestartsPersistedActiveStrategies(t *testing.T) {
	store := newFakeStore()
	store.put(strategyWithProgram("strat-1", []Step{{Kind: StepLog, Message: "resumed"}}, nil))
	require.NoError(t, store.SetStrategyStatus("strat-1", "active"))

	host := NewRuntimeHost(store, buildTestCapFactory(t), false, "direct", "0x000000000000000000000000000000000000aa", 4, zerolog.Nop())
	require.NoError(t, host.ResumeActive(context.Background()))

	// the tick has no schedule call, so it runs to completion and stops
	strat, err := store.GetStrategy("strat-1")
	require.NoError(t, err)
	assert.Equal(t, "paused", strat.Status)
}

func TestRuntimeHealthCheckRestartsMissingLiveRun(t *testing.T) {
	store := newFakeStore()
	store.put(strategyWithProgram("strat-1", []Step{{Kind: StepSchedule, Interval: "1h"}}, nil))
	require.NoError(t, store.SetStrategyStatus("strat-1", "active"))

	host := NewRuntimeHost(store, buildTestCapFactory(t), false, "direct", "0x000000000000000000000000000000000000aa", 4, zerolog.Nop())
	host.HealthCheck(context.Background())

	_, live := host.Status("strat-1")
	assert.True(t, live)
}

func TestRuntimeCrashDoesNotLeaveAnArmedTimer(t *testing.T) {
	store := newFakeStore()
	store.put(strategyWithProgram("strat-1", []Step{{Kind: "unknown-kind"}}, nil))

	host := NewRuntimeHost(store, buildTestCapFactory(t), false, "direct", "0x000000000000000000000000000000000000aa", 4, zerolog.Nop())
	require.NoError(t, host.Start(context.Background(), "strat-1"))

	time.Sleep(10 * time.Millisecond)
	_, live := host.Status("strat-1")
	assert.False(t, live)
}
