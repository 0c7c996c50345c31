package strategyrt

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stratexec/internal/executor"
)

func numParam(f float64) Value { return Value{Number: &f} }
func strParam(s string) Value { return Value{String: &s} }

// TestInterpreterCleanBuySellRoundTrip drives a buy's quoted tokens into a
// sell through a live balance read, rather than asserting the buy and sell
// steps happened to share a literal amount: the sell's Amount field carries
// a deliberately wrong value to prove it is never consulted when Source is
// AmountBalance, and the pool's settled token ledger returns to zero only
// if the sell actually traded what the buy produced.
func TestInterpreterCleanBuySellRoundTrip(t *testing.T) {
	pool := newFakeSettlingPool(big.NewInt(1000), big.NewInt(2_000_000))
	wallet := common.HexToAddress("0x000000000000000000000000000000000000ee")
	key := dummyKeyForTest(t)

	trader := executor.New(executor.Config{
		MaxEthPerTrade:     decimal.NewFromInt(100),
		DefaultSlippageBps: 100,
		DirectKey:          key,
		DirectAddr:         wallet,
	}, pool, nil, nil)

	cap := NewCapability(CapabilityConfig{
		Market:   &fakeMarket{},
		Pairs:    pool,
		Balances: &poolBackedBalances{pool: pool, wallet: wallet},
		EthUsd:   &fakeEthUsd{price: big.NewRat(2000, 1)},
		Trader:   trader,
		Wallet:   wallet,
		Limiter:  NewRateLimiter(4),
		Logs:     NewLogBuffer(),
	})

	in := NewInterpreter(cap, map[string]Value{
		"pair":   strParam("0x000000000000000000000000000000000000AA"),
		"amount": numParam(0.01),
	})

	prog := &Program{Steps: []Step{
		{Kind: StepBuy, Pair: "$pair", Amount: "$amount"},
		{Kind: StepSell, Pair: "$pair", Amount: "999", Source: AmountBalance},
	}}

	require.NoError(t, in.Run(context.Background(), prog))

	logs := cap.cfg.Logs.Snapshot()
	require.Len(t, logs, 2)
	assert.Equal(t, LogTrade, logs[0].Level)
	assert.Equal(t, LogTrade, logs[1].Level)

	assert.Equal(t, 0, pool.BalanceOf(wallet).Sign(), "the sell should have traded away exactly the tokens the buy produced")
}

func TestInterpreterLogStep(t *testing.T) {
	cap := testCapability(t)
	in := NewInterpreter(cap, nil)
	prog := &Program{Steps: []Step{{Kind: StepLog, Message: "hello"}}}
	require.NoError(t, in.Run(context.Background(), prog))
	logs := cap.cfg.Logs.Snapshot()
	require.Len(t, logs, 1)
	assert.Equal(t, "hello", logs[0].Message)
}

func TestInterpreterScheduleStep(t *testing.T) {
	cap := testCapability(t)
	in := NewInterpreter(cap, nil)
	prog := &Program{Steps: []Step{{Kind: StepSchedule, Interval: "5m"}}}
	require.NoError(t, in.Run(context.Background(), prog))
	interval, rescheduled := cap.Scheduled()
	assert.Equal(t, "5m", interval)
	assert.True(t, rescheduled)
}

func TestInterpreterIfStepTakesThenBranchWhenConditionHolds(t *testing.T) {
	cap := testCapability(t) // fakePairs reserves ETH=1000 Token=2000 -> price 0.5
	in := NewInterpreter(cap, nil)
	prog := &Program{Steps: []Step{
		{
			Kind: StepIf,
			Condition: &Condition{
				Read:     ReadPrice,
				Pair:     "0x000000000000000000000000000000000000AA",
				Operator: OpLessOrEqual,
				Value:    decimal.NewFromFloat(1.0),
			},
			Then: []Step{{Kind: StepLog, Message: "price is low"}},
			Else: []Step{{Kind: StepLog, Message: "price is high"}},
		},
	}}
	require.NoError(t, in.Run(context.Background(), prog))
	logs := cap.cfg.Logs.Snapshot()
	require.Len(t, logs, 1)
	assert.Equal(t, "price is low", logs[0].Message)
}

func TestInterpreterIfStepTakesElseBranchWhenConditionFails(t *testing.T) {
	cap := testCapability(t)
	in := NewInterpreter(cap, nil)
	prog := &Program{Steps: []Step{
		{
			Kind: StepIf,
			Condition: &Condition{
				Read:     ReadPrice,
				Pair:     "0x000000000000000000000000000000000000AA",
				Operator: OpGreater,
				Value:    decimal.NewFromFloat(10.0),
			},
			Then: []Step{{Kind: StepLog, Message: "unreachable"}},
			Else: []Step{{Kind: StepLog, Message: "expected"}},
		},
	}}
	require.NoError(t, in.Run(context.Background(), prog))
	logs := cap.cfg.Logs.Snapshot()
	require.Len(t, logs, 1)
	assert.Equal(t, "expected", logs[0].Message)
}

func TestInterpreterRejectsUnknownParamReference(t *testing.T) {
	cap := testCapability(t)
	in := NewInterpreter(cap, nil)
	prog := &Program{Steps: []Step{{Kind: StepBuy, Pair: "$pair", Amount: "$missing"}}}
	err := in.Run(context.Background(), prog)
	assert.Error(t, err)
}
