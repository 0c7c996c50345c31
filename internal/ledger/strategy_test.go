package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestLedgerForStrategies(t *testing.T) *Ledger {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	l, err := New(db)
	require.NoError(t, err)
	return l
}

func TestCreateStrategyDefaultsToDraft(t *testing.T) {
	l := newTestLedgerForStrategies(t)
	s := &Strategy{ID: "strat-1", Name: "Test Strategy"}
	require.NoError(t, l.CreateStrategy(s))

	loaded, err := l.GetStrategy("strat-1")
	require.NoError(t, err)
	assert.Equal(t, "draft", loaded.Status)
}

func TestSetStrategyStatusTransitions(t *testing.T) {
	l := newTestLedgerForStrategies(t)
	require.NoError(t, l.CreateStrategy(&Strategy{ID: "strat-1", Name: "Test"}))
	require.NoError(t, l.SetStrategyStatus("strat-1", "active"))

	loaded, err := l.GetStrategy("strat-1")
	require.NoError(t, err)
	assert.Equal(t, "active", loaded.Status)
}

func TestListActiveStrategiesFiltersByStatus(t *testing.T) {
	l := newTestLedgerForStrategies(t)
	require.NoError(t, l.CreateStrategy(&Strategy{ID: "strat-1", Name: "A"}))
	require.NoError(t, l.CreateStrategy(&Strategy{ID: "strat-2", Name: "B"}))
	require.NoError(t, l.SetStrategyStatus("strat-1", "active"))

	active, err := l.ListActiveStrategies()
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "strat-1", active[0].ID)
}

func TestListStrategiesReturnsAll(t *testing.T) {
	l := newTestLedgerForStrategies(t)
	require.NoError(t, l.CreateStrategy(&Strategy{ID: "strat-1", Name: "A"}))
	require.NoError(t, l.CreateStrategy(&Strategy{ID: "strat-2", Name: "B"}))

	all, err := l.ListStrategies()
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
