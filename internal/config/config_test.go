package config

import (
	"os"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		original, had := os.LookupEnv(k)
		os.Unsetenv(k)
		t.Cleanup(func() {
			if had {
				os.Setenv(k, original)
			}
		})
	}
}

func TestLoadAppliesDefaultsWhenUnset(t *testing.T) {
	clearEnv(t, "BASE_RPC_URL", "SUBGRAPH_URL", "DATABASE_DSN", "TRAD_DELEGATE_ADDRESS", "DRY_RUN", "LISTEN_ADDR")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "", cfg.DatabaseDSN)
	assert.Equal(t, "", cfg.DelegateAddress)
	assert.False(t, cfg.DryRun)
	assert.Equal(t, ":8080", cfg.ListenAddr)
}

func TestLoadReadsOverridesFromEnv(t *testing.T) {
	clearEnv(t, "DRY_RUN", "MAX_ETH_PER_TRADE", "DEFAULT_SLIPPAGE_BPS")
	os.Setenv("DRY_RUN", "true")
	os.Setenv("MAX_ETH_PER_TRADE", "0.25")
	os.Setenv("DEFAULT_SLIPPAGE_BPS", "250")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.DryRun)
	assert.True(t, cfg.MaxEthPerTrade.Equal(decimal.NewFromFloat(0.25)))
	assert.Equal(t, int64(250), cfg.DefaultSlippageBps)
}

func TestLoadReadsEncryptedOperatorKeyFields(t *testing.T) {
	clearEnv(t, "ENC_OPERATOR_PRIVATE_KEY", "OPERATOR_KEY_PASSPHRASE")
	os.Setenv("ENC_OPERATOR_PRIVATE_KEY", "deadbeef")
	os.Setenv("OPERATOR_KEY_PASSPHRASE", "hunter2")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "deadbeef", cfg.EncryptedOperatorKey)
	assert.Equal(t, "hunter2", cfg.OperatorKeyPassphrase)
}
