// Package config reads the environment-variable surface of the strategy
// execution core, the way aristath-sentinel's internal/config/config.go
// reads its own: godotenv.Load() first, then getEnv/getEnvAsInt/getEnvAsBool
// helpers over os.Getenv with explicit defaults.
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config is the process-wide configuration, read once at startup.
type Config struct {
	BaseRPCURL  string
	SubgraphURL string // SUBGRAPH_URL; base URL of the market-data read surface

	ContractsConfigPath string // CONTRACTS_CONFIG_PATH; YAML file of per-contract address/ABI-path entries, layered under the env-var fields below
	PairABIPath         string // PAIR_ABI_PATH; overrides the built-in pair ABI when a deployment's pair contract differs
	CustodyABIPath      string // CUSTODY_ABI_PATH; overrides the built-in custody ABI likewise

	DatabaseDSN string // DATABASE_DSN; MySQL DSN, empty falls back to a local sqlite file

	DelegateAddress       string // TRAD_DELEGATE_ADDRESS; custody contract address, enables delegate mode when non-empty
	UserAddress           string // TRAD_USER_ADDRESS; the custody depositor a delegate-mode run trades on behalf of
	OperatorPrivateKey    string // OPERATOR_PRIVATE_KEY; hex-encoded signer key, used directly or via custody
	EncryptedOperatorKey  string // ENC_OPERATOR_PRIVATE_KEY; AES-GCM-sealed alternative to OPERATOR_PRIVATE_KEY
	OperatorKeyPassphrase string // OPERATOR_KEY_PASSPHRASE; required to unseal EncryptedOperatorKey
	AdminToken            string // TRAD_ADMIN_TOKEN; gates the state-changing HTTP surface

	MaxEthPerTrade  decimal.Decimal
	MaxEthPerRun    decimal.Decimal
	MaxEthPerDay    decimal.Decimal
	MaxTradesPerRun int

	DefaultSlippageBps int64

	DryRun bool

	LogLevel   string
	LogPretty  bool
	ListenAddr string
}

// Load reads the environment keys of the configuration surface, falling
// back to .env via godotenv and then to the listed defaults.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		BaseRPCURL:            getEnv("BASE_RPC_URL", "https://eth.llamarpc.com"),
		SubgraphURL:           getEnv("SUBGRAPH_URL", "http://localhost:4000"),
		ContractsConfigPath:   getEnv("CONTRACTS_CONFIG_PATH", ""),
		PairABIPath:           getEnv("PAIR_ABI_PATH", ""),
		CustodyABIPath:        getEnv("CUSTODY_ABI_PATH", ""),
		DatabaseDSN:           getEnv("DATABASE_DSN", ""),
		DelegateAddress:       getEnv("TRAD_DELEGATE_ADDRESS", ""),
		UserAddress:           getEnv("TRAD_USER_ADDRESS", ""),
		OperatorPrivateKey:    getEnv("OPERATOR_PRIVATE_KEY", ""),
		EncryptedOperatorKey:  getEnv("ENC_OPERATOR_PRIVATE_KEY", ""),
		OperatorKeyPassphrase: getEnv("OPERATOR_KEY_PASSPHRASE", ""),
		AdminToken:            getEnv("TRAD_ADMIN_TOKEN", ""),

		MaxEthPerTrade:  getEnvAsDecimal("MAX_ETH_PER_TRADE", decimal.NewFromFloat(0.1)),
		MaxEthPerRun:    getEnvAsDecimal("MAX_ETH_PER_RUN", decimal.NewFromFloat(1)),
		MaxEthPerDay:    getEnvAsDecimal("MAX_ETH_PER_DAY", decimal.NewFromFloat(5)),
		MaxTradesPerRun: getEnvAsInt("MAX_TRADES_PER_RUN", 100),

		DefaultSlippageBps: int64(getEnvAsInt("DEFAULT_SLIPPAGE_BPS", 100)),

		DryRun: getEnvAsBool("DRY_RUN", false),

		LogLevel:   getEnv("LOG_LEVEL", "info"),
		LogPretty:  getEnvAsBool("LOG_PRETTY", false),
		ListenAddr: getEnv("LISTEN_ADDR", ":8080"),
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if d, err := decimal.NewFromString(value); err == nil {
			return d
		}
	}
	return defaultValue
}
