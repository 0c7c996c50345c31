package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"stratexec/internal/config"
	"stratexec/internal/custody"
	"stratexec/internal/executor"
	"stratexec/internal/httpapi"
	"stratexec/internal/ledger"
	"stratexec/internal/logging"
	"stratexec/internal/strategyrt"
	"stratexec/internal/subgraph"
	"stratexec/pkg/contractclient"
	"stratexec/pkg/txlistener"
	"stratexec/pkg/util"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	contracts, err := config.LoadContracts(cfg.ContractsConfigPath)
	if err != nil {
		panic(err)
	}
	applyContractDefaults(cfg, contracts)

	log := logging.New(logging.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty})

	db, err := openDatabase(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	store, err := ledger.New(db)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to migrate ledger schema")
	}

	ethClient, err := ethclient.Dial(cfg.BaseRPCURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to dial RPC endpoint")
	}

	listener := txlistener.NewTxListener(ethClient,
		txlistener.WithPollInterval(3*time.Second),
		txlistener.WithTimeout(5*time.Minute),
	)

	pairABI, err := loadABI(cfg.PairABIPath, executor.PairABI)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to parse pair abi")
	}
	pairs := executor.NewLazyPairClient(listener, ethClient, pairABI)

	execCfg, operatorAddr, err := buildExecutorConfig(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to configure trade execution")
	}

	var cust custody.Custody
	if execCfg.CustodyConfigured {
		custodyABI, err := loadABI(cfg.CustodyABIPath, custody.ABI)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to parse custody abi")
		}
		custodyContract := contractclient.NewContractClient(ethClient, common.HexToAddress(cfg.DelegateAddress), custodyABI)
		cust = custody.NewOnChain(custodyContract, execCfg.OperatorKey, operatorAddr, listener)
	}

	trader := executor.New(execCfg, pairs, cust, listener)

	balances, err := executor.NewTokenBalanceClient(ethClient, operatorAddr)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build balance reader")
	}

	market := subgraph.New(cfg.SubgraphURL, log)

	walletForCapability := operatorAddr
	if cfg.DelegateAddress != "" && cfg.UserAddress != "" {
		walletForCapability = common.HexToAddress(cfg.UserAddress)
	}

	capFactory := func(runID string, logs *strategyrt.LogBuffer, limiter *strategyrt.RateLimiter) *strategyrt.Capability {
		return strategyrt.NewCapability(strategyrt.CapabilityConfig{
			Market:   market,
			Pairs:    pairs,
			Balances: balances,
			EthUsd:   market,
			Trader:   trader,
			Recorder: store,
			RunID:    runID,
			Wallet:   walletForCapability,
			Limiter:  limiter,
			Logs:     logs,
		})
	}

	runMode, runUserAddr := executionIdentity(cfg, execCfg, operatorAddr)
	runtime := strategyrt.NewRuntimeHost(store, capFactory, cfg.DryRun, runMode, runUserAddr, 4, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := runtime.ResumeActive(ctx); err != nil {
		log.Error().Err(err).Msg("failed to resume active strategies at startup")
	}

	c := cron.New()
	if _, err := c.AddFunc("@every 1m", func() { runtime.HealthCheck(ctx) }); err != nil {
		log.Fatal().Err(err).Msg("failed to schedule health check")
	}
	c.Start()
	defer c.Stop()

	router := httpapi.NewRouter(store, runtime, httpapi.Config{AdminToken: cfg.AdminToken, DryRun: cfg.DryRun}, log)
	mux := http.NewServeMux()
	mux.Handle("/", router)
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{Addr: cfg.ListenAddr, Handler: mux}

	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Msg("strategy execution core listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info().Msg("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}

// openDatabase opens a MySQL connection when DatabaseDSN is configured,
// falling back to a local sqlite file for development and dry-run use.
func openDatabase(cfg *config.Config) (*gorm.DB, error) {
	if cfg.DatabaseDSN != "" {
		return gorm.Open(mysql.Open(cfg.DatabaseDSN), &gorm.Config{})
	}
	return gorm.Open(sqlite.Open("stratexec.db"), &gorm.Config{})
}

// buildExecutorConfig resolves the trade execution mode from the
// configured credentials: a delegate-address plus operator key wires
// custody delegation, an operator key alone wires direct signing, and
// neither leaves the executor able to run only in dry-run mode.
func buildExecutorConfig(cfg *config.Config) (executor.Config, common.Address, error) {
	execCfg := executor.Config{
		MaxEthPerTrade:     cfg.MaxEthPerTrade,
		DefaultSlippageBps: cfg.DefaultSlippageBps,
		DryRun:             cfg.DryRun,
	}

	rawKey, err := resolveOperatorKeyHex(cfg)
	if err != nil {
		return execCfg, common.Address{}, err
	}
	if rawKey == "" {
		if cfg.DryRun {
			return execCfg, common.Address{}, nil
		}
		return execCfg, common.Address{}, fmt.Errorf("OPERATOR_PRIVATE_KEY or ENC_OPERATOR_PRIVATE_KEY is required outside dry-run mode")
	}

	key, err := crypto.HexToECDSA(rawKey)
	if err != nil {
		return execCfg, common.Address{}, fmt.Errorf("failed to parse operator private key: %w", err)
	}
	addr := crypto.PubkeyToAddress(key.PublicKey)

	if cfg.DelegateAddress != "" {
		execCfg.CustodyConfigured = true
		execCfg.OperatorKey = key
		execCfg.OperatorAddr = addr
		return execCfg, addr, nil
	}

	execCfg.DirectKey = key
	execCfg.DirectAddr = addr
	return execCfg, addr, nil
}

// executionIdentity reports which of the three execution modes the
// configured Executor will actually run trades in, and the wallet address
// that mode trades on behalf of, so every persisted Run records the truth
// instead of a placeholder.
func executionIdentity(cfg *config.Config, execCfg executor.Config, operatorAddr common.Address) (mode, userAddr string) {
	if cfg.DryRun {
		return string(executor.ModeSimulated), cfg.UserAddress
	}
	if execCfg.CustodyConfigured {
		return string(executor.ModeDelegate), cfg.UserAddress
	}
	if execCfg.DirectKey != nil {
		return string(executor.ModeDirect), operatorAddr.Hex()
	}
	return "unconfigured", ""
}

// applyContractDefaults layers the static contracts.yml address/ABI-path
// map under the environment-variable fields it can fill: env vars, when
// set, always win, since secrets and risk limits stay env-authoritative
// while the YAML file only carries the static address/ABI map.
func applyContractDefaults(cfg *config.Config, contracts *config.ContractsConfig) {
	if entry, ok := contracts.Lookup("pair"); ok {
		if cfg.PairABIPath == "" {
			cfg.PairABIPath = entry.ABI
		}
	}
	if entry, ok := contracts.Lookup("custody"); ok {
		if cfg.CustodyABIPath == "" {
			cfg.CustodyABIPath = entry.ABI
		}
		if cfg.DelegateAddress == "" {
			cfg.DelegateAddress = entry.Address
		}
	}
}

// loadABI reads abi from path when set, otherwise falls back to the
// built-in ABI fallback so a deployment can point at a non-standard pair
// or custody contract without a code change.
func loadABI(path string, fallback func() (abi.ABI, error)) (abi.ABI, error) {
	if path == "" {
		return fallback()
	}
	return util.LoadABI(path)
}

// resolveOperatorKeyHex prefers a plain OPERATOR_PRIVATE_KEY if set, else
// unseals ENC_OPERATOR_PRIVATE_KEY under OPERATOR_KEY_PASSPHRASE, so an
// operator key never needs to sit in the environment in cleartext.
func resolveOperatorKeyHex(cfg *config.Config) (string, error) {
	if cfg.OperatorPrivateKey != "" {
		return cfg.OperatorPrivateKey, nil
	}
	if cfg.EncryptedOperatorKey == "" {
		return "", nil
	}
	if cfg.OperatorKeyPassphrase == "" {
		return "", fmt.Errorf("OPERATOR_KEY_PASSPHRASE is required to unseal ENC_OPERATOR_PRIVATE_KEY")
	}
	plain, err := util.Decrypt([]byte(cfg.OperatorKeyPassphrase), cfg.EncryptedOperatorKey)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt operator private key: %w", err)
	}
	return plain, nil
}
