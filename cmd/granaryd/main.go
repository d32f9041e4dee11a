package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"granary/cmd/internal/passphrase"
	"granary/config"
	"granary/core"
	"granary/crypto"
	"granary/gateway/middleware"
	"granary/gateway/routes"
	"granary/native/farm"
	"granary/native/vesting"
	"granary/observability"
	"granary/observability/logging"
	"granary/rpc"
	"granary/storage"
)

const keystorePassEnv = "GRANARY_KEYSTORE_PASS"

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	manifestFlag := flag.String("manifest", "", "Path to a program manifest (overrides config ManifestPath)")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("GRANARY_ENV"))

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.SetupWith("granaryd", env, logging.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		File:   cfg.LogFile,
	})
	logger.Info("configuration loaded",
		slog.String("config", *configFile),
		slog.String("backend", cfg.StorageBackend),
		slog.String("rpc_address", cfg.RPCAddress),
		slog.String("gateway_address", cfg.GatewayAddress),
		slog.String("ops_address", cfg.OpsAddress),
		logging.MaskField("rpc_token", cfg.RPCToken()),
		logging.MaskField("jwt_secret", cfg.JWTSecret()),
	)

	db, err := openDatabase(cfg)
	if err != nil {
		logger.Error("failed to open state database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	passSource := passphrase.NewSource(keystorePassEnv, cfg.KeystorePassphrase)
	pass, err := passSource.Get()
	if err != nil {
		logger.Error("failed to resolve keystore passphrase", slog.Any("error", err))
		os.Exit(1)
	}
	key, err := crypto.LoadOrCreateKeystore(cfg.KeystorePath, pass)
	if err != nil {
		logger.Error("failed to unlock operator keystore", slog.Any("error", err))
		os.Exit(1)
	}

	node, err := core.NewNode(db, key)
	if err != nil {
		logger.Error("failed to initialise node", slog.Any("error", err))
		os.Exit(1)
	}
	node.SetLogger(logger)
	operator := node.Operator()
	logger.Info("operator key loaded",
		slog.String("address", crypto.NewAddress(crypto.GNRPrefix, operator[:]).String()))

	if err := applyGenesis(node, cfg, logger); err != nil {
		logger.Error("failed to apply genesis tokens", slog.Any("error", err))
		os.Exit(1)
	}

	manifestPath := strings.TrimSpace(*manifestFlag)
	if manifestPath == "" {
		manifestPath = strings.TrimSpace(cfg.ManifestPath)
	}
	if manifestPath != "" {
		if err := applyManifest(node, manifestPath, logger); err != nil {
			logger.Error("failed to apply manifest", slog.Any("error", err))
			os.Exit(1)
		}
	}

	var ready atomic.Bool

	rpcServer := rpc.NewServer(node, rpc.ServerConfig{
		AuthToken:         cfg.RPCToken(),
		RequestsPerMinute: cfg.RPCRateLimit,
	})
	rpcServer.SetLogger(logger)
	rpcErr := make(chan error, 1)
	go func() { rpcErr <- rpcServer.Start(cfg.RPCAddress) }()

	jwtSecret := cfg.JWTSecret()
	gatewayHandler, err := routes.New(routes.Config{
		Node:   node,
		Logger: logger,
		Authenticator: middleware.NewAuthenticator(middleware.AuthConfig{
			Enabled:    jwtSecret != "",
			HMACSecret: jwtSecret,
		}, logger),
		RateLimiter: middleware.NewRateLimiter(middleware.RateLimit{
			RequestsPerMinute: float64(cfg.GatewayRateLimit),
			Burst:             cfg.GatewayRateLimit,
		}, logger),
	})
	if err != nil {
		logger.Error("failed to build gateway", slog.Any("error", err))
		os.Exit(1)
	}
	gatewaySrv := &http.Server{
		Addr:              cfg.GatewayAddress,
		Handler:           gatewayHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	gatewayErr := make(chan error, 1)
	go func() { gatewayErr <- gatewaySrv.ListenAndServe() }()

	opsSrv := &http.Server{
		Addr: cfg.OpsAddress,
		Handler: observability.OpsHandler(func() error {
			if !ready.Load() {
				return errors.New("node starting up")
			}
			return nil
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	opsErr := make(chan error, 1)
	go func() { opsErr <- opsSrv.ListenAndServe() }()

	ready.Store(true)
	logger.Info("granaryd running")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-stop:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-rpcErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("rpc server failed", slog.Any("error", err))
		}
	case err := <-gatewayErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("gateway failed", slog.Any("error", err))
		}
	case err := <-opsErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("ops endpoint failed", slog.Any("error", err))
		}
	}

	ready.Store(false)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := rpcServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("rpc shutdown", slog.Any("error", err))
	}
	if err := gatewaySrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("gateway shutdown", slog.Any("error", err))
	}
	if err := opsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("ops shutdown", slog.Any("error", err))
	}
	logger.Info("granaryd stopped")
}

func openDatabase(cfg *config.Config) (storage.Database, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.StorageBackend)) {
	case config.BackendMemory:
		return storage.NewMemDB(), nil
	case config.BackendBolt:
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, err
		}
		return storage.NewBoltDB(filepath.Join(cfg.DataDir, "state.db"))
	case config.BackendLevelDB:
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, err
		}
		return storage.NewLevelDB(filepath.Join(cfg.DataDir, "state"))
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

// applyGenesis registers and mints the configured genesis tokens. Tokens that
// already exist are left untouched, so repeated boots are safe.
func applyGenesis(node *core.Node, cfg *config.Config, logger *slog.Logger) error {
	for _, tok := range cfg.Genesis {
		symbol := strings.ToUpper(strings.TrimSpace(tok.Symbol))
		if _, exists, err := node.TokenInfo(symbol); err != nil {
			return fmt.Errorf("inspect token %s: %w", symbol, err)
		} else if exists {
			logger.Debug("genesis token already registered", slog.String("symbol", symbol))
			continue
		}
		if _, err := node.RegisterToken(symbol, tok.Name, tok.Decimals); err != nil {
			return fmt.Errorf("register token %s: %w", symbol, err)
		}
		supply, err := tok.SupplyAmount()
		if err != nil {
			return fmt.Errorf("token %s supply: %w", symbol, err)
		}
		if err := node.MintToken(symbol, node.Operator(), supply); err != nil {
			return fmt.Errorf("mint token %s: %w", symbol, err)
		}
		logger.Info("genesis token minted",
			slog.String("symbol", symbol),
			slog.String("supply", supply.String()))
	}
	return nil
}

// applyManifest ensures the declared farms and grants exist. Existing records
// are skipped rather than reconciled; changing a live program requires an
// explicit operator action, not a config edit.
func applyManifest(node *core.Node, path string, logger *slog.Logger) error {
	manifest, err := config.LoadManifest(path)
	if err != nil {
		return err
	}
	operator := node.Operator()

	for _, entry := range manifest.Farms {
		if _, err := node.GetFarm(entry.ID); err == nil {
			logger.Debug("farm already exists", slog.String("farm", entry.ID))
			continue
		} else if !errors.Is(err, farm.ErrFarmNotFound) {
			return fmt.Errorf("inspect farm %s: %w", entry.ID, err)
		}
		// Check the budget is coverable before creating, so a failed boot
		// never leaves a farm on record with an empty vault.
		budget := new(big.Int).Mul(new(big.Int).SetUint64(entry.End-entry.Start), entry.RewardRate)
		balance, err := node.TokenBalance(entry.RewardToken, operator)
		if err != nil {
			return fmt.Errorf("operator balance for %s: %w", entry.ID, err)
		}
		if balance.Cmp(budget) < 0 {
			return fmt.Errorf("fund farm %s: operator holds %s %s, budget needs %s", entry.ID, balance, entry.RewardToken, budget)
		}
		created, err := node.CreateFarm(farm.CreateParams{
			ID:          entry.ID,
			StakeToken:  entry.StakeToken,
			RewardToken: entry.RewardToken,
			StartTime:   entry.Start,
			EndTime:     entry.End,
			RewardRate:  entry.RewardRate,
			LockPolicy:  entry.Policy,
			Owner:       operator,
		})
		if err != nil {
			return fmt.Errorf("create farm %s: %w", entry.ID, err)
		}
		if created.RewardBudget.Sign() > 0 {
			if err := node.TokenTransfer(created.RewardToken, operator, created.Vault, created.RewardBudget); err != nil {
				return fmt.Errorf("fund farm %s: %w", entry.ID, err)
			}
		}
		logger.Info("farm created and funded",
			slog.String("farm", created.ID),
			slog.String("budget", created.RewardBudget.String()))
	}

	for _, entry := range manifest.Grants {
		grantee := crypto.NewAddress(crypto.GNRPrefix, entry.Grantee[:]).String()
		if _, err := node.VestingGrant(entry.Grantee); err == nil {
			logger.Debug("grant already exists", slog.String("grantee", grantee))
			continue
		} else if !errors.Is(err, vesting.ErrGrantNotFound) {
			return fmt.Errorf("inspect grant for %s: %w", grantee, err)
		}
		if _, err := node.VestingAddGrant(operator, entry.Grantee, entry.Token, entry.Amount, entry.Start, entry.Cliff, entry.End); err != nil {
			return fmt.Errorf("add grant for %s: %w", grantee, err)
		}
		logger.Info("vesting grant funded",
			slog.String("grantee", grantee),
			slog.String("amount", entry.Amount.String()))
	}

	return nil
}
