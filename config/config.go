package config

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"granary/crypto"

	"github.com/BurntSushi/toml"
)

// Environment variables that override the secrets carried in the config
// file. Operators who refuse to keep credentials on disk set these instead.
const (
	EnvRPCToken  = "GRANARY_RPC_TOKEN"
	EnvJWTSecret = "GRANARY_JWT_SECRET"
)

// Backend names accepted by StorageBackend.
const (
	BackendMemory  = "memory"
	BackendLevelDB = "leveldb"
	BackendBolt    = "bolt"
)

type Config struct {
	RPCAddress     string `toml:"RPCAddress"`
	GatewayAddress string `toml:"GatewayAddress"`
	OpsAddress     string `toml:"OpsAddress"`
	DataDir        string `toml:"DataDir"`
	StorageBackend string `toml:"StorageBackend"`
	KeystorePath   string `toml:"KeystorePath"`
	ManifestPath   string `toml:"ManifestPath"`

	LogLevel  string `toml:"LogLevel"`
	LogFormat string `toml:"LogFormat"`
	LogFile   string `toml:"LogFile"`

	RPCAuthToken       string `toml:"RPCAuthToken"`
	GatewayJWTSecret   string `toml:"GatewayJWTSecret"`
	RPCRateLimit       int    `toml:"RPCRateLimitPerMinute"`
	GatewayRateLimit   int    `toml:"GatewayRateLimitPerMinute"`
	KeystorePassphrase string `toml:"KeystorePassphrase"`

	Genesis []GenesisToken `toml:"genesis"`
}

// GenesisToken describes a token registered and minted to the operator on
// first boot. Supply is a decimal string in base units.
type GenesisToken struct {
	Symbol   string `toml:"Symbol"`
	Name     string `toml:"Name"`
	Decimals uint8  `toml:"Decimals"`
	Supply   string `toml:"Supply"`
}

// SupplyAmount parses the genesis supply into base units.
func (g GenesisToken) SupplyAmount() (*big.Int, error) {
	return parseDecimal(g.Supply)
}

// Load loads the configuration from the given path, creating and persisting
// a default alongside a fresh operator keystore when the file is missing.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}

	if err := ensureKeystore(path, cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.RPCAddress) == "" {
		c.RPCAddress = ":8545"
	}
	if strings.TrimSpace(c.GatewayAddress) == "" {
		c.GatewayAddress = ":8080"
	}
	if strings.TrimSpace(c.OpsAddress) == "" {
		c.OpsAddress = ":9090"
	}
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = "./granary-data"
	}
	if strings.TrimSpace(c.StorageBackend) == "" {
		c.StorageBackend = BackendLevelDB
	}
	if strings.TrimSpace(c.LogLevel) == "" {
		c.LogLevel = "info"
	}
	if strings.TrimSpace(c.LogFormat) == "" {
		c.LogFormat = "json"
	}
	if c.RPCRateLimit <= 0 {
		c.RPCRateLimit = 600
	}
	if c.GatewayRateLimit <= 0 {
		c.GatewayRateLimit = 1200
	}
}

// Validate rejects configurations the daemon cannot start with.
func (c *Config) Validate() error {
	switch strings.ToLower(strings.TrimSpace(c.StorageBackend)) {
	case BackendMemory, BackendLevelDB, BackendBolt:
	default:
		return fmt.Errorf("config: unknown storage backend %q", c.StorageBackend)
	}
	switch strings.ToLower(strings.TrimSpace(c.LogFormat)) {
	case "json", "text":
	default:
		return fmt.Errorf("config: unknown log format %q", c.LogFormat)
	}
	seen := make(map[string]struct{}, len(c.Genesis))
	for _, tok := range c.Genesis {
		symbol := strings.ToUpper(strings.TrimSpace(tok.Symbol))
		if symbol == "" {
			return fmt.Errorf("config: genesis token symbol required")
		}
		if _, dup := seen[symbol]; dup {
			return fmt.Errorf("config: duplicate genesis token %s", symbol)
		}
		seen[symbol] = struct{}{}
		if _, err := tok.SupplyAmount(); err != nil {
			return fmt.Errorf("config: genesis token %s: %w", symbol, err)
		}
	}
	return nil
}

// RPCToken resolves the bearer token protecting mutating RPC methods. The
// environment variable wins over the config file.
func (c *Config) RPCToken() string {
	if v := strings.TrimSpace(os.Getenv(EnvRPCToken)); v != "" {
		return v
	}
	return strings.TrimSpace(c.RPCAuthToken)
}

// JWTSecret resolves the gateway HS256 signing secret. The environment
// variable wins over the config file.
func (c *Config) JWTSecret() string {
	if v := strings.TrimSpace(os.Getenv(EnvJWTSecret)); v != "" {
		return v
	}
	return strings.TrimSpace(c.GatewayJWTSecret)
}

func ensureKeystore(configPath string, cfg *Config) error {
	keystorePath := cfg.KeystorePath
	if keystorePath == "" {
		keystorePath = defaultKeystorePath(configPath)
	}

	if _, err := os.Stat(keystorePath); os.IsNotExist(err) {
		key, genErr := crypto.GeneratePrivateKey()
		if genErr != nil {
			return genErr
		}
		if err := crypto.SaveToKeystore(keystorePath, key, cfg.KeystorePassphrase); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	if cfg.KeystorePath != keystorePath {
		cfg.KeystorePath = keystorePath
		return persist(configPath, cfg)
	}

	return nil
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}

	keystorePath := defaultKeystorePath(path)
	if err := crypto.SaveToKeystore(keystorePath, key, ""); err != nil {
		return nil, err
	}

	cfg := &Config{
		RPCAddress:     ":8545",
		GatewayAddress: ":8080",
		OpsAddress:     ":9090",
		DataDir:        "./granary-data",
		StorageBackend: BackendLevelDB,
		LogLevel:       "info",
		LogFormat:      "json",
	}
	cfg.KeystorePath = keystorePath
	cfg.applyDefaults()

	if err := persist(path, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

func defaultKeystorePath(configPath string) string {
	dir := filepath.Dir(configPath)
	if dir == "." || dir == "" {
		dir = ""
	}
	return filepath.Join(dir, "operator.keystore")
}
