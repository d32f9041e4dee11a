package config

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"granary/crypto"
)

func TestLoadCreatesDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load missing config: %v", err)
	}
	if cfg.RPCAddress != ":8545" {
		t.Fatalf("default RPC address %q", cfg.RPCAddress)
	}
	if cfg.StorageBackend != BackendLevelDB {
		t.Fatalf("default backend %q", cfg.StorageBackend)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config not persisted: %v", err)
	}
	if _, err := os.Stat(cfg.KeystorePath); err != nil {
		t.Fatalf("keystore not persisted: %v", err)
	}
	if _, err := crypto.LoadFromKeystore(cfg.KeystorePath, ""); err != nil {
		t.Fatalf("keystore unreadable: %v", err)
	}

	// A second load round-trips the persisted file.
	again, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if again.KeystorePath != cfg.KeystorePath {
		t.Fatalf("keystore path changed on reload: %q vs %q", again.KeystorePath, cfg.KeystorePath)
	}
}

func TestLoadParsesSettings(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	keystorePath := filepath.Join(dir, "operator.keystore")
	contents := fmt.Sprintf(`RPCAddress = "0.0.0.0:9000"
GatewayAddress = "0.0.0.0:9001"
OpsAddress = "0.0.0.0:9100"
DataDir = "./data"
StorageBackend = "bolt"
KeystorePath = "%s"
ManifestPath = "./programs.yaml"
LogLevel = "debug"
LogFormat = "text"
LogFile = "./granary.log"
RPCAuthToken = "file-token"
GatewayJWTSecret = "file-secret"
RPCRateLimitPerMinute = 120
GatewayRateLimitPerMinute = 240

[[genesis]]
Symbol = "seed"
Name = "Seed Grain"
Decimals = 6
Supply = "100000000"

[[genesis]]
Symbol = "GRAIN"
Name = "Harvest Grain"
Decimals = 6
Supply = "10000000000"
`, keystorePath)
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RPCAddress != "0.0.0.0:9000" {
		t.Fatalf("RPCAddress = %q", cfg.RPCAddress)
	}
	if cfg.GatewayAddress != "0.0.0.0:9001" || cfg.OpsAddress != "0.0.0.0:9100" {
		t.Fatalf("listen addresses = %q %q", cfg.GatewayAddress, cfg.OpsAddress)
	}
	if cfg.StorageBackend != BackendBolt {
		t.Fatalf("StorageBackend = %q", cfg.StorageBackend)
	}
	if cfg.LogLevel != "debug" || cfg.LogFormat != "text" || cfg.LogFile != "./granary.log" {
		t.Fatalf("log settings = %q %q %q", cfg.LogLevel, cfg.LogFormat, cfg.LogFile)
	}
	if cfg.RPCRateLimit != 120 || cfg.GatewayRateLimit != 240 {
		t.Fatalf("rate limits = %d %d", cfg.RPCRateLimit, cfg.GatewayRateLimit)
	}
	if cfg.ManifestPath != "./programs.yaml" {
		t.Fatalf("ManifestPath = %q", cfg.ManifestPath)
	}
	if len(cfg.Genesis) != 2 {
		t.Fatalf("genesis tokens = %d", len(cfg.Genesis))
	}
	supply, err := cfg.Genesis[1].SupplyAmount()
	if err != nil {
		t.Fatalf("genesis supply: %v", err)
	}
	if supply.Cmp(big.NewInt(10_000_000_000)) != 0 {
		t.Fatalf("genesis supply = %s", supply)
	}
	// The keystore is created when the referenced file is missing.
	if _, err := os.Stat(keystorePath); err != nil {
		t.Fatalf("keystore not ensured: %v", err)
	}
}

func TestLoadRejectsBadConfig(t *testing.T) {
	cases := []struct {
		name     string
		contents string
	}{
		{"unknown backend", `StorageBackend = "etcd"`},
		{"unknown log format", `LogFormat = "xml"`},
		{"genesis symbol missing", "[[genesis]]\nName = \"Nameless\"\nSupply = \"1\""},
		{"genesis supply malformed", "[[genesis]]\nSymbol = \"SEED\"\nSupply = \"1.5\""},
		{"genesis duplicate", "[[genesis]]\nSymbol = \"SEED\"\nSupply = \"1\"\n\n[[genesis]]\nSymbol = \"seed\"\nSupply = \"2\""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, "config.toml")
			if err := os.WriteFile(path, []byte(tc.contents), 0o600); err != nil {
				t.Fatalf("write config: %v", err)
			}
			if _, err := Load(path); err == nil {
				t.Fatal("expected load to fail")
			}
		})
	}
}

func TestSecretsPreferEnvironment(t *testing.T) {
	cfg := &Config{RPCAuthToken: "file-token", GatewayJWTSecret: "file-secret"}
	if cfg.RPCToken() != "file-token" || cfg.JWTSecret() != "file-secret" {
		t.Fatalf("file secrets not used: %q %q", cfg.RPCToken(), cfg.JWTSecret())
	}
	t.Setenv(EnvRPCToken, "env-token")
	t.Setenv(EnvJWTSecret, "env-secret")
	if cfg.RPCToken() != "env-token" {
		t.Fatalf("RPCToken = %q", cfg.RPCToken())
	}
	if cfg.JWTSecret() != "env-secret" {
		t.Fatalf("JWTSecret = %q", cfg.JWTSecret())
	}
}

func testGranteeAddress(t *testing.T) string {
	t.Helper()
	var raw [20]byte
	raw[0] = 0x42
	raw[19] = 0x24
	return crypto.NewAddress(crypto.GNRPrefix, raw[:]).String()
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "programs.yaml")
	grantee := testGranteeAddress(t)
	contents := fmt.Sprintf(`farms:
  - id: Harvest
    stake_token: seed
    reward_token: grain
    start: 1700000000
    end: 1702592000
    reward_rate: "1000"
    policy: hodl
grants:
  - grantee: %s
    token: grain
    amount: "1000"
    start: 1700000000
    cliff: 1702592000
    end: 1731536000
`, grantee)
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write manifest: %v", err)
	}

	manifest, err := LoadManifest(path)
	if err != nil {
		t.Fatalf("load manifest: %v", err)
	}
	if len(manifest.Farms) != 1 || len(manifest.Grants) != 1 {
		t.Fatalf("entries = %d farms %d grants", len(manifest.Farms), len(manifest.Grants))
	}
	program := manifest.Farms[0]
	if program.ID != "harvest" {
		t.Fatalf("farm id %q not lowercased", program.ID)
	}
	if program.StakeToken != "SEED" || program.RewardToken != "GRAIN" {
		t.Fatalf("farm tokens %q/%q not uppercased", program.StakeToken, program.RewardToken)
	}
	if program.RewardRate.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("reward rate %s", program.RewardRate)
	}
	if program.Policy != "hodl" {
		t.Fatalf("policy %q", program.Policy)
	}
	grant := manifest.Grants[0]
	if grant.Token != "GRAIN" || grant.Amount.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("grant = %+v", grant)
	}
	if grant.Grantee[0] != 0x42 || grant.Grantee[19] != 0x24 {
		t.Fatalf("grantee bytes = %x", grant.Grantee)
	}
}

func TestLoadManifestRejectsBadEntries(t *testing.T) {
	grantee := testGranteeAddress(t)
	cases := []struct {
		name     string
		contents string
	}{
		{"duplicate farm", `farms:
  - id: harvest
    stake_token: SEED
    reward_token: GRAIN
    start: 1
    end: 2
    reward_rate: "1"
  - id: HARVEST
    stake_token: SEED
    reward_token: GRAIN
    start: 1
    end: 2
    reward_rate: "1"
`},
		{"farm window inverted", `farms:
  - id: harvest
    stake_token: SEED
    reward_token: GRAIN
    start: 2
    end: 2
    reward_rate: "1"
`},
		{"zero rate", `farms:
  - id: harvest
    stake_token: SEED
    reward_token: GRAIN
    start: 1
    end: 2
    reward_rate: "0"
`},
		{"bad grantee", `grants:
  - grantee: nothex
    token: GRAIN
    amount: "1"
    start: 1
    cliff: 1
    end: 2
`},
		{"cliff outside window", fmt.Sprintf(`grants:
  - grantee: %s
    token: GRAIN
    amount: "1"
    start: 1
    cliff: 3
    end: 2
`, grantee)},
		{"duplicate grantee", fmt.Sprintf(`grants:
  - grantee: %s
    token: GRAIN
    amount: "1"
    start: 1
    cliff: 1
    end: 2
  - grantee: %s
    token: SEED
    amount: "2"
    start: 1
    cliff: 1
    end: 2
`, grantee, grantee)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, "programs.yaml")
			if err := os.WriteFile(path, []byte(tc.contents), 0o600); err != nil {
				t.Fatalf("write manifest: %v", err)
			}
			if _, err := LoadManifest(path); err == nil {
				t.Fatal("expected manifest load to fail")
			}
		})
	}
}
