package config

import (
	"fmt"
	"math/big"
	"os"
	"strings"

	"granary/crypto"

	"gopkg.in/yaml.v3"
)

// Manifest declares the farm programs and vesting grants the daemon ensures
// at boot. Entries are applied in declaration order and skipped when the
// record already exists, so restarts are safe.
type Manifest struct {
	Farms  []ManifestFarm
	Grants []ManifestGrant
}

// ManifestFarm is a parsed farm program declaration.
type ManifestFarm struct {
	ID          string
	StakeToken  string
	RewardToken string
	Start       uint64
	End         uint64
	RewardRate  *big.Int
	Policy      string
}

// ManifestGrant is a parsed vesting grant declaration.
type ManifestGrant struct {
	Grantee [20]byte
	Token   string
	Amount  *big.Int
	Start   uint64
	Cliff   uint64
	End     uint64
}

// manifestFile mirrors the YAML representation of the manifest.
type manifestFile struct {
	Farms  []manifestFarm  `yaml:"farms"`
	Grants []manifestGrant `yaml:"grants"`
}

type manifestFarm struct {
	ID          string `yaml:"id"`
	StakeToken  string `yaml:"stake_token"`
	RewardToken string `yaml:"reward_token"`
	Start       uint64 `yaml:"start"`
	End         uint64 `yaml:"end"`
	RewardRate  string `yaml:"reward_rate"`
	Policy      string `yaml:"policy"`
}

type manifestGrant struct {
	Grantee string `yaml:"grantee"`
	Token   string `yaml:"token"`
	Amount  string `yaml:"amount"`
	Start   uint64 `yaml:"start"`
	Cliff   uint64 `yaml:"cliff"`
	End     uint64 `yaml:"end"`
}

// LoadManifest reads the program manifest from the provided YAML file.
func LoadManifest(path string) (*Manifest, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer file.Close()
	dec := yaml.NewDecoder(file)
	var raw manifestFile
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}

	manifest := &Manifest{
		Farms:  make([]ManifestFarm, 0, len(raw.Farms)),
		Grants: make([]ManifestGrant, 0, len(raw.Grants)),
	}

	seenFarms := make(map[string]struct{})
	for _, entry := range raw.Farms {
		id := strings.ToLower(strings.TrimSpace(entry.ID))
		if id == "" {
			return nil, fmt.Errorf("farm id required")
		}
		if _, exists := seenFarms[id]; exists {
			return nil, fmt.Errorf("duplicate farm %s", id)
		}
		seenFarms[id] = struct{}{}
		rate, err := parseDecimal(entry.RewardRate)
		if err != nil {
			return nil, fmt.Errorf("farm %s reward_rate: %w", id, err)
		}
		if entry.End <= entry.Start {
			return nil, fmt.Errorf("farm %s: end must follow start", id)
		}
		manifest.Farms = append(manifest.Farms, ManifestFarm{
			ID:          id,
			StakeToken:  strings.ToUpper(strings.TrimSpace(entry.StakeToken)),
			RewardToken: strings.ToUpper(strings.TrimSpace(entry.RewardToken)),
			Start:       entry.Start,
			End:         entry.End,
			RewardRate:  rate,
			Policy:      strings.ToLower(strings.TrimSpace(entry.Policy)),
		})
	}

	seenGrants := make(map[[20]byte]struct{})
	for i, entry := range raw.Grants {
		decoded, err := crypto.DecodeAddress(strings.TrimSpace(entry.Grantee))
		if err != nil {
			return nil, fmt.Errorf("grant %d grantee: %w", i, err)
		}
		var grantee [20]byte
		copy(grantee[:], decoded.Bytes())
		if _, exists := seenGrants[grantee]; exists {
			return nil, fmt.Errorf("duplicate grant for %s", entry.Grantee)
		}
		seenGrants[grantee] = struct{}{}
		amount, err := parseDecimal(entry.Amount)
		if err != nil {
			return nil, fmt.Errorf("grant %d amount: %w", i, err)
		}
		if entry.Start > entry.Cliff || entry.Cliff > entry.End || entry.Start >= entry.End {
			return nil, fmt.Errorf("grant %d: start <= cliff <= end violated", i)
		}
		manifest.Grants = append(manifest.Grants, ManifestGrant{
			Grantee: grantee,
			Token:   strings.ToUpper(strings.TrimSpace(entry.Token)),
			Amount:  amount,
			Start:   entry.Start,
			Cliff:   entry.Cliff,
			End:     entry.End,
		})
	}

	return manifest, nil
}

func parseDecimal(raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("amount required")
	}
	value, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid integer amount %q", raw)
	}
	if value.Sign() <= 0 {
		return nil, fmt.Errorf("amount must be positive")
	}
	return value, nil
}
