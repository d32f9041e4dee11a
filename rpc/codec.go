package rpc

import (
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"granary/crypto"
	"granary/native/farm"
	"granary/native/token"
	"granary/native/vesting"

	"github.com/holiman/uint256"
)

// parseAmount decodes a positive decimal string amount. Values must fit in
// 256 bits so they round-trip through any EVM-compatible representation.
func parseAmount(amount string) (*big.Int, error) {
	trimmed := strings.TrimSpace(amount)
	if trimmed == "" {
		return nil, fmt.Errorf("amount is required")
	}
	value, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount")
	}
	if value.Sign() <= 0 {
		return nil, fmt.Errorf("amount must be positive")
	}
	if _, overflow := uint256.FromBig(value); overflow {
		return nil, fmt.Errorf("amount exceeds 256 bits")
	}
	return value, nil
}

func decodeBech32(addr string) ([20]byte, error) {
	var zero [20]byte
	decoded, err := crypto.DecodeAddress(strings.TrimSpace(addr))
	if err != nil {
		return zero, err
	}
	copy(zero[:], decoded.Bytes())
	return zero, nil
}

func encodeBech32(addr [20]byte) string {
	return crypto.NewAddress(crypto.GNRPrefix, addr[:]).String()
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

type farmResult struct {
	ID                  string `json:"id"`
	StakeToken          string `json:"stakeToken"`
	RewardToken         string `json:"rewardToken"`
	StartTime           uint64 `json:"startTime"`
	EndTime             uint64 `json:"endTime"`
	RewardRate          string `json:"rewardRate"`
	RewardBudget        string `json:"rewardBudget"`
	LockPolicy          string `json:"lockPolicy"`
	Owner               string `json:"owner"`
	Vault               string `json:"vault"`
	TotalStaked         string `json:"totalStaked"`
	RewardPerUnitStored string `json:"rewardPerUnitStored"`
	LastUpdateTime      uint64 `json:"lastUpdateTime"`
}

func farmResultFrom(record *farm.Farm) farmResult {
	if record == nil {
		return farmResult{}
	}
	return farmResult{
		ID:                  record.ID,
		StakeToken:          record.StakeToken,
		RewardToken:         record.RewardToken,
		StartTime:           record.StartTime,
		EndTime:             record.EndTime,
		RewardRate:          bigString(record.RewardRate),
		RewardBudget:        bigString(record.RewardBudget),
		LockPolicy:          record.LockPolicy,
		Owner:               encodeBech32(record.Owner),
		Vault:               encodeBech32(record.Vault),
		TotalStaked:         bigString(record.TotalStaked),
		RewardPerUnitStored: bigString(record.RewardPerUnitStored),
		LastUpdateTime:      record.LastUpdateTime,
	}
}

type positionResult struct {
	FarmID            string `json:"farmId"`
	Account           string `json:"account"`
	StakedAmount      string `json:"stakedAmount"`
	PendingReward     string `json:"pendingReward"`
	ClaimedTotal      string `json:"claimedTotal"`
	RewardPerUnitPaid string `json:"rewardPerUnitPaid"`
}

func positionResultFrom(farmID string, record *farm.Position) positionResult {
	if record == nil {
		return positionResult{FarmID: farmID}
	}
	return positionResult{
		FarmID:            farmID,
		Account:           encodeBech32(record.Account),
		StakedAmount:      bigString(record.StakedAmount),
		PendingReward:     bigString(record.PendingReward),
		ClaimedTotal:      bigString(record.ClaimedTotal),
		RewardPerUnitPaid: bigString(record.RewardPerUnitPaid),
	}
}

type grantResult struct {
	Grantee string `json:"grantee"`
	Token   string `json:"token"`
	Amount  string `json:"amount"`
	Claimed string `json:"claimed"`
	Start   uint64 `json:"start"`
	Cliff   uint64 `json:"cliff"`
	End     uint64 `json:"end"`
}

func grantResultFrom(record *vesting.Grant) grantResult {
	if record == nil {
		return grantResult{}
	}
	return grantResult{
		Grantee: encodeBech32(record.Grantee),
		Token:   record.Token,
		Amount:  bigString(record.Amount),
		Claimed: bigString(record.Claimed),
		Start:   record.Start,
		Cliff:   record.Cliff,
		End:     record.End,
	}
}

// writeEngineError translates engine sentinels into stable JSON-RPC codes.
func writeEngineError(w http.ResponseWriter, id interface{}, err error) {
	switch {
	case errors.Is(err, farm.ErrFarmNotFound),
		errors.Is(err, vesting.ErrGrantNotFound),
		errors.Is(err, token.ErrTokenNotFound):
		writeError(w, http.StatusNotFound, id, codeNotFound, err.Error(), nil)
	case errors.Is(err, farm.ErrStakeLocked):
		writeError(w, http.StatusConflict, id, codeStakeLocked, err.Error(), nil)
	case errors.Is(err, farm.ErrUnauthorized),
		errors.Is(err, vesting.ErrUnauthorized),
		errors.Is(err, token.ErrNotAuthority):
		writeError(w, http.StatusForbidden, id, codeUnauthorized, err.Error(), nil)
	case errors.Is(err, farm.ErrInsufficientBalance),
		errors.Is(err, vesting.ErrInsufficientBalance),
		errors.Is(err, token.ErrInsufficientBalance),
		errors.Is(err, token.ErrInsufficientAllowance):
		writeError(w, http.StatusBadRequest, id, codeInsufficient, err.Error(), nil)
	case errors.Is(err, farm.ErrInvalidID),
		errors.Is(err, farm.ErrInvalidAddress),
		errors.Is(err, farm.ErrInvalidAmount),
		errors.Is(err, farm.ErrInvalidDuration),
		errors.Is(err, farm.ErrInvalidValue),
		errors.Is(err, farm.ErrFarmExists),
		errors.Is(err, vesting.ErrInvalidAddress),
		errors.Is(err, vesting.ErrInvalidAmount),
		errors.Is(err, vesting.ErrInvalidTime),
		errors.Is(err, vesting.ErrInvalidValue),
		errors.Is(err, vesting.ErrGrantExists),
		errors.Is(err, token.ErrInvalidSymbol),
		errors.Is(err, token.ErrInvalidName),
		errors.Is(err, token.ErrInvalidAddress),
		errors.Is(err, token.ErrInvalidAmount),
		errors.Is(err, token.ErrTokenExists):
		writeError(w, http.StatusBadRequest, id, codeInvalidParams, err.Error(), nil)
	default:
		writeError(w, http.StatusInternalServerError, id, codeServerError, err.Error(), nil)
	}
}
