package routes

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math/big"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"granary/crypto"
	"granary/native/farm"
	"granary/native/token"
	"granary/native/vesting"
)

type api struct {
	node   Node
	logger *slog.Logger
}

type farmResponse struct {
	ID           string `json:"id"`
	StakeToken   string `json:"stakeToken"`
	RewardToken  string `json:"rewardToken"`
	StartTime    uint64 `json:"startTime"`
	EndTime      uint64 `json:"endTime"`
	RewardRate   string `json:"rewardRate"`
	RewardBudget string `json:"rewardBudget"`
	LockPolicy   string `json:"lockPolicy"`
	Owner        string `json:"owner"`
	Vault        string `json:"vault"`
	TotalStaked  string `json:"totalStaked"`
}

type farmListResponse struct {
	Farms []farmResponse `json:"farms"`
}

type positionResponse struct {
	FarmID        string `json:"farmId"`
	Account       string `json:"account"`
	StakedAmount  string `json:"stakedAmount"`
	PendingReward string `json:"pendingReward"`
	ClaimedTotal  string `json:"claimedTotal"`
}

type vestingResponse struct {
	Grantee   string `json:"grantee"`
	Token     string `json:"token"`
	Amount    string `json:"amount"`
	Claimed   string `json:"claimed"`
	Claimable string `json:"claimable"`
	Start     uint64 `json:"start"`
	Cliff     uint64 `json:"cliff"`
	End       uint64 `json:"end"`
}

type balanceResponse struct {
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
	Address  string `json:"address"`
	Balance  string `json:"balance"`
}

func (a *api) listFarms(w http.ResponseWriter, r *http.Request) {
	records, err := a.node.ListFarms()
	if err != nil {
		a.writeEngineError(w, err)
		return
	}
	out := farmListResponse{Farms: make([]farmResponse, 0, len(records))}
	for _, record := range records {
		out.Farms = append(out.Farms, farmResponseFrom(record))
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *api) getFarm(w http.ResponseWriter, r *http.Request) {
	record, err := a.node.GetFarm(chi.URLParam(r, "id"))
	if err != nil {
		a.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, farmResponseFrom(record))
}

func (a *api) getFarmPosition(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	account, err := decodeAddressParam(chi.URLParam(r, "address"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	position, err := a.node.FarmPosition(id, account)
	if err != nil {
		a.writeEngineError(w, err)
		return
	}
	pending, err := a.node.FarmPendingRewards(id, account)
	if err != nil {
		a.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, positionResponse{
		FarmID:        strings.ToLower(strings.TrimSpace(id)),
		Account:       encodeAddress(account),
		StakedAmount:  bigString(position.StakedAmount),
		PendingReward: bigString(pending),
		ClaimedTotal:  bigString(position.ClaimedTotal),
	})
}

func (a *api) getVesting(w http.ResponseWriter, r *http.Request) {
	grantee, err := decodeAddressParam(chi.URLParam(r, "address"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	grant, err := a.node.VestingGrant(grantee)
	if err != nil {
		a.writeEngineError(w, err)
		return
	}
	claimable, err := a.node.VestingClaimable(grantee)
	if err != nil {
		a.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, vestingResponse{
		Grantee:   encodeAddress(grant.Grantee),
		Token:     grant.Token,
		Amount:    bigString(grant.Amount),
		Claimed:   bigString(grant.Claimed),
		Claimable: bigString(claimable),
		Start:     grant.Start,
		Cliff:     grant.Cliff,
		End:       grant.End,
	})
}

func (a *api) getTokenBalance(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	address, err := decodeAddressParam(chi.URLParam(r, "address"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	info, ok, err := a.node.TokenInfo(symbol)
	if err != nil {
		a.writeEngineError(w, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, token.ErrTokenNotFound)
		return
	}
	balance, err := a.node.TokenBalance(symbol, address)
	if err != nil {
		a.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{
		Symbol:   info.Symbol,
		Decimals: info.Decimals,
		Address:  encodeAddress(address),
		Balance:  bigString(balance),
	})
}

func farmResponseFrom(record *farm.Farm) farmResponse {
	if record == nil {
		return farmResponse{}
	}
	return farmResponse{
		ID:           record.ID,
		StakeToken:   record.StakeToken,
		RewardToken:  record.RewardToken,
		StartTime:    record.StartTime,
		EndTime:      record.EndTime,
		RewardRate:   bigString(record.RewardRate),
		RewardBudget: bigString(record.RewardBudget),
		LockPolicy:   record.LockPolicy,
		Owner:        encodeAddress(record.Owner),
		Vault:        encodeAddress(record.Vault),
		TotalStaked:  bigString(record.TotalStaked),
	}
}

func decodeAddressParam(raw string) ([20]byte, error) {
	var out [20]byte
	decoded, err := crypto.DecodeAddress(strings.TrimSpace(raw))
	if err != nil {
		return out, errors.New("invalid bech32 address")
	}
	copy(out[:], decoded.Bytes())
	return out, nil
}

func encodeAddress(addr [20]byte) string {
	return crypto.NewAddress(crypto.GNRPrefix, addr[:]).String()
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// writeEngineError maps engine sentinels onto HTTP statuses. Unknown errors
// surface as 500s without leaking internals beyond the sentinel text.
func (a *api) writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, farm.ErrFarmNotFound),
		errors.Is(err, vesting.ErrGrantNotFound),
		errors.Is(err, token.ErrTokenNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, farm.ErrInvalidID),
		errors.Is(err, farm.ErrInvalidAddress),
		errors.Is(err, vesting.ErrInvalidAddress),
		errors.Is(err, token.ErrInvalidSymbol),
		errors.Is(err, token.ErrInvalidAddress):
		writeError(w, http.StatusBadRequest, err)
	default:
		a.logger.Error("query failed", "error", err)
		writeError(w, http.StatusInternalServerError, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	message := strings.TrimSpace(err.Error())
	if message == "" {
		message = http.StatusText(status)
	}
	writeJSON(w, status, map[string]string{"error": message})
}
