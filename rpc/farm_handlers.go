package rpc

import (
	"encoding/json"
	"math/big"
	"net/http"

	"granary/native/farm"
)

type farmCreateParams struct {
	ID          string `json:"id"`
	StakeToken  string `json:"stakeToken"`
	RewardToken string `json:"rewardToken"`
	StartTime   uint64 `json:"startTime"`
	EndTime     uint64 `json:"endTime"`
	RewardRate  string `json:"rewardRate"`
	LockPolicy  string `json:"lockPolicy,omitempty"`
	Owner       string `json:"owner"`
}

type farmStakeParams struct {
	ID     string `json:"id"`
	Caller string `json:"caller"`
	Amount string `json:"amount"`
}

type farmClaimParams struct {
	ID     string `json:"id"`
	Caller string `json:"caller"`
}

type farmWithdrawExcessParams struct {
	ID     string `json:"id"`
	Caller string `json:"caller"`
	Token  string `json:"token"`
	Amount string `json:"amount"`
	To     string `json:"to"`
}

type farmQueryParams struct {
	ID      string `json:"id"`
	Account string `json:"account,omitempty"`
}

type farmClaimResult struct {
	Paid     string         `json:"paid"`
	Position positionResult `json:"position"`
}

type farmSweepResult struct {
	Swept string `json:"swept"`
	To    string `json:"to"`
}

type farmTotalStakedResult struct {
	ID          string `json:"id"`
	TotalStaked string `json:"totalStaked"`
}

type farmPendingResult struct {
	ID      string `json:"id"`
	Account string `json:"account"`
	Pending string `json:"pending"`
}

func (s *Server) handleFarmCreate(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "exactly one parameter object expected", nil)
		return
	}
	var params farmCreateParams
	if err := json.Unmarshal(req.Params[0], &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	owner, err := decodeBech32(params.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid owner address", err.Error())
		return
	}
	rate, err := parseAmount(params.RewardRate)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	record, err := s.node.CreateFarm(farm.CreateParams{
		ID:          params.ID,
		StakeToken:  params.StakeToken,
		RewardToken: params.RewardToken,
		StartTime:   params.StartTime,
		EndTime:     params.EndTime,
		RewardRate:  rate,
		LockPolicy:  params.LockPolicy,
		Owner:       owner,
	})
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, farmResultFrom(record))
}

func (s *Server) handleFarmStake(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	params, caller, amount, ok := s.decodeStakeParams(w, req)
	if !ok {
		return
	}
	if err := s.node.FarmStake(params.ID, caller, amount); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	position, err := s.node.FarmPosition(params.ID, caller)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, positionResultFrom(params.ID, position))
}

func (s *Server) handleFarmWithdraw(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	params, caller, amount, ok := s.decodeStakeParams(w, req)
	if !ok {
		return
	}
	if err := s.node.FarmWithdraw(params.ID, caller, amount); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	position, err := s.node.FarmPosition(params.ID, caller)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, positionResultFrom(params.ID, position))
}

func (s *Server) decodeStakeParams(w http.ResponseWriter, req *RPCRequest) (farmStakeParams, [20]byte, *big.Int, bool) {
	var zero [20]byte
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "exactly one parameter object expected", nil)
		return farmStakeParams{}, zero, nil, false
	}
	var params farmStakeParams
	if err := json.Unmarshal(req.Params[0], &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return farmStakeParams{}, zero, nil, false
	}
	caller, err := decodeBech32(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return farmStakeParams{}, zero, nil, false
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return farmStakeParams{}, zero, nil, false
	}
	return params, caller, amount, true
}

func (s *Server) handleFarmClaim(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "exactly one parameter object expected", nil)
		return
	}
	var params farmClaimParams
	if err := json.Unmarshal(req.Params[0], &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	caller, err := decodeBech32(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	paid, err := s.node.FarmClaim(params.ID, caller)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	position, err := s.node.FarmPosition(params.ID, caller)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, farmClaimResult{
		Paid:     bigString(paid),
		Position: positionResultFrom(params.ID, position),
	})
}

func (s *Server) handleFarmWithdrawExcess(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "exactly one parameter object expected", nil)
		return
	}
	var params farmWithdrawExcessParams
	if err := json.Unmarshal(req.Params[0], &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	caller, err := decodeBech32(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	to, err := decodeBech32(params.To)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid recipient address", err.Error())
		return
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if err := s.node.FarmWithdrawExcess(params.ID, caller, params.Token, amount, to); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, farmSweepResult{Swept: amount.String(), To: params.To})
}

func (s *Server) handleFarmGetFarm(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	params, ok := decodeFarmQuery(w, req)
	if !ok {
		return
	}
	record, err := s.node.GetFarm(params.ID)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, farmResultFrom(record))
}

func (s *Server) handleFarmListFarms(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	records, err := s.node.ListFarms()
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	results := make([]farmResult, 0, len(records))
	for _, record := range records {
		results = append(results, farmResultFrom(record))
	}
	writeResult(w, req.ID, results)
}

func (s *Server) handleFarmGetPosition(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	params, account, ok := decodeFarmAccountQuery(w, req)
	if !ok {
		return
	}
	position, err := s.node.FarmPosition(params.ID, account)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, positionResultFrom(params.ID, position))
}

func (s *Server) handleFarmGetPendingRewards(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	params, account, ok := decodeFarmAccountQuery(w, req)
	if !ok {
		return
	}
	pending, err := s.node.FarmPendingRewards(params.ID, account)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, farmPendingResult{
		ID:      params.ID,
		Account: params.Account,
		Pending: bigString(pending),
	})
}

func (s *Server) handleFarmGetTotalStaked(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	params, ok := decodeFarmQuery(w, req)
	if !ok {
		return
	}
	total, err := s.node.FarmTotalStaked(params.ID)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, farmTotalStakedResult{ID: params.ID, TotalStaked: bigString(total)})
}

func decodeFarmQuery(w http.ResponseWriter, req *RPCRequest) (farmQueryParams, bool) {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "exactly one parameter object expected", nil)
		return farmQueryParams{}, false
	}
	var params farmQueryParams
	if err := json.Unmarshal(req.Params[0], &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return farmQueryParams{}, false
	}
	return params, true
}

func decodeFarmAccountQuery(w http.ResponseWriter, req *RPCRequest) (farmQueryParams, [20]byte, bool) {
	var zero [20]byte
	params, ok := decodeFarmQuery(w, req)
	if !ok {
		return farmQueryParams{}, zero, false
	}
	account, err := decodeBech32(params.Account)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid account address", err.Error())
		return farmQueryParams{}, zero, false
	}
	return params, account, true
}
