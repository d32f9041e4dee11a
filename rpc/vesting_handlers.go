package rpc

import (
	"encoding/json"
	"net/http"
)

type vestingAddGrantParams struct {
	Caller  string `json:"caller"`
	Grantee string `json:"grantee"`
	Token   string `json:"token"`
	Amount  string `json:"amount"`
	Start   uint64 `json:"start"`
	Cliff   uint64 `json:"cliff"`
	End     uint64 `json:"end"`
}

type vestingGranteeParams struct {
	Grantee string `json:"grantee"`
}

type vestingCancelParams struct {
	Caller  string `json:"caller"`
	Grantee string `json:"grantee"`
}

type vestingWithdrawExcessParams struct {
	Caller string `json:"caller"`
	Token  string `json:"token"`
	Amount string `json:"amount"`
	To     string `json:"to"`
}

type vestingClaimResult struct {
	Grantee string `json:"grantee"`
	Paid    string `json:"paid"`
}

type vestingCancelResult struct {
	Grantee  string `json:"grantee"`
	Canceled bool   `json:"canceled"`
}

type vestingClaimableResult struct {
	Grantee   string `json:"grantee"`
	Claimable string `json:"claimable"`
}

type vestingTotalResult struct {
	TotalVesting string `json:"totalVesting"`
}

func (s *Server) handleVestingAddGrant(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "exactly one parameter object expected", nil)
		return
	}
	var params vestingAddGrantParams
	if err := json.Unmarshal(req.Params[0], &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	caller, err := decodeBech32(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	grantee, err := decodeBech32(params.Grantee)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid grantee address", err.Error())
		return
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	grant, err := s.node.VestingAddGrant(caller, grantee, params.Token, amount, params.Start, params.Cliff, params.End)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, grantResultFrom(grant))
}

func (s *Server) handleVestingClaim(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	grantee, granteeStr, ok := decodeGranteeParam(w, req)
	if !ok {
		return
	}
	paid, err := s.node.VestingClaim(grantee)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, vestingClaimResult{Grantee: granteeStr, Paid: bigString(paid)})
}

func (s *Server) handleVestingCancelGrant(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "exactly one parameter object expected", nil)
		return
	}
	var params vestingCancelParams
	if err := json.Unmarshal(req.Params[0], &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	caller, err := decodeBech32(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	grantee, err := decodeBech32(params.Grantee)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid grantee address", err.Error())
		return
	}
	if err := s.node.VestingCancelGrant(caller, grantee); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, vestingCancelResult{Grantee: params.Grantee, Canceled: true})
}

func (s *Server) handleVestingWithdrawExcess(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "exactly one parameter object expected", nil)
		return
	}
	var params vestingWithdrawExcessParams
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
	if err := s.node.VestingWithdrawExcess(caller, params.Token, amount, to); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, farmSweepResult{Swept: amount.String(), To: params.To})
}

func (s *Server) handleVestingGetGrant(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	grantee, _, ok := decodeGranteeParam(w, req)
	if !ok {
		return
	}
	grant, err := s.node.VestingGrant(grantee)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, grantResultFrom(grant))
}

func (s *Server) handleVestingGetClaimable(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	grantee, granteeStr, ok := decodeGranteeParam(w, req)
	if !ok {
		return
	}
	claimable, err := s.node.VestingClaimable(grantee)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, vestingClaimableResult{Grantee: granteeStr, Claimable: bigString(claimable)})
}

func (s *Server) handleVestingGetTotalVesting(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	total, err := s.node.VestingTotal()
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, vestingTotalResult{TotalVesting: bigString(total)})
}

func decodeGranteeParam(w http.ResponseWriter, req *RPCRequest) ([20]byte, string, bool) {
	var zero [20]byte
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "exactly one parameter object expected", nil)
		return zero, "", false
	}
	var params vestingGranteeParams
	if err := json.Unmarshal(req.Params[0], &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return zero, "", false
	}
	grantee, err := decodeBech32(params.Grantee)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid grantee address", err.Error())
		return zero, "", false
	}
	return grantee, params.Grantee, true
}
