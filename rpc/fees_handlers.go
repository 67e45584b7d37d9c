package rpc

import (
	"net/http"
)

type feesAvailableJSON struct {
	Arbiter  string `json:"arbiterFee"`
	Platform string `json:"platformFee"`
}

type feesWithdrawParams struct {
	Caller string `json:"caller"`
}

type feesWithdrawResult struct {
	Withdrawn string `json:"withdrawn"`
}

func (s *Server) handleFeesAvailable(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params addressParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeEscrowInvalidParams, "invalid_params", err.Error())
		return
	}
	addr, err := parseAddress(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeEscrowInvalidParams, "invalid_params", err.Error())
		return
	}
	balances, err := s.node.AvailableFees(addr)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, feesAvailableJSON{
		Arbiter:  balances.Arbiter.String(),
		Platform: balances.Platform.String(),
	})
}

func (s *Server) handleFeesWithdraw(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params feesWithdrawParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeEscrowInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeEscrowInvalidParams, "invalid_params", err.Error())
		return
	}
	total, err := s.node.WithdrawFees(caller)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, feesWithdrawResult{Withdrawn: total.String()})
}
