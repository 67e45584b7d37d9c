package rpc

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"escrowd/native/common"
	"escrowd/native/escrow"
)

const jsonRPCVersion = "2.0"

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeServerError    = -32000
	codeRateLimited    = -32020

	codeEscrowInvalidParams = -32021
	codeEscrowNotFound      = -32022
	codeEscrowForbidden     = -32023
	codeEscrowConflict      = -32024
	codeEscrowInternal      = -32025
	codeEscrowTooEarly      = -32026
	codeModulePaused        = -32027
)

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      int               `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeResult(w http.ResponseWriter, id int, result interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result})
}

func writeError(w http.ResponseWriter, status, id, code int, message string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(RPCResponse{
		JSONRPC: jsonRPCVersion,
		ID:      id,
		Error:   &RPCError{Code: code, Message: message, Data: data},
	})
}

// writeEngineError maps engine sentinels onto JSON-RPC error codes so callers
// can classify failures without string matching.
func writeEngineError(w http.ResponseWriter, id int, err error) {
	detail := detailMessage(err)
	switch code := errorCode(err); code {
	case codeEscrowInvalidParams:
		writeError(w, http.StatusBadRequest, id, code, "invalid_params", detail)
	case codeEscrowNotFound:
		writeError(w, http.StatusNotFound, id, code, "not_found", detail)
	case codeEscrowForbidden:
		writeError(w, http.StatusForbidden, id, code, "forbidden", detail)
	case codeEscrowConflict:
		writeError(w, http.StatusConflict, id, code, "conflict", detail)
	case codeEscrowTooEarly:
		writeError(w, http.StatusConflict, id, code, "too_early", detail)
	case codeModulePaused:
		writeError(w, http.StatusServiceUnavailable, id, code, "module_paused", detail)
	default:
		writeError(w, http.StatusInternalServerError, id, code, "internal_error", detail)
	}
}

// detailMessage strips the sentinel prefix so the data field carries only the
// specific reason.
func detailMessage(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if idx := strings.Index(msg, ": "); idx >= 0 {
		return msg[idx+2:]
	}
	return msg
}

// errorCode classifies an engine error into a JSON-RPC error code.
func errorCode(err error) int {
	switch {
	case errors.Is(err, escrow.ErrValidation):
		return codeEscrowInvalidParams
	case errors.Is(err, escrow.ErrNotFound):
		return codeEscrowNotFound
	case errors.Is(err, escrow.ErrNotAuthorized):
		return codeEscrowForbidden
	case errors.Is(err, escrow.ErrInvalidState), errors.Is(err, escrow.ErrAlreadyExists), errors.Is(err, escrow.ErrReentrantCall):
		return codeEscrowConflict
	case errors.Is(err, escrow.ErrDeadlineNotReached):
		return codeEscrowTooEarly
	case errors.Is(err, escrow.ErrDeadlinePassed), errors.Is(err, escrow.ErrTransferFailed):
		return codeEscrowConflict
	case errors.Is(err, common.ErrModulePaused):
		return codeModulePaused
	default:
		return codeEscrowInternal
	}
}
