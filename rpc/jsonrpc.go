package rpc

import (
	"encoding/json"
	"fmt"
	"net/http"

	"promisevault/core"
	"promisevault/native/treasury"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServerError    = -32000
	codeUnauthorized   = -32001
	codeNotFound       = -32004
	codeTiming         = -32010
	codeAccounting     = -32011
	codeInvariant      = -32012
	codeRejected       = -32013
	codeRateLimited    = -32020
)

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      interface{}       `json:"id"`
}

type RPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError is the error object of a JSON-RPC response. Data carries the
// error category for ledger failures.
type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// status is the HTTP status that accompanies the error.
func (e *RPCError) status() int {
	switch e.Code {
	case codeParseError, codeInvalidRequest, codeInvalidParams, codeRejected:
		return http.StatusBadRequest
	case codeMethodNotFound, codeNotFound:
		return http.StatusNotFound
	case codeUnauthorized:
		return http.StatusForbidden
	case codeTiming, codeAccounting, codeInvariant:
		return http.StatusConflict
	case codeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func invalidParams(message string, data interface{}) *RPCError {
	return &RPCError{Code: codeInvalidParams, Message: message, Data: data}
}

// ledgerError converts a runtime or query failure into a response error
// whose code follows the error category.
func ledgerError(err error) *RPCError {
	category := core.Classify(err)
	code := codeServerError
	switch category {
	case treasury.CategoryAuthorization:
		code = codeUnauthorized
	case treasury.CategoryNotFound:
		code = codeNotFound
	case treasury.CategoryTiming:
		code = codeTiming
	case treasury.CategoryAccounting:
		code = codeAccounting
	case treasury.CategoryInvariant:
		code = codeInvariant
	case treasury.CategoryInvalid, treasury.CategoryExternal:
		code = codeRejected
	}
	return &RPCError{Code: code, Message: err.Error(), Data: string(category)}
}

func writeError(w http.ResponseWriter, id interface{}, rpcErr *RPCError) {
	w.WriteHeader(rpcErr.status())
	_ = json.NewEncoder(w).Encode(RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: rpcErr})
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	raw, err := json.Marshal(result)
	if err != nil {
		writeError(w, id, &RPCError{Code: codeServerError, Message: "failed to encode result", Data: err.Error()})
		return
	}
	_ = json.NewEncoder(w).Encode(RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: raw})
}
