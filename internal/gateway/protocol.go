package gateway

import "encoding/json"

// Protocol error codes. External callers match on the exact values, so they
// are part of the wire contract.
const (
	CodeInvalidRequest = -32600 // missing/invalid auth, invalid request shape
	CodeMethodNotFound = -32601 // unknown method or unknown tool name
	CodeInvalidParams  = -32602 // missing or invalid parameters
	CodeInternalError  = -32603 // handler failure, malformed body, panic
	CodeRateLimited    = -32000 // paired with HTTP 429, the one non-200 path
)

// Request is the inbound JSON-RPC-style envelope.
type Request struct {
	JSONRPC string          `json:"jsonrpc,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      json.RawMessage `json:"id,omitempty"`
}

// Response is the outbound envelope. Exactly one of Result and Error is set.
// ID echoes the caller-supplied id verbatim, or is null when absent.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
	ID      json.RawMessage `json:"id"`
}

// RPCError is the protocol error object.
type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// rateLimitData is attached to the rate-limited error. Informative by
// design: unlike auth failures, there is nothing security-sensitive to hide.
type rateLimitData struct {
	Remaining int    `json:"remaining"`
	ResetAt   string `json:"resetAt"`
}

// callParams are the parameters of a tools/call request.
type callParams struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

// initializeResult is the static handshake payload. The handshake is
// advertised but not enforced: the dispatcher accepts any method at any
// time.
type initializeResult struct {
	ProtocolVersion string                 `json:"protocolVersion"`
	Capabilities    map[string]interface{} `json:"capabilities"`
	ServerInfo      serverInfo             `json:"serverInfo"`
}

type serverInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

const protocolVersion = "2024-11-05"

// nullID is the envelope id used when the request id is unknown or absent.
var nullID = json.RawMessage("null")
