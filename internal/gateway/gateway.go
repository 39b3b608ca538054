// Package gateway implements the HTTP tool-call endpoint for external AI
// agents: a JSON-RPC-style protocol with API-key authentication and
// per-key rate limiting in front of the tool registry.
//
// Every protocol error is returned with HTTP 200 and the error encoded in
// the envelope, with one deliberate exception: rate-limit rejections use
// HTTP 429. Existing callers depend on that asymmetry.
package gateway

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/fieldlinehq/fieldline/internal/ratelimit"
	"github.com/fieldlinehq/fieldline/internal/service"
	"github.com/fieldlinehq/fieldline/internal/tools"
)

const maxBodySize = 1 << 20 // 1MB; tool calls are small

// Gateway is the /mcp endpoint handler.
type Gateway struct {
	auth     *service.AuthService
	limiter  *ratelimit.Limiter
	registry *tools.Registry
	logger   *slog.Logger

	// allowedOrigins is the CORS allow-list. Preflight echoes the request
	// Origin only when it appears here; otherwise it falls back to the
	// first entry. Arbitrary origins are never reflected.
	allowedOrigins []string

	serverName    string
	serverVersion string
}

// New creates a Gateway.
func New(auth *service.AuthService, limiter *ratelimit.Limiter, registry *tools.Registry,
	logger *slog.Logger, allowedOrigins []string, serverName, serverVersion string) *Gateway {
	return &Gateway{
		auth:           auth,
		limiter:        limiter,
		registry:       registry,
		logger:         logger,
		allowedOrigins: allowedOrigins,
		serverName:     serverName,
		serverVersion:  serverVersion,
	}
}

// ServeHTTP implements http.Handler for POST (protocol) and OPTIONS
// (CORS preflight).
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodOptions:
		g.handlePreflight(w, r)
	case http.MethodPost:
		g.handlePost(w, r)
	default:
		w.Header().Set("Allow", "POST, OPTIONS")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (g *Gateway) handlePreflight(w http.ResponseWriter, r *http.Request) {
	g.setCORSHeaders(w, r)
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
	w.Header().Set("Access-Control-Max-Age", "300")
	w.WriteHeader(http.StatusNoContent)
}

// setCORSHeaders applies the allow-list policy: echo the request Origin if
// it is allow-listed, else fall back to the first configured origin.
func (g *Gateway) setCORSHeaders(w http.ResponseWriter, r *http.Request) {
	if len(g.allowedOrigins) == 0 {
		return
	}
	allowed := g.allowedOrigins[0]
	origin := r.Header.Get("Origin")
	for _, o := range g.allowedOrigins {
		if o == origin {
			allowed = origin
			break
		}
	}
	w.Header().Set("Access-Control-Allow-Origin", allowed)
}

func (g *Gateway) handlePost(w http.ResponseWriter, r *http.Request) {
	g.setCORSHeaders(w, r)

	// Top-level catch: nothing escaping the dispatch below may crash the
	// connection or leak a stack trace.
	defer func() {
		if rec := recover(); rec != nil {
			g.logger.Error("panic in gateway request", "panic", rec)
			g.writeError(w, http.StatusOK, nullID, &RPCError{
				Code:    CodeInternalError,
				Message: "Internal error",
			})
		}
	}()

	// Gate 1: bearer credential present.
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || token == "" {
		g.writeError(w, http.StatusOK, nullID, &RPCError{
			Code:    CodeInvalidRequest,
			Message: "Missing or invalid Authorization header",
		})
		return
	}

	// Gate 2: authenticate. The message is identical for every auth
	// failure mode.
	principal, err := g.auth.ValidateAPIKey(r.Context(), token)
	if err != nil {
		g.writeError(w, http.StatusOK, nullID, &RPCError{
			Code:    CodeInvalidRequest,
			Message: "Invalid API key",
		})
		return
	}

	// Gate 3: rate limit. The only path that pairs a protocol error with a
	// non-200 status.
	rl, err := g.limiter.CheckAndConsume(r.Context(), principal.KeyID,
		principal.RateLimitWindow, principal.RateLimitMax)
	if err != nil {
		g.logger.Error("rate limiter failure", "key_id", principal.KeyID, "error", err)
		g.writeError(w, http.StatusOK, nullID, &RPCError{
			Code:    CodeInternalError,
			Message: "Internal error",
		})
		return
	}
	if !rl.Allowed {
		g.writeError(w, http.StatusTooManyRequests, nullID, &RPCError{
			Code:    CodeRateLimited,
			Message: "Rate limit exceeded",
			Data: rateLimitData{
				Remaining: rl.Remaining,
				ResetAt:   rl.ResetAt.Format(time.RFC3339),
			},
		})
		return
	}

	// Gate 4: parse the envelope.
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		g.writeError(w, http.StatusOK, nullID, &RPCError{
			Code:    CodeInternalError,
			Message: "Internal error: failed to read request body",
		})
		return
	}
	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		g.writeError(w, http.StatusOK, nullID, &RPCError{
			Code:    CodeInternalError,
			Message: "Internal error: invalid JSON body",
		})
		return
	}
	id := req.ID
	if len(id) == 0 {
		id = nullID
	}

	result, rpcErr := g.dispatch(r, principal, &req)
	if rpcErr != nil {
		g.writeError(w, http.StatusOK, id, rpcErr)
		return
	}
	g.writeJSON(w, http.StatusOK, Response{JSONRPC: "2.0", Result: result, ID: id})
}

// dispatch routes a parsed request to its method handler. No handshake
// ordering is enforced: initialize is advertised first, but any method may
// be called at any time.
func (g *Gateway) dispatch(r *http.Request, principal *service.Principal, req *Request) (interface{}, *RPCError) {
	switch req.Method {
	case "initialize":
		return initializeResult{
			ProtocolVersion: protocolVersion,
			Capabilities: map[string]interface{}{
				"tools": map[string]interface{}{},
			},
			ServerInfo: serverInfo{Name: g.serverName, Version: g.serverVersion},
		}, nil

	case "tools/list":
		return g.registry.Definitions(), nil

	case "tools/call":
		return g.dispatchToolCall(r, principal, req.Params)

	case "ping":
		return map[string]string{"status": "ok"}, nil

	default:
		return nil, &RPCError{
			Code:    CodeMethodNotFound,
			Message: "Method not found: " + req.Method,
		}
	}
}

func (g *Gateway) dispatchToolCall(r *http.Request, principal *service.Principal, rawParams json.RawMessage) (interface{}, *RPCError) {
	var params callParams
	if len(rawParams) > 0 {
		if err := json.Unmarshal(rawParams, &params); err != nil {
			return nil, &RPCError{Code: CodeInvalidParams, Message: "Invalid params: " + err.Error()}
		}
	}
	if params.Name == "" {
		return nil, &RPCError{Code: CodeInvalidParams, Message: "Missing required parameter: name"}
	}

	tool, ok := g.registry.Get(params.Name)
	if !ok {
		return nil, &RPCError{Code: CodeMethodNotFound, Message: "Unknown tool: " + params.Name}
	}

	if !principal.HasScope(tool.Scope) {
		return nil, &RPCError{
			Code:    CodeInvalidRequest,
			Message: "API key missing required scope: " + tool.Scope,
		}
	}

	if err := tool.ValidateArgs(params.Arguments); err != nil {
		return nil, &RPCError{Code: CodeInvalidParams, Message: err.Error()}
	}

	start := time.Now()
	result, err := tool.Call(r.Context(), principal.TenantID, params.Arguments)
	if err != nil {
		// The error text is surfaced so the agent can self-correct; stack
		// traces never are.
		g.logger.Warn("tool call failed",
			"tool", params.Name, "tenant_id", principal.TenantID, "error", err)
		return nil, &RPCError{Code: CodeInternalError, Message: err.Error()}
	}

	g.logger.Info("tool call",
		"tool", params.Name,
		"tenant_id", principal.TenantID,
		"key_id", principal.KeyID,
		"duration_ms", float64(time.Since(start).Microseconds())/1000.0,
	)
	return result, nil
}

func (g *Gateway) writeError(w http.ResponseWriter, status int, id json.RawMessage, rpcErr *RPCError) {
	g.writeJSON(w, status, Response{JSONRPC: "2.0", Error: rpcErr, ID: id})
}

func (g *Gateway) writeJSON(w http.ResponseWriter, status int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		g.logger.Error("failed to encode gateway response", "error", err)
	}
}
