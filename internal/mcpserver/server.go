// Package mcpserver exposes the tool registry over the standard MCP stdio
// transport, for agents launched as local subprocesses (Claude Desktop and
// similar). It serves one fixed tenant chosen at startup; the HTTP gateway
// is the multi-tenant path.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/fieldlinehq/fieldline/internal/tools"
)

// Server wraps the mcp-go server with Fieldline's tool registrations.
type Server struct {
	tenantID string
	registry *tools.Registry
	logger   *slog.Logger
	server   *server.MCPServer
}

// New builds a stdio MCP server bound to tenantID. Tool definitions and
// handlers come from the same registry the HTTP gateway uses, so the two
// surfaces cannot diverge.
func New(tenantID string, registry *tools.Registry, logger *slog.Logger, version string) (*Server, error) {
	s := &Server{
		tenantID: tenantID,
		registry: registry,
		logger:   logger,
	}

	mcpServer := server.NewMCPServer(
		"Fieldline CRM",
		version,
		server.WithToolCapabilities(true),
	)

	for _, def := range registry.Definitions() {
		tool, _ := registry.Get(def.Name)
		raw, err := json.Marshal(def.InputSchema)
		if err != nil {
			return nil, fmt.Errorf("marshal schema for %s: %w", def.Name, err)
		}
		mcpServer.AddTool(
			mcp.NewToolWithRawSchema(def.Name, def.Description, raw),
			s.toolHandler(tool),
		)
	}

	s.server = mcpServer
	return s, nil
}

// toolHandler adapts a registry tool to the mcp-go handler signature.
// Domain failures are returned as tool-level errors so the agent can see
// them and self-correct; they don't terminate the session.
func (s *Server) toolHandler(tool *tools.Tool) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := request.GetArguments()
		if err := tool.ValidateArgs(args); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		result, err := tool.Call(ctx, s.tenantID, args)
		if err != nil {
			s.logger.Warn("tool call failed", "tool", tool.Definition.Name, "error", err)
			return mcp.NewToolResultError(err.Error()), nil
		}
		b, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshal tool result: %w", err)
		}
		return mcp.NewToolResultText(string(b)), nil
	}
}

// ServeStdio blocks serving the MCP protocol on stdin/stdout.
func (s *Server) ServeStdio() error {
	s.logger.Info("starting MCP server in stdio mode", "tenant_id", s.tenantID)
	return server.ServeStdio(s.server)
}
