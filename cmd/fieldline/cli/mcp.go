package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/fieldlinehq/fieldline/internal/mcpserver"
	"github.com/fieldlinehq/fieldline/internal/tools"
)

func newMCPCmd() *cobra.Command {
	var tenantName string

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Run an MCP server over stdio",
		Long: `Run a Model Context Protocol server speaking JSON-RPC over stdin/stdout,
bound to a single tenant. Intended for local MCP clients (Claude Desktop,
IDE integrations) that spawn the server themselves; the HTTP gateway with
API-key auth is the path for remote agents.`,
		Example: `  fieldline mcp --tenant "Acme Plumbing"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			// Logs go to stderr; stdout carries the protocol.
			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
				Level: parseLogLevel(cfg.Logging.Level),
			}))

			st, err := openStore(cfg)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer st.Close()

			tenant, err := resolveTenant(ctx, st, tenantName)
			if err != nil {
				return err
			}

			registry, err := tools.NewRegistry(st)
			if err != nil {
				return fmt.Errorf("build tool registry: %w", err)
			}

			srv, err := mcpserver.New(tenant.ID, registry, logger, appVersion)
			if err != nil {
				return fmt.Errorf("create mcp server: %w", err)
			}

			logger.Info("mcp server starting on stdio", "tenant", tenant.Name)
			return srv.ServeStdio()
		},
	}

	cmd.Flags().StringVar(&tenantName, "tenant", "", "Tenant to serve (required)")
	cmd.MarkFlagRequired("tenant")

	return cmd
}
