package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/fieldlinehq/fieldline/internal/service"
	"github.com/fieldlinehq/fieldline/internal/store"
	"github.com/fieldlinehq/fieldline/internal/webhook"
)

func newKeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "key",
		Aliases: []string{"apikey"},
		Short:   "Manage API keys",
		Long:    "Create, list, rotate, and revoke the API keys agents use against the tool gateway.",
	}

	cmd.AddCommand(newKeyCreateCmd())
	cmd.AddCommand(newKeyListCmd())
	cmd.AddCommand(newKeyRotateCmd())
	cmd.AddCommand(newKeyRevokeCmd())

	return cmd
}

// keyEnv bundles the store and auth service for one-shot key commands.
// The webhook notifier stays enabled so lifecycle events fire from the CLI
// too; Flush in cleanup waits for them.
type keyEnv struct {
	st       *store.Store
	svc      *service.AuthService
	notifier *webhook.Notifier
}

func newKeyEnv() (*keyEnv, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	st, err := openStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	notifier := webhook.New(logger)
	svc := service.NewAuthService(st, notifier, logger, cfg.Auth.JWTSecret,
		cfg.RateLimit.WindowDuration(), cfg.RateLimit.MaxRequests)
	return &keyEnv{st: st, svc: svc, notifier: notifier}, nil
}

func (e *keyEnv) cleanup() {
	e.notifier.Flush()
	e.st.Close()
}

// ---------- key create ----------

func newKeyCreateCmd() *cobra.Command {
	var (
		tenantName string
		label      string
		scopes     []string
		windowSecs int
		maxReqs    int
		webhookURL string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new API key",
		Long:  "Generate a new API key for a tenant. The raw key is shown once and cannot be retrieved again.",
		Example: `  fieldline key create --tenant "Acme Plumbing" --scopes events:read,events:write --label "VAPI assistant"
  fieldline key create --tenant "Acme Plumbing" --scopes leads:write --max 30 --window 60`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			env, err := newKeyEnv()
			if err != nil {
				return err
			}
			defer env.cleanup()

			tenant, err := resolveTenant(ctx, env.st, tenantName)
			if err != nil {
				return err
			}

			key, rawKey, err := env.svc.IssueKey(ctx, tenant.ID, service.KeyParams{
				Label:                  label,
				Scopes:                 scopes,
				RateLimitWindowSeconds: windowSecs,
				RateLimitMax:           maxReqs,
				WebhookURL:             webhookURL,
			})
			if err != nil {
				return fmt.Errorf("create api key: %w", err)
			}

			fmt.Println("API key created:")
			fmt.Println()
			fmt.Printf("  Key:    %s\n", rawKey)
			fmt.Printf("  Prefix: %s\n", key.Prefix)
			fmt.Printf("  Scopes: %v\n", key.Scopes)
			if label != "" {
				fmt.Printf("  Label:  %s\n", label)
			}
			fmt.Println()
			fmt.Println("  Save this key now - it cannot be retrieved again.")
			return nil
		},
	}

	cmd.Flags().StringVar(&tenantName, "tenant", "", "Tenant the key belongs to (required)")
	cmd.Flags().StringVar(&label, "label", "", "Human-readable label for the key")
	cmd.Flags().StringSliceVar(&scopes, "scopes", nil, "Comma-separated capability scopes (required)")
	cmd.Flags().IntVar(&windowSecs, "window", 0, "Rate-limit window in seconds (0 = server default)")
	cmd.Flags().IntVar(&maxReqs, "max", 0, "Max requests per window (0 = server default)")
	cmd.Flags().StringVar(&webhookURL, "webhook", "", "Webhook URL for key lifecycle events")
	cmd.MarkFlagRequired("tenant")
	cmd.MarkFlagRequired("scopes")

	return cmd
}

// ---------- key list ----------

func newKeyListCmd() *cobra.Command {
	var (
		tenantName string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List a tenant's API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			env, err := newKeyEnv()
			if err != nil {
				return err
			}
			defer env.cleanup()

			tenant, err := resolveTenant(ctx, env.st, tenantName)
			if err != nil {
				return err
			}

			keys, err := env.svc.ListKeys(ctx, tenant.ID)
			if err != nil {
				return fmt.Errorf("list api keys: %w", err)
			}

			if jsonOutput {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(keys)
			}

			if len(keys) == 0 {
				fmt.Println("No API keys. Use 'fieldline key create' to create one.")
				return nil
			}

			fmt.Printf("%-38s %-18s %-24s %-8s\n", "ID", "PREFIX", "LABEL", "STATUS")
			for _, k := range keys {
				status := "active"
				if k.Revoked() {
					status = "revoked"
				}
				fmt.Printf("%-38s %-18s %-24s %-8s\n", k.ID, k.Prefix, k.Label, status)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&tenantName, "tenant", "", "Tenant to list keys for (required)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.MarkFlagRequired("tenant")

	return cmd
}

// ---------- key rotate ----------

func newKeyRotateCmd() *cobra.Command {
	var tenantName string

	cmd := &cobra.Command{
		Use:   "rotate <key-id>",
		Short: "Rotate an API key's secret",
		Long:  "Replace the secret on an existing key. The old credential stops working immediately; the new one is shown once.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			env, err := newKeyEnv()
			if err != nil {
				return err
			}
			defer env.cleanup()

			tenant, err := resolveTenant(ctx, env.st, tenantName)
			if err != nil {
				return err
			}

			key, rawKey, err := env.svc.RotateKey(ctx, tenant.ID, args[0])
			if err != nil {
				return fmt.Errorf("rotate api key: %w", err)
			}

			fmt.Printf("Rotated key %s (%s).\n", key.ID, key.Prefix)
			fmt.Println()
			fmt.Printf("  New key: %s\n", rawKey)
			fmt.Println()
			fmt.Println("  Save this key now - it cannot be retrieved again.")
			return nil
		},
	}

	cmd.Flags().StringVar(&tenantName, "tenant", "", "Tenant owning the key (required)")
	cmd.MarkFlagRequired("tenant")

	return cmd
}

// ---------- key revoke ----------

func newKeyRevokeCmd() *cobra.Command {
	var tenantName string

	cmd := &cobra.Command{
		Use:   "revoke <key-id>",
		Short: "Revoke an API key",
		Long:  "Permanently invalidate an API key. Revocation cannot be undone; rotate instead if the key should keep working.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			env, err := newKeyEnv()
			if err != nil {
				return err
			}
			defer env.cleanup()

			tenant, err := resolveTenant(ctx, env.st, tenantName)
			if err != nil {
				return err
			}

			if err := env.svc.RevokeKey(ctx, tenant.ID, args[0]); err != nil {
				return fmt.Errorf("revoke api key: %w", err)
			}
			fmt.Printf("Revoked API key %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&tenantName, "tenant", "", "Tenant owning the key (required)")
	cmd.MarkFlagRequired("tenant")

	return cmd
}
