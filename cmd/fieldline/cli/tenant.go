package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/fieldlinehq/fieldline/internal/model"
)

func newTenantCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenant",
		Short: "Manage tenants",
		Long:  "Create and list the organizations whose CRM data the gateway serves.",
	}

	cmd.AddCommand(newTenantCreateCmd())
	cmd.AddCommand(newTenantListCmd())

	return cmd
}

func newTenantCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "create <name>",
		Short:   "Create a tenant",
		Args:    cobra.ExactArgs(1),
		Example: `  fieldline tenant create "Acme Plumbing"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			name := strings.TrimSpace(args[0])
			if name == "" {
				return fmt.Errorf("tenant name must not be empty")
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			st, err := openStore(cfg)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer st.Close()

			tenant := &model.Tenant{
				ID:        uuid.NewString(),
				Name:      name,
				CreatedAt: time.Now().UTC(),
			}
			if err := st.CreateTenant(ctx, tenant); err != nil {
				return fmt.Errorf("create tenant: %w", err)
			}

			fmt.Printf("Created tenant %q (%s)\n", tenant.Name, tenant.ID)
			return nil
		},
	}

	return cmd
}

func newTenantListCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List tenants",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			st, err := openStore(cfg)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer st.Close()

			tenants, err := st.ListTenants(ctx)
			if err != nil {
				return fmt.Errorf("list tenants: %w", err)
			}

			if jsonOutput {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(tenants)
			}

			if len(tenants) == 0 {
				fmt.Println("No tenants. Use 'fieldline tenant create' to create one.")
				return nil
			}

			fmt.Printf("%-38s %-30s %s\n", "ID", "NAME", "CREATED")
			for _, t := range tenants {
				fmt.Printf("%-38s %-30s %s\n", t.ID, t.Name, t.CreatedAt.Format(time.RFC3339))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}
