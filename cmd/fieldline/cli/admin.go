package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/fieldlinehq/fieldline/internal/model"
	"github.com/fieldlinehq/fieldline/internal/service"
)

func newAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage admin accounts",
		Long:  "Create the back-office accounts that sign in to the management API.",
	}

	cmd.AddCommand(newAdminCreateCmd())

	return cmd
}

func newAdminCreateCmd() *cobra.Command {
	var (
		tenantName string
		email      string
		name       string
		password   string
	)

	cmd := &cobra.Command{
		Use:     "create",
		Short:   "Create an admin account",
		Example: `  fieldline admin create --tenant "Acme Plumbing" --email owner@acme.example --name "Pat Owner"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			email = strings.TrimSpace(strings.ToLower(email))
			if !strings.Contains(email, "@") {
				return fmt.Errorf("invalid email address: %q", email)
			}

			// Prompt for password if not provided
			if password == "" {
				fmt.Print("Password: ")
				pwBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
				if err != nil {
					return fmt.Errorf("failed to read password: %w", err)
				}
				fmt.Println()
				password = string(pwBytes)

				fmt.Print("Confirm password: ")
				confirmBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
				if err != nil {
					return fmt.Errorf("failed to read confirmation: %w", err)
				}
				fmt.Println()

				if password != string(confirmBytes) {
					return fmt.Errorf("passwords do not match")
				}
			}
			if len(password) < 8 {
				return fmt.Errorf("password must be at least 8 characters")
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

			tenant, err := resolveTenant(ctx, st, tenantName)
			if err != nil {
				return err
			}

			hash, salt, err := service.HashPassword(password)
			if err != nil {
				return fmt.Errorf("hash password: %w", err)
			}

			admin := &model.Admin{
				ID:           uuid.NewString(),
				TenantID:     tenant.ID,
				Email:        email,
				PasswordHash: hash,
				PasswordSalt: salt,
				Name:         name,
				IsActive:     true,
				CreatedAt:    time.Now().UTC(),
			}
			if err := st.CreateAdmin(ctx, admin); err != nil {
				return fmt.Errorf("create admin: %w", err)
			}

			fmt.Printf("Created admin %s for tenant %q\n", admin.Email, tenant.Name)
			return nil
		},
	}

	cmd.Flags().StringVar(&tenantName, "tenant", "", "Tenant the admin belongs to (required)")
	cmd.Flags().StringVar(&email, "email", "", "Admin email address (required)")
	cmd.Flags().StringVar(&name, "name", "", "Display name")
	cmd.Flags().StringVar(&password, "password", "", "Password (prompted interactively if omitted)")
	cmd.MarkFlagRequired("tenant")
	cmd.MarkFlagRequired("email")

	return cmd
}
