package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fieldlinehq/fieldline/internal/config"
	"github.com/fieldlinehq/fieldline/internal/model"
	"github.com/fieldlinehq/fieldline/internal/store"
)

// loadConfig merges viper state over defaults and applies the --data-dir
// flag.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, err
	}
	if dataDir != "" {
		cfg.Database.DataDir = dataDir
	}
	if cfg.Database.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return cfg, fmt.Errorf("resolve home directory: %w", err)
		}
		cfg.Database.DataDir = filepath.Join(home, ".fieldline")
	}
	return cfg, nil
}

// openStore opens the configured backing store.
func openStore(cfg config.Config) (*store.Store, error) {
	db := cfg.Database
	if db.DSN != "" {
		return store.New(db.Driver, db.DSN)
	}
	return store.OpenDir(db.DataDir)
}

// resolveTenant looks up a tenant by name, with a helpful error listing
// alternatives when the name doesn't match.
func resolveTenant(ctx context.Context, st *store.Store, name string) (*model.Tenant, error) {
	if name == "" {
		return nil, fmt.Errorf("--tenant is required")
	}
	tenant, err := st.GetTenantByName(ctx, name)
	if err == nil {
		return tenant, nil
	}
	tenants, listErr := st.ListTenants(ctx)
	if listErr != nil || len(tenants) == 0 {
		return nil, fmt.Errorf("tenant %q not found", name)
	}
	names := make([]string, len(tenants))
	for i, t := range tenants {
		names[i] = t.Name
	}
	return nil, fmt.Errorf("tenant %q not found (have: %v)", name, names)
}
