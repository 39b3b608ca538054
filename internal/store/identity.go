package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fieldlinehq/fieldline/internal/model"
)

// CreateTenant inserts a new tenant.
func (s *Store) CreateTenant(ctx context.Context, t *model.Tenant) error {
	t.CreatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		s.rebind("INSERT INTO tenants (id, name, created_at) VALUES (?, ?, ?)"),
		t.ID, t.Name, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert tenant: %w", err)
	}
	return nil
}

// GetTenant returns a tenant by id.
func (s *Store) GetTenant(ctx context.Context, id string) (*model.Tenant, error) {
	var t model.Tenant
	if err := s.db.GetContext(ctx, &t, s.rebind("SELECT * FROM tenants WHERE id = ?"), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get tenant: %w", err)
	}
	return &t, nil
}

// GetTenantByName returns a tenant by its unique name.
func (s *Store) GetTenantByName(ctx context.Context, name string) (*model.Tenant, error) {
	var t model.Tenant
	if err := s.db.GetContext(ctx, &t, s.rebind("SELECT * FROM tenants WHERE name = ?"), name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get tenant by name: %w", err)
	}
	return &t, nil
}

// ListTenants returns all tenants ordered by name.
func (s *Store) ListTenants(ctx context.Context) ([]model.Tenant, error) {
	var tenants []model.Tenant
	if err := s.db.SelectContext(ctx, &tenants, "SELECT * FROM tenants ORDER BY name"); err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	return tenants, nil
}

// CreateAdmin inserts a new admin account.
func (s *Store) CreateAdmin(ctx context.Context, a *model.Admin) error {
	a.CreatedAt = time.Now().UTC()
	const q = `INSERT INTO admins
		(id, tenant_id, email, password_hash, password_salt, name, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, s.rebind(q),
		a.ID, a.TenantID, a.Email, a.PasswordHash, a.PasswordSalt, a.Name, a.IsActive, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert admin: %w", err)
	}
	return nil
}

// GetAdminByEmail returns an admin account by its unique email.
func (s *Store) GetAdminByEmail(ctx context.Context, email string) (*model.Admin, error) {
	var a model.Admin
	if err := s.db.GetContext(ctx, &a, s.rebind("SELECT * FROM admins WHERE email = ?"), email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get admin by email: %w", err)
	}
	return &a, nil
}

// TouchAdminLogin updates last_login_at. Best-effort.
func (s *Store) TouchAdminLogin(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		s.rebind("UPDATE admins SET last_login_at = ? WHERE id = ?"), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("touch admin login: %w", err)
	}
	return nil
}
