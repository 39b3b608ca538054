package model

import "time"

// Tenant is an organization (a contracting business) whose CRM data the
// gateway operates on. Every API key, admin account, and CRM record belongs
// to exactly one tenant.
type Tenant struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Admin is a back-office user who manages a tenant's API keys through the
// management REST API. Authenticated via JWT session tokens.
type Admin struct {
	ID           string     `json:"id" db:"id"`
	TenantID     string     `json:"tenant_id" db:"tenant_id"`
	Email        string     `json:"email" db:"email"`
	PasswordHash string     `json:"-" db:"password_hash"`
	PasswordSalt string     `json:"-" db:"password_salt"`
	Name         string     `json:"name" db:"name"`
	IsActive     bool       `json:"is_active" db:"is_active"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty" db:"last_login_at"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
}
