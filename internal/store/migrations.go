package store

import (
	"fmt"
	"strings"
)

func (s *Store) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS tenants (
			id TEXT PRIMARY KEY,
			name TEXT UNIQUE NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS admins (
			id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL REFERENCES tenants(id),
			email TEXT UNIQUE NOT NULL,
			password_hash TEXT NOT NULL,
			password_salt TEXT NOT NULL,
			name TEXT NOT NULL DEFAULT '',
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			last_login_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS api_keys (
			id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL REFERENCES tenants(id),
			prefix TEXT UNIQUE NOT NULL,
			secret_hash TEXT NOT NULL,
			salt TEXT NOT NULL,
			secret_last4 TEXT NOT NULL DEFAULT '',
			label TEXT NOT NULL DEFAULT '',
			scopes TEXT NOT NULL DEFAULT '[]',
			rate_limit_window_seconds INTEGER NOT NULL DEFAULT 0,
			rate_limit_max INTEGER NOT NULL DEFAULT 0,
			webhook_url TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL,
			last_used_at TIMESTAMP,
			revoked_at TIMESTAMP
		)`,

		`CREATE INDEX IF NOT EXISTS idx_api_keys_prefix ON api_keys(prefix)`,

		// Fixed-window rate-limit counters, one row per key. window_start is
		// unix seconds; the check-and-consume upsert in ratecounter.go is the
		// only writer.
		`CREATE TABLE IF NOT EXISTS rate_counters (
			key_id TEXT PRIMARY KEY REFERENCES api_keys(id) ON DELETE CASCADE,
			window_start INTEGER NOT NULL,
			count INTEGER NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS contacts (
			id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL REFERENCES tenants(id),
			name TEXT NOT NULL,
			email TEXT NOT NULL DEFAULT '',
			phone TEXT NOT NULL DEFAULT '',
			address TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_contacts_tenant ON contacts(tenant_id)`,

		`CREATE TABLE IF NOT EXISTS leads (
			id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL REFERENCES tenants(id),
			name TEXT NOT NULL,
			email TEXT NOT NULL DEFAULT '',
			phone TEXT NOT NULL DEFAULT '',
			source TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'new',
			notes TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_leads_tenant ON leads(tenant_id)`,

		// Calendar entries. start_at/end_at are unix seconds so overlap
		// queries behave identically on SQLite and Postgres.
		`CREATE TABLE IF NOT EXISTS events (
			id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL REFERENCES tenants(id),
			contact_id TEXT NOT NULL DEFAULT '',
			title TEXT NOT NULL,
			start_at INTEGER NOT NULL,
			end_at INTEGER NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_events_tenant_start ON events(tenant_id, start_at)`,
	}

	for i, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			// Re-running ALTERs against an existing schema is fine.
			if strings.Contains(strings.ToLower(err.Error()), "duplicate column") {
				continue
			}
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
	}
	return nil
}
