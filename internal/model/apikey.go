package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// APIKey is a credential an external agent (voice assistant, MCP client)
// presents to the tool gateway. The raw secret is never stored; only a
// per-key salted SHA-256 hash is persisted. The prefix is public and doubles
// as the lookup index during authentication.
type APIKey struct {
	ID          string    `json:"id" db:"id"`
	TenantID    string    `json:"tenant_id" db:"tenant_id"`
	Prefix      string    `json:"prefix" db:"prefix"`
	SecretHash  string    `json:"-" db:"secret_hash"` // hex sha256(salt || secret), never expose
	Salt        string    `json:"-" db:"salt"`        // hex, per-key random
	SecretLast4 string    `json:"-" db:"secret_last4"`
	Label       string    `json:"label" db:"label"`
	Scopes      ScopeList `json:"scopes" db:"scopes"`

	// Per-key rate limit. Zero values fall back to the server defaults.
	RateLimitWindowSeconds int `json:"rate_limit_window_seconds" db:"rate_limit_window_seconds"`
	RateLimitMax           int `json:"rate_limit_max" db:"rate_limit_max"`

	WebhookURL string     `json:"webhook_url,omitempty" db:"webhook_url"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty" db:"last_used_at"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty" db:"revoked_at"`
}

// Revoked reports whether the key has been permanently invalidated.
// Rotation replaces the secret on the same record but never clears RevokedAt.
func (k *APIKey) Revoked() bool {
	return k.RevokedAt != nil
}

// HasScope reports whether the key carries the given capability string.
func (k *APIKey) HasScope(scope string) bool {
	for _, s := range k.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// MaskedSecret returns the only form of the secret that management endpoints
// may expose after issuance, e.g. "****c41f".
func (k *APIKey) MaskedSecret() string {
	return "****" + k.SecretLast4
}

// Capability scopes understood by the tool gateway.
const (
	ScopeContactsRead  = "contacts:read"
	ScopeContactsWrite = "contacts:write"
	ScopeLeadsRead     = "leads:read"
	ScopeLeadsWrite    = "leads:write"
	ScopeEventsRead    = "events:read"
	ScopeEventsWrite   = "events:write"
)

// KnownScopes lists every scope the server understands, for validation of
// key create/update requests.
var KnownScopes = []string{
	ScopeContactsRead,
	ScopeContactsWrite,
	ScopeLeadsRead,
	ScopeLeadsWrite,
	ScopeEventsRead,
	ScopeEventsWrite,
}

// ValidScope reports whether s is one of the scopes the server understands.
func ValidScope(s string) bool {
	for _, known := range KnownScopes {
		if s == known {
			return true
		}
	}
	return false
}

// ScopeList is a set of capability strings stored as a JSON array in a TEXT
// column, so the same schema works on SQLite and Postgres.
type ScopeList []string

// Value implements driver.Valuer.
func (s ScopeList) Value() (driver.Value, error) {
	if s == nil {
		s = ScopeList{}
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal scopes: %w", err)
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (s *ScopeList) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*s = ScopeList{}
		return nil
	case string:
		return json.Unmarshal([]byte(v), s)
	case []byte:
		return json.Unmarshal(v, s)
	default:
		return fmt.Errorf("cannot scan %T into ScopeList", src)
	}
}
