package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fieldlinehq/fieldline/internal/model"
)

// CreateAPIKey inserts a new API key record. CreatedAt is populated on the
// passed struct after a successful insert.
func (s *Store) CreateAPIKey(ctx context.Context, key *model.APIKey) error {
	key.CreatedAt = time.Now().UTC()

	const q = `INSERT INTO api_keys
		(id, tenant_id, prefix, secret_hash, salt, secret_last4, label, scopes,
		 rate_limit_window_seconds, rate_limit_max, webhook_url, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, s.rebind(q),
		key.ID, key.TenantID, key.Prefix, key.SecretHash, key.Salt, key.SecretLast4,
		key.Label, key.Scopes, key.RateLimitWindowSeconds, key.RateLimitMax,
		key.WebhookURL, key.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert api key: %w", err)
	}
	return nil
}

// GetAPIKeyByPrefix returns the key whose public prefix matches exactly.
// This is the authentication lookup path; revoked keys are still returned
// so the authenticator can treat them identically to a hash mismatch.
func (s *Store) GetAPIKeyByPrefix(ctx context.Context, prefix string) (*model.APIKey, error) {
	var key model.APIKey
	err := s.db.GetContext(ctx, &key, s.rebind("SELECT * FROM api_keys WHERE prefix = ?"), prefix)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get api key by prefix: %w", err)
	}
	return &key, nil
}

// GetAPIKey returns a key by id, scoped to the owning tenant. A key that
// exists but belongs to another tenant is reported as not found.
func (s *Store) GetAPIKey(ctx context.Context, tenantID, id string) (*model.APIKey, error) {
	var key model.APIKey
	err := s.db.GetContext(ctx, &key,
		s.rebind("SELECT * FROM api_keys WHERE id = ? AND tenant_id = ?"), id, tenantID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get api key: %w", err)
	}
	return &key, nil
}

// ListAPIKeys returns all keys owned by the tenant, newest first.
func (s *Store) ListAPIKeys(ctx context.Context, tenantID string) ([]model.APIKey, error) {
	var keys []model.APIKey
	err := s.db.SelectContext(ctx, &keys,
		s.rebind("SELECT * FROM api_keys WHERE tenant_id = ? ORDER BY created_at DESC"), tenantID)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	return keys, nil
}

// RotateAPIKeySecret replaces the stored secret material on an existing key.
// The key identity (id, prefix) is unchanged, and a revoked key stays
// revoked: rotation never clears revoked_at.
func (s *Store) RotateAPIKeySecret(ctx context.Context, tenantID, id, secretHash, salt, last4 string) error {
	const q = `UPDATE api_keys SET secret_hash = ?, salt = ?, secret_last4 = ?
		WHERE id = ? AND tenant_id = ?`
	res, err := s.db.ExecContext(ctx, s.rebind(q), secretHash, salt, last4, id, tenantID)
	if err != nil {
		return fmt.Errorf("rotate api key: %w", err)
	}
	return oneRowAffected(res)
}

// UpdateAPIKey persists the mutable configuration fields: label, scopes,
// rate limits, and webhook URL.
func (s *Store) UpdateAPIKey(ctx context.Context, key *model.APIKey) error {
	const q = `UPDATE api_keys SET label = ?, scopes = ?,
		rate_limit_window_seconds = ?, rate_limit_max = ?, webhook_url = ?
		WHERE id = ? AND tenant_id = ?`
	res, err := s.db.ExecContext(ctx, s.rebind(q),
		key.Label, key.Scopes, key.RateLimitWindowSeconds, key.RateLimitMax,
		key.WebhookURL, key.ID, key.TenantID)
	if err != nil {
		return fmt.Errorf("update api key: %w", err)
	}
	return oneRowAffected(res)
}

// RevokeAPIKey permanently invalidates a key. Idempotent in effect: the
// first revocation wins and the timestamp is never overwritten.
func (s *Store) RevokeAPIKey(ctx context.Context, tenantID, id string) error {
	const q = `UPDATE api_keys SET revoked_at = ?
		WHERE id = ? AND tenant_id = ? AND revoked_at IS NULL`
	res, err := s.db.ExecContext(ctx, s.rebind(q), time.Now().UTC(), id, tenantID)
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	if n == 0 {
		// Either the key doesn't exist for this tenant or it is already
		// revoked. Distinguish so the handler can 404 vs no-op.
		if _, err := s.GetAPIKey(ctx, tenantID, id); err != nil {
			return err
		}
	}
	return nil
}

// TouchAPIKey updates last_used_at. Called fire-and-forget after a
// successful authentication; losing an update under race is acceptable.
func (s *Store) TouchAPIKey(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		s.rebind("UPDATE api_keys SET last_used_at = ? WHERE id = ?"), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("touch api key: %w", err)
	}
	return nil
}

func oneRowAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
