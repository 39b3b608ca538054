package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"

	"github.com/fieldlinehq/fieldline/internal/model"
	"github.com/fieldlinehq/fieldline/internal/webhook"
)

// keyPrefixTag identifies Fieldline keys in logs and key-management UIs.
// A full credential is "{prefix}.{secret}", e.g. "flk_3fa91bc20d47.<64 hex>".
const keyPrefixTag = "flk_"

// KeyParams are the caller-supplied fields for key issuance and update.
type KeyParams struct {
	Label                  string
	Scopes                 []string
	RateLimitWindowSeconds int
	RateLimitMax           int
	WebhookURL             string
}

func (p *KeyParams) validate() error {
	if len(p.Scopes) == 0 {
		return fmt.Errorf("at least one scope is required")
	}
	for _, s := range p.Scopes {
		if !model.ValidScope(s) {
			return fmt.Errorf("unknown scope %q", s)
		}
	}
	if p.RateLimitWindowSeconds < 0 || p.RateLimitMax < 0 {
		return fmt.Errorf("rate limit values must be non-negative")
	}
	return nil
}

// IssueKey creates a new API key for the tenant. The returned rawKey is the
// full "{prefix}.{secret}" credential; it is shown exactly once and cannot
// be recovered afterwards, since only the salted hash is stored.
func (s *AuthService) IssueKey(ctx context.Context, tenantID string, params KeyParams) (*model.APIKey, string, error) {
	if err := params.validate(); err != nil {
		return nil, "", err
	}

	prefix, secret, salt, hash, err := generateKeyMaterial()
	if err != nil {
		return nil, "", err
	}

	key := &model.APIKey{
		ID:                     uuid.NewString(),
		TenantID:               tenantID,
		Prefix:                 prefix,
		SecretHash:             hash,
		Salt:                   salt,
		SecretLast4:            secret[len(secret)-4:],
		Label:                  params.Label,
		Scopes:                 model.ScopeList(params.Scopes),
		RateLimitWindowSeconds: params.RateLimitWindowSeconds,
		RateLimitMax:           params.RateLimitMax,
		WebhookURL:             params.WebhookURL,
	}
	if err := s.store.CreateAPIKey(ctx, key); err != nil {
		return nil, "", err
	}

	s.notifier.Notify(key.WebhookURL, webhook.Event{
		Type: webhook.EventKeyCreated, KeyID: key.ID, Prefix: key.Prefix, TenantID: key.TenantID,
	})
	s.logger.Info("api key issued", "key_id", key.ID, "prefix", key.Prefix, "tenant_id", tenantID)

	return key, prefix + "." + secret, nil
}

// RotateKey replaces the secret on an existing key, keeping its identity
// (id, prefix) and configuration. Returns the new raw credential, revealed
// once. Rotating a revoked key is permitted but does not revive it.
func (s *AuthService) RotateKey(ctx context.Context, tenantID, id string) (*model.APIKey, string, error) {
	key, err := s.store.GetAPIKey(ctx, tenantID, id)
	if err != nil {
		return nil, "", err
	}

	secret, err := randomHex(32)
	if err != nil {
		return nil, "", err
	}
	salt, err := randomHex(16)
	if err != nil {
		return nil, "", err
	}
	sum := hashSecret(salt, secret)
	hash := hex.EncodeToString(sum[:])

	if err := s.store.RotateAPIKeySecret(ctx, tenantID, id, hash, salt, secret[len(secret)-4:]); err != nil {
		return nil, "", err
	}
	key.SecretHash = hash
	key.Salt = salt
	key.SecretLast4 = secret[len(secret)-4:]

	s.notifier.Notify(key.WebhookURL, webhook.Event{
		Type: webhook.EventKeyRotated, KeyID: key.ID, Prefix: key.Prefix, TenantID: key.TenantID,
	})
	s.logger.Info("api key rotated", "key_id", key.ID, "prefix", key.Prefix)

	return key, key.Prefix + "." + secret, nil
}

// UpdateKey patches the mutable configuration of a key.
func (s *AuthService) UpdateKey(ctx context.Context, tenantID, id string, params KeyParams) (*model.APIKey, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	key, err := s.store.GetAPIKey(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	key.Label = params.Label
	key.Scopes = model.ScopeList(params.Scopes)
	key.RateLimitWindowSeconds = params.RateLimitWindowSeconds
	key.RateLimitMax = params.RateLimitMax
	key.WebhookURL = params.WebhookURL

	if err := s.store.UpdateAPIKey(ctx, key); err != nil {
		return nil, err
	}

	s.notifier.Notify(key.WebhookURL, webhook.Event{
		Type: webhook.EventKeyUpdated, KeyID: key.ID, Prefix: key.Prefix, TenantID: key.TenantID,
	})
	return key, nil
}

// RevokeKey permanently invalidates a key. Revocation is one-way: neither
// update nor rotation revives a revoked key.
func (s *AuthService) RevokeKey(ctx context.Context, tenantID, id string) error {
	if err := s.store.RevokeAPIKey(ctx, tenantID, id); err != nil {
		return err
	}
	key, err := s.store.GetAPIKey(ctx, tenantID, id)
	if err != nil {
		return err
	}

	s.notifier.Notify(key.WebhookURL, webhook.Event{
		Type: webhook.EventKeyRevoked, KeyID: key.ID, Prefix: key.Prefix, TenantID: key.TenantID,
	})
	s.logger.Info("api key revoked", "key_id", key.ID, "prefix", key.Prefix)
	return nil
}

// GetKey returns a tenant's key by id.
func (s *AuthService) GetKey(ctx context.Context, tenantID, id string) (*model.APIKey, error) {
	return s.store.GetAPIKey(ctx, tenantID, id)
}

// ListKeys returns all keys for the tenant.
func (s *AuthService) ListKeys(ctx context.Context, tenantID string) ([]model.APIKey, error) {
	return s.store.ListAPIKeys(ctx, tenantID)
}

func generateKeyMaterial() (prefix, secret, salt, hash string, err error) {
	prefixHex, err := randomHex(6)
	if err != nil {
		return "", "", "", "", err
	}
	prefix = keyPrefixTag + prefixHex

	secret, err = randomHex(32)
	if err != nil {
		return "", "", "", "", err
	}
	salt, err = randomHex(16)
	if err != nil {
		return "", "", "", "", err
	}
	sum := hashSecret(salt, secret)
	return prefix, secret, salt, hex.EncodeToString(sum[:]), nil
}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}
