// Package service implements authentication for the two caller populations:
// API keys presented by external agents to the tool gateway, and JWT
// sessions used by back-office admins against the management API.
package service

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/fieldlinehq/fieldline/internal/model"
	"github.com/fieldlinehq/fieldline/internal/store"
	"github.com/fieldlinehq/fieldline/internal/webhook"
)

var (
	// ErrInvalidAPIKey is the single error returned for every API key
	// authentication failure: malformed credential, unknown prefix, revoked
	// key, or secret mismatch. Collapsing these prevents a caller from
	// probing which check failed.
	ErrInvalidAPIKey = errors.New("invalid API key")

	// ErrInvalidCredentials is the uniform admin login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Principal is the identity attached to a request after API key
// authentication succeeds.
type Principal struct {
	KeyID    string
	TenantID string
	Scopes   model.ScopeList

	// Effective per-key rate limit, already defaulted.
	RateLimitWindow time.Duration
	RateLimitMax    int
}

// HasScope reports whether the principal carries the given scope.
func (p *Principal) HasScope(scope string) bool {
	for _, s := range p.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// SessionPrincipal is the identity of an authenticated admin session.
type SessionPrincipal struct {
	AdminID  string
	TenantID string
	Email    string
}

// AuthService validates API keys and admin sessions against the store.
type AuthService struct {
	store     *store.Store
	notifier  *webhook.Notifier
	logger    *slog.Logger
	jwtSecret []byte

	defaultWindow time.Duration
	defaultMax    int
}

// NewAuthService creates an AuthService. defaultWindow/defaultMax apply to
// keys that don't carry their own rate-limit configuration.
func NewAuthService(st *store.Store, notifier *webhook.Notifier, logger *slog.Logger,
	jwtSecret string, defaultWindow time.Duration, defaultMax int) *AuthService {
	return &AuthService{
		store:         st,
		notifier:      notifier,
		logger:        logger,
		jwtSecret:     []byte(jwtSecret),
		defaultWindow: defaultWindow,
		defaultMax:    defaultMax,
	}
}

// ValidateAPIKey authenticates a raw credential of the form
// "{prefix}.{secret}". The lookup happens by prefix; the supplied secret is
// hashed with the stored per-key salt and compared in constant time.
//
// All failure modes return ErrInvalidAPIKey. The internal reason is logged
// at debug level only.
func (s *AuthService) ValidateAPIKey(ctx context.Context, rawKey string) (*Principal, error) {
	prefix, secret, ok := strings.Cut(rawKey, ".")
	if !ok || prefix == "" || secret == "" {
		s.logger.Debug("api key rejected", "reason", "malformed credential")
		return nil, ErrInvalidAPIKey
	}

	key, err := s.store.GetAPIKeyByPrefix(ctx, prefix)
	if err != nil {
		s.logger.Debug("api key rejected", "reason", "unknown prefix", "prefix", prefix)
		return nil, ErrInvalidAPIKey
	}

	if key.Revoked() {
		s.logger.Debug("api key rejected", "reason", "revoked", "key_id", key.ID)
		return nil, ErrInvalidAPIKey
	}

	want, err := hex.DecodeString(key.SecretHash)
	if err != nil {
		s.logger.Error("corrupt secret hash on key", "key_id", key.ID)
		return nil, ErrInvalidAPIKey
	}
	got := hashSecret(key.Salt, secret)
	if subtle.ConstantTimeCompare(want, got[:]) != 1 {
		s.logger.Debug("api key rejected", "reason", "secret mismatch", "key_id", key.ID)
		return nil, ErrInvalidAPIKey
	}

	// Update last_used_at without blocking or failing the request.
	go func(id string) {
		if err := s.store.TouchAPIKey(context.Background(), id); err != nil {
			s.logger.Warn("failed to update key last_used_at", "key_id", id, "error", err)
		}
	}(key.ID)

	window := time.Duration(key.RateLimitWindowSeconds) * time.Second
	if window <= 0 {
		window = s.defaultWindow
	}
	max := key.RateLimitMax
	if max <= 0 {
		max = s.defaultMax
	}

	return &Principal{
		KeyID:           key.ID,
		TenantID:        key.TenantID,
		Scopes:          key.Scopes,
		RateLimitWindow: window,
		RateLimitMax:    max,
	}, nil
}

// AuthenticateAdmin verifies an email/password login. The failure is uniform
// regardless of whether the account exists, is inactive, or the password is
// wrong.
func (s *AuthService) AuthenticateAdmin(ctx context.Context, email, password string) (*model.Admin, error) {
	admin, err := s.store.GetAdminByEmail(ctx, email)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if !admin.IsActive {
		return nil, ErrInvalidCredentials
	}
	want, err := hex.DecodeString(admin.PasswordHash)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	got := hashSecret(admin.PasswordSalt, password)
	if subtle.ConstantTimeCompare(want, got[:]) != 1 {
		return nil, ErrInvalidCredentials
	}

	go func(id string) {
		if err := s.store.TouchAdminLogin(context.Background(), id); err != nil {
			s.logger.Warn("failed to update admin last_login_at", "admin_id", id, "error", err)
		}
	}(admin.ID)

	return admin, nil
}

// IssueSession creates a signed JWT session token for the admin.
func (s *AuthService) IssueSession(admin *model.Admin, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := sessionClaims{
		AdminID:  admin.ID,
		TenantID: admin.TenantID,
		Email:    admin.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    "fieldline",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

// ValidateSession verifies a JWT session token and returns the admin
// identity it carries.
func (s *AuthService) ValidateSession(tokenStr string) (*SessionPrincipal, error) {
	claims := &sessionClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidCredentials
	}
	return &SessionPrincipal{
		AdminID:  claims.AdminID,
		TenantID: claims.TenantID,
		Email:    claims.Email,
	}, nil
}

type sessionClaims struct {
	AdminID  string `json:"admin_id"`
	TenantID string `json:"tenant_id"`
	Email    string `json:"email"`
	jwt.RegisteredClaims
}

// hashSecret computes sha256 over the hex salt concatenated with the secret.
func hashSecret(salt, secret string) [32]byte {
	return sha256.Sum256([]byte(salt + secret))
}

// HashPassword derives the stored (hash, salt) pair for an admin password.
func HashPassword(password string) (hash, salt string, err error) {
	salt, err = randomHex(16)
	if err != nil {
		return "", "", err
	}
	sum := hashSecret(salt, password)
	return hex.EncodeToString(sum[:]), salt, nil
}
