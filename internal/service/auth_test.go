package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/fieldlinehq/fieldline/internal/model"
	"github.com/fieldlinehq/fieldline/internal/store"
	"github.com/fieldlinehq/fieldline/internal/webhook"
)

const (
	testJWTSecret = "test-secret-for-service-tests"
	testPassword  = "supersecretpassword"
)

type testEnv struct {
	store  *store.Store
	svc    *AuthService
	tenant *model.Tenant
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := store.New("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewAuthService(st, webhook.New(logger), logger, testJWTSecret, time.Minute, 100)

	tenant := &model.Tenant{ID: uuid.NewString(), Name: "Acme Plumbing", CreatedAt: time.Now().UTC()}
	if err := st.CreateTenant(context.Background(), tenant); err != nil {
		t.Fatalf("CreateTenant: %v", err)
	}

	return &testEnv{store: st, svc: svc, tenant: tenant}
}

func (e *testEnv) issueKey(t *testing.T, scopes ...string) (*model.APIKey, string) {
	t.Helper()
	key, rawKey, err := e.svc.IssueKey(context.Background(), e.tenant.ID, KeyParams{Scopes: scopes})
	if err != nil {
		t.Fatalf("IssueKey: %v", err)
	}
	return key, rawKey
}

func (e *testEnv) seedAdmin(t *testing.T, email string) *model.Admin {
	t.Helper()
	hash, salt, err := HashPassword(testPassword)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	admin := &model.Admin{
		ID:           uuid.NewString(),
		TenantID:     e.tenant.ID,
		Email:        email,
		PasswordHash: hash,
		PasswordSalt: salt,
		Name:         "Test Admin",
		IsActive:     true,
		CreatedAt:    time.Now().UTC(),
	}
	if err := e.store.CreateAdmin(context.Background(), admin); err != nil {
		t.Fatalf("CreateAdmin: %v", err)
	}
	return admin
}

// ---------------------------------------------------------------------------
// API key validation
// ---------------------------------------------------------------------------

func TestValidateAPIKey_Valid(t *testing.T) {
	env := newTestEnv(t)
	key, rawKey := env.issueKey(t, model.ScopeEventsRead, model.ScopeLeadsWrite)

	principal, err := env.svc.ValidateAPIKey(context.Background(), rawKey)
	if err != nil {
		t.Fatalf("ValidateAPIKey: %v", err)
	}
	if principal.KeyID != key.ID {
		t.Errorf("KeyID = %s, want %s", principal.KeyID, key.ID)
	}
	if principal.TenantID != env.tenant.ID {
		t.Errorf("TenantID = %s, want %s", principal.TenantID, env.tenant.ID)
	}
	if !principal.HasScope(model.ScopeEventsRead) || !principal.HasScope(model.ScopeLeadsWrite) {
		t.Errorf("scopes = %v, missing expected entries", principal.Scopes)
	}
	if principal.HasScope(model.ScopeContactsWrite) {
		t.Error("principal has a scope the key was not granted")
	}
}

func TestValidateAPIKey_DefaultsAppliedToRateLimit(t *testing.T) {
	env := newTestEnv(t)
	_, rawKey := env.issueKey(t, model.ScopeEventsRead)

	principal, err := env.svc.ValidateAPIKey(context.Background(), rawKey)
	if err != nil {
		t.Fatalf("ValidateAPIKey: %v", err)
	}
	if principal.RateLimitWindow != time.Minute {
		t.Errorf("RateLimitWindow = %v, want 1m (server default)", principal.RateLimitWindow)
	}
	if principal.RateLimitMax != 100 {
		t.Errorf("RateLimitMax = %d, want 100 (server default)", principal.RateLimitMax)
	}
}

func TestValidateAPIKey_PerKeyRateLimitOverridesDefault(t *testing.T) {
	env := newTestEnv(t)
	_, rawKey, err := env.svc.IssueKey(context.Background(), env.tenant.ID, KeyParams{
		Scopes:                 []string{model.ScopeEventsRead},
		RateLimitWindowSeconds: 30,
		RateLimitMax:           5,
	})
	if err != nil {
		t.Fatalf("IssueKey: %v", err)
	}

	principal, err := env.svc.ValidateAPIKey(context.Background(), rawKey)
	if err != nil {
		t.Fatalf("ValidateAPIKey: %v", err)
	}
	if principal.RateLimitWindow != 30*time.Second {
		t.Errorf("RateLimitWindow = %v, want 30s", principal.RateLimitWindow)
	}
	if principal.RateLimitMax != 5 {
		t.Errorf("RateLimitMax = %d, want 5", principal.RateLimitMax)
	}
}

// Every authentication failure collapses to the same error so a probing
// client cannot distinguish unknown prefixes from revoked keys or bad
// secrets.
func TestValidateAPIKey_UniformFailure(t *testing.T) {
	env := newTestEnv(t)
	key, rawKey := env.issueKey(t, model.ScopeEventsRead)

	revokedKey, revokedRaw := env.issueKey(t, model.ScopeEventsRead)
	if err := env.svc.RevokeKey(context.Background(), env.tenant.ID, revokedKey.ID); err != nil {
		t.Fatalf("RevokeKey: %v", err)
	}

	cases := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"no separator", "flk_abcdef0123456789"},
		{"empty secret", key.Prefix + "."},
		{"unknown prefix", "flk_000000000000." + strings.Repeat("0", 64)},
		{"wrong secret", key.Prefix + "." + strings.Repeat("0", 64)},
		{"valid secret on revoked key", revokedRaw},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.svc.ValidateAPIKey(context.Background(), tc.raw)
			if !errors.Is(err, ErrInvalidAPIKey) {
				t.Errorf("error = %v, want ErrInvalidAPIKey", err)
			}
		})
	}

	// The valid credential still works after all those failures.
	if _, err := env.svc.ValidateAPIKey(context.Background(), rawKey); err != nil {
		t.Errorf("valid key rejected: %v", err)
	}
}

func TestRotateKey_OldCredentialStopsWorking(t *testing.T) {
	env := newTestEnv(t)
	key, oldRaw := env.issueKey(t, model.ScopeEventsRead)

	rotated, newRaw, err := env.svc.RotateKey(context.Background(), env.tenant.ID, key.ID)
	if err != nil {
		t.Fatalf("RotateKey: %v", err)
	}
	if rotated.ID != key.ID || rotated.Prefix != key.Prefix {
		t.Errorf("rotation changed identity: %s/%s -> %s/%s", key.ID, key.Prefix, rotated.ID, rotated.Prefix)
	}
	if newRaw == oldRaw {
		t.Error("rotation returned the same credential")
	}

	if _, err := env.svc.ValidateAPIKey(context.Background(), oldRaw); !errors.Is(err, ErrInvalidAPIKey) {
		t.Errorf("old credential error = %v, want ErrInvalidAPIKey", err)
	}
	if _, err := env.svc.ValidateAPIKey(context.Background(), newRaw); err != nil {
		t.Errorf("new credential rejected: %v", err)
	}
}

func TestRotateKey_DoesNotReviveRevokedKey(t *testing.T) {
	env := newTestEnv(t)
	key, _ := env.issueKey(t, model.ScopeEventsRead)

	if err := env.svc.RevokeKey(context.Background(), env.tenant.ID, key.ID); err != nil {
		t.Fatalf("RevokeKey: %v", err)
	}
	_, newRaw, err := env.svc.RotateKey(context.Background(), env.tenant.ID, key.ID)
	if err != nil {
		t.Fatalf("RotateKey: %v", err)
	}

	if _, err := env.svc.ValidateAPIKey(context.Background(), newRaw); !errors.Is(err, ErrInvalidAPIKey) {
		t.Errorf("rotated-but-revoked key error = %v, want ErrInvalidAPIKey", err)
	}
}

func TestIssueKey_RequiresValidScopes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, _, err := env.svc.IssueKey(ctx, env.tenant.ID, KeyParams{}); err == nil {
		t.Error("expected error for empty scopes")
	}
	if _, _, err := env.svc.IssueKey(ctx, env.tenant.ID, KeyParams{Scopes: []string{"nonsense:scope"}}); err == nil {
		t.Error("expected error for unknown scope")
	}
}

func TestIssueKey_CredentialShape(t *testing.T) {
	env := newTestEnv(t)
	key, rawKey := env.issueKey(t, model.ScopeContactsRead)

	prefix, secret, ok := strings.Cut(rawKey, ".")
	if !ok {
		t.Fatalf("credential %q has no separator", rawKey)
	}
	if prefix != key.Prefix {
		t.Errorf("credential prefix = %q, want %q", prefix, key.Prefix)
	}
	if !strings.HasPrefix(prefix, "flk_") {
		t.Errorf("prefix %q missing flk_ tag", prefix)
	}
	if len(secret) != 64 {
		t.Errorf("secret length = %d, want 64", len(secret))
	}
	if key.SecretLast4 != secret[len(secret)-4:] {
		t.Errorf("SecretLast4 = %q, want %q", key.SecretLast4, secret[len(secret)-4:])
	}
	if key.SecretHash == secret {
		t.Error("secret stored in the clear")
	}
}

// ---------------------------------------------------------------------------
// Admin sessions
// ---------------------------------------------------------------------------

func TestAuthenticateAdmin(t *testing.T) {
	env := newTestEnv(t)
	env.seedAdmin(t, "owner@acme.example")

	admin, err := env.svc.AuthenticateAdmin(context.Background(), "owner@acme.example", testPassword)
	if err != nil {
		t.Fatalf("AuthenticateAdmin: %v", err)
	}
	if admin.TenantID != env.tenant.ID {
		t.Errorf("TenantID = %s, want %s", admin.TenantID, env.tenant.ID)
	}

	if _, err := env.svc.AuthenticateAdmin(context.Background(), "owner@acme.example", "wrongpassword"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password error = %v, want ErrInvalidCredentials", err)
	}
	if _, err := env.svc.AuthenticateAdmin(context.Background(), "nobody@acme.example", testPassword); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown email error = %v, want ErrInvalidCredentials", err)
	}
}

func TestSessionRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	admin := env.seedAdmin(t, "owner@acme.example")

	token, err := env.svc.IssueSession(admin, time.Hour)
	if err != nil {
		t.Fatalf("IssueSession: %v", err)
	}

	principal, err := env.svc.ValidateSession(token)
	if err != nil {
		t.Fatalf("ValidateSession: %v", err)
	}
	if principal.AdminID != admin.ID || principal.TenantID != admin.TenantID || principal.Email != admin.Email {
		t.Errorf("principal = %+v, want identity of %s", principal, admin.ID)
	}
}

func TestValidateSession_Expired(t *testing.T) {
	env := newTestEnv(t)
	admin := env.seedAdmin(t, "owner@acme.example")

	token, err := env.svc.IssueSession(admin, -time.Minute)
	if err != nil {
		t.Fatalf("IssueSession: %v", err)
	}
	if _, err := env.svc.ValidateSession(token); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expired token error = %v, want ErrInvalidCredentials", err)
	}
}

func TestValidateSession_WrongSecret(t *testing.T) {
	env := newTestEnv(t)
	admin := env.seedAdmin(t, "owner@acme.example")

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	other := NewAuthService(env.store, nil, logger, "a-different-secret", time.Minute, 100)
	token, err := other.IssueSession(admin, time.Hour)
	if err != nil {
		t.Fatalf("IssueSession: %v", err)
	}

	if _, err := env.svc.ValidateSession(token); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("foreign token error = %v, want ErrInvalidCredentials", err)
	}
}
