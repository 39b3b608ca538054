package handler

import (
	"strings"
	"testing"

	"github.com/fieldlinehq/fieldline/internal/model"
)

// keyJSON mirrors the wire shape of a key response.
type keyJSON struct {
	ID           string   `json:"id"`
	TenantID     string   `json:"tenant_id"`
	Prefix       string   `json:"prefix"`
	Label        string   `json:"label"`
	Scopes       []string `json:"scopes"`
	Key          string   `json:"key"`
	MaskedSecret string   `json:"masked_secret"`
	RevokedAt    *string  `json:"revoked_at"`
	SecretHash   string   `json:"secret_hash"` // must never appear
	Salt         string   `json:"salt"`        // must never appear
}

// ---------------------------------------------------------------------------
// Sessions
// ---------------------------------------------------------------------------

func TestLogin(t *testing.T) {
	env := newTestEnv(t)
	_, email := env.seedTenantAdmin(t, "Acme Plumbing")

	token := env.login(t, email)
	if token == "" {
		t.Fatal("expected a session token")
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	env := newTestEnv(t)
	_, email := env.seedTenantAdmin(t, "Acme Plumbing")

	rr := env.do(t, "POST", "/api/v1/system/admin/session", "", toJSON(t, map[string]string{
		"email":    email,
		"password": "wrongpassword",
	}))
	assertStatus(t, rr, 401)

	rr = env.do(t, "POST", "/api/v1/system/admin/session", "", toJSON(t, map[string]string{
		"email":    "nobody@example.com",
		"password": testPassword,
	}))
	assertStatus(t, rr, 401)
}

func TestKeyRoutesRequireSession(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, "GET", "/api/v1/system/api-key", "", nil)
	assertStatus(t, rr, 401)

	rr = env.do(t, "GET", "/api/v1/system/api-key", "not-a-jwt", nil)
	assertStatus(t, rr, 401)
}

// ---------------------------------------------------------------------------
// Key lifecycle
// ---------------------------------------------------------------------------

func TestCreateKey_RevealsCredentialOnce(t *testing.T) {
	env := newTestEnv(t)
	_, email := env.seedTenantAdmin(t, "Acme Plumbing")
	token := env.login(t, email)

	rr := env.do(t, "POST", "/api/v1/system/api-key", token, toJSON(t, map[string]interface{}{
		"label":  "VAPI assistant",
		"scopes": []string{model.ScopeEventsRead, model.ScopeEventsWrite},
	}))
	assertStatus(t, rr, 201)

	var created keyJSON
	decodeJSON(t, rr, &created)
	if created.Key == "" {
		t.Fatal("create response missing the one-time credential")
	}
	if !strings.HasPrefix(created.Key, created.Prefix+".") {
		t.Errorf("key %q does not start with prefix %q", created.Key, created.Prefix)
	}
	if created.SecretHash != "" || created.Salt != "" {
		t.Error("secret material leaked in create response")
	}
	if created.Label != "VAPI assistant" {
		t.Errorf("label = %q", created.Label)
	}

	// Every subsequent read is masked.
	rr = env.do(t, "GET", "/api/v1/system/api-key/"+created.ID, token, nil)
	assertStatus(t, rr, 200)
	var fetched keyJSON
	decodeJSON(t, rr, &fetched)
	if fetched.Key != "" {
		t.Error("GET returned the raw credential")
	}
	secret := strings.TrimPrefix(created.Key, created.Prefix+".")
	if want := "****" + secret[len(secret)-4:]; fetched.MaskedSecret != want {
		t.Errorf("masked_secret = %q, want %q", fetched.MaskedSecret, want)
	}
}

func TestCreateKey_RejectsInvalidScopes(t *testing.T) {
	env := newTestEnv(t)
	_, email := env.seedTenantAdmin(t, "Acme Plumbing")
	token := env.login(t, email)

	rr := env.do(t, "POST", "/api/v1/system/api-key", token, toJSON(t, map[string]interface{}{
		"scopes": []string{"root:everything"},
	}))
	assertStatus(t, rr, 400)

	rr = env.do(t, "POST", "/api/v1/system/api-key", token, toJSON(t, map[string]interface{}{
		"label": "no scopes",
	}))
	assertStatus(t, rr, 400)
}

func TestListKeys_NeverReturnsSecrets(t *testing.T) {
	env := newTestEnv(t)
	_, email := env.seedTenantAdmin(t, "Acme Plumbing")
	token := env.login(t, email)

	for i := 0; i < 2; i++ {
		rr := env.do(t, "POST", "/api/v1/system/api-key", token, toJSON(t, map[string]interface{}{
			"scopes": []string{model.ScopeLeadsRead},
		}))
		assertStatus(t, rr, 201)
	}

	rr := env.do(t, "GET", "/api/v1/system/api-key", token, nil)
	assertStatus(t, rr, 200)
	var resp struct {
		Keys []keyJSON `json:"keys"`
	}
	decodeJSON(t, rr, &resp)
	if len(resp.Keys) != 2 {
		t.Fatalf("len(keys) = %d, want 2", len(resp.Keys))
	}
	for _, k := range resp.Keys {
		if k.Key != "" || k.SecretHash != "" || k.Salt != "" {
			t.Errorf("key %s leaked secret material in list", k.ID)
		}
		if !strings.HasPrefix(k.MaskedSecret, "****") {
			t.Errorf("masked_secret = %q, want **** prefix", k.MaskedSecret)
		}
	}
}

func TestUpdateKey_PatchSemantics(t *testing.T) {
	env := newTestEnv(t)
	_, email := env.seedTenantAdmin(t, "Acme Plumbing")
	token := env.login(t, email)

	rr := env.do(t, "POST", "/api/v1/system/api-key", token, toJSON(t, map[string]interface{}{
		"label":                     "original",
		"scopes":                    []string{model.ScopeLeadsRead},
		"rate_limit_window_seconds": 60,
		"rate_limit_max":            30,
	}))
	assertStatus(t, rr, 201)
	var created keyJSON
	decodeJSON(t, rr, &created)

	// Patch only the label; everything else must survive.
	rr = env.do(t, "PATCH", "/api/v1/system/api-key/"+created.ID, token, toJSON(t, map[string]interface{}{
		"label": "renamed",
	}))
	assertStatus(t, rr, 200)
	var updated keyJSON
	decodeJSON(t, rr, &updated)
	if updated.Label != "renamed" {
		t.Errorf("label = %q, want renamed", updated.Label)
	}
	if len(updated.Scopes) != 1 || updated.Scopes[0] != model.ScopeLeadsRead {
		t.Errorf("scopes changed by unrelated patch: %v", updated.Scopes)
	}

	// Scope patch replaces the whole set.
	rr = env.do(t, "PATCH", "/api/v1/system/api-key/"+created.ID, token, toJSON(t, map[string]interface{}{
		"scopes": []string{model.ScopeEventsRead, model.ScopeEventsWrite},
	}))
	assertStatus(t, rr, 200)
	decodeJSON(t, rr, &updated)
	if len(updated.Scopes) != 2 {
		t.Errorf("scopes = %v, want two entries", updated.Scopes)
	}
}

func TestRotateKey_NewCredentialRevealedOnce(t *testing.T) {
	env := newTestEnv(t)
	_, email := env.seedTenantAdmin(t, "Acme Plumbing")
	token := env.login(t, email)

	rr := env.do(t, "POST", "/api/v1/system/api-key", token, toJSON(t, map[string]interface{}{
		"scopes": []string{model.ScopeEventsRead},
	}))
	assertStatus(t, rr, 201)
	var created keyJSON
	decodeJSON(t, rr, &created)

	rr = env.do(t, "POST", "/api/v1/system/api-key/"+created.ID+"/rotate", token, nil)
	assertStatus(t, rr, 200)
	var rotated keyJSON
	decodeJSON(t, rr, &rotated)
	if rotated.Key == "" {
		t.Fatal("rotate response missing the new credential")
	}
	if rotated.Key == created.Key {
		t.Error("rotation returned the old credential")
	}
	if rotated.Prefix != created.Prefix || rotated.ID != created.ID {
		t.Error("rotation changed the key identity")
	}
}

func TestRevokeKey(t *testing.T) {
	env := newTestEnv(t)
	_, email := env.seedTenantAdmin(t, "Acme Plumbing")
	token := env.login(t, email)

	rr := env.do(t, "POST", "/api/v1/system/api-key", token, toJSON(t, map[string]interface{}{
		"scopes": []string{model.ScopeEventsRead},
	}))
	assertStatus(t, rr, 201)
	var created keyJSON
	decodeJSON(t, rr, &created)

	rr = env.do(t, "DELETE", "/api/v1/system/api-key/"+created.ID, token, nil)
	assertStatus(t, rr, 200)
	var revoked keyJSON
	decodeJSON(t, rr, &revoked)
	if revoked.RevokedAt == nil {
		t.Error("revoked_at not set in revoke response")
	}
	if revoked.Key != "" {
		t.Error("revoke response leaked a credential")
	}

	rr = env.do(t, "DELETE", "/api/v1/system/api-key/no-such-key", token, nil)
	assertStatus(t, rr, 404)
}

// Admins only ever see their own tenant's keys; another tenant's key id is
// indistinguishable from a nonexistent one.
func TestKeys_CrossTenantIs404(t *testing.T) {
	env := newTestEnv(t)
	_, emailA := env.seedTenantAdmin(t, "Tenant A")
	_, emailB := env.seedTenantAdmin(t, "Tenant B")
	tokenA := env.login(t, emailA)
	tokenB := env.login(t, emailB)

	rr := env.do(t, "POST", "/api/v1/system/api-key", tokenA, toJSON(t, map[string]interface{}{
		"scopes": []string{model.ScopeEventsRead},
	}))
	assertStatus(t, rr, 201)
	var created keyJSON
	decodeJSON(t, rr, &created)

	rr = env.do(t, "GET", "/api/v1/system/api-key/"+created.ID, tokenB, nil)
	assertStatus(t, rr, 404)

	rr = env.do(t, "POST", "/api/v1/system/api-key/"+created.ID+"/rotate", tokenB, nil)
	assertStatus(t, rr, 404)

	rr = env.do(t, "DELETE", "/api/v1/system/api-key/"+created.ID, tokenB, nil)
	assertStatus(t, rr, 404)

	// Tenant B's listing stays empty.
	rr = env.do(t, "GET", "/api/v1/system/api-key", tokenB, nil)
	assertStatus(t, rr, 200)
	var resp struct {
		Keys []keyJSON `json:"keys"`
	}
	decodeJSON(t, rr, &resp)
	if len(resp.Keys) != 0 {
		t.Errorf("tenant B sees %d keys, want 0", len(resp.Keys))
	}
}
