package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/fieldlinehq/fieldline/internal/model"
	"github.com/fieldlinehq/fieldline/internal/server/middleware"
	"github.com/fieldlinehq/fieldline/internal/service"
	"github.com/fieldlinehq/fieldline/internal/store"
	"github.com/fieldlinehq/fieldline/internal/webhook"
)

const (
	testJWTSecret = "test-secret-for-handler-tests"
	testPassword  = "supersecretpassword"
)

// testEnv holds shared state for handler integration tests. Routes are
// mounted with the real session middleware so the masked-secret and
// tenant-scoping behavior is exercised end to end.
type testEnv struct {
	store   *store.Store
	authSvc *service.AuthService
	router  chi.Router
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := store.New("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	authSvc := service.NewAuthService(st, webhook.New(logger), logger, testJWTSecret, time.Minute, 100)
	sysHandler := NewSystemHandler(authSvc, time.Hour)

	r := chi.NewRouter()
	r.Route("/api/v1/system", func(r chi.Router) {
		r.Post("/admin/session", sysHandler.Login)
		r.Delete("/admin/session", sysHandler.Logout)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireSession(authSvc))

			r.Get("/api-key", sysHandler.ListKeys)
			r.Post("/api-key", sysHandler.CreateKey)
			r.Get("/api-key/{keyID}", sysHandler.GetKey)
			r.Patch("/api-key/{keyID}", sysHandler.UpdateKey)
			r.Post("/api-key/{keyID}/rotate", sysHandler.RotateKey)
			r.Delete("/api-key/{keyID}", sysHandler.RevokeKey)
		})
	})

	return &testEnv{store: st, authSvc: authSvc, router: r}
}

// seedTenantAdmin creates a tenant with one active admin and returns the
// tenant and the admin's email.
func (e *testEnv) seedTenantAdmin(t *testing.T, tenantName string) (*model.Tenant, string) {
	t.Helper()

	tenant := &model.Tenant{ID: uuid.NewString(), Name: tenantName, CreatedAt: time.Now().UTC()}
	if err := e.store.CreateTenant(context.Background(), tenant); err != nil {
		t.Fatalf("CreateTenant: %v", err)
	}

	hash, salt, err := service.HashPassword(testPassword)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	email := "admin@" + tenant.ID + ".example"
	admin := &model.Admin{
		ID:           uuid.NewString(),
		TenantID:     tenant.ID,
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
	return tenant, email
}

// login authenticates and returns a session token.
func (e *testEnv) login(t *testing.T, email string) string {
	t.Helper()
	rr := e.do(t, "POST", "/api/v1/system/admin/session", "", toJSON(t, map[string]string{
		"email":    email,
		"password": testPassword,
	}))
	assertStatus(t, rr, 200)
	var resp struct {
		SessionToken string `json:"session_token"`
	}
	decodeJSON(t, rr, &resp)
	if resp.SessionToken == "" {
		t.Fatal("empty session_token")
	}
	return resp.SessionToken
}

// do executes a request against the test router.
func (e *testEnv) do(t *testing.T, method, path, token string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func toJSON(t *testing.T, v interface{}) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(v); err != nil {
		t.Fatalf("toJSON: %v", err)
	}
	return buf
}

func assertStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Errorf("status = %d, want %d; body = %s", rr.Code, want, rr.Body.String())
	}
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decodeJSON: %v; body = %s", err, rr.Body.String())
	}
}
