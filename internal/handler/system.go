// Package handler implements the management REST API: admin sessions and
// API key lifecycle. Keys obey the one-time-reveal contract: the raw secret
// appears in exactly two responses — create and rotate — and is masked
// everywhere else, since the store only holds its hash.
package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fieldlinehq/fieldline/internal/model"
	"github.com/fieldlinehq/fieldline/internal/server/middleware"
	"github.com/fieldlinehq/fieldline/internal/service"
	"github.com/fieldlinehq/fieldline/internal/store"
)

// SystemHandler serves admin sessions and key management.
type SystemHandler struct {
	authSvc    *service.AuthService
	sessionTTL time.Duration
}

// NewSystemHandler creates a SystemHandler.
func NewSystemHandler(authSvc *service.AuthService, sessionTTL time.Duration) *SystemHandler {
	return &SystemHandler{authSvc: authSvc, sessionTTL: sessionTTL}
}

// ---------------------------------------------------------------------------
// Sessions
// ---------------------------------------------------------------------------

// Login authenticates an admin and returns a JWT session token.
func (h *SystemHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	admin, err := h.authSvc.AuthenticateAdmin(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, err := h.authSvc.IssueSession(admin, h.sessionTTL)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to issue session")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"session_token": token,
		"admin":         admin,
	})
}

// Logout ends a session. Sessions are stateless JWTs, so this only tells
// the client to drop the token.
func (h *SystemHandler) Logout(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ---------------------------------------------------------------------------
// API key management
// ---------------------------------------------------------------------------

type keyRequest struct {
	Label                  *string  `json:"label"`
	Scopes                 []string `json:"scopes"`
	RateLimitWindowSeconds *int     `json:"rate_limit_window_seconds"`
	RateLimitMax           *int     `json:"rate_limit_max"`
	WebhookURL             *string  `json:"webhook_url"`
}

// keyResponse builds the API representation. rawKey is non-empty only at
// create/rotate time.
func keyResponse(k *model.APIKey, rawKey string) model.KeyResponse {
	return model.KeyResponse{
		APIKey:       *k,
		Key:          rawKey,
		MaskedSecret: k.MaskedSecret(),
	}
}

// ListKeys returns all keys for the session's tenant, masked.
func (h *SystemHandler) ListKeys(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSession(r.Context())

	keys, err := h.authSvc.ListKeys(r.Context(), session.TenantID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list API keys")
		return
	}

	resp := make([]model.KeyResponse, len(keys))
	for i := range keys {
		resp[i] = keyResponse(&keys[i], "")
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"keys": resp})
}

// CreateKey issues a new key. The response carries the full credential; it
// is never retrievable again.
func (h *SystemHandler) CreateKey(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSession(r.Context())

	var req keyRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	params := service.KeyParams{Scopes: req.Scopes}
	if req.Label != nil {
		params.Label = *req.Label
	}
	if req.RateLimitWindowSeconds != nil {
		params.RateLimitWindowSeconds = *req.RateLimitWindowSeconds
	}
	if req.RateLimitMax != nil {
		params.RateLimitMax = *req.RateLimitMax
	}
	if req.WebhookURL != nil {
		params.WebhookURL = *req.WebhookURL
	}

	key, rawKey, err := h.authSvc.IssueKey(r.Context(), session.TenantID, params)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, keyResponse(key, rawKey))
}

// GetKey returns one key, masked. Keys of other tenants are 404.
func (h *SystemHandler) GetKey(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSession(r.Context())

	key, err := h.authSvc.GetKey(r.Context(), session.TenantID, chi.URLParam(r, "keyID"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "API key not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to load API key")
		return
	}
	writeJSON(w, http.StatusOK, keyResponse(key, ""))
}

// UpdateKey patches label, scopes, rate limits, and webhook URL. Fields
// omitted from the body keep their current values.
func (h *SystemHandler) UpdateKey(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSession(r.Context())

	key, err := h.authSvc.GetKey(r.Context(), session.TenantID, chi.URLParam(r, "keyID"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "API key not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to load API key")
		return
	}

	var req keyRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	params := service.KeyParams{
		Label:                  key.Label,
		Scopes:                 key.Scopes,
		RateLimitWindowSeconds: key.RateLimitWindowSeconds,
		RateLimitMax:           key.RateLimitMax,
		WebhookURL:             key.WebhookURL,
	}
	if req.Label != nil {
		params.Label = *req.Label
	}
	if req.Scopes != nil {
		params.Scopes = req.Scopes
	}
	if req.RateLimitWindowSeconds != nil {
		params.RateLimitWindowSeconds = *req.RateLimitWindowSeconds
	}
	if req.RateLimitMax != nil {
		params.RateLimitMax = *req.RateLimitMax
	}
	if req.WebhookURL != nil {
		params.WebhookURL = *req.WebhookURL
	}

	updated, err := h.authSvc.UpdateKey(r.Context(), session.TenantID, key.ID, params)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, keyResponse(updated, ""))
}

// RotateKey replaces the key's secret and reveals the new credential once.
func (h *SystemHandler) RotateKey(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSession(r.Context())

	key, rawKey, err := h.authSvc.RotateKey(r.Context(), session.TenantID, chi.URLParam(r, "keyID"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "API key not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to rotate API key")
		return
	}
	writeJSON(w, http.StatusOK, keyResponse(key, rawKey))
}

// RevokeKey permanently invalidates a key.
func (h *SystemHandler) RevokeKey(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSession(r.Context())

	keyID := chi.URLParam(r, "keyID")
	if err := h.authSvc.RevokeKey(r.Context(), session.TenantID, keyID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "API key not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to revoke API key")
		return
	}

	key, err := h.authSvc.GetKey(r.Context(), session.TenantID, keyID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load API key")
		return
	}
	writeJSON(w, http.StatusOK, keyResponse(key, ""))
}
