package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/fieldlinehq/fieldline/internal/model"
	"github.com/fieldlinehq/fieldline/internal/service"
)

type contextKeyAuth string

// sessionKey is the context key for the authenticated admin session.
const sessionKey contextKeyAuth = "admin_session"

// RequireSession validates the JWT bearer token on management API requests
// and attaches the SessionPrincipal to the request context. Requests
// without a valid session get a 401 JSON error.
func RequireSession(authSvc *service.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				writeAuthError(w, http.StatusUnauthorized, "Authentication required. Provide a Bearer session token.")
				return
			}
			principal, err := authSvc.ValidateSession(token)
			if err != nil {
				writeAuthError(w, http.StatusUnauthorized, "Invalid session token")
				return
			}
			ctx := context.WithValue(r.Context(), sessionKey, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetSession extracts the authenticated admin session from the context.
// Returns nil for unauthenticated requests.
func GetSession(ctx context.Context) *service.SessionPrincipal {
	if p, ok := ctx.Value(sessionKey).(*service.SessionPrincipal); ok {
		return p
	}
	return nil
}

func writeAuthError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(model.ErrorResponse{
		Error: model.ErrorDetail{Code: status, Message: message},
	})
}
