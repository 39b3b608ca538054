package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"
)

// LoginRateLimit throttles the login endpoint by client IP to slow down
// credential stuffing. This is separate from the per-API-key fixed-window
// limiter that guards the tool gateway.
func LoginRateLimit(requestsPerMinute int) func(http.Handler) http.Handler {
	return httprate.LimitByIP(requestsPerMinute, time.Minute)
}
