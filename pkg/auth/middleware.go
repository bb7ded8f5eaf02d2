package auth

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/mmorady/authgate/pkg/api"
	"github.com/mmorady/authgate/pkg/debug"
	"github.com/mmorady/authgate/pkg/observability"
)

// Middleware creates HTTP middleware from a Chain and optional RateLimiter.
// It runs authentication, injects verified claims into the request context,
// and optionally enforces rate limits. It guards every request it wraps;
// operational endpoints stay open by being mounted outside it.
func Middleware(chain *Chain, limiter RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			result := chain.Authenticate(r.Context(), r)
			observability.AuthDecisionsTotal.WithLabelValues(result.Decision.String(), kindLabel(result)).Inc()

			switch result.Decision {
			case No:
				authErr := result.Err
				if authErr == nil {
					authErr = ErrNotAuthenticated
				}
				slog.Warn("authentication failed",
					"path", r.URL.Path,
					"remote_addr", r.RemoteAddr,
					"kind", string(authErr.Kind),
					"error", authErr,
				)
				WriteError(w, authErr)
				return

			case Abstain:
				debug.Log("auth", "request not authenticated", "path", r.URL.Path)
				next.ServeHTTP(w, r)
				return
			}

			debug.Log("auth", "authentication succeeded",
				"subject", result.Claims.Subject(),
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr,
			)

			if limiter != nil {
				if err := limiter.Allow(r.Context(), result.Claims); err != nil {
					slog.Warn("rate limit exceeded", "subject", result.Claims.Subject())
					observability.RateLimitRejectedTotal.Inc()
					writeJSON(w, http.StatusTooManyRequests, api.NewTooManyRequestsError("rate limit exceeded"))
					return
				}
			}

			ctx := SetClaims(r.Context(), result.Claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WriteError writes err as a JSON error response. Unauthorized responses
// carry a WWW-Authenticate challenge for the bearer scheme.
func WriteError(w http.ResponseWriter, err *Error) {
	if err.Status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}
	writeJSON(w, err.Status, err.APIError())
}

func writeJSON(w http.ResponseWriter, status int, apiErr *api.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(api.ErrorResponse{Error: apiErr})
}

func kindLabel(r Result) string {
	if r.Err == nil {
		return "none"
	}
	return string(r.Err.Kind)
}
