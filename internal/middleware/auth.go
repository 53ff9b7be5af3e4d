package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/recipebox/recipebox/internal/auth"
	"github.com/recipebox/recipebox/internal/model"
	"github.com/recipebox/recipebox/internal/service"
)

// Authenticator resolves a presented token to an identity.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*model.AuthContext, error)
}

// AuthConfig holds configuration for the auth middleware.
type AuthConfig struct {
	Logger        *slog.Logger
	Authenticator Authenticator
	// MinDuration pads failed attempts so they take a uniform time.
	MinDuration time.Duration
}

// Auth returns a middleware that requires a valid token and injects the
// caller's AuthContext into the request context.
func Auth(cfg AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			token := extractToken(r)
			if token == "" {
				cfg.fail(w, r, start, "missing_token", "authentication credentials were not provided")
				return
			}

			ac, err := cfg.Authenticator.Authenticate(r.Context(), token)
			if err != nil {
				if !errors.Is(err, service.ErrInvalidToken) {
					// Backend failure; the token itself was never checked.
					cfg.Logger.Error("authentication error",
						slog.String("error", err.Error()),
						slog.String("request_id", GetRequestID(r.Context())),
					)
					writeJSONError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "authentication is temporarily unavailable")
					return
				}
				cfg.fail(w, r, start, "invalid_token", "invalid token")
				return
			}

			cfg.Logger.Debug("authentication successful",
				slog.String("token_id", ac.TokenID),
				slog.String("token_prefix", ac.TokenPrefix),
				slog.Int64("user_id", ac.UserID),
				slog.String("request_id", GetRequestID(r.Context())),
			)

			r = r.WithContext(auth.ContextWithAuth(r.Context(), ac))
			recordUser(r)
			next.ServeHTTP(w, r)
		})
	}
}

func (cfg AuthConfig) fail(w http.ResponseWriter, r *http.Request, start time.Time, reason, message string) {
	cfg.Logger.Warn("authentication failed",
		slog.String("reason", reason),
		slog.String("ip", r.RemoteAddr),
		slog.String("endpoint", r.Method+" "+r.URL.Path),
		slog.String("request_id", GetRequestID(r.Context())),
	)

	if wait := cfg.MinDuration - time.Since(start); wait > 0 {
		select {
		case <-time.After(wait):
		case <-r.Context().Done():
		}
	}

	w.Header().Set("WWW-Authenticate", `Token realm="api"`)
	writeJSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", message)
}

// extractToken reads "Authorization: Token <key>" or "Authorization: Bearer <key>".
func extractToken(r *http.Request) string {
	scheme, value, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok {
		return ""
	}
	if !strings.EqualFold(scheme, "Token") && !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(value)
}
