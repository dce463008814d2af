package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"tracker/internal/identity"
)

// TokenValidator verifies a bearer token and resolves the user behind it.
type TokenValidator interface {
	Validate(ctx context.Context, token string) (*identity.User, string, error)
}

const bearerPrefix = "Bearer "

// RequireAuth rejects requests without a valid bearer token and stores the
// authenticated user and session ID in the context.
func RequireAuth(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), bearerPrefix)
			if !ok {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", GetRequestID(ctx),
				)
				writeUnauthorized(w, "Missing or invalid Authorization header")
				return
			}

			user, sessionID, err := validator.Validate(ctx, token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", GetRequestID(ctx),
				)
				writeUnauthorized(w, "Invalid or expired token")
				return
			}

			ctx = identity.WithUser(ctx, user)
			ctx = identity.WithSessionID(ctx, sessionID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuth resolves a bearer token when present but lets anonymous
// requests through. Read endpoints are public; handlers decide per operation
// whether an actor is required.
func OptionalAuth(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), bearerPrefix)
			if ok {
				user, sessionID, err := validator.Validate(ctx, token)
				if err != nil {
					logger.WarnContext(ctx, "ignoring invalid token on public endpoint",
						"error", err,
						"request_id", GetRequestID(ctx),
					)
				} else {
					ctx = identity.WithUser(ctx, user)
					ctx = identity.WithSessionID(ctx, sessionID)
				}
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"` + description + `"}`))
}
