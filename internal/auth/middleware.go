package auth

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

const userIDKey contextKey = "user_id"

// Authenticator resolves a bearer token to a user ID.
type Authenticator interface {
	Authenticate(token string) (string, error)
}

// ErrorWriter renders an HTTP error response. It matches the API package's
// error helper so the middleware reuses the same JSON envelope.
type ErrorWriter func(w http.ResponseWriter, status int, errType, format string, args ...any)

// Bearer authenticates requests via the Authorization header and stores the
// user ID in the request context.
func Bearer(authn Authenticator, writeError ErrorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			const prefix = "Bearer "
			if !strings.HasPrefix(header, prefix) {
				writeError(w, http.StatusUnauthorized, "authentication_error", "invalid or missing bearer token")
				return
			}

			userID, err := authn.Authenticate(header[len(prefix):])
			if err != nil {
				writeError(w, http.StatusUnauthorized, "authentication_error", "invalid or expired session")
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserID returns the authenticated user's ID from the request context, or ""
// when the request did not pass the Bearer middleware.
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}
