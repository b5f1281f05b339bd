package httpserver

import (
	"context"
	"net/http"
	"strings"

	"hustlex/internal/security"
)

type contextKey string

const userContextKey contextKey = "currentUserID"

// WithUser returns a new context carrying the current user id.
func WithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userContextKey, userID)
}

// CurrentUserID extracts the current user id from context, if any.
func CurrentUserID(r *http.Request) string {
	id, _ := r.Context().Value(userContextKey).(string)
	return id
}

// AuthMiddleware validates the Bearer token and attaches its user id to the context.
func AuthMiddleware(tokens *security.TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" || !strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing or invalid Authorization header"})
				return
			}
			tokenStr := strings.TrimSpace(authHeader[len("Bearer "):])

			userID, err := tokens.UserID(tokenStr)
			if err != nil {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid token"})
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), userID)))
		})
	}
}
