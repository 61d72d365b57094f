package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/kozaktomas/face-login/internal/messages"
)

type contextKey string

const claimsContextKey contextKey = "claims"

// writeAuthError sends a localized JSON error in the same shape as the handlers.
func writeAuthError(w http.ResponseWriter, r *http.Request, catalog *messages.Catalog, status int, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"error": catalog.Lookup(r.Header.Get("Accept-Language"), code),
		"code":  code,
	})
}

// bearerToken extracts the token from an "Authorization: Bearer <token>" header.
func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// RequireUser is middleware that requires a valid bearer token
func RequireUser(tokens *TokenIssuer, catalog *messages.Catalog) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" {
				writeAuthError(w, r, catalog, http.StatusUnauthorized, messages.CodeUnauthorized)
				return
			}
			claims, err := tokens.Parse(raw)
			if err != nil {
				writeAuthError(w, r, catalog, http.StatusUnauthorized, messages.CodeUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), claimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin must run after RequireUser and rejects tokens without the admin role
func RequireAdmin(catalog *messages.Catalog) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := GetClaimsFromContext(r.Context())
			if claims == nil {
				writeAuthError(w, r, catalog, http.StatusUnauthorized, messages.CodeUnauthorized)
				return
			}
			if !claims.IsAdmin() {
				writeAuthError(w, r, catalog, http.StatusForbidden, messages.CodeForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetClaimsFromContext retrieves the token claims from the request context
func GetClaimsFromContext(ctx context.Context) *Claims {
	claims, ok := ctx.Value(claimsContextKey).(*Claims)
	if !ok {
		return nil
	}
	return claims
}

// SetClaimsInContext adds claims to the context.
// This is primarily for testing - use RequireUser middleware in production.
func SetClaimsInContext(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey, claims)
}
