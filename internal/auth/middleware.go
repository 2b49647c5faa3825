package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/BradenHooton/molar/internal/models"
	pkghttp "github.com/BradenHooton/molar/pkg/http"
)

type contextKey string

// SessionContextKey is the key for storing session claims in context
const SessionContextKey contextKey = "session"

// AuthMiddleware requires a valid session token from the Authorization header
// or the session cookie and injects its claims into the request context.
func AuthMiddleware(tm *TokenManager) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, ok := tokenFromRequest(r)
			if !ok {
				pkghttp.WriteUnauthorized(w, "authentication required")
				return
			}

			claims, err := tm.ValidateToken(tokenString)
			if err != nil {
				pkghttp.WriteUnauthorized(w, "invalid or expired session")
				return
			}

			ctx := context.WithValue(r.Context(), SessionContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func tokenFromRequest(r *http.Request) (string, bool) {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			return "", false
		}
		return parts[1], true
	}
	if token, err := GetSessionCookie(r); err == nil && token != "" {
		return token, true
	}
	return "", false
}

// GetSessionFromContext extracts session claims from request context
func GetSessionFromContext(r *http.Request) *models.SessionClaims {
	claims, ok := r.Context().Value(SessionContextKey).(*models.SessionClaims)
	if !ok {
		return nil
	}
	return claims
}

// WithSession returns a copy of ctx carrying claims
func WithSession(ctx context.Context, claims *models.SessionClaims) context.Context {
	return context.WithValue(ctx, SessionContextKey, claims)
}

// OperatorFromContext returns the signed-in operator, or "" when there is none
func OperatorFromContext(ctx context.Context) string {
	if claims, ok := ctx.Value(SessionContextKey).(*models.SessionClaims); ok {
		return claims.Operator
	}
	return ""
}
