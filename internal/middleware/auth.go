package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/subremind/backend/internal/contextkeys"
	"github.com/subremind/backend/internal/domain"
	"github.com/subremind/backend/internal/handler"
)

// TokenVerifier checks a bearer token and returns its claims.
type TokenVerifier interface {
	VerifyToken(token string) (*domain.JWTClaims, error)
}

// Auth creates a JWT authentication middleware.
func Auth(verifier TokenVerifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				handler.Error(w, domain.ErrUnauthorized("no token provided"))
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				handler.Error(w, domain.ErrUnauthorized("invalid authorization header"))
				return
			}

			claims, err := verifier.VerifyToken(parts[1])
			if err != nil || claims.Sub == "" {
				handler.Error(w, domain.ErrUnauthorized("invalid or expired token"))
				return
			}

			ctx := context.WithValue(r.Context(), contextkeys.AccountID, claims.Sub)
			ctx = context.WithValue(ctx, contextkeys.AccountEmail, claims.Email)
			ctx = context.WithValue(ctx, contextkeys.AccountRole, claims.Role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
