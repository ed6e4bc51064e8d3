package middleware

import (
	"net/http"

	"github.com/subremind/backend/internal/contextkeys"
	"github.com/subremind/backend/internal/domain"
	"github.com/subremind/backend/internal/handler"
)

// AdminOnly rejects requests whose account is not an admin.
// Must be used AFTER Auth, which puts the role in the context.
func AdminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		role, ok := r.Context().Value(contextkeys.AccountRole).(string)
		if !ok || role != domain.RoleAdmin {
			handler.Error(w, domain.ErrForbidden("forbidden: admin access required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
