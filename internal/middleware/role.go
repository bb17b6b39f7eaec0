package middleware

import (
	"net/http"

	"marketplace/internal/apperr"
	"marketplace/internal/auth"
)

// RequireRole admits only actors holding one of roles. It must run after Auth.
func RequireRole(roles ...auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := ActorFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, codeUnauthorized, "unauthorized")
				return
			}
			for _, role := range roles {
				if actor.Is(role) {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeError(w, http.StatusForbidden, apperr.KindForbidden, "role "+string(actor.Role)+" may not access this resource")
		})
	}
}
