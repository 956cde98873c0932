package middleware

import (
	"net/http"

	"github.com/showrunr/eventcrm-backend/api/responses"
	pkgerrors "github.com/showrunr/eventcrm-backend/pkg/errors"
	"github.com/showrunr/eventcrm-backend/pkg/logger"
)

// RequireRole rejects requests whose actor does not hold one of the roles.
func RequireRole(logg *logger.Logger, roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actual := RoleFromContext(r.Context())
			for _, role := range roles {
				if actual == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "role required"))
		})
	}
}
