package middleware

import (
	"net/http"
	"strings"

	"github.com/showrunr/eventcrm-backend/api/responses"
	pkgauth "github.com/showrunr/eventcrm-backend/pkg/auth"
	"github.com/showrunr/eventcrm-backend/pkg/config"
	pkgerrors "github.com/showrunr/eventcrm-backend/pkg/errors"
	"github.com/showrunr/eventcrm-backend/pkg/logger"
)

// Auth validates a bearer token and seeds the request context with the acting
// employee and role.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get("Authorization"))
			if raw == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			token := raw
			if strings.HasPrefix(strings.ToLower(token), "bearer ") {
				token = strings.TrimSpace(token[7:])
			}
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgauth.ParseAccessToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}
			if claims.EmployeeID == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing employee id"))
				return
			}
			if !claims.Role.IsValid() {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "unknown employee role"))
				return
			}

			ctx := WithEmployeeID(r.Context(), claims.EmployeeID)
			ctx = WithRole(ctx, string(claims.Role))

			if logg != nil {
				ctx = logg.WithFields(ctx, map[string]any{
					"employee_id": claims.EmployeeID,
					"actor_role":  string(claims.Role),
				})
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
