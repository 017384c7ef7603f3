package middleware

import (
	"net/http"

	"github.com/willy-peters/SmartPOS/api/responses"
	"github.com/willy-peters/SmartPOS/pkg/enums"
	pkgerrors "github.com/willy-peters/SmartPOS/pkg/errors"
	"github.com/willy-peters/SmartPOS/pkg/logger"
)

// RequireRole rejects requests whose authenticated identity does not carry
// the given role. Route-level coarse check; services still authorize
// per-operation.
func RequireRole(role enums.Role, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if IdentityFromContext(r.Context()).Role != role {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
