package rbac

import (
	"net/http"

	"github.com/mind-engage/mindengage-qbank/internal/apperr"
)

var defaultChecker = NewChecker(nil)

// Require enforces a single permission.
func Require(perm string) func(http.Handler) http.Handler {
	return RequireAny(perm)
}

// RequireAny enforces that the role has at least one of the permissions.
func RequireAny(perms ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := RoleFromContext(r.Context())
			if role == "" || !defaultChecker.Any(role, perms...) {
				apperr.Write(w, apperr.New(apperr.KindForbidden, "forbidden"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
