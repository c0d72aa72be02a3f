package auth

import (
	"errors"
	"log"
	"net/http"

	"github.com/mind-engage/mindengage-qbank/internal/apperr"
	"github.com/mind-engage/mindengage-qbank/internal/rbac"
)

// AttachRole replaces the role claim with the role stored for the subject,
// so demoting a user takes effect before their token expires.
// allowClaimFallback=true in offline mode; false online.
func AttachRole(users UserStore, allowClaimFallback bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			sub := SubjectFromContext(ctx)
			claimRole := rbac.RoleFromContext(ctx) // set by JWTMiddleware

			u, err := users.FindByID(ctx, sub)
			switch {
			case err == nil && u.Role != "":
				next.ServeHTTP(w, r.WithContext(rbac.WithRole(ctx, u.Role)))
			case errors.Is(err, ErrUserNotFound):
				if allowClaimFallback && claimRole != "" {
					next.ServeHTTP(w, r)
					return
				}
				apperr.Write(w, apperr.New(apperr.KindUnauthorized, "unknown user"))
			default:
				if err != nil {
					log.Printf("auth: role lookup for %s: %v", sub, err)
				}
				if allowClaimFallback && claimRole != "" {
					next.ServeHTTP(w, r)
					return
				}
				apperr.Write(w, apperr.New(apperr.KindForbidden, "forbidden"))
			}
		})
	}
}
