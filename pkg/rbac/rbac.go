// Package rbac gates privileged routes behind the admin guard.
package rbac

import (
	"context"
	"net/http"

	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/apperr"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/logger"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/middleware"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/response"
)

// AdminFunc resolves a bearer token into an admin Principal, failing with
// Unauthenticated for a bad token and Forbidden for a non-admin.
type AdminFunc func(ctx context.Context, token string) (middleware.Principal, error)

// RequireAdmin runs the full admin check on every request. It does not rely
// on an earlier Authenticate middleware.
func RequireAdmin(check AdminFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := middleware.BearerToken(r)
			if token == "" {
				response.Fail(w, apperr.ErrUnauthenticated)
				return
			}

			p, err := check(r.Context(), token)
			if err != nil {
				e := response.Fail(w, err)
				if e.Kind == apperr.KindForbidden {
					logger.WithCtx(r.Context()).Warn("admin access denied", "path", r.URL.Path)
				}
				return
			}

			ctx := middleware.WithPrincipal(r.Context(), p)
			ctx = logger.InjectLogger(ctx, logger.WithCtx(ctx).With("admin_id", p.UserID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
