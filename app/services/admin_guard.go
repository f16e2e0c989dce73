package services

import (
	"context"

	"github.com/alumbrados-dev/Concessions-Connection-sub000/app/models"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/apperr"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/middleware"
)

// AdminGuard admits a request only when its token resolves to a current
// user whose email is on the configured allowlist.
type AdminGuard struct {
	auth  *Authenticator
	admin map[string]struct{}
}

func NewAdminGuard(a *Authenticator, adminEmails []string) *AdminGuard {
	admin := make(map[string]struct{}, len(adminEmails))
	for _, e := range adminEmails {
		if e = NormalizeEmail(e); e != "" {
			admin[e] = struct{}{}
		}
	}
	return &AdminGuard{auth: a, admin: admin}
}

// IsAdminEmail reports allowlist membership.
func (g *AdminGuard) IsAdminEmail(email string) bool {
	_, ok := g.admin[NormalizeEmail(email)]
	return ok
}

// RequireAdmin fails with Unauthenticated for a bad token and Forbidden for
// a valid non-admin identity.
func (g *AdminGuard) RequireAdmin(ctx context.Context, token string) (models.User, error) {
	u, err := g.auth.Resolve(ctx, token)
	if err != nil {
		return models.User{}, err
	}
	if !g.IsAdminEmail(u.Email) {
		return models.User{}, apperr.ErrForbidden
	}
	return u, nil
}

// Principal adapts RequireAdmin to rbac.AdminFunc.
func (g *AdminGuard) Principal(ctx context.Context, token string) (middleware.Principal, error) {
	u, err := g.RequireAdmin(ctx, token)
	if err != nil {
		return middleware.Principal{}, err
	}
	p := principalOf(u)
	p.Role = models.RoleAdmin
	return p, nil
}
