package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/apperr"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/logger"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/response"
)

// Principal is the verified identity attached to an authenticated request.
type Principal struct {
	UserID uint
	Email  string
	Role   string
}

// AuthFunc resolves a bearer token into a Principal.
type AuthFunc func(ctx context.Context, token string) (Principal, error)

type principalKey struct{}

// WithPrincipal stores p in ctx.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromCtx returns the Principal set by Authenticate.
func PrincipalFromCtx(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

// UserIDFromCtx returns the authenticated user id.
func UserIDFromCtx(r *http.Request) (uint, bool) {
	p, ok := PrincipalFromCtx(r.Context())
	return p.UserID, ok
}

// BearerToken extracts the token from the Authorization header.
func BearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// Authenticate rejects requests whose bearer token does not resolve to a
// current user; otherwise the Principal is available downstream.
func Authenticate(resolve AuthFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r)
			if token == "" {
				response.Fail(w, apperr.ErrUnauthenticated)
				return
			}

			p, err := resolve(r.Context(), token)
			if err != nil {
				e := response.Fail(w, err)
				if e.Kind == apperr.KindInternal {
					logger.WithCtx(r.Context()).Error("authenticate", "error", e.Error())
				}
				return
			}

			ctx := WithPrincipal(r.Context(), p)
			ctx = logger.InjectLogger(ctx, logger.WithCtx(ctx).With("user_id", p.UserID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
