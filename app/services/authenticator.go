package services

import (
	"context"
	"errors"
	"strings"

	"github.com/alumbrados-dev/Concessions-Connection-sub000/app/models"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/app/repositories"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/apperr"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/auth"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/middleware"
)

// TokenVerifier checks a bearer token.
type TokenVerifier interface {
	Verify(token string) (auth.Identity, error)
}

// TokenIssuer mints a bearer token.
type TokenIssuer interface {
	Issue(userID uint, email string) (string, error)
}

// Authenticator turns a bearer token into the current user record. A token
// whose email no longer matches the user is rejected, so changing a user's
// email revokes every token minted before the change.
type Authenticator struct {
	tokens TokenVerifier
	users  repositories.UserStore
}

func NewAuthenticator(tokens TokenVerifier, users repositories.UserStore) *Authenticator {
	return &Authenticator{tokens: tokens, users: users}
}

// Resolve verifies token and loads its user.
func (a *Authenticator) Resolve(ctx context.Context, token string) (models.User, error) {
	if token == "" {
		return models.User{}, apperr.ErrUnauthenticated
	}

	id, err := a.tokens.Verify(token)
	if err != nil {
		return models.User{}, apperr.ErrInvalidToken
	}

	user, err := a.users.FindUserByID(ctx, id.UserID)
	if errors.Is(err, repositories.ErrNotFound) {
		return models.User{}, apperr.ErrInvalidToken
	}
	if err != nil {
		return models.User{}, apperr.Internal(err)
	}

	if !strings.EqualFold(user.Email, id.Email) {
		return models.User{}, apperr.ErrTokenEmailMismatch
	}
	return user, nil
}

// Principal adapts Resolve to middleware.AuthFunc.
func (a *Authenticator) Principal(ctx context.Context, token string) (middleware.Principal, error) {
	u, err := a.Resolve(ctx, token)
	if err != nil {
		return middleware.Principal{}, err
	}
	return principalOf(u), nil
}

func principalOf(u models.User) middleware.Principal {
	return middleware.Principal{UserID: u.ID, Email: u.Email, Role: u.Role}
}

// NormalizeEmail lowercases and trims an address for lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
