package seeders

import (
	"context"
	"errors"
	"strings"

	"github.com/alumbrados-dev/Concessions-Connection-sub000/app/models"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/app/repositories"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/config"
)

func init() {
	Register("admins", func(ctx context.Context, store repositories.Store) error {
		_, err := EnsureAdmins(ctx, store, config.AdminEmails())
		return err
	})
}

// EnsureAdmins creates or promotes a user for every allowlisted address.
// Admins never sign in with an email code, so this is how their accounts
// come to exist.
func EnsureAdmins(ctx context.Context, store repositories.UserStore, emails []string) ([]models.User, error) {
	out := make([]models.User, 0, len(emails))
	for _, email := range emails {
		email = strings.ToLower(strings.TrimSpace(email))
		if email == "" {
			continue
		}
		u, err := store.FindUserByEmail(ctx, email)
		switch {
		case errors.Is(err, repositories.ErrNotFound):
			u = models.User{Email: email, Role: models.RoleAdmin}
			if err := store.CreateUser(ctx, &u); err != nil {
				return out, err
			}
		case err != nil:
			return out, err
		case u.Role != models.RoleAdmin:
			u.Role = models.RoleAdmin
			if err := store.UpdateUser(ctx, &u); err != nil {
				return out, err
			}
		}
		out = append(out, u)
	}
	return out, nil
}
