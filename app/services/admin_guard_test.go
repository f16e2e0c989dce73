package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alumbrados-dev/Concessions-Connection-sub000/app/models"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/app/services"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/apperr"
)

func TestRequireAdmin(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	_, adminTok := e.user(t, adminEmail)
	_, custTok := e.user(t, "a@b.com")

	u, err := e.guard.RequireAdmin(ctx, adminTok)
	require.NoError(t, err)
	assert.Equal(t, adminEmail, u.Email)

	_, err = e.guard.RequireAdmin(ctx, custTok)
	requireCode(t, err, apperr.KindForbidden, apperr.CodeForbidden)

	_, err = e.guard.RequireAdmin(ctx, "")
	requireCode(t, err, apperr.KindUnauthenticated, apperr.CodeUnauthenticated)
}

func TestAdminRoleAloneIsNotEnough(t *testing.T) {
	e := newEnv(t)
	u := models.User{Email: "promoted@b.com", Role: models.RoleAdmin}
	require.NoError(t, e.store.CreateUser(context.Background(), &u))
	tok, err := e.tokens.Issue(u.ID, u.Email)
	require.NoError(t, err)

	_, err = e.guard.RequireAdmin(context.Background(), tok)
	requireCode(t, err, apperr.KindForbidden, apperr.CodeForbidden)
}

func TestAdminLosesAccessWhenEmailChanges(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	admin, tok := e.user(t, adminEmail)

	other := "someone@else.com"
	_, err := e.users.Update(ctx, admin.ID, services.UserUpdate{Email: &other})
	require.NoError(t, err)

	_, err = e.guard.RequireAdmin(ctx, tok)
	requireCode(t, err, apperr.KindUnauthenticated, apperr.CodeTokenEmailMismatch)
}

func TestAdminPrincipal(t *testing.T) {
	e := newEnv(t)
	admin, tok := e.user(t, adminEmail)

	p, err := e.guard.Principal(context.Background(), tok)
	require.NoError(t, err)
	assert.Equal(t, admin.ID, p.UserID)
	assert.Equal(t, models.RoleAdmin, p.Role)
	assert.True(t, e.guard.IsAdminEmail("  OWNER@truck.test "))
}

func TestUpdateRejectsDuplicateEmail(t *testing.T) {
	e := newEnv(t)
	a, _ := e.user(t, "a@b.com")
	e.user(t, "b@b.com")

	taken := "B@b.com"
	_, err := e.users.Update(context.Background(), a.ID, services.UserUpdate{Email: &taken})
	requireCode(t, err, apperr.KindConflict, apperr.CodeValidation)
}
