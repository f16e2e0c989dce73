package controllers

import (
	"github.com/alumbrados-dev/Concessions-Connection-sub000/app/models"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/app/services"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/ctx"
)

// AuthController exchanges emailed codes for bearer tokens and exposes the
// caller's own account.
type AuthController struct {
	verify *services.VerificationService
	authn  *services.Authenticator
	users  *services.UserService
}

func NewAuthController(verify *services.VerificationService, authn *services.Authenticator, users *services.UserService) *AuthController {
	return &AuthController{verify: verify, authn: authn, users: users}
}

type requestVerificationInput struct {
	Email string `json:"email" validate:"required,email,max=255"`
}

type verifyEmailInput struct {
	Email string `json:"email" validate:"required,email,max=255"`
	Code  string `json:"code" validate:"required,len=6,numeric"`
}

type updateMeInput struct {
	PointsEnabled *bool `json:"pointsEnabled" validate:"required"`
}

// RequestVerification mails a one-time code.
func (a *AuthController) RequestVerification(c *ctx.Context) {
	var in requestVerificationInput
	if !c.BindJSON(&in) {
		return
	}
	ack, err := a.verify.RequestVerification(c.Context(), in.Email)
	if err != nil {
		c.Fail(err)
		return
	}
	c.Success(map[string]any{
		"success":   true,
		"message":   "Verification code sent",
		"email":     ack.Email,
		"expiresAt": ack.ExpiresAt,
	})
}

// VerifyEmail checks the code and returns a token.
func (a *AuthController) VerifyEmail(c *ctx.Context) {
	var in verifyEmailInput
	if !c.BindJSON(&in) {
		return
	}
	res, err := a.verify.VerifyCode(c.Context(), in.Email, in.Code)
	if err != nil {
		c.Fail(err)
		return
	}
	c.Success(map[string]any{
		"success": true,
		"token":   res.Token,
		"user":    res.User,
	})
}

// Verify returns the user behind the bearer token.
func (a *AuthController) Verify(c *ctx.Context) {
	u, err := a.authn.Resolve(c.Context(), c.BearerToken())
	if err != nil {
		c.Fail(err)
		return
	}
	c.Success(map[string]models.User{"user": u})
}

// UpdateMe lets a customer opt in or out of loyalty points.
func (a *AuthController) UpdateMe(c *ctx.Context) {
	var in updateMeInput
	if !c.BindJSON(&in) {
		return
	}
	u, err := a.users.SetPointsEnabled(c.Context(), c.Principal().UserID, *in.PointsEnabled)
	if err != nil {
		c.Fail(err)
		return
	}
	c.Success(map[string]models.User{"user": u})
}
