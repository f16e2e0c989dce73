package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math"
	"math/big"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/alumbrados-dev/Concessions-Connection-sub000/app/models"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/app/repositories"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/apperr"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/auth"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/logger"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/metrics"
)

// CodeMailer delivers a verification code.
type CodeMailer interface {
	SendVerificationCode(ctx context.Context, to, code string, ttl time.Duration) error
}

// VerificationStore is the slice of the store the gate needs.
type VerificationStore interface {
	repositories.VerificationStore
	repositories.UserStore
}

type VerificationOptions struct {
	// TTL of a challenge. Default 10 minutes.
	TTL time.Duration
	// HashCost is the bcrypt cost for stored codes. Default bcrypt.DefaultCost.
	HashCost int
	Now      func() time.Time
	// Codes generates a challenge code. Default six random digits.
	Codes func() (string, error)
}

// VerificationService exchanges a one-time email code for a bearer token.
type VerificationService struct {
	store  VerificationStore
	tokens TokenIssuer
	mailer CodeMailer
	guard  *AdminGuard
	opts   VerificationOptions
}

func NewVerificationService(store VerificationStore, tokens TokenIssuer, mailer CodeMailer, guard *AdminGuard, opts VerificationOptions) *VerificationService {
	if opts.TTL <= 0 {
		opts.TTL = 10 * time.Minute
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Codes == nil {
		opts.Codes = randomCode
	}
	return &VerificationService{store: store, tokens: tokens, mailer: mailer, guard: guard, opts: opts}
}

// VerificationAck is returned once a code has been sent.
type VerificationAck struct {
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// VerifiedUser is the result of a successful code check.
type VerifiedUser struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

// RequestVerification sends a fresh code to email. Only one unexpired,
// unverified challenge may exist per address.
func (s *VerificationService) RequestVerification(ctx context.Context, email string) (VerificationAck, error) {
	email = NormalizeEmail(email)
	log := logger.WithCtx(ctx).With("email", MaskEmail(email))

	if s.guard != nil && s.guard.IsAdminEmail(email) {
		log.Warn("verification: admin address refused")
		return VerificationAck{}, apperr.New(apperr.KindForbidden, apperr.CodeAdminSelfService,
			"this address cannot sign in with an email code")
	}

	now := s.opts.Now()
	if n, err := s.store.PurgeExpiredVerifications(ctx, now); err != nil {
		log.Warn("verification: purge failed", "error", err)
	} else if n > 0 {
		log.Debug("verification: purged expired challenges", "count", n)
	}

	pending, err := s.store.PendingVerification(ctx, email, now)
	switch {
	case err == nil:
		wait := int(math.Ceil(pending.ExpiresAt.Sub(now).Seconds()))
		return VerificationAck{}, apperr.New(apperr.KindRateLimited, apperr.CodeVerificationPending,
			"a code was already sent; request a new one after it expires").With("retryAfter", wait)
	case !errors.Is(err, repositories.ErrNotFound):
		return VerificationAck{}, apperr.Internal(err)
	}

	code, err := s.opts.Codes()
	if err != nil {
		return VerificationAck{}, apperr.Internal(fmt.Errorf("generate code: %w", err))
	}
	hash, err := auth.HashSecret(code, s.opts.HashCost)
	if err != nil {
		return VerificationAck{}, apperr.Internal(fmt.Errorf("hash code: %w", err))
	}

	v := models.EmailVerification{Email: email, CodeHash: hash, ExpiresAt: now.Add(s.opts.TTL)}
	if err := s.store.CreateVerification(ctx, &v); err != nil {
		return VerificationAck{}, apperr.Internal(err)
	}

	if err := s.mailer.SendVerificationCode(ctx, email, code, s.opts.TTL); err != nil {
		// Drop the challenge so the caller can ask again straight away.
		if derr := s.store.DeleteVerification(context.WithoutCancel(ctx), v.ID); derr != nil {
			log.Error("verification: cleanup after failed send", "error", derr)
		}
		log.Error("verification: send failed", "error", err)
		return VerificationAck{}, apperr.New(apperr.KindServiceUnavailable, apperr.CodeEmailDeliveryFailed,
			"could not send verification email").Wrap(err)
	}

	metrics.RecordVerification("sent")
	log.Info("verification: code sent", "verification_id", v.ID)
	return VerificationAck{Email: MaskEmail(email), ExpiresAt: v.ExpiresAt}, nil
}

// VerifyCode checks code against the newest challenge for email. Every
// check that reaches the comparison consumes an attempt, right or wrong.
func (s *VerificationService) VerifyCode(ctx context.Context, email, code string) (VerifiedUser, error) {
	email = NormalizeEmail(email)
	log := logger.WithCtx(ctx).With("email", MaskEmail(email))

	v, err := s.store.LatestVerification(ctx, email)
	if errors.Is(err, repositories.ErrNotFound) {
		return VerifiedUser{}, apperr.New(apperr.KindNotFound, apperr.CodeVerificationNotFound,
			"no pending verification for this email")
	}
	if err != nil {
		return VerifiedUser{}, apperr.Internal(err)
	}

	if now := s.opts.Now(); !v.Active(now) {
		switch {
		case v.Verified:
			return VerifiedUser{}, apperr.New(apperr.KindConflict, apperr.CodeAlreadyVerified, "code already used")
		case v.Expired(now):
			metrics.RecordVerification("expired")
			return VerifiedUser{}, apperr.New(apperr.KindValidation, apperr.CodeCodeExpired, "code expired")
		default:
			metrics.RecordVerification("exhausted")
			return VerifiedUser{}, tooManyAttempts(v.ExpiresAt)
		}
	}

	attempts, err := s.store.IncrementAttempts(ctx, v.ID, models.MaxVerificationAttempts)
	if errors.Is(err, repositories.ErrAttemptsExhausted) {
		metrics.RecordVerification("exhausted")
		return VerifiedUser{}, tooManyAttempts(v.ExpiresAt)
	}
	if err != nil {
		return VerifiedUser{}, apperr.Internal(err)
	}

	if !auth.CheckSecret(v.CodeHash, strings.TrimSpace(code)) {
		metrics.RecordVerification("invalid")
		remaining := models.MaxVerificationAttempts - attempts
		log.Info("verification: wrong code", "attempts", attempts)
		return VerifiedUser{}, apperr.New(apperr.KindValidation, apperr.CodeInvalidCode, "invalid code").
			With("attemptsRemaining", remaining)
	}

	if err := s.store.MarkVerified(ctx, v.ID); err != nil {
		if errors.Is(err, repositories.ErrStaleStatus) {
			return VerifiedUser{}, apperr.New(apperr.KindConflict, apperr.CodeAlreadyVerified, "code already used")
		}
		return VerifiedUser{}, apperr.Internal(err)
	}

	user, err := s.findOrCreateUser(ctx, email)
	if err != nil {
		return VerifiedUser{}, apperr.Internal(err)
	}

	token, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		return VerifiedUser{}, apperr.Internal(err)
	}

	metrics.RecordVerification("verified")
	log.Info("verification: email verified", "user_id", user.ID)
	return VerifiedUser{Token: token, User: user}, nil
}

// PurgeExpired removes challenges past their expiry. Run on a schedule.
func (s *VerificationService) PurgeExpired(ctx context.Context) error {
	n, err := s.store.PurgeExpiredVerifications(ctx, s.opts.Now())
	if err != nil {
		return err
	}
	if n > 0 {
		logger.WithCtx(ctx).Info("verification: purged expired challenges", "count", n)
	}
	return nil
}

func (s *VerificationService) findOrCreateUser(ctx context.Context, email string) (models.User, error) {
	u, err := s.store.FindUserByEmail(ctx, email)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, repositories.ErrNotFound) {
		return models.User{}, err
	}

	u = models.User{Email: email, Role: models.RoleCustomer}
	err = s.store.CreateUser(ctx, &u)
	if errors.Is(err, repositories.ErrDuplicate) {
		return s.store.FindUserByEmail(ctx, email)
	}
	return u, err
}

// tooManyAttempts reports when the exhausted challenge expires. No new code
// can be requested before then.
func tooManyAttempts(expiresAt time.Time) *apperr.Error {
	return apperr.New(apperr.KindValidation, apperr.CodeTooManyAttempts,
		"too many attempts; request a new code after this one expires").
		With("attemptsRemaining", 0).
		With("expiresAt", expiresAt)
}

func randomCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// MaskEmail keeps the first character of the local part: a***@b.com.
func MaskEmail(email string) string {
	local, domain, ok := strings.Cut(email, "@")
	if !ok || local == "" {
		return "***"
	}
	_, size := utf8.DecodeRuneInString(local)
	return local[:size] + "***@" + domain
}
