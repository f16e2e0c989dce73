// Package auth issues and verifies the bearer tokens that bind a user id to
// the email it was minted for.
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/alumbrados-dev/Concessions-Connection-sub000/config"
)

// ErrInvalidToken covers every verification failure: bad signature, expiry,
// issuer or audience mismatch, malformed input. Callers must not tell them
// apart.
var ErrInvalidToken = errors.New("auth: invalid or expired token")

// Claims holds the typed JWT payload.
type Claims struct {
	UserID uint   `json:"userId"`
	Email  string `json:"email"`
	Nonce  string `json:"nonce"`
	jwt.RegisteredClaims
}

// Identity is what a verified token proves.
type Identity struct {
	UserID uint
	Email  string
}

// Options configures an Issuer.
type Options struct {
	Secret   string
	Issuer   string
	Audience string
	TTL      time.Duration
	Now      func() time.Time
}

// Issuer signs and verifies HS256 tokens.
type Issuer struct {
	secret   []byte
	issuer   string
	audience string
	ttl      time.Duration
	now      func() time.Time
}

// NewIssuer builds an Issuer. An empty secret is rejected.
func NewIssuer(opts Options) (*Issuer, error) {
	if opts.Secret == "" {
		return nil, errors.New("auth: signing secret is empty")
	}
	if opts.TTL <= 0 {
		opts.TTL = 7 * 24 * time.Hour
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Issuer{
		secret:   []byte(opts.Secret),
		issuer:   opts.Issuer,
		audience: opts.Audience,
		ttl:      opts.TTL,
		now:      opts.Now,
	}, nil
}

// FromConfig builds an Issuer from JWT_* settings.
func FromConfig() (*Issuer, error) {
	return NewIssuer(Options{
		Secret:   config.JWTSecret(),
		Issuer:   config.JWTIssuer(),
		Audience: config.JWTAudience(),
		TTL:      config.JWTTTL(),
	})
}

// Issue mints a token for userID and email.
func (i *Issuer) Issue(userID uint, email string) (string, error) {
	now := i.now()
	claims := Claims{
		UserID: userID,
		Email:  email,
		Nonce:  uuid.NewString(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(userID), 10),
			Issuer:    i.issuer,
			Audience:  jwt.ClaimStrings{i.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("auth: sign: %w", err)
	}
	return signed, nil
}

// Verify checks signature, expiry, issuer and audience.
func (i *Issuer) Verify(token string) (Identity, error) {
	if token == "" {
		return Identity{}, ErrInvalidToken
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.issuer),
		jwt.WithAudience(i.audience),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(i.now),
	)

	claims := &Claims{}
	parsed, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return i.secret, nil
	})
	if err != nil || !parsed.Valid {
		return Identity{}, ErrInvalidToken
	}
	if claims.UserID == 0 || claims.Email == "" || claims.Nonce == "" {
		return Identity{}, ErrInvalidToken
	}

	return Identity{UserID: claims.UserID, Email: claims.Email}, nil
}
