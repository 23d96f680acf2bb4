// Package jwtverifier issues and verifies HS256 bearer tokens.
package jwtverifier

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/househealth/househealth-api/internal/platform/config"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
)

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type Verifier struct {
	secret   []byte
	issuer   string
	audience string
	skew     time.Duration
	clock    Clock
}

func New(cfg config.AuthConfig) *Verifier {
	return NewWithClock(cfg, nil)
}

func NewWithClock(cfg config.AuthConfig, clock Clock) *Verifier {
	if clock == nil {
		clock = realClock{}
	}
	return &Verifier{
		secret:   []byte(cfg.JWTSecret),
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		skew:     cfg.ClockSkew,
		clock:    clock,
	}
}

// Verify checks the HS256 signature plus exp, nbf, iss and aud (when configured)
// and returns the `sub` claim.
func (v *Verifier) Verify(ctx context.Context, token string) (string, error) {
	_ = ctx
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.skew),
		jwt.WithTimeFunc(v.clock.Now),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil || claims.Subject == "" {
		return "", ErrUnauthorized
	}
	return claims.Subject, nil
}

// Issue signs a token for subject valid for ttl.
func (v *Verifier) Issue(subject string, ttl time.Duration) (string, error) {
	now := v.clock.Now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	if v.issuer != "" {
		claims.Issuer = v.issuer
	}
	if v.audience != "" {
		claims.Audience = jwt.ClaimStrings{v.audience}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
