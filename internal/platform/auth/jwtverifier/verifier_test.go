package jwtverifier

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/househealth/househealth-api/internal/platform/config"
)

type fixedClock struct{ t time.Time }

func (c *fixedClock) Now() time.Time { return c.t }

func testConfig() config.AuthConfig {
	return config.AuthConfig{
		Mode:      "jwt",
		JWTSecret: "0123456789abcdef0123456789abcdef",
		Issuer:    "https://issuer.test",
		Audience:  "househealth-api",
		ClockSkew: 30 * time.Second,
	}
}

func TestVerify_RoundTrip(t *testing.T) {
	t.Parallel()

	clk := &fixedClock{t: time.Unix(1_700_000_000, 0)}
	v := NewWithClock(testConfig(), clk)
	tok, err := v.Issue("user-1", time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	sub, err := v.Verify(context.Background(), tok)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if sub != "user-1" {
		t.Fatalf("sub=%q", sub)
	}
}

func TestVerify_Rejects(t *testing.T) {
	t.Parallel()

	clk := &fixedClock{t: time.Unix(1_700_000_000, 0)}
	v := NewWithClock(testConfig(), clk)

	otherCfg := testConfig()
	otherCfg.JWTSecret = "ffffffffffffffffffffffffffffffff"
	wrongKey, _ := NewWithClock(otherCfg, clk).Issue("user-1", time.Hour)

	otherCfg = testConfig()
	otherCfg.Issuer = "https://evil.test"
	wrongIssuer, _ := NewWithClock(otherCfg, clk).Issue("user-1", time.Hour)

	otherCfg = testConfig()
	otherCfg.Audience = "someone-else"
	wrongAudience, _ := NewWithClock(otherCfg, clk).Issue("user-1", time.Hour)

	expired, _ := NewWithClock(testConfig(), &fixedClock{t: clk.t.Add(-2 * time.Hour)}).Issue("user-1", time.Hour)
	noSubject, _ := v.Issue("", time.Hour)

	noneAlg, _ := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   "user-1",
		Issuer:    "https://issuer.test",
		Audience:  jwt.ClaimStrings{"househealth-api"},
		ExpiresAt: jwt.NewNumericDate(clk.t.Add(time.Hour)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)

	cases := map[string]string{
		"garbage":        "not-a-jwt",
		"wrong key":      wrongKey,
		"wrong issuer":   wrongIssuer,
		"wrong audience": wrongAudience,
		"expired":        expired,
		"no subject":     noSubject,
		"alg none":       noneAlg,
	}
	for name, tok := range cases {
		if _, err := v.Verify(context.Background(), tok); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("%s: err=%v, want ErrUnauthorized", name, err)
		}
	}
}

func TestVerify_ClockSkew(t *testing.T) {
	t.Parallel()

	issuedAt := time.Unix(1_700_000_000, 0)
	tok, _ := NewWithClock(testConfig(), &fixedClock{t: issuedAt}).Issue("user-1", time.Minute)

	// 20s past expiry is inside the 30s leeway.
	v := NewWithClock(testConfig(), &fixedClock{t: issuedAt.Add(time.Minute + 20*time.Second)})
	if _, err := v.Verify(context.Background(), tok); err != nil {
		t.Fatalf("Verify within skew: %v", err)
	}
	v = NewWithClock(testConfig(), &fixedClock{t: issuedAt.Add(2 * time.Minute)})
	if _, err := v.Verify(context.Background(), tok); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("Verify past skew err=%v", err)
	}
}
