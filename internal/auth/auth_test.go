// Searchd - Real-time search service for the Sonet social platform
// Copyright 2026 Sonet contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sonet-social/searchd

package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/sonet-social/searchd/internal/config"
	"github.com/sonet-social/searchd/internal/ratelimit"
)

const testSecret = "test-secret-0123456789"

func testGate() *Gate {
	return NewGate(config.AuthConfig{JWTSecret: testSecret, CacheTTL: 30 * time.Second})
}

func signToken(t *testing.T, secret string, c claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func validClaims(sub string) claims {
	return claims{
		Tier:        "authenticated",
		Permissions: []string{"public_search", "advanced_search"},
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
}

func TestValidate_MissingHeader(t *testing.T) {
	p := testGate().Validate("")
	if p.Authenticated {
		t.Fatal("empty header authenticated")
	}
	if !p.HasPermission(PermissionPublicSearch) {
		t.Error("anonymous principal lacks public_search")
	}
	if p.Tier != ratelimit.TierAnonymous {
		t.Errorf("tier = %q", p.Tier)
	}
}

func TestValidate_GoodToken(t *testing.T) {
	g := testGate()
	token := signToken(t, testSecret, validClaims("u42"))

	p := g.Validate("Bearer " + token)
	if !p.Authenticated || p.UserID != "u42" {
		t.Fatalf("principal = %+v", p)
	}
	if p.Tier != ratelimit.TierAuthenticated {
		t.Errorf("tier = %q", p.Tier)
	}
	if !p.HasPermission("advanced_search") {
		t.Error("permissions not carried from claims")
	}
}

func TestValidate_VerifiedTier(t *testing.T) {
	c := validClaims("u7")
	c.Tier = "verified"
	p := testGate().Validate("Bearer " + signToken(t, testSecret, c))
	if p.Tier != ratelimit.TierVerified {
		t.Errorf("tier = %q, want verified", p.Tier)
	}
}

func TestValidate_RejectsBadTokens(t *testing.T) {
	g := testGate()

	tests := []struct {
		name   string
		header string
	}{
		{"garbage token", "Bearer not.a.token"},
		{"wrong scheme", "Basic dXNlcjpwYXNz"},
		{"wrong secret", "Bearer " + signToken(t, "other-secret", validClaims("u1"))},
		{"no subject", "Bearer " + signToken(t, testSecret, validClaims(""))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if p := g.Validate(tt.header); p.Authenticated {
				t.Error("invalid credentials authenticated")
			}
		})
	}
}

func TestValidate_ExpiredToken(t *testing.T) {
	c := validClaims("u1")
	c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	if p := testGate().Validate("Bearer " + signToken(t, testSecret, c)); p.Authenticated {
		t.Error("expired token authenticated")
	}
}

func TestValidate_CachesPositiveResults(t *testing.T) {
	g := testGate()
	token := signToken(t, testSecret, validClaims("u1"))

	first := g.Validate("Bearer " + token)
	second := g.Validate("Bearer " + token)
	if !first.Authenticated || !second.Authenticated {
		t.Fatal("validation failed")
	}
	if g.cache.Len() != 1 {
		t.Errorf("cache len = %d, want 1", g.cache.Len())
	}
}

func TestRateLimitKey(t *testing.T) {
	authed := Principal{Authenticated: true, UserID: "u1"}
	if got := authed.RateLimitKey("10.0.0.1"); got != "user:u1" {
		t.Errorf("authed key = %q", got)
	}
	anon := Anonymous()
	if got := anon.RateLimitKey("10.0.0.1"); got != "ip:10.0.0.1" {
		t.Errorf("anon key = %q", got)
	}
}
