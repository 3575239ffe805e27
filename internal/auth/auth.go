// Searchd - Real-time search service for the Sonet social platform
// Copyright 2026 Sonet contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sonet-social/searchd

// Package auth validates bearer tokens for the search surface. Missing or
// invalid tokens degrade to an anonymous principal with public-search
// permission only; they are never an error by themselves.
package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/sonet-social/searchd/internal/cache"
	"github.com/sonet-social/searchd/internal/config"
	"github.com/sonet-social/searchd/internal/ratelimit"
)

// PermissionPublicSearch is the only permission anonymous principals
// hold.
const PermissionPublicSearch = "public_search"

// maxCacheTTL caps how long a positive validation may be reused.
const maxCacheTTL = 60 * time.Second

// Principal is the outcome of validating one request's credentials.
type Principal struct {
	Authenticated bool
	UserID        string
	Tier          ratelimit.Tier
	Permissions   []string
}

// Anonymous is the principal for requests without valid credentials.
func Anonymous() Principal {
	return Principal{
		Tier:        ratelimit.TierAnonymous,
		Permissions: []string{PermissionPublicSearch},
	}
}

// HasPermission reports whether the principal holds the permission.
func (p *Principal) HasPermission(perm string) bool {
	for _, have := range p.Permissions {
		if have == perm {
			return true
		}
	}
	return false
}

// RateLimitKey is the bucket key for this principal: the user id when
// authenticated, else the client IP.
func (p *Principal) RateLimitKey(clientIP string) string {
	if p.Authenticated {
		return "user:" + p.UserID
	}
	return "ip:" + clientIP
}

// claims is the identity service's token payload.
type claims struct {
	Tier        string   `json:"tier"`
	Permissions []string `json:"permissions"`
	jwt.RegisteredClaims
}

// Gate validates bearer tokens, caching positive results briefly so the
// hot path skips signature verification.
type Gate struct {
	secret []byte
	ttl    time.Duration
	cache  *cache.LRU[Principal]
}

// NewGate builds the auth gate.
func NewGate(cfg config.AuthConfig) *Gate {
	ttl := cfg.CacheTTL
	if ttl <= 0 || ttl > maxCacheTTL {
		ttl = maxCacheTTL
	}
	return &Gate{
		secret: []byte(cfg.JWTSecret),
		ttl:    ttl,
		cache:  cache.NewLRU[Principal](10000, ttl),
	}
}

// Validate resolves an Authorization header value to a principal. Any
// failure mode returns the anonymous principal.
func (g *Gate) Validate(authorization string) Principal {
	token, ok := bearerToken(authorization)
	if !ok {
		return Anonymous()
	}

	// The cache key is a digest, not the raw token, so credential material
	// never sits in cache memory.
	cacheKey := tokenDigest(token)
	if p, ok := g.cache.Get(cacheKey); ok {
		return p
	}

	p, ok := g.verify(token)
	if !ok {
		return Anonymous()
	}
	g.cache.Put(cacheKey, p)
	return p
}

// verify checks the token signature and claims.
func (g *Gate) verify(token string) (Principal, bool) {
	var c claims
	parsed, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return g.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !parsed.Valid || c.Subject == "" {
		return Principal{}, false
	}

	tier := ratelimit.TierAuthenticated
	if c.Tier == string(ratelimit.TierVerified) {
		tier = ratelimit.TierVerified
	}

	perms := c.Permissions
	if len(perms) == 0 {
		perms = []string{PermissionPublicSearch}
	}

	return Principal{
		Authenticated: true,
		UserID:        c.Subject,
		Tier:          tier,
		Permissions:   perms,
	}, true
}

// CleanupExpired drops stale cache entries; called from the orchestrator
// sweep.
func (g *Gate) CleanupExpired() int {
	return g.cache.CleanupExpired()
}

// bearerToken extracts the token from "Bearer <token>".
func bearerToken(authorization string) (string, bool) {
	if authorization == "" {
		return "", false
	}
	scheme, token, found := strings.Cut(authorization, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}

func tokenDigest(token string) string {
	return fmt.Sprintf("tok:%x", xxhash.Sum64String(token))
}
