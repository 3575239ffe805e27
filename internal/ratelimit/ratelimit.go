// Searchd - Real-time search service for the Sonet social platform
// Copyright 2026 Sonet contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sonet-social/searchd

// Package ratelimit holds the per-principal token buckets behind the
// search controller. Each key (user id, or client IP for anonymous
// requests) gets a bucket sized by the principal's tier; the tier table
// can be swapped live without dropping existing buckets.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/sonet-social/searchd/internal/config"
)

// Tier names a rate-limit class.
type Tier string

// Principal tiers.
const (
	TierAnonymous     Tier = "anonymous"
	TierAuthenticated Tier = "authenticated"
	TierVerified      Tier = "verified"
)

// idleEviction is how long a bucket may sit unused before the sweep drops
// it.
const idleEviction = time.Hour

type bucket struct {
	limiter  *rate.Limiter
	tier     Tier
	lastSeen time.Time
}

// Limiter is the tiered token-bucket limiter.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	table   map[Tier]config.TierLimit
	enabled bool
}

// New builds a limiter from configuration.
func New(cfg config.RateLimitConfig) *Limiter {
	return &Limiter{
		buckets: make(map[string]*bucket),
		table: map[Tier]config.TierLimit{
			TierAnonymous:     cfg.Anonymous,
			TierAuthenticated: cfg.Authenticated,
			TierVerified:      cfg.Verified,
		},
		enabled: cfg.Enabled,
	}
}

// Allow consumes one token from the key's bucket and reports whether the
// request may proceed. A key's first request creates its bucket; a tier
// change on a later request rebuilds it at the new rate.
func (l *Limiter) Allow(key string, tier Tier) bool {
	if !l.enabled {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	b, ok := l.buckets[key]
	if !ok || b.tier != tier {
		limit := l.table[tier]
		b = &bucket{
			limiter: rate.NewLimiter(rate.Limit(float64(limit.RPM)/60), limit.Burst),
			tier:    tier,
		}
		l.buckets[key] = b
	}
	b.lastSeen = now
	return b.limiter.Allow()
}

// SwapTable replaces the tier table. Existing buckets keep their old rate
// until their next tier check; new buckets use the new table.
func (l *Limiter) SwapTable(cfg config.RateLimitConfig) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.table = map[Tier]config.TierLimit{
		TierAnonymous:     cfg.Anonymous,
		TierAuthenticated: cfg.Authenticated,
		TierVerified:      cfg.Verified,
	}
	// Force a rebuild on next Allow so new limits take effect promptly.
	for _, b := range l.buckets {
		b.tier = Tier("stale:" + string(b.tier))
	}
}

// Sweep drops buckets unused for over an hour. Returns the number
// removed.
func (l *Limiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := time.Now().Add(-idleEviction)
	removed := 0
	for key, b := range l.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(l.buckets, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of live buckets.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
