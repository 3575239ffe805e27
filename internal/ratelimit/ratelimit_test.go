// Searchd - Real-time search service for the Sonet social platform
// Copyright 2026 Sonet contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sonet-social/searchd

package ratelimit

import (
	"testing"
	"time"

	"github.com/sonet-social/searchd/internal/config"
)

func testConfig() config.RateLimitConfig {
	return config.RateLimitConfig{
		Enabled:       true,
		Anonymous:     config.TierLimit{RPM: 60, Burst: 10},
		Authenticated: config.TierLimit{RPM: 300, Burst: 50},
		Verified:      config.TierLimit{RPM: 1000, Burst: 100},
	}
}

func TestAllow_BurstThenDeny(t *testing.T) {
	l := New(testConfig())

	allowed := 0
	for i := 0; i < 20; i++ {
		if l.Allow("ip:10.0.0.1", TierAnonymous) {
			allowed++
		}
	}
	// Anonymous burst is 10; the rest of the tight loop is denied.
	if allowed != 10 {
		t.Errorf("allowed %d requests, want burst of 10", allowed)
	}
}

func TestAllow_KeysAreIndependent(t *testing.T) {
	l := New(testConfig())

	for i := 0; i < 10; i++ {
		l.Allow("ip:10.0.0.1", TierAnonymous)
	}
	if !l.Allow("ip:10.0.0.2", TierAnonymous) {
		t.Error("exhausting one key throttled another")
	}
}

func TestAllow_TierGrantsLargerBurst(t *testing.T) {
	l := New(testConfig())

	allowed := 0
	for i := 0; i < 200; i++ {
		if l.Allow("user:v1", TierVerified) {
			allowed++
		}
	}
	if allowed != 100 {
		t.Errorf("verified burst = %d, want 100", allowed)
	}
}

func TestAllow_TierChangeRebuildsBucket(t *testing.T) {
	l := New(testConfig())

	for i := 0; i < 10; i++ {
		l.Allow("user:u1", TierAnonymous)
	}
	if l.Allow("user:u1", TierAnonymous) {
		t.Fatal("anonymous bucket not exhausted")
	}
	// Same key upgraded to a larger tier gets a fresh bucket.
	if !l.Allow("user:u1", TierAuthenticated) {
		t.Error("tier upgrade did not take effect")
	}
}

func TestSwapTable(t *testing.T) {
	l := New(testConfig())
	l.Allow("user:u1", TierAnonymous)

	tighter := testConfig()
	tighter.Anonymous = config.TierLimit{RPM: 6, Burst: 1}
	l.SwapTable(tighter)

	if !l.Allow("user:u1", TierAnonymous) {
		t.Fatal("first request after swap denied")
	}
	if l.Allow("user:u1", TierAnonymous) {
		t.Error("new burst of 1 not applied after swap")
	}
}

func TestSweep(t *testing.T) {
	l := New(testConfig())
	l.Allow("a", TierAnonymous)
	l.Allow("b", TierAnonymous)

	// Age one bucket past the idle window.
	l.mu.Lock()
	l.buckets["a"].lastSeen = time.Now().Add(-2 * time.Hour)
	l.mu.Unlock()

	if removed := l.Sweep(); removed != 1 {
		t.Errorf("Sweep removed %d, want 1", removed)
	}
	if l.Len() != 1 {
		t.Errorf("Len = %d after sweep", l.Len())
	}
}

func TestDisabledAlwaysAllows(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false
	l := New(cfg)

	for i := 0; i < 1000; i++ {
		if !l.Allow("anyone", TierAnonymous) {
			t.Fatal("disabled limiter denied a request")
		}
	}
}
