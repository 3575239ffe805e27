// Searchd - Real-time search service for the Sonet social platform
// Copyright 2026 Sonet contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sonet-social/searchd

package cache

import (
	"testing"
	"time"
)

func TestSlidingWindowCounter_Count(t *testing.T) {
	sw := NewSlidingWindowCounter(time.Minute, 6)

	sw.Increment(3)
	sw.Increment(2)

	if got := sw.Count(); got != 5 {
		t.Errorf("Count = %d, want 5", got)
	}
}

func TestSlidingWindowCounter_Expiry(t *testing.T) {
	sw := NewSlidingWindowCounter(60*time.Millisecond, 3)

	sw.Increment(10)
	time.Sleep(90 * time.Millisecond)

	if got := sw.Count(); got != 0 {
		t.Errorf("Count after window = %d, want 0", got)
	}
}

func TestTrendingCounter_Top(t *testing.T) {
	tc := NewTrendingCounter(time.Minute, 6, 100)

	for i := 0; i < 5; i++ {
		tc.Observe("coffee")
	}
	for i := 0; i < 3; i++ {
		tc.Observe("tea")
	}
	tc.Observe("water")

	top := tc.Top(2)
	if len(top) != 2 {
		t.Fatalf("Top(2) returned %d entries", len(top))
	}
	if top[0].Term != "coffee" || top[0].Count != 5 {
		t.Errorf("top[0] = %+v, want coffee/5", top[0])
	}
	if top[1].Term != "tea" {
		t.Errorf("top[1] = %+v, want tea", top[1])
	}
}

func TestTrendingCounter_TieBreaksAlphabetical(t *testing.T) {
	tc := NewTrendingCounter(time.Minute, 6, 100)
	tc.Observe("zebra")
	tc.Observe("apple")

	top := tc.Top(5)
	if len(top) != 2 || top[0].Term != "apple" {
		t.Errorf("Top = %v, want alphabetical tie-break", top)
	}
}

func TestTrendingCounter_BoundedTerms(t *testing.T) {
	tc := NewTrendingCounter(time.Minute, 6, 2)
	tc.Observe("a")
	tc.Observe("b")
	tc.Observe("c") // rejected, no zero-count term to prune

	top := tc.Top(10)
	if len(top) != 2 {
		t.Errorf("expected 2 tracked terms, got %d", len(top))
	}
}
