// Searchd - Real-time search service for the Sonet social platform
// Copyright 2026 Sonet contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sonet-social/searchd

package cache

import (
	"sort"
	"sync"
	"time"
)

// SlidingWindowCounter counts events over a sliding time window using a
// circular bucket buffer. Increment is O(1); Count is O(buckets).
type SlidingWindowCounter struct {
	mu         sync.Mutex
	buckets    []int64
	bucketSize time.Duration
	numBuckets int
	current    int
	lastUpdate time.Time
}

// NewSlidingWindowCounter divides windowSize into numBuckets buckets.
func NewSlidingWindowCounter(windowSize time.Duration, numBuckets int) *SlidingWindowCounter {
	if numBuckets <= 0 {
		numBuckets = 10
	}
	if windowSize <= 0 {
		windowSize = 5 * time.Minute
	}
	return &SlidingWindowCounter{
		buckets:    make([]int64, numBuckets),
		bucketSize: windowSize / time.Duration(numBuckets),
		numBuckets: numBuckets,
		lastUpdate: time.Now(),
	}
}

// Increment adds delta to the current bucket.
func (sw *SlidingWindowCounter) Increment(delta int64) {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	sw.advance()
	sw.buckets[sw.current] += delta
}

// Count returns the window total.
func (sw *SlidingWindowCounter) Count() int64 {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	sw.advance()

	var total int64
	for _, n := range sw.buckets {
		total += n
	}
	return total
}

// advance rotates the ring forward, zeroing buckets that fell out of the
// window. Caller holds sw.mu.
func (sw *SlidingWindowCounter) advance() {
	now := time.Now()
	elapsed := now.Sub(sw.lastUpdate)
	if elapsed < sw.bucketSize {
		return
	}

	steps := int(elapsed / sw.bucketSize)
	if steps > sw.numBuckets {
		steps = sw.numBuckets
	}
	for i := 0; i < steps; i++ {
		sw.current = (sw.current + 1) % sw.numBuckets
		sw.buckets[sw.current] = 0
	}
	sw.lastUpdate = now
}

// TrendingCounter tracks per-term event counts over a sliding window and
// answers top-N queries. It backs the trending-hashtags and trending-users
// surfaces, fed by the ingest path.
type TrendingCounter struct {
	mu         sync.Mutex
	counters   map[string]*SlidingWindowCounter
	windowSize time.Duration
	numBuckets int
	maxTerms   int
}

// TermCount is one trending entry.
type TermCount struct {
	Term  string
	Count int64
}

// NewTrendingCounter creates a counter set bounded to maxTerms distinct
// terms; when full, zero-count terms are pruned before rejecting new ones.
func NewTrendingCounter(windowSize time.Duration, numBuckets, maxTerms int) *TrendingCounter {
	if maxTerms <= 0 {
		maxTerms = 100000
	}
	return &TrendingCounter{
		counters:   make(map[string]*SlidingWindowCounter),
		windowSize: windowSize,
		numBuckets: numBuckets,
		maxTerms:   maxTerms,
	}
}

// Observe records one occurrence of term.
func (tc *TrendingCounter) Observe(term string) {
	if term == "" {
		return
	}

	tc.mu.Lock()
	counter, ok := tc.counters[term]
	if !ok {
		if len(tc.counters) >= tc.maxTerms {
			tc.pruneLocked()
		}
		if len(tc.counters) >= tc.maxTerms {
			tc.mu.Unlock()
			return
		}
		counter = NewSlidingWindowCounter(tc.windowSize, tc.numBuckets)
		tc.counters[term] = counter
	}
	tc.mu.Unlock()

	counter.Increment(1)
}

// Top returns the n highest-count terms in the window, descending; ties
// break alphabetically for stable output.
func (tc *TrendingCounter) Top(n int) []TermCount {
	tc.mu.Lock()
	snapshot := make(map[string]*SlidingWindowCounter, len(tc.counters))
	for term, counter := range tc.counters {
		snapshot[term] = counter
	}
	tc.mu.Unlock()

	results := make([]TermCount, 0, len(snapshot))
	for term, counter := range snapshot {
		if count := counter.Count(); count > 0 {
			results = append(results, TermCount{Term: term, Count: count})
		}
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Count != results[j].Count {
			return results[i].Count > results[j].Count
		}
		return results[i].Term < results[j].Term
	})

	if len(results) > n {
		results = results[:n]
	}
	return results
}

// pruneLocked drops terms whose window has emptied. Caller holds tc.mu.
func (tc *TrendingCounter) pruneLocked() {
	for term, counter := range tc.counters {
		if counter.Count() == 0 {
			delete(tc.counters, term)
		}
	}
}
