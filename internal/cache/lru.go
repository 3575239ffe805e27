// Searchd - Real-time search service for the Sonet social platform
// Copyright 2026 Sonet contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sonet-social/searchd

// Package cache provides the in-process data structures searchd relies on:
// the TTL'd LRU response cache, the suggestion trie, the Aho-Corasick
// matcher used by the content analyzer, and sliding-window counters for
// trending computation.
package cache

import (
	"regexp"
	"sync"
	"time"
)

// lruEntry is a node in the LRU list.
type lruEntry[V any] struct {
	key        string
	value      V
	prev       *lruEntry[V]
	next       *lruEntry[V]
	expiresAt  time.Time
	lastAccess time.Time
}

// LRU is a thread-safe least-recently-used cache with per-entry TTL.
// Get, Put, Remove and eviction are all O(1); a doubly-linked list keeps
// recency order and a map provides lookup.
//
// Entries returned by Get are snapshots: the cache never mutates a value
// after handing it out, so readers may hold results without copying.
type LRU[V any] struct {
	mu sync.Mutex

	capacity   int
	defaultTTL time.Duration

	items map[string]*lruEntry[V]

	// head.next is most recently used; tail.prev is least recently used.
	head *lruEntry[V]
	tail *lruEntry[V]

	hits   int64
	misses int64
}

// NewLRU creates an LRU cache with the given capacity and default TTL.
func NewLRU[V any](capacity int, ttl time.Duration) *LRU[V] {
	if capacity <= 0 {
		capacity = 10000
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	c := &LRU[V]{
		capacity:   capacity,
		defaultTTL: ttl,
		items:      make(map[string]*lruEntry[V], capacity),
		head:       &lruEntry[V]{},
		tail:       &lruEntry[V]{},
	}
	c.head.next = c.tail
	c.tail.prev = c.head
	return c
}

// Get retrieves a value if present and unexpired, bumping its recency.
func (c *LRU[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	entry, ok := c.items[key]
	if !ok {
		c.misses++
		return zero, false
	}
	now := time.Now()
	if now.After(entry.expiresAt) {
		c.removeEntry(entry)
		c.misses++
		return zero, false
	}

	entry.lastAccess = now
	c.moveToFront(entry)
	c.hits++
	return entry.value, true
}

// Put inserts or replaces a value using the default TTL, evicting the LRU
// entry when at capacity.
func (c *LRU[V]) Put(key string, value V) {
	c.PutTTL(key, value, c.defaultTTL)
}

// PutTTL inserts or replaces a value with an explicit TTL.
func (c *LRU[V]) PutTTL(key string, value V, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if entry, ok := c.items[key]; ok {
		entry.value = value
		entry.expiresAt = now.Add(ttl)
		entry.lastAccess = now
		c.moveToFront(entry)
		return
	}

	entry := &lruEntry[V]{
		key:        key,
		value:      value,
		expiresAt:  now.Add(ttl),
		lastAccess: now,
	}
	c.addToFront(entry)
	c.items[key] = entry

	for len(c.items) > c.capacity {
		c.evictOldest()
	}
}

// Remove deletes a key. Returns true if it was present.
func (c *LRU[V]) Remove(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.items[key]; ok {
		c.removeEntry(entry)
		return true
	}
	return false
}

// Invalidate removes every key matching the pattern and returns the count.
func (c *LRU[V]) Invalidate(pattern *regexp.Regexp) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, entry := range c.items {
		if pattern.MatchString(key) {
			c.removeEntry(entry)
			removed++
		}
	}
	return removed
}

// CleanupExpired drops every expired entry; called by the owner's
// background sweep. Returns the number removed.
func (c *LRU[V]) CleanupExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	removed := 0
	for entry := c.tail.prev; entry != c.head; {
		prev := entry.prev
		if now.After(entry.expiresAt) {
			c.removeEntry(entry)
			removed++
		}
		entry = prev
	}
	return removed
}

// Len returns the live entry count.
func (c *LRU[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Clear drops all entries.
func (c *LRU[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*lruEntry[V], c.capacity)
	c.head.next = c.tail
	c.tail.prev = c.head
}

// Stats returns hit/miss counters and the current size.
func (c *LRU[V]) Stats() (hits, misses int64, size int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses, len(c.items)
}

// List management; callers hold c.mu.

func (c *LRU[V]) addToFront(entry *lruEntry[V]) {
	entry.prev = c.head
	entry.next = c.head.next
	c.head.next.prev = entry
	c.head.next = entry
}

func (c *LRU[V]) moveToFront(entry *lruEntry[V]) {
	entry.prev.next = entry.next
	entry.next.prev = entry.prev
	c.addToFront(entry)
}

func (c *LRU[V]) removeEntry(entry *lruEntry[V]) {
	entry.prev.next = entry.next
	entry.next.prev = entry.prev
	delete(c.items, entry.key)
}

func (c *LRU[V]) evictOldest() {
	oldest := c.tail.prev
	if oldest == c.head {
		return
	}
	c.removeEntry(oldest)
}
