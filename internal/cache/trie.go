// Searchd - Real-time search service for the Sonet social platform
// Copyright 2026 Sonet contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sonet-social/searchd

package cache

import (
	"sort"
	"strings"
	"sync"
)

// trieNode is a node in the suggestion trie.
type trieNode struct {
	children map[rune]*trieNode
	isEnd    bool
	value    string // original casing of the complete term
	weight   int64  // accumulated frequency, drives suggestion ranking
}

// SuggestionTrie is a thread-safe prefix tree holding autocomplete terms
// weighted by observed frequency. Lookups are O(m) in the prefix length.
// Matching is case-insensitive; the original casing of the most recent
// insert is preserved in results.
type SuggestionTrie struct {
	mu   sync.RWMutex
	root *trieNode
	size int
}

// Suggestion is one autocomplete candidate.
type Suggestion struct {
	Term   string
	Weight int64
}

// NewSuggestionTrie creates an empty suggestion trie.
func NewSuggestionTrie() *SuggestionTrie {
	return &SuggestionTrie{root: newTrieNode()}
}

func newTrieNode() *trieNode {
	return &trieNode{children: make(map[rune]*trieNode)}
}

// Add records one occurrence of term, creating it if needed.
func (t *SuggestionTrie) Add(term string) {
	t.AddWeighted(term, 1)
}

// AddWeighted records weight occurrences of term. Weight may be negative to
// decay a term; a term whose weight drops to zero or below is kept but ranks
// last.
func (t *SuggestionTrie) AddWeighted(term string, weight int64) {
	if term == "" {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	node := t.root
	for _, ch := range strings.ToLower(term) {
		child := node.children[ch]
		if child == nil {
			child = newTrieNode()
			node.children[ch] = child
		}
		node = child
	}

	if !node.isEnd {
		node.isEnd = true
		t.size++
	}
	node.value = term
	node.weight += weight
}

// Lookup returns up to limit terms starting with prefix, ordered by weight
// descending, ties alphabetical.
func (t *SuggestionTrie) Lookup(prefix string, limit int) []Suggestion {
	if limit <= 0 {
		limit = 10
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	node := t.root
	for _, ch := range strings.ToLower(prefix) {
		node = node.children[ch]
		if node == nil {
			return nil
		}
	}

	var results []Suggestion
	collect(node, &results)

	sort.Slice(results, func(i, j int) bool {
		if results[i].Weight != results[j].Weight {
			return results[i].Weight > results[j].Weight
		}
		return results[i].Term < results[j].Term
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

func collect(node *trieNode, out *[]Suggestion) {
	if node.isEnd {
		*out = append(*out, Suggestion{Term: node.value, Weight: node.weight})
	}
	for _, child := range node.children {
		collect(child, out)
	}
}

// Contains reports whether the exact term is present.
func (t *SuggestionTrie) Contains(term string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	node := t.root
	for _, ch := range strings.ToLower(term) {
		node = node.children[ch]
		if node == nil {
			return false
		}
	}
	return node.isEnd
}

// Size returns the number of distinct terms.
func (t *SuggestionTrie) Size() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.size
}

// Clear drops all terms.
func (t *SuggestionTrie) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.root = newTrieNode()
	t.size = 0
}
