// Searchd - Real-time search service for the Sonet social platform
// Copyright 2026 Sonet contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sonet-social/searchd

package cache

import "strings"

// KeywordMatcher is an Aho-Corasick automaton over a fixed keyword set.
// It finds all keyword occurrences in a text in O(n + z) time, which beats
// per-keyword scans when the analyzer's pattern sets grow.
//
// The automaton is immutable once built: the analyzer compiles its spam,
// NSFW, topic and sentiment sets once at construction and shares the
// matchers across goroutines without locking.
type KeywordMatcher struct {
	root     *acNode
	keywords []keyword
}

type keyword struct {
	text string
	tag  string
}

type acNode struct {
	children map[rune]*acNode
	failure  *acNode
	output   []int
}

// KeywordMatch is one keyword occurrence.
type KeywordMatch struct {
	Keyword  string
	Tag      string
	Position int
}

// NewKeywordMatcher builds an automaton from tag -> keyword-list sets.
// Matching is case-insensitive.
func NewKeywordMatcher(sets map[string][]string) *KeywordMatcher {
	m := &KeywordMatcher{root: newACNode()}
	for tag, words := range sets {
		for _, w := range words {
			if w == "" {
				continue
			}
			m.keywords = append(m.keywords, keyword{text: strings.ToLower(w), tag: tag})
		}
	}
	m.build()
	return m
}

func newACNode() *acNode {
	return &acNode{children: make(map[rune]*acNode)}
}

// build constructs the trie and failure links (BFS).
func (m *KeywordMatcher) build() {
	for i, kw := range m.keywords {
		node := m.root
		for _, ch := range kw.text {
			child := node.children[ch]
			if child == nil {
				child = newACNode()
				node.children[ch] = child
			}
			node = child
		}
		node.output = append(node.output, i)
	}

	var queue []*acNode
	for _, child := range m.root.children {
		child.failure = m.root
		queue = append(queue, child)
	}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for ch, child := range current.children {
			queue = append(queue, child)

			fail := current.failure
			for fail != nil && fail.children[ch] == nil {
				fail = fail.failure
			}
			if fail == nil {
				child.failure = m.root
			} else {
				child.failure = fail.children[ch]
				child.output = append(child.output, child.failure.output...)
			}
		}
	}
}

// FindAll returns every keyword occurrence in text.
func (m *KeywordMatcher) FindAll(text string) []KeywordMatch {
	if len(m.keywords) == 0 {
		return nil
	}

	var matches []KeywordMatch
	node := m.root
	for i, ch := range strings.ToLower(text) {
		for node != nil && node.children[ch] == nil {
			node = node.failure
		}
		if node == nil {
			node = m.root
			continue
		}
		node = node.children[ch]

		for _, idx := range node.output {
			kw := m.keywords[idx]
			matches = append(matches, KeywordMatch{
				Keyword:  kw.text,
				Tag:      kw.tag,
				Position: i - len(kw.text) + 1,
			})
		}
	}
	return matches
}

// CountByTag returns per-tag counts of distinct matched keywords.
func (m *KeywordMatcher) CountByTag(text string) map[string]int {
	matches := m.FindAll(text)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(matches))
	counts := make(map[string]int)
	for _, match := range matches {
		key := match.Tag + "\x00" + match.Keyword
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		counts[match.Tag]++
	}
	return counts
}

// Matches reports whether any keyword occurs in text.
func (m *KeywordMatcher) Matches(text string) bool {
	if len(m.keywords) == 0 {
		return false
	}

	node := m.root
	for _, ch := range strings.ToLower(text) {
		for node != nil && node.children[ch] == nil {
			node = node.failure
		}
		if node == nil {
			node = m.root
			continue
		}
		node = node.children[ch]
		if len(node.output) > 0 {
			return true
		}
	}
	return false
}
