// Searchd - Real-time search service for the Sonet social platform
// Copyright 2026 Sonet contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sonet-social/searchd

package controller

import (
	"context"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/sonet-social/searchd/internal/backend"
	"github.com/sonet-social/searchd/internal/cache"
	"github.com/sonet-social/searchd/internal/metrics"
	"github.com/sonet-social/searchd/internal/result"
)

// trendingMax bounds how many terms a snapshot holds; requests slice it.
const trendingMax = 100

// TrendingEntry is one trending term with its window count.
type TrendingEntry struct {
	Term  string `json:"term"`
	Count int64  `json:"count"`
}

// GetTrendingHashtags returns the hottest hashtags in the sliding window.
// Counts come from the in-process counters fed by the ingest path; when
// the counters are cold (fresh start), the hashtags index is consulted.
func (c *Controller) GetTrendingHashtags(ctx context.Context, req Request, limit int) *Response {
	started := time.Now()
	rpc := "trending_hashtags"

	_, denied := c.admit(req, started)
	if denied != nil {
		metrics.RecordRPC(rpc, outcomeFor(denied.ErrorCode), time.Since(started))
		return denied
	}
	if !c.trendingEnabled {
		metrics.RecordRPC(rpc, "success", time.Since(started))
		return c.ok(req, started, false, []TrendingEntry{})
	}

	limit = clampLimit(limit)
	entries := c.snapshotTop(&c.hashtagSnap, c.hashtagTrends, limit)
	if len(entries) == 0 {
		entries = c.trendingFromIndex(ctx, limit)
	}

	metrics.RecordRPC(rpc, "success", time.Since(started))
	return c.ok(req, started, false, entries)
}

// GetTrendingUsers returns the most active accounts in the window.
func (c *Controller) GetTrendingUsers(ctx context.Context, req Request, limit int) *Response {
	started := time.Now()
	rpc := "trending_users"

	_, denied := c.admit(req, started)
	if denied != nil {
		metrics.RecordRPC(rpc, outcomeFor(denied.ErrorCode), time.Since(started))
		return denied
	}
	if !c.trendingEnabled {
		metrics.RecordRPC(rpc, "success", time.Since(started))
		return c.ok(req, started, false, []TrendingEntry{})
	}

	entries := c.snapshotTop(&c.userTrendSnap, c.userTrends, clampLimit(limit))
	metrics.RecordRPC(rpc, "success", time.Since(started))
	return c.ok(req, started, false, entries)
}

// snapshotTop serves trending from a snapshot refreshed at most every
// trendingRefresh, so hot paths never walk the full counter map.
func (c *Controller) snapshotTop(snap *trendingSnapshot, counter *cache.TrendingCounter, limit int) []TrendingEntry {
	c.trendMu.Lock()
	if time.Since(snap.refreshedAt) >= trendingRefresh || snap.entries == nil {
		snap.entries = counter.Top(trendingMax)
		snap.refreshedAt = time.Now()
	}
	top := snap.entries
	c.trendMu.Unlock()

	if len(top) > limit {
		top = top[:limit]
	}
	out := make([]TrendingEntry, len(top))
	for i, tc := range top {
		out[i] = TrendingEntry{Term: tc.Term, Count: tc.Count}
	}
	return out
}

// trendingFromIndex is the cold-start fallback: the hashtags index keeps
// rolling 24h usage counts maintained by the ingest path.
func (c *Controller) trendingFromIndex(ctx context.Context, limit int) []TrendingEntry {
	queryDoc := map[string]any{
		"query": map[string]any{"match_all": map[string]any{}},
		"sort":  []any{map[string]any{"usage_24h": map[string]any{"order": "desc"}}},
		"size":  limit,
	}
	raw, err := c.search.Search(ctx, []string{c.search.IndexName(backend.IndexHashtags)}, queryDoc, backend.SearchParams{})
	if err != nil {
		return []TrendingEntry{}
	}
	decoded, err := result.Decode(raw, time.Now())
	if err != nil {
		return []TrendingEntry{}
	}

	out := make([]TrendingEntry, 0, len(decoded.Hashtags))
	for _, h := range decoded.Hashtags {
		out = append(out, TrendingEntry{Term: h.Tag, Count: h.Usage24h})
	}
	return out
}

// GetSuggestions returns typeahead candidates for a prefix from the
// in-process trie. Prefixes shorter than two characters are rejected as
// invalid; lookups are cached per two-character bucket and filtered down.
func (c *Controller) GetSuggestions(_ context.Context, req Request, prefix string, limit int) *Response {
	started := time.Now()
	rpc := "suggestions"

	_, denied := c.admit(req, started)
	if denied != nil {
		metrics.RecordRPC(rpc, outcomeFor(denied.ErrorCode), time.Since(started))
		return denied
	}

	prefix = strings.ToLower(strings.TrimSpace(prefix))
	if len([]rune(prefix)) < minPrefixLen {
		metrics.RecordRPC(rpc, "invalid", time.Since(started))
		return c.fail(req, started, CodeInvalidQuery, "prefix too short")
	}
	out := c.trieSuggestions(prefix, clampLimit(limit))
	metrics.RecordRPC(rpc, "success", time.Since(started))
	return c.ok(req, started, false, out)
}

// trieSuggestions walks the in-process trie. Lookups go through the
// two-character bucket so nearby prefixes share one walk, then filter to
// the full prefix.
func (c *Controller) trieSuggestions(prefix string, limit int) []result.Suggestion {
	runes := []rune(prefix)
	bucket := string(runes[:minPrefixLen])
	candidates := c.suggestions.Lookup(bucket, trendingMax)

	out := make([]result.Suggestion, 0, limit)
	for _, s := range candidates {
		if !strings.HasPrefix(strings.ToLower(s.Term), prefix) {
			continue
		}
		out = append(out, result.Suggestion{Text: s.Term, Kind: suggestionKind(s.Term), Weight: s.Weight})
		if len(out) == limit {
			break
		}
	}
	return out
}

// Autocomplete answers completion queries against the suggestions index,
// falling back to the in-process trie when the backend is unreachable.
func (c *Controller) Autocomplete(ctx context.Context, req Request, prefix string, limit int) *Response {
	started := time.Now()
	rpc := "autocomplete"

	_, denied := c.admit(req, started)
	if denied != nil {
		metrics.RecordRPC(rpc, outcomeFor(denied.ErrorCode), time.Since(started))
		return denied
	}

	prefix = strings.TrimSpace(prefix)
	if len([]rune(prefix)) < minPrefixLen {
		metrics.RecordRPC(rpc, "invalid", time.Since(started))
		return c.fail(req, started, CodeInvalidQuery, "prefix too short")
	}
	limit = clampLimit(limit)

	queryDoc := map[string]any{
		"suggest": map[string]any{
			"terms": map[string]any{
				"prefix": prefix,
				"completion": map[string]any{
					"field":           "suggest",
					"size":            limit,
					"skip_duplicates": true,
				},
			},
		},
	}
	raw, err := c.search.Search(ctx, []string{c.search.IndexName(backend.IndexSuggestions)}, queryDoc, backend.SearchParams{})
	if err != nil {
		// Degrade to the trie rather than failing typeahead outright.
		out := c.trieSuggestions(strings.ToLower(prefix), limit)
		metrics.RecordRPC(rpc, "success", time.Since(started))
		return c.ok(req, started, false, out)
	}

	out, err := decodeCompletions(raw, limit)
	if err != nil {
		metrics.RecordRPC(rpc, "failed", time.Since(started))
		return c.fail(req, started, CodeInternal, "malformed backend response")
	}

	metrics.RecordRPC(rpc, "success", time.Since(started))
	return c.ok(req, started, false, out)
}

// decodeCompletions extracts options from a completion-suggester reply.
func decodeCompletions(raw []byte, limit int) ([]result.Suggestion, error) {
	var resp struct {
		Suggest struct {
			Terms []struct {
				Options []struct {
					Text   string `json:"text"`
					Source struct {
						Kind   string `json:"kind"`
						Weight int64  `json:"weight"`
					} `json:"_source"`
				} `json:"options"`
			} `json:"terms"`
		} `json:"suggest"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, err
	}

	out := make([]result.Suggestion, 0, limit)
	for _, entry := range resp.Suggest.Terms {
		for _, opt := range entry.Options {
			out = append(out, result.Suggestion{
				Text:   opt.Text,
				Kind:   opt.Source.Kind,
				Weight: opt.Source.Weight,
			})
			if len(out) == limit {
				return out, nil
			}
		}
	}
	return out, nil
}

func suggestionKind(term string) string {
	switch {
	case strings.HasPrefix(term, "#"):
		return "hashtag"
	case strings.HasPrefix(term, "@"):
		return "user"
	default:
		return "query"
	}
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 10
	}
	if limit > 50 {
		return 50
	}
	return limit
}
