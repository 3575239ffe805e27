// Searchd - Real-time search service for the Sonet social platform
// Copyright 2026 Sonet contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sonet-social/searchd

// Package controller implements the search RPC surface. Every operation
// runs the same gauntlet: authenticate, authorize, rate limit, consult
// the response cache, execute, post-process, record metrics. The
// controller owns the response cache, the trending counters, the
// suggestion trie and the slow-query ring.
package controller

import (
	"context"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/sonet-social/searchd/internal/auth"
	"github.com/sonet-social/searchd/internal/backend"
	"github.com/sonet-social/searchd/internal/cache"
	"github.com/sonet-social/searchd/internal/config"
	"github.com/sonet-social/searchd/internal/query"
	"github.com/sonet-social/searchd/internal/ratelimit"
)

// Error codes carried in failure envelopes.
const (
	CodeAuthRequired       = "AUTHENTICATION_REQUIRED"
	CodeRateLimited        = "RATE_LIMIT_EXCEEDED"
	CodeInvalidQuery       = "INVALID_QUERY"
	CodeBackendUnavailable = "BACKEND_UNAVAILABLE"
	CodeTimeout            = "TIMEOUT"
	CodeInternal           = "INTERNAL"
)

const (
	// slowQueryCap bounds the slow-query ring.
	slowQueryCap = 100

	// trendingRefresh is how long a trending snapshot is served before the
	// counters are consulted again.
	trendingRefresh = 5 * time.Minute

	// minPrefixLen is the shortest prefix suggestions answer for.
	minPrefixLen = 2
)

// Searcher is the slice of the backend client the controller needs.
type Searcher interface {
	Search(ctx context.Context, indices []string, queryDoc map[string]any, params backend.SearchParams) (json.RawMessage, error)
	IndexName(logical string) string
}

// Request is the per-call context extracted at the transport edge.
type Request struct {
	RequestID     string
	ClientIP      string
	Authorization string
	SessionID     string
	Language      string
	Referer       string
	UserAgent     string
}

// Response is the uniform RPC envelope.
type Response struct {
	Success   bool      `json:"success"`
	RequestID string    `json:"request_id"`
	TookMS    int64     `json:"took_ms"`
	Cached    bool      `json:"cached"`
	Data      any       `json:"data,omitempty"`
	ErrorCode string    `json:"error_code,omitempty"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// SlowQuery is one entry in the slow-query ring.
type SlowQuery struct {
	RequestID string        `json:"request_id"`
	Text      string        `json:"text"`
	Type      query.Type    `json:"type"`
	Took      time.Duration `json:"took"`
	UserAgent string        `json:"user_agent,omitempty"`
	At        time.Time     `json:"at"`
}

// trendingSnapshot is a cached top-N list.
type trendingSnapshot struct {
	entries     []cache.TermCount
	refreshedAt time.Time
}

// Controller is the search RPC surface.
type Controller struct {
	search  Searcher
	gate    *auth.Gate
	limiter *ratelimit.Limiter

	cacheEnabled bool
	respCache    *cache.LRU[*Response]

	hashtagTrends *cache.TrendingCounter
	userTrends    *cache.TrendingCounter
	suggestions   *cache.SuggestionTrie

	trendMu       sync.Mutex
	hashtagSnap   trendingSnapshot
	userTrendSnap trendingSnapshot

	slowMu      sync.Mutex
	slowQueries []SlowQuery

	slowThreshold   time.Duration
	personalization bool
	trendingEnabled bool
}

// New builds the controller.
func New(cfg *config.Config, search Searcher, gate *auth.Gate, limiter *ratelimit.Limiter) *Controller {
	return &Controller{
		search:          search,
		gate:            gate,
		limiter:         limiter,
		cacheEnabled:    cfg.Cache.Enabled,
		respCache:       cache.NewLRU[*Response](cfg.Cache.MaxSize, cfg.Cache.TTL),
		hashtagTrends:   cache.NewTrendingCounter(24*time.Hour, 24, 100000),
		userTrends:      cache.NewTrendingCounter(24*time.Hour, 24, 100000),
		suggestions:     cache.NewSuggestionTrie(),
		slowThreshold:   cfg.SlowQueryThreshold,
		personalization: cfg.Features.Personalization,
		trendingEnabled: cfg.Features.Trending,
	}
}

// ObserveHashtag feeds one hashtag occurrence into the trending window.
// Called from the ingest path for every indexed note.
func (c *Controller) ObserveHashtag(tag string) {
	c.hashtagTrends.Observe(tag)
	c.suggestions.Add("#" + tag)
}

// ObserveUser feeds one user-activity event into the trending window.
func (c *Controller) ObserveUser(username string) {
	c.userTrends.Observe(username)
}

// RecordQueryTerm makes a successful query's text available to the
// suggestion surface.
func (c *Controller) RecordQueryTerm(text string) {
	if len(text) >= minPrefixLen && len(text) <= 64 {
		c.suggestions.Add(text)
	}
}

// SlowQueries returns a copy of the slow-query ring, newest last.
func (c *Controller) SlowQueries() []SlowQuery {
	c.slowMu.Lock()
	defer c.slowMu.Unlock()
	out := make([]SlowQuery, len(c.slowQueries))
	copy(out, c.slowQueries)
	return out
}

// CacheStats reports response-cache efficiency for the health surface.
func (c *Controller) CacheStats() (hits, misses int64, size int) {
	return c.respCache.Stats()
}

// Sweep drops expired cache entries; called from the orchestrator's
// maintenance ticker.
func (c *Controller) Sweep() int {
	return c.respCache.CleanupExpired() + c.gate.CleanupExpired()
}

// recordSlow appends to the slow-query ring, trimming the oldest entry
// when full.
func (c *Controller) recordSlow(sq SlowQuery) {
	c.slowMu.Lock()
	defer c.slowMu.Unlock()
	c.slowQueries = append(c.slowQueries, sq)
	if len(c.slowQueries) > slowQueryCap {
		c.slowQueries = c.slowQueries[len(c.slowQueries)-slowQueryCap:]
	}
}

// envelope builders

func (c *Controller) ok(req Request, started time.Time, cached bool, data any) *Response {
	return &Response{
		Success:   true,
		RequestID: req.RequestID,
		TookMS:    time.Since(started).Milliseconds(),
		Cached:    cached,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}
}

func (c *Controller) fail(req Request, started time.Time, code, message string) *Response {
	return &Response{
		RequestID: req.RequestID,
		TookMS:    time.Since(started).Milliseconds(),
		ErrorCode: code,
		Message:   message,
		Timestamp: time.Now().UTC(),
	}
}

// admit runs the authenticate/authorize/rate-limit prologue shared by
// every RPC. A nil response means the request may proceed.
func (c *Controller) admit(req Request, started time.Time) (auth.Principal, *Response) {
	principal := c.gate.Validate(req.Authorization)
	if !principal.HasPermission(auth.PermissionPublicSearch) {
		return principal, c.fail(req, started, CodeAuthRequired, "search permission required")
	}
	if !c.limiter.Allow(principal.RateLimitKey(req.ClientIP), principal.Tier) {
		return principal, c.fail(req, started, CodeRateLimited, "rate limit exceeded, slow down")
	}
	return principal, nil
}
