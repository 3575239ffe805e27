// Searchd - Real-time search service for the Sonet social platform
// Copyright 2026 Sonet contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sonet-social/searchd

package controller

import (
	"context"
	"errors"
	"time"

	"github.com/sonet-social/searchd/internal/backend"
	"github.com/sonet-social/searchd/internal/logging"
	"github.com/sonet-social/searchd/internal/metrics"
	"github.com/sonet-social/searchd/internal/query"
	"github.com/sonet-social/searchd/internal/result"
)

// SearchNotes executes a note search.
func (c *Controller) SearchNotes(ctx context.Context, req Request, q query.Query) *Response {
	if q.Type == "" || q.Type == query.TypeUsers {
		q.Type = query.TypeNotes
	}
	return c.executeSearch(ctx, req, q, "search_notes")
}

// SearchUsers executes a user search.
func (c *Controller) SearchUsers(ctx context.Context, req Request, q query.Query) *Response {
	q.Type = query.TypeUsers
	return c.executeSearch(ctx, req, q, "search_users")
}

// executeSearch is the shared search path: admit, validate, check the
// response cache, compile and run the query, decode and gate the hits.
func (c *Controller) executeSearch(ctx context.Context, req Request, q query.Query, rpc string) *Response {
	started := time.Now()

	principal, denied := c.admit(req, started)
	if denied != nil {
		metrics.RecordRPC(rpc, outcomeFor(denied.ErrorCode), time.Since(started))
		return denied
	}

	q.Normalize()
	if err := q.Validate(); err != nil {
		metrics.RecordRPC(rpc, "invalid", time.Since(started))
		return c.fail(req, started, CodeInvalidQuery, err.Error())
	}

	// Personalization only reorders; the viewer id becomes part of the
	// cache key so personalized responses never leak across users.
	if c.personalization && principal.Authenticated {
		q.Personal.ViewerID = principal.UserID
	} else {
		q.Personal = query.Personalization{}
	}

	cacheKey := ""
	if c.cacheEnabled && q.Config.CacheEnabled {
		cacheKey = q.Fingerprint() + viewerSuffix(principal.Authenticated)
		if resp, ok := c.respCache.Get(cacheKey); ok {
			metrics.CacheHits.WithLabelValues(rpc).Inc()
			metrics.RecordRPC(rpc, "success", time.Since(started))
			hit := *resp
			hit.RequestID = req.RequestID
			hit.Cached = true
			hit.TookMS = time.Since(started).Milliseconds()
			hit.Timestamp = time.Now().UTC()
			return &hit
		}
		metrics.CacheMisses.WithLabelValues(rpc).Inc()
	}

	queryCtx, cancel := context.WithTimeout(ctx, q.Config.Timeout)
	defer cancel()

	raw, err := c.search.Search(queryCtx, c.indicesFor(q.Type), query.Compile(&q), backend.SearchParams{})
	if err != nil {
		code, msg := classifyBackendError(err)
		logging.Err(err).
			Str("request_id", req.RequestID).
			Str("rpc", rpc).
			Str("code", code).
			Msg("search failed")
		metrics.RecordRPC(rpc, "failed", time.Since(started))
		return c.fail(req, started, code, msg)
	}

	decoded, err := result.Decode(raw, time.Now())
	if err != nil {
		metrics.RecordRPC(rpc, "failed", time.Since(started))
		return c.fail(req, started, CodeInternal, "malformed backend response")
	}
	result.PostProcess(decoded, result.Viewer{Authenticated: principal.Authenticated})

	elapsed := time.Since(started)
	if elapsed >= c.slowThreshold {
		c.recordSlow(SlowQuery{
			RequestID: req.RequestID,
			Text:      q.Text,
			Type:      q.Type,
			Took:      elapsed,
			UserAgent: req.UserAgent,
			At:        started.UTC(),
		})
		logging.Warn().
			Str("request_id", req.RequestID).
			Str("rpc", rpc).
			Dur("took", elapsed).
			Str("text", q.Text).
			Msg("slow query")
	}

	resp := c.ok(req, started, false, decoded)
	if cacheKey != "" && !decoded.Empty() {
		c.respCache.PutTTL(cacheKey, resp, q.Config.CacheTTL)
	}
	if !decoded.Empty() {
		c.RecordQueryTerm(q.Text)
	}

	metrics.RecordRPC(rpc, "success", elapsed)
	return resp
}

// indicesFor maps a query type to the physical indices it searches.
func (c *Controller) indicesFor(t query.Type) []string {
	switch t {
	case query.TypeUsers:
		return []string{c.search.IndexName(backend.IndexUsers)}
	case query.TypeHashtags:
		return []string{c.search.IndexName(backend.IndexHashtags)}
	case query.TypeMixed:
		return []string{
			c.search.IndexName(backend.IndexNotes),
			c.search.IndexName(backend.IndexUsers),
		}
	default:
		// notes, mentions, media and live all search the notes index.
		return []string{c.search.IndexName(backend.IndexNotes)}
	}
}

// classifyBackendError maps a backend failure to an envelope error code.
// A backend rejection of a query the controller already validated is a
// server-side fault, never the caller's, so 4xx backend statuses map to
// INTERNAL rather than INVALID_QUERY.
func classifyBackendError(err error) (code, message string) {
	switch {
	case errors.Is(err, backend.ErrBackendUnavailable):
		return CodeBackendUnavailable, "search backend temporarily unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		return CodeTimeout, "query timed out"
	case backend.IsRetriable(err):
		return CodeBackendUnavailable, "search backend temporarily unavailable"
	}
	return CodeInternal, "internal search error"
}

func outcomeFor(code string) string {
	switch code {
	case CodeAuthRequired:
		return "auth_failure"
	case CodeRateLimited:
		return "rate_limited"
	case CodeInvalidQuery:
		return "invalid"
	default:
		return "failed"
	}
}

func viewerSuffix(authenticated bool) string {
	if authenticated {
		return "|auth"
	}
	return "|anon"
}
