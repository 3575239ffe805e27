// Searchd - Real-time search service for the Sonet social platform
// Copyright 2026 Sonet contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sonet-social/searchd

package backend

import (
	"context"
	"errors"
	"time"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"

	"github.com/sonet-social/searchd/internal/logging"
)

// ErrBackendUnavailable is returned while the circuit is open. Callers map
// it to a degraded response instead of waiting on a backend that is known
// to be failing.
var ErrBackendUnavailable = errors.New("backend: circuit open")

// GuardedClient wraps the hot-path operations (Search, Bulk) in circuit
// breakers. Administrative and single-document calls go through the inner
// client directly; their failure doesn't indicate backend-wide trouble.
type GuardedClient struct {
	*Client

	searchCB *gobreaker.CircuitBreaker[json.RawMessage]
	bulkCB   *gobreaker.CircuitBreaker[[]BulkItemError]
}

func breakerSettings(name string) gobreaker.Settings {
	return gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 5 && counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state change")
		},
		IsSuccessful: func(err error) bool {
			// Cancellation and non-retriable rejections (bad queries,
			// 4xx) are the caller's problem, not backend health.
			return err == nil || !IsRetriable(err)
		},
	}
}

// NewGuarded wraps c with circuit breakers on Search and Bulk.
func NewGuarded(c *Client) *GuardedClient {
	return &GuardedClient{
		Client:   c,
		searchCB: gobreaker.NewCircuitBreaker[json.RawMessage](breakerSettings("backend-search")),
		bulkCB:   gobreaker.NewCircuitBreaker[[]BulkItemError](breakerSettings("backend-bulk")),
	}
}

// Search executes a query through the search breaker.
func (g *GuardedClient) Search(ctx context.Context, indices []string, queryDoc map[string]any, params SearchParams) (json.RawMessage, error) {
	raw, err := g.searchCB.Execute(func() (json.RawMessage, error) {
		return g.Client.Search(ctx, indices, queryDoc, params)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, ErrBackendUnavailable
	}
	return raw, err
}

// Bulk submits a batch through the bulk breaker.
func (g *GuardedClient) Bulk(ctx context.Context, ops []BulkOp) ([]BulkItemError, error) {
	failures, err := g.bulkCB.Execute(func() ([]BulkItemError, error) {
		return g.Client.Bulk(ctx, ops)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, ErrBackendUnavailable
	}
	return failures, err
}
