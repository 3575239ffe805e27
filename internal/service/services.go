// Searchd - Real-time search service for the Sonet social platform
// Copyright 2026 Sonet contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sonet-social/searchd

package service

import (
	"context"
	"time"

	"github.com/sonet-social/searchd/internal/logging"
	"github.com/sonet-social/searchd/internal/subscriber"
)

// subscriberService adapts the bus subscriber to suture supervision: a
// crash or a dropped connection restarts consumption with backoff.
type subscriberService struct {
	sub *subscriber.Subscriber
}

func (s *subscriberService) Serve(ctx context.Context) error {
	return s.sub.Run(ctx)
}

func (s *subscriberService) String() string { return "bus-subscriber" }

// sweepService runs the periodic maintenance pass: expired cache
// entries, idle rate-limit buckets.
type sweepService struct {
	orch     *Orchestrator
	interval time.Duration
}

func (s *sweepService) Serve(ctx context.Context) error {
	interval := s.interval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			expired := s.orch.ctrl.Sweep()
			buckets := s.orch.limiter.Sweep()
			if expired > 0 || buckets > 0 {
				logging.Debug().
					Int("expired_cache_entries", expired).
					Int("idle_rate_buckets", buckets).
					Msg("maintenance sweep")
			}
		}
	}
}

func (s *sweepService) String() string { return "maintenance-sweep" }

// heartbeatService keeps the discovery registration alive.
type heartbeatService struct {
	discovery *Discovery
	interval  time.Duration
}

func (s *heartbeatService) Serve(ctx context.Context) error {
	interval := s.interval
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.discovery.Heartbeat(ctx); err != nil {
				logging.Err(err).Msg("discovery heartbeat failed")
			}
		}
	}
}

func (s *heartbeatService) String() string { return "discovery-heartbeat" }
