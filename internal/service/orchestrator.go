// Searchd - Real-time search service for the Sonet social platform
// Copyright 2026 Sonet contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sonet-social/searchd

// Package service assembles and supervises the search service: backend
// client, indexing pipelines, controller, bus subscriber and the
// maintenance loops. The orchestrator owns startup order, the supervision
// tree, health aggregation and the bounded stop sequence.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"

	"github.com/sonet-social/searchd/internal/auth"
	"github.com/sonet-social/searchd/internal/backend"
	"github.com/sonet-social/searchd/internal/config"
	"github.com/sonet-social/searchd/internal/controller"
	"github.com/sonet-social/searchd/internal/logging"
	"github.com/sonet-social/searchd/internal/pipeline"
	"github.com/sonet-social/searchd/internal/ratelimit"
	"github.com/sonet-social/searchd/internal/subscriber"
)

// Orchestrator lifecycle errors.
var (
	ErrNotInitialized     = errors.New("service: not initialized")
	ErrAlreadyStarted     = errors.New("service: already started")
	ErrAlreadyInitialized = errors.New("service: already initialized")
)

// healthCheckTimeout bounds the backend probe inside Health().
const healthCheckTimeout = 5 * time.Second

// Orchestrator wires every component together and drives the service
// lifecycle: Initialize → Start → (Serve...) → Stop.
type Orchestrator struct {
	cfg *config.Config

	client  *backend.Client
	guarded *backend.GuardedClient
	notes   *pipeline.NotePipeline
	users   *pipeline.UserPipeline
	gate    *auth.Gate
	limiter *ratelimit.Limiter
	ctrl    *controller.Controller

	busSource message.Subscriber
	sub       *subscriber.Subscriber
	discovery *Discovery

	tree     *suture.Supervisor
	cancel   context.CancelFunc
	serveErr <-chan error

	initialized atomic.Bool
	started     atomic.Bool
	stopping    atomic.Bool
	startedAt   time.Time
}

// New creates an unstarted orchestrator. No connections are opened until
// Initialize.
func New(cfg *config.Config) *Orchestrator {
	if cfg.Service.ID == "" {
		cfg.Service.ID = cfg.Service.Name + "-" + uuid.NewString()[:8]
	}
	return &Orchestrator{cfg: cfg}
}

// Initialize connects the backend, ensures the indexes exist and builds
// every component. Safe to call once.
func (o *Orchestrator) Initialize(ctx context.Context) error {
	if !o.initialized.CompareAndSwap(false, true) {
		return ErrAlreadyInitialized
	}

	client, err := backend.New(o.cfg.Backend)
	if err != nil {
		return fmt.Errorf("service: backend client: %w", err)
	}
	o.client = client
	o.guarded = backend.NewGuarded(client)

	if err := client.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("service: ensure indexes: %w", err)
	}

	o.notes = pipeline.NewNotes(o.cfg.Pipeline.Notes, o.guarded)
	o.users = pipeline.NewUsers(o.cfg.Pipeline.Users, o.guarded)
	o.gate = auth.NewGate(o.cfg.Auth)
	o.limiter = ratelimit.New(o.cfg.RateLimit)
	o.ctrl = controller.New(o.cfg, o.guarded, o.gate, o.limiter)

	if o.cfg.Features.RealTimeIndexing {
		source, err := subscriber.NewNATSSource(o.cfg.NATS, nil)
		if err != nil {
			return fmt.Errorf("service: bus source: %w", err)
		}
		o.busSource = source
		o.sub = subscriber.New(source, o.notes, o.users).WithObserver(o.ctrl)
	}

	if o.cfg.Discovery.Enabled {
		o.discovery = NewDiscovery(o.cfg.Service, o.cfg.Server, o.cfg.Discovery)
	}

	o.tree = o.buildTree()

	logging.Info().
		Str("service_id", o.cfg.Service.ID).
		Bool("real_time_indexing", o.cfg.Features.RealTimeIndexing).
		Bool("discovery", o.cfg.Discovery.Enabled).
		Msg("service initialized")
	return nil
}

// buildTree assembles the supervision tree: the subscriber and the
// maintenance loops restart on crash, with backoff past the failure
// threshold.
func (o *Orchestrator) buildTree() *suture.Supervisor {
	handler := &sutureslog.Handler{
		Logger: slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})),
	}
	root := suture.New("searchd", suture.Spec{
		EventHook:        handler.MustHook(),
		FailureThreshold: 5,
		FailureDecay:     30,
		FailureBackoff:   15 * time.Second,
		Timeout:          10 * time.Second,
	})

	root.Add(&sweepService{orch: o, interval: time.Minute})
	if o.sub != nil {
		root.Add(&subscriberService{sub: o.sub})
	}
	if o.discovery != nil {
		root.Add(&heartbeatService{discovery: o.discovery, interval: o.cfg.Discovery.HeartbeatInterval})
	}
	return root
}

// Start launches the pipelines and the supervision tree.
func (o *Orchestrator) Start(ctx context.Context) error {
	if !o.initialized.Load() {
		return ErrNotInitialized
	}
	if !o.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	o.cancel = cancel

	o.notes.Start(runCtx)
	o.users.Start(runCtx)
	o.serveErr = o.tree.ServeBackground(runCtx)

	if o.discovery != nil {
		if err := o.discovery.Register(ctx); err != nil {
			logging.Err(err).Msg("service registration failed, continuing without discovery")
		}
	}

	o.startedAt = time.Now()
	logging.Info().Str("service_id", o.cfg.Service.ID).Msg("service started")
	return nil
}

// Stop runs the bounded shutdown sequence: stop accepting bus work,
// flush the pipelines, close connections. The whole sequence respects
// graceful_shutdown_timeout.
func (o *Orchestrator) Stop() error {
	if !o.started.Load() || !o.stopping.CompareAndSwap(false, true) {
		return nil
	}
	deadline := time.Now().Add(o.cfg.GracefulShutdownTimeout)

	if o.discovery != nil {
		o.discovery.Deregister()
	}

	// Cancel the run context: subscriber stops pulling, sweeps stop.
	o.cancel()
	if o.serveErr != nil {
		select {
		case <-o.serveErr:
		case <-time.After(time.Until(deadline) / 2):
			logging.Warn().Msg("supervision tree did not stop in time")
		}
	}
	if o.busSource != nil {
		if err := o.busSource.Close(); err != nil {
			logging.Err(err).Msg("bus close failed")
		}
	}

	// Flush whatever the pipelines still hold, splitting the remaining
	// grace between them.
	remaining := time.Until(deadline)
	if remaining < 0 {
		remaining = 0
	}
	o.notes.Shutdown(remaining / 2)
	o.users.Shutdown(remaining / 2)

	o.client.Close()
	logging.Info().Dur("took", o.cfg.GracefulShutdownTimeout-time.Until(deadline)).Msg("service stopped")
	return nil
}

// Healthy reports whether the service can usefully serve traffic.
func (o *Orchestrator) Healthy(ctx context.Context) bool {
	h := o.Health(ctx)
	return h.Status == HealthHealthy || h.Status == HealthDegraded
}

// Health aggregates component health, worst state wins.
func (o *Orchestrator) Health(ctx context.Context) Health {
	h := Health{
		Status:    HealthHealthy,
		Service:   o.cfg.Service.Name,
		Version:   o.cfg.Service.Version,
		CheckedAt: time.Now().UTC(),
	}
	if !o.startedAt.IsZero() {
		h.Uptime = time.Since(o.startedAt).Round(time.Second).String()
	}
	if !o.initialized.Load() {
		h.Status = HealthCritical
		return h
	}

	probeCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()
	if bh, err := o.client.HealthCheck(probeCtx); err != nil {
		h.Status = HealthCritical
	} else {
		h.Backend.Reachable = true
		h.Backend.Status = string(bh.Status)
		switch bh.Status {
		case backend.HealthRed:
			h.Status = worseOf(h.Status, HealthUnhealthy)
		case backend.HealthYellow:
			h.Status = worseOf(h.Status, HealthDegraded)
		}
	}

	h.Pipelines.Notes = o.notes.Metrics()
	h.Pipelines.Users = o.users.Metrics()
	h.Status = worseOf(h.Status, pipelineState(h.Pipelines.Notes, o.cfg.Pipeline.Notes.MaxQueueSize))
	h.Status = worseOf(h.Status, pipelineState(h.Pipelines.Users, o.cfg.Pipeline.Users.MaxQueueSize))

	h.Cache.Hits, h.Cache.Misses, h.Cache.Size = o.ctrl.CacheStats()
	return h
}

// Controller exposes the RPC surface for the HTTP layer.
func (o *Orchestrator) Controller() *controller.Controller { return o.ctrl }
