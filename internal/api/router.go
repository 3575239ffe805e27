// Searchd - Real-time search service for the Sonet social platform
// Copyright 2026 Sonet contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sonet-social/searchd

// Package api exposes the search RPCs over HTTP using Chi. The layer is
// deliberately thin: it extracts per-request context, maps envelopes to
// status codes and leaves every policy decision (auth, rate limits,
// caching) to the controller.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sonet-social/searchd/internal/config"
	"github.com/sonet-social/searchd/internal/controller"
)

// Router builds the HTTP surface.
type Router struct {
	ctrl   *controller.Controller
	health http.HandlerFunc
	cfg    *config.Config
}

// NewRouter wires the controller and the orchestrator's health handler.
func NewRouter(cfg *config.Config, ctrl *controller.Controller, health http.HandlerFunc) *Router {
	return &Router{ctrl: ctrl, health: health, cfg: cfg}
}

// Handler assembles the route tree.
func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(requestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	// Coarse per-IP guard at the edge; the controller applies the
	// per-principal buckets behind it.
	if rpm := rt.cfg.RateLimit.IPRequestsPerMinute; rpm > 0 {
		r.Use(httprate.LimitByIP(rpm, time.Minute))
	}

	r.Get("/health", rt.health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(instrument)

		r.Post("/search/notes", rt.searchNotes)
		r.Post("/search/users", rt.searchUsers)
		r.Get("/trending/hashtags", rt.trendingHashtags)
		r.Get("/trending/users", rt.trendingUsers)
		r.Get("/suggestions", rt.suggestions)
		r.Get("/autocomplete", rt.autocomplete)
	})

	return r
}

// NewServer builds the http.Server around the route tree.
func NewServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         cfg.Server.ListenAddr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
}
