// Searchd - Real-time search service for the Sonet social platform
// Copyright 2026 Sonet contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sonet-social/searchd

// Command searchd runs the Sonet search service: it consumes platform
// events into the full-text indexes and serves the search HTTP API.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/goccy/go-json"

	"github.com/sonet-social/searchd/internal/api"
	"github.com/sonet-social/searchd/internal/config"
	"github.com/sonet-social/searchd/internal/logging"
	"github.com/sonet-social/searchd/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	logging.Info().
		Str("version", cfg.Service.Version).
		Str("environment", cfg.Service.Environment).
		Str("listen_addr", cfg.Server.ListenAddr).
		Msg("starting searchd")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	orch := service.New(cfg)
	if err := orch.Initialize(ctx); err != nil {
		logging.Fatal().Err(err).Msg("initialization failed")
	}
	if err := orch.Start(ctx); err != nil {
		logging.Fatal().Err(err).Msg("startup failed")
	}

	healthHandler := func(w http.ResponseWriter, r *http.Request) {
		h := orch.Health(r.Context())
		w.Header().Set("Content-Type", "application/json")
		if h.Status == service.HealthUnhealthy || h.Status == service.HealthCritical {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		writeJSON(w, h)
	}

	router := api.NewRouter(cfg, orch.Controller(), healthHandler)
	server := api.NewServer(cfg, router.Handler())

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logging.Info().Msg("shutdown signal received")
	case err := <-serverErr:
		if !errors.Is(err, http.ErrServerClosed) {
			logging.Error().Err(err).Msg("http server failed")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.GracefulShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logging.Err(err).Msg("http shutdown incomplete")
	}
	if err := orch.Stop(); err != nil {
		logging.Err(err).Msg("service stop incomplete")
		os.Exit(1)
	}
	logging.Info().Msg("searchd stopped")
}

func writeJSON(w http.ResponseWriter, v any) {
	_ = json.NewEncoder(w).Encode(v)
}
