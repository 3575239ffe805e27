// Searchd - Real-time search service for the Sonet social platform
// Copyright 2026 Sonet contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sonet-social/searchd

package service

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/sonet-social/searchd/internal/config"
	"github.com/sonet-social/searchd/internal/logging"
)

// deregisterTimeout bounds the best-effort deregistration during stop.
const deregisterTimeout = 3 * time.Second

// Discovery registers the instance with a Consul agent and keeps the
// registration alive with TTL check passes. All calls are best-effort;
// a dead agent never takes searchd down.
type Discovery struct {
	endpoint  string
	token     string
	serviceID string
	name      string
	port      int
	ttl       time.Duration
	client    *http.Client
}

// NewDiscovery builds a Consul registrar from configuration.
func NewDiscovery(svc config.ServiceConfig, server config.ServerConfig, cfg config.DiscoveryConfig) *Discovery {
	port := 0
	if _, p, err := net.SplitHostPort(server.ListenAddr); err == nil {
		port, _ = strconv.Atoi(p)
	}
	// The TTL must outlive the heartbeat interval or the check flaps.
	ttl := cfg.HeartbeatInterval * 3
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Discovery{
		endpoint:  cfg.Endpoint,
		token:     cfg.Token,
		serviceID: svc.ID,
		name:      svc.Name,
		port:      port,
		ttl:       ttl,
		client:    &http.Client{Timeout: 10 * time.Second},
	}
}

type consulCheck struct {
	CheckID                        string `json:"CheckID"`
	Name                           string `json:"Name"`
	TTL                            string `json:"TTL"`
	DeregisterCriticalServiceAfter string `json:"DeregisterCriticalServiceAfter"`
}

type consulRegistration struct {
	ID    string      `json:"ID"`
	Name  string      `json:"Name"`
	Port  int         `json:"Port"`
	Tags  []string    `json:"Tags"`
	Check consulCheck `json:"Check"`
}

// Register announces the instance to the agent.
func (d *Discovery) Register(ctx context.Context) error {
	reg := consulRegistration{
		ID:   d.serviceID,
		Name: d.name,
		Port: d.port,
		Tags: []string{"search", "sonet"},
		Check: consulCheck{
			CheckID:                        d.checkID(),
			Name:                           "searchd TTL",
			TTL:                            d.ttl.String(),
			DeregisterCriticalServiceAfter: (d.ttl * 2).String(),
		},
	}
	body, err := json.Marshal(reg)
	if err != nil {
		return fmt.Errorf("service: marshal registration: %w", err)
	}
	if err := d.put(ctx, "/v1/agent/service/register", body); err != nil {
		return err
	}
	logging.Info().Str("service_id", d.serviceID).Str("endpoint", d.endpoint).Msg("registered with discovery")
	// Pass the TTL check immediately so the instance is never briefly
	// critical after registration.
	return d.Heartbeat(ctx)
}

// Heartbeat marks the TTL check as passing.
func (d *Discovery) Heartbeat(ctx context.Context) error {
	return d.put(ctx, "/v1/agent/check/pass/"+d.checkID(), nil)
}

// Deregister removes the instance from the agent. Best-effort.
func (d *Discovery) Deregister() {
	ctx, cancel := context.WithTimeout(context.Background(), deregisterTimeout)
	defer cancel()
	if err := d.put(ctx, "/v1/agent/service/deregister/"+d.serviceID, nil); err != nil {
		logging.Err(err).Msg("discovery deregistration failed")
	}
}

func (d *Discovery) checkID() string {
	return "service:" + d.serviceID
}

func (d *Discovery) put(ctx context.Context, path string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, d.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("service: discovery request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if d.token != "" {
		req.Header.Set("X-Consul-Token", d.token)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("service: discovery call %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("service: discovery call %s: status %d", path, resp.StatusCode)
	}
	return nil
}
