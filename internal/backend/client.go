// Searchd - Real-time search service for the Sonet social platform
// Copyright 2026 Sonet contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sonet-social/searchd

package backend

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/sonet-social/searchd/internal/config"
	"github.com/sonet-social/searchd/internal/metrics"
)

// Client talks to the full-text index over HTTP+JSON. It is safe for
// concurrent use and holds no locks across I/O; requests round-robin over
// the configured hosts.
type Client struct {
	hosts       []string
	next        atomic.Uint64
	httpClient  *http.Client
	timeout     time.Duration
	authMode    config.BackendAuthMode
	username    string
	password    string
	apiKey      string
	indexPrefix string
}

// New builds a client from configuration.
func New(cfg config.BackendConfig) (*Client, error) {
	if len(cfg.Hosts) == 0 {
		return nil, fmt.Errorf("backend: no hosts configured")
	}

	transport := &http.Transport{
		MaxIdleConns:        cfg.MaxConns,
		MaxConnsPerHost:     cfg.MaxConnsPerHost,
		MaxIdleConnsPerHost: cfg.MaxConnsPerHost,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout: cfg.ConnectionTimeout,
		}).DialContext,
	}
	if cfg.UseTLS && !cfg.VerifyTLS {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // verify_tls=false is an explicit operator choice
	}

	hosts := make([]string, len(cfg.Hosts))
	for i, h := range cfg.Hosts {
		hosts[i] = strings.TrimRight(h, "/")
	}

	return &Client{
		hosts:       hosts,
		httpClient:  &http.Client{Transport: transport},
		timeout:     cfg.RequestTimeout,
		authMode:    cfg.AuthMode,
		username:    cfg.Username,
		password:    cfg.Password,
		apiKey:      cfg.APIKey,
		indexPrefix: cfg.IndexPrefix,
	}, nil
}

// IndexName resolves a logical index name ("notes") to its physical name
// ("sonet_notes").
func (c *Client) IndexName(logical string) string {
	if c.indexPrefix == "" {
		return logical
	}
	return c.indexPrefix + "_" + logical
}

// Close releases idle connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

// host returns the next host in round-robin order.
func (c *Client) host() string {
	n := c.next.Add(1)
	return c.hosts[int(n)%len(c.hosts)]
}

// do executes one request against the backend. The legacy "NOTE" verb is
// normalized to POST here; it is POST on the wire.
func (c *Client) do(ctx context.Context, method, path string, body []byte) (int, []byte, error) {
	if method == "NOTE" {
		method = http.MethodPost
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.host()+path, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("backend: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.applyAuth(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, transportError(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, transportError(err)
	}
	return resp.StatusCode, data, nil
}

func (c *Client) applyAuth(req *http.Request) {
	switch c.authMode {
	case config.BackendAuthBasic:
		req.SetBasicAuth(c.username, c.password)
	case config.BackendAuthAPIKey:
		req.Header.Set("Authorization", "ApiKey "+c.apiKey)
	}
}

// call runs do, decodes an error body on non-2xx, and records metrics.
func (c *Client) call(ctx context.Context, operation, method, path string, body []byte) ([]byte, error) {
	start := time.Now()
	status, data, err := c.do(ctx, method, path, body)
	if err != nil {
		metrics.RecordBackend(operation, "error", time.Since(start))
		return nil, err
	}
	if status >= 400 {
		metrics.RecordBackend(operation, "error", time.Since(start))
		return nil, decodeError(status, data)
	}
	metrics.RecordBackend(operation, "ok", time.Since(start))
	return data, nil
}

// decodeError extracts the backend's error envelope when present.
func decodeError(status int, body []byte) *Error {
	var envelope struct {
		Error struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Reason != "" {
		return statusError(status, envelope.Error.Type, envelope.Error.Reason)
	}
	return statusError(status, "", http.StatusText(status))
}
