// Searchd - Real-time search service for the Sonet social platform
// Copyright 2026 Sonet contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sonet-social/searchd

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultsAreValid(t *testing.T) {
	cfg := defaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if cfg.RateLimit.Anonymous.RPM != 60 {
		t.Errorf("anonymous rpm = %d, want 60", cfg.RateLimit.Anonymous.RPM)
	}
	if cfg.Cache.TTL != 5*time.Minute {
		t.Errorf("cache ttl = %v, want 5m", cfg.Cache.TTL)
	}
	if cfg.GracefulShutdownTimeout != 30*time.Second {
		t.Errorf("graceful shutdown = %v, want 30s", cfg.GracefulShutdownTimeout)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := []byte(`
backend:
  hosts:
    - http://es1:9200
    - http://es2:9200
  request_timeout: 10s
pipeline:
  notes:
    batch_size: 25
cache:
  ttl: 2m
logging:
  log_level: debug
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if len(cfg.Backend.Hosts) != 2 || cfg.Backend.Hosts[0] != "http://es1:9200" {
		t.Errorf("hosts = %v", cfg.Backend.Hosts)
	}
	if cfg.Backend.RequestTimeout != 10*time.Second {
		t.Errorf("request_timeout = %v, want 10s", cfg.Backend.RequestTimeout)
	}
	if cfg.Pipeline.Notes.BatchSize != 25 {
		t.Errorf("notes batch_size = %d, want 25", cfg.Pipeline.Notes.BatchSize)
	}
	// Untouched keys keep defaults.
	if cfg.Pipeline.Notes.MaxQueueSize != 50000 {
		t.Errorf("notes max_queue_size = %d, want default 50000", cfg.Pipeline.Notes.MaxQueueSize)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("log_level = %q, want debug", cfg.Logging.Level)
	}
}

func TestEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("service:\n  environment: development\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("SEARCHD_LOGGING__LOG_LEVEL", "warn")
	t.Setenv("SEARCHD_NATS__QUEUE_GROUP", "searchd-test")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("log_level = %q, want warn", cfg.Logging.Level)
	}
	if cfg.NATS.QueueGroup != "searchd-test" {
		t.Errorf("queue_group = %q, want searchd-test", cfg.NATS.QueueGroup)
	}
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no hosts", func(c *Config) { c.Backend.Hosts = nil }},
		{"basic auth without creds", func(c *Config) { c.Backend.AuthMode = BackendAuthBasic }},
		{"api key auth without key", func(c *Config) { c.Backend.AuthMode = BackendAuthAPIKey }},
		{"warning above limit", func(c *Config) {
			c.Pipeline.Notes.MemoryWarningMB = 4096
		}},
		{"batch above queue", func(c *Config) {
			c.Pipeline.Users.BatchSize = c.Pipeline.Users.MaxQueueSize + 1
		}},
		{"auth cache too long", func(c *Config) { c.Auth.CacheTTL = 2 * time.Minute }},
		{"zero shutdown timeout", func(c *Config) { c.GracefulShutdownTimeout = 0 }},
		{"bad environment", func(c *Config) { c.Service.Environment = "qa" }},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestWorkerCountDerivation(t *testing.T) {
	p := PipelineConfig{Workers: 3}
	if got := p.WorkerCount(2); got != 3 {
		t.Errorf("explicit workers = %d, want 3", got)
	}
	p.Workers = 0
	if got := p.WorkerCount(1024); got != 1 {
		t.Errorf("derived workers floor = %d, want 1", got)
	}
}
