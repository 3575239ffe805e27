// Searchd - Real-time search service for the Sonet social platform
// Copyright 2026 Sonet contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sonet-social/searchd

// Package config loads and validates searchd configuration.
//
// Configuration is layered via Koanf v2 (highest priority wins):
//   - Environment variables with the SEARCHD_ prefix
//   - Config file (config.yaml, or SEARCHD_CONFIG_PATH)
//   - Built-in defaults
package config

import (
	"runtime"
	"time"
)

// Config is the root configuration tree.
type Config struct {
	Service   ServiceConfig   `koanf:"service"`
	Server    ServerConfig    `koanf:"server"`
	Backend   BackendConfig   `koanf:"backend"`
	Pipeline  PipelinesConfig `koanf:"pipeline"`
	Cache     CacheConfig     `koanf:"cache"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
	Auth      AuthConfig      `koanf:"auth"`
	NATS      NATSConfig      `koanf:"nats"`
	Discovery DiscoveryConfig `koanf:"discovery"`
	Features  FeaturesConfig  `koanf:"features"`
	Logging   LoggingConfig   `koanf:"logging"`

	// SlowQueryThreshold is the total query time at or above which a query
	// is appended to the slow-query ring.
	SlowQueryThreshold time.Duration `koanf:"slow_query_threshold"`

	// GracefulShutdownTimeout bounds the stop sequence: flush pipelines,
	// close the backend, exit.
	GracefulShutdownTimeout time.Duration `koanf:"graceful_shutdown_timeout"`
}

// ServiceConfig identifies this instance.
type ServiceConfig struct {
	Name        string `koanf:"name"`
	ID          string `koanf:"id"` // generated if empty
	Version     string `koanf:"version"`
	Environment string `koanf:"environment" validate:"oneof=production staging development testing"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	ListenAddr   string        `koanf:"listen_addr" validate:"required"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
}

// BackendAuthMode selects how the index backend is authenticated against.
type BackendAuthMode string

// Backend auth modes.
const (
	BackendAuthNone   BackendAuthMode = "none"
	BackendAuthBasic  BackendAuthMode = "basic"
	BackendAuthAPIKey BackendAuthMode = "api_key"
)

// BackendConfig holds the full-text index backend connection settings.
type BackendConfig struct {
	Hosts             []string        `koanf:"hosts" validate:"min=1,dive,required"`
	UseTLS            bool            `koanf:"use_tls"`
	VerifyTLS         bool            `koanf:"verify_tls"`
	RequestTimeout    time.Duration   `koanf:"request_timeout" validate:"gt=0"`
	ConnectionTimeout time.Duration   `koanf:"connection_timeout" validate:"gt=0"`
	MaxConns          int             `koanf:"max_connections"`
	MaxConnsPerHost   int             `koanf:"max_connections_per_host"`
	BulkBatchSize     int             `koanf:"bulk_batch_size"`
	BulkFlushInterval time.Duration   `koanf:"bulk_flush_interval"`
	AuthMode          BackendAuthMode `koanf:"auth_mode" validate:"oneof=none basic api_key"`
	Username          string          `koanf:"username"`
	Password          string          `koanf:"password"`
	APIKey            string          `koanf:"api_key"`
	// IndexPrefix is prepended to index names (e.g. "sonet" -> sonet_notes).
	IndexPrefix string `koanf:"index_prefix"`
}

// PipelinesConfig holds the per-document-type pipeline settings.
type PipelinesConfig struct {
	Notes PipelineConfig `koanf:"notes"`
	Users PipelineConfig `koanf:"users"`
}

// PipelineConfig configures one indexing pipeline instance.
type PipelineConfig struct {
	Workers          int           `koanf:"workers"` // 0 = derived from CPU count
	BatchSize        int           `koanf:"batch_size" validate:"gt=0"`
	BatchTimeout     time.Duration `koanf:"batch_timeout"`
	MaxQueueSize     int           `koanf:"max_queue_size" validate:"gt=0"`
	MaxRetryAttempts int           `koanf:"max_retry_attempts" validate:"gte=0"`
	RetryDelay       time.Duration `koanf:"retry_delay" validate:"gt=0"`
	MemoryLimitMB    uint64        `koanf:"memory_limit_mb"`
	MemoryWarningMB  uint64        `koanf:"memory_warning_mb"`

	// Content filters. IndexBots only applies to the user pipeline.
	IndexSpam bool `koanf:"index_spam"`
	IndexNSFW bool `koanf:"index_nsfw"`
	IndexBots bool `koanf:"index_bots"`
}

// WorkerCount resolves the configured worker count, deriving a default from
// the CPU count when unset. divisor is 2 for notes, 4 for users.
func (p PipelineConfig) WorkerCount(divisor int) int {
	if p.Workers > 0 {
		return p.Workers
	}
	n := runtime.NumCPU() / divisor
	if n < 1 {
		n = 1
	}
	return n
}

// CacheConfig configures the response cache.
type CacheConfig struct {
	Enabled bool          `koanf:"enabled"`
	MaxSize int           `koanf:"max_size" validate:"gt=0"`
	TTL     time.Duration `koanf:"ttl"`
}

// TierLimit is the (rpm, burst) pair for one principal tier.
type TierLimit struct {
	RPM   int `koanf:"rpm" validate:"gt=0"`
	Burst int `koanf:"burst" validate:"gt=0"`
}

// RateLimitConfig configures the per-principal token buckets.
type RateLimitConfig struct {
	Enabled bool `koanf:"enabled"`

	// Anonymous/Authenticated/Verified are the static tier table; swapping
	// the table at runtime is supported by the limiter.
	Anonymous     TierLimit `koanf:"anonymous"`
	Authenticated TierLimit `koanf:"authenticated"`
	Verified      TierLimit `koanf:"verified"`

	// IPRequestsPerMinute is the coarse per-IP guard applied at the HTTP
	// edge before the controller's bucket limiter.
	IPRequestsPerMinute int `koanf:"ip_requests_per_minute"`
}

// AuthConfig configures bearer-token validation.
type AuthConfig struct {
	// JWTSecret verifies identity-service-issued HS256 tokens.
	JWTSecret string `koanf:"jwt_secret"`
	// CacheTTL bounds how long a positive validation is reused. Capped at 60s.
	CacheTTL time.Duration `koanf:"cache_ttl"`
}

// NATSConfig configures the message-bus subscriber.
type NATSConfig struct {
	URL              string        `koanf:"url" validate:"required"`
	Stream           string        `koanf:"stream"`
	DurableName      string        `koanf:"durable_name"`
	QueueGroup       string        `koanf:"queue_group"`
	SubscribersCount int           `koanf:"subscribers_count"`
	AckWait          time.Duration `koanf:"ack_wait"`
	MaxReconnects    int           `koanf:"max_reconnects"`
	ReconnectWait    time.Duration `koanf:"reconnect_wait"`
	CloseTimeout     time.Duration `koanf:"close_timeout"`
}

// DiscoveryConfig configures service-discovery registration.
type DiscoveryConfig struct {
	Enabled           bool          `koanf:"enabled"`
	Endpoint          string        `koanf:"endpoint"`
	Token             string        `koanf:"token"`
	HeartbeatInterval time.Duration `koanf:"heartbeat_interval"`
}

// FeaturesConfig holds feature flags.
type FeaturesConfig struct {
	RealTimeIndexing bool `koanf:"real_time_indexing"`
	Trending         bool `koanf:"trending"`
	Personalization  bool `koanf:"personalization"`
}

// LoggingConfig holds log settings.
type LoggingConfig struct {
	Level  string `koanf:"log_level" validate:"oneof=trace debug info warn error fatal"`
	Format string `koanf:"log_format" validate:"oneof=json console"`
}

// defaultConfig returns the built-in defaults, overridden by file and env.
// Numbers follow the production defaults of the original service.
func defaultConfig() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:        "searchd",
			Version:     "1.0.0",
			Environment: "production",
		},
		Server: ServerConfig{
			ListenAddr:   ":8085",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Backend: BackendConfig{
			Hosts:             []string{"http://localhost:9200"},
			UseTLS:            false,
			VerifyTLS:         true,
			RequestTimeout:    30 * time.Second,
			ConnectionTimeout: 5 * time.Second,
			MaxConns:          100,
			MaxConnsPerHost:   10,
			BulkBatchSize:     500,
			BulkFlushInterval: 5 * time.Second,
			AuthMode:          BackendAuthNone,
			IndexPrefix:       "sonet",
		},
		Pipeline: PipelinesConfig{
			Notes: PipelineConfig{
				BatchSize:        100,
				BatchTimeout:     time.Second,
				MaxQueueSize:     50000,
				MaxRetryAttempts: 3,
				RetryDelay:       600 * time.Millisecond,
				MemoryLimitMB:    2048,
				MemoryWarningMB:  1536,
				IndexSpam:        false,
				IndexNSFW:        true,
			},
			Users: PipelineConfig{
				BatchSize:        50,
				BatchTimeout:     2 * time.Second,
				MaxQueueSize:     20000,
				MaxRetryAttempts: 3,
				RetryDelay:       time.Second,
				MemoryLimitMB:    1024,
				MemoryWarningMB:  768,
				IndexBots:        false,
			},
		},
		Cache: CacheConfig{
			Enabled: true,
			MaxSize: 10000,
			TTL:     5 * time.Minute,
		},
		RateLimit: RateLimitConfig{
			Enabled:             true,
			Anonymous:           TierLimit{RPM: 60, Burst: 10},
			Authenticated:       TierLimit{RPM: 300, Burst: 50},
			Verified:            TierLimit{RPM: 1000, Burst: 100},
			IPRequestsPerMinute: 2000,
		},
		Auth: AuthConfig{
			CacheTTL: 60 * time.Second,
		},
		NATS: NATSConfig{
			URL:              "nats://127.0.0.1:4222",
			Stream:           "SONET_EVENTS",
			DurableName:      "searchd",
			QueueGroup:       "searchd-workers",
			SubscribersCount: 4,
			AckWait:          30 * time.Second,
			MaxReconnects:    -1,
			ReconnectWait:    2 * time.Second,
			CloseTimeout:     10 * time.Second,
		},
		Discovery: DiscoveryConfig{
			Enabled:           false,
			Endpoint:          "http://consul:8500",
			HeartbeatInterval: 10 * time.Minute,
		},
		Features: FeaturesConfig{
			RealTimeIndexing: true,
			Trending:         true,
			Personalization:  true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		SlowQueryThreshold:      time.Second,
		GracefulShutdownTimeout: 30 * time.Second,
	}
}
