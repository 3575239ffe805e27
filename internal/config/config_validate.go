// Searchd - Real-time search service for the Sonet social platform
// Copyright 2026 Sonet contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sonet-social/searchd

package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks struct tags plus the cross-field constraints that tags
// cannot express. The returned error names the offending key.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}

	if c.Backend.AuthMode == BackendAuthBasic && (c.Backend.Username == "" || c.Backend.Password == "") {
		return fmt.Errorf("backend.auth_mode=basic requires backend.username and backend.password")
	}
	if c.Backend.AuthMode == BackendAuthAPIKey && c.Backend.APIKey == "" {
		return fmt.Errorf("backend.auth_mode=api_key requires backend.api_key")
	}

	for name, p := range map[string]PipelineConfig{
		"pipeline.notes": c.Pipeline.Notes,
		"pipeline.users": c.Pipeline.Users,
	} {
		if p.MemoryWarningMB > 0 && p.MemoryLimitMB > 0 && p.MemoryWarningMB >= p.MemoryLimitMB {
			return fmt.Errorf("%s.memory_warning_mb must be below memory_limit_mb", name)
		}
		if p.BatchSize > p.MaxQueueSize {
			return fmt.Errorf("%s.batch_size exceeds max_queue_size", name)
		}
	}

	if c.Auth.CacheTTL > 60*time.Second {
		return fmt.Errorf("auth.cache_ttl must not exceed 60s")
	}

	if c.GracefulShutdownTimeout <= 0 {
		return fmt.Errorf("graceful_shutdown_timeout must be positive")
	}
	if c.SlowQueryThreshold <= 0 {
		return fmt.Errorf("slow_query_threshold must be positive")
	}

	return nil
}
