// Searchd - Real-time search service for the Sonet social platform
// Copyright 2026 Sonet contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sonet-social/searchd

package service

import (
	"time"

	"github.com/sonet-social/searchd/internal/pipeline"
)

// HealthState is the aggregated service condition, ordered from best to
// worst. Aggregation is worst-wins across components.
type HealthState string

// Health states.
const (
	HealthHealthy   HealthState = "HEALTHY"
	HealthDegraded  HealthState = "DEGRADED"
	HealthUnhealthy HealthState = "UNHEALTHY"
	HealthCritical  HealthState = "CRITICAL"
)

var healthRank = map[HealthState]int{
	HealthHealthy:   0,
	HealthDegraded:  1,
	HealthUnhealthy: 2,
	HealthCritical:  3,
}

// worseOf returns the worse of two states.
func worseOf(a, b HealthState) HealthState {
	if healthRank[b] > healthRank[a] {
		return b
	}
	return a
}

// Health is the full health report served at /health.
type Health struct {
	Status  HealthState `json:"status"`
	Service string      `json:"service"`
	Version string      `json:"version"`
	Uptime  string      `json:"uptime"`

	Backend struct {
		Reachable bool   `json:"reachable"`
		Status    string `json:"status,omitempty"` // green, yellow, red
	} `json:"backend"`

	Pipelines struct {
		Notes pipeline.Metrics `json:"notes"`
		Users pipeline.Metrics `json:"users"`
	} `json:"pipelines"`

	Cache struct {
		Hits   int64 `json:"hits"`
		Misses int64 `json:"misses"`
		Size   int   `json:"size"`
	} `json:"cache"`

	CheckedAt time.Time `json:"checked_at"`
}

// pipelineState grades one pipeline's metrics snapshot. A full queue is
// unhealthy (new work is being rejected); memory pressure or a paused
// pipeline is degraded.
func pipelineState(m pipeline.Metrics, maxQueue int) HealthState {
	if maxQueue > 0 && m.QueueDepth >= maxQueue {
		return HealthUnhealthy
	}
	if m.MemoryPressure || m.Paused {
		return HealthDegraded
	}
	return HealthHealthy
}
