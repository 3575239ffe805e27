// Searchd - Real-time search service for the Sonet social platform
// Copyright 2026 Sonet contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sonet-social/searchd

// Package metrics holds the Prometheus collectors for searchd:
// per-RPC request outcomes and latency, response-cache efficiency, and
// per-pipeline throughput, queue depth and memory pressure.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RPC metrics. The "rpc" label is the controller operation name
	// (search_notes, search_users, trending_hashtags, trending_users,
	// suggestions, autocomplete).
	RPCRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "searchd_rpc_requests_total",
			Help: "Total RPC requests by operation and outcome",
		},
		[]string{"rpc", "outcome"}, // success, failed, rate_limited, auth_failure, invalid
	)

	RPCDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "searchd_rpc_duration_seconds",
			Help:    "RPC latency in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"rpc"},
	)

	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "searchd_cache_hits_total",
			Help: "Response cache hits by operation",
		},
		[]string{"rpc"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "searchd_cache_misses_total",
			Help: "Response cache misses by operation",
		},
		[]string{"rpc"},
	)

	// Pipeline metrics. The "pipeline" label is "notes" or "users".
	PipelineProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "searchd_pipeline_processed_total",
			Help: "Tasks processed by pipeline and operation result",
		},
		[]string{"pipeline", "result"}, // indexed, updated, deleted, skipped, failed, retried
	)

	PipelineQueueSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "searchd_pipeline_queue_size",
			Help: "Current indexing queue depth",
		},
		[]string{"pipeline"},
	)

	PipelineBatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "searchd_pipeline_batches_total",
			Help: "Batches submitted by pipeline and outcome",
		},
		[]string{"pipeline", "outcome"}, // ok, failed
	)

	PipelineMemoryMB = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "searchd_pipeline_memory_mb",
			Help: "Sampled process heap usage attributed to the pipeline memory guard",
		},
		[]string{"pipeline"},
	)

	PipelineActiveWorkers = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "searchd_pipeline_active_workers",
			Help: "Workers currently draining batches",
		},
		[]string{"pipeline"},
	)

	// Backend metrics.
	BackendRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "searchd_backend_requests_total",
			Help: "Index backend calls by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	BackendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "searchd_backend_duration_seconds",
			Help:    "Index backend call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// Bus metrics.
	BusMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "searchd_bus_messages_total",
			Help: "Bus deliveries by topic and outcome",
		},
		[]string{"topic", "outcome"}, // acked, nacked, invalid
	)
)

// RecordRPC records one controller operation outcome with its latency.
func RecordRPC(rpc, outcome string, duration time.Duration) {
	RPCRequestsTotal.WithLabelValues(rpc, outcome).Inc()
	RPCDuration.WithLabelValues(rpc).Observe(duration.Seconds())
}

// RecordBackend records one backend call.
func RecordBackend(operation, outcome string, duration time.Duration) {
	BackendRequests.WithLabelValues(operation, outcome).Inc()
	BackendDuration.WithLabelValues(operation).Observe(duration.Seconds())
}
