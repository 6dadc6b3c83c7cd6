// Linksync - Link Analytics Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/linksync

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Database
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "linksync_db_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linksync_db_query_errors_total",
			Help: "Total number of DuckDB query errors",
		},
		[]string{"operation", "table"},
	)

	// API
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linksync_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "linksync_api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// Sync
	SyncRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linksync_sync_runs_total",
			Help: "Total number of finished sync runs by trigger and terminal status",
		},
		[]string{"trigger", "status"},
	)

	SyncRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "linksync_sync_run_duration_seconds",
			Help:    "Duration of sync runs in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"trigger"},
	)

	SyncLinkResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linksync_sync_link_results_total",
			Help: "Per-link sync outcomes by status and error kind",
		},
		[]string{"status", "error_kind"},
	)

	SyncRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "linksync_sync_retries_total",
			Help: "Total number of retried provider calls",
		},
	)

	SyncConflicts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linksync_sync_conflicts_total",
			Help: "Sync triggers rejected because a run was already in progress",
		},
		[]string{"trigger"},
	)

	SyncInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "linksync_sync_in_progress",
			Help: "1 while this process is executing a sync run",
		},
	)

	SyncLastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "linksync_sync_last_success_timestamp_seconds",
			Help: "Unix timestamp of the last run that finished with status success",
		},
	)

	ScheduledTriggers = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linksync_sync_scheduled_triggers_total",
			Help: "Scheduled trigger outcomes (run status, skipped or error)",
		},
		[]string{"outcome"},
	)

	// Provider
	ProviderRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linksync_provider_requests_total",
			Help: "Total number of provider API requests by endpoint and HTTP status",
		},
		[]string{"endpoint", "status"},
	)

	ProviderRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "linksync_provider_request_duration_seconds",
			Help:    "Duration of provider API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "linksync_provider_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linksync_provider_circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// Aggregator
	AggregatorDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linksync_aggregator_dropped_entries_total",
			Help: "Malformed or unknown breakdown entries dropped during normalization",
		},
		[]string{"dimension"},
	)

	// Resolve cache
	ResolveCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "linksync_resolve_cache_hits_total",
			Help: "Long-URL resolution cache hits",
		},
	)

	ResolveCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "linksync_resolve_cache_misses_total",
			Help: "Long-URL resolution cache misses",
		},
	)

	// Events
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linksync_events_published_total",
			Help: "Published domain events by topic and result",
		},
		[]string{"topic", "result"},
	)
)

// RecordDBQuery records a query duration and, on failure, an error.
func RecordDBQuery(operation, table string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
	if err != nil {
		DBQueryErrors.WithLabelValues(operation, table).Inc()
	}
}

// RecordAPIRequest records an API request.
func RecordAPIRequest(method, route string, status int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordSyncRun records a finished run.
func RecordSyncRun(trigger, status string, duration time.Duration) {
	SyncRunsTotal.WithLabelValues(trigger, status).Inc()
	SyncRunDuration.WithLabelValues(trigger).Observe(duration.Seconds())
	if status == "success" {
		SyncLastSuccess.SetToCurrentTime()
	}
}

// RecordLinkResult records one per-link outcome. errorKind may be empty.
func RecordLinkResult(status, errorKind string) {
	if errorKind == "" {
		errorKind = "none"
	}
	SyncLinkResults.WithLabelValues(status, errorKind).Inc()
}

// RecordProviderRequest records a provider call. status 0 means no HTTP response.
func RecordProviderRequest(endpoint string, status int, duration time.Duration) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	ProviderRequests.WithLabelValues(endpoint, label).Inc()
	ProviderRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// RecordEventPublish records an event publish attempt.
func RecordEventPublish(topic string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	EventsPublished.WithLabelValues(topic, result).Inc()
}
