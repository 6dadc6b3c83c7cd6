// Linksync - Link Analytics Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/linksync

// Package metrics registers the Prometheus collectors exposed on /metrics.
//
// Collectors are package-level promauto variables; components record through
// the Record* helpers so label sets stay consistent:
//
//	metrics.RecordSyncRun("manual", "partial", time.Since(start))
//	metrics.RecordProviderRequest("clicks_summary", 200, elapsed)
//
// Families:
//   - linksync_db_*           DuckDB query latency and errors
//   - linksync_api_*          HTTP request counts and latency
//   - linksync_sync_*         run outcomes, per-link results, retries, lock state
//   - linksync_provider_*     provider calls and circuit breaker state
//   - linksync_aggregator_*   dropped breakdown entries
//   - linksync_resolve_cache_* long-URL cache efficiency
//   - linksync_events_*       published events
package metrics
