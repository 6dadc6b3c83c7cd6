// Linksync - Link Analytics Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/linksync

// Package database persists Linksync state in DuckDB.
//
// Tables:
//
//	links                canonical link records, unique short_code
//	assignments          link/project junction, primary key (link_id, project_id)
//	analytics_snapshots  per-day analytics, primary key (link_id, snapshot_date)
//	sync_runs            append-only run log; the row with finished_at IS NULL is the sync lock
//	sync_run_results     ordered per-link outcomes of each run
//
// Schema changes are applied as numbered migrations recorded in
// schema_migrations. Every query runs under the configured query timeout and
// is observed by the linksync_db_* metrics.
//
// Foreign keys are intentionally absent: DuckDB rejects updates to referenced
// parent rows, and link rows are updated on every sync. Referential checks are
// done by the registry and assignment layers.
package database
