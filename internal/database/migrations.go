// Linksync - Link Analytics Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/linksync

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/linksync/internal/logging"
)

// Migration is one numbered schema change.
type Migration struct {
	Version     int
	Name        string
	Description string
	SQL         string
	AppliedAt   time.Time
}

const schemaMigrationsTable = `
CREATE TABLE IF NOT EXISTS schema_migrations (
	version INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	description TEXT,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
);`

// migrations lists schema changes in version order. Never edit an applied
// migration; append a new one.
var migrations = []Migration{
	{
		Version:     1,
		Name:        "create_links",
		Description: "Canonical link records",
		SQL: `CREATE TABLE IF NOT EXISTS links (
			id TEXT PRIMARY KEY,
			short_code TEXT NOT NULL UNIQUE,
			long_url TEXT NOT NULL DEFAULT '',
			title TEXT,
			status TEXT NOT NULL DEFAULT 'active',
			clicks_total BIGINT NOT NULL DEFAULT 0 CHECK (clicks_total >= 0),
			last_synced_at TIMESTAMPTZ,
			last_sync_status TEXT NOT NULL DEFAULT 'never',
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);`,
	},
	{
		Version:     2,
		Name:        "create_assignments",
		Description: "Link to project junction",
		SQL: `CREATE TABLE IF NOT EXISTS assignments (
			link_id TEXT NOT NULL,
			project_id TEXT NOT NULL,
			assigned_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (link_id, project_id)
		);`,
	},
	{
		Version:     3,
		Name:        "create_analytics_snapshots",
		Description: "Per-link per-day analytics, countries and referrers as JSON objects",
		SQL: `CREATE TABLE IF NOT EXISTS analytics_snapshots (
			link_id TEXT NOT NULL,
			snapshot_date DATE NOT NULL,
			clicks BIGINT NOT NULL DEFAULT 0,
			countries TEXT NOT NULL DEFAULT '{}',
			referrers TEXT NOT NULL DEFAULT '{}',
			synced_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (link_id, snapshot_date)
		);`,
	},
	{
		Version:     4,
		Name:        "create_sync_runs",
		Description: "Append-only sync run log",
		SQL: `CREATE TABLE IF NOT EXISTS sync_runs (
			id TEXT PRIMARY KEY,
			trigger_type TEXT NOT NULL,
			status TEXT NOT NULL,
			started_at TIMESTAMPTZ NOT NULL,
			finished_at TIMESTAMPTZ,
			error_message TEXT NOT NULL DEFAULT ''
		);`,
	},
	{
		Version:     5,
		Name:        "create_sync_run_results",
		Description: "Ordered per-link outcomes of each run",
		SQL: `CREATE TABLE IF NOT EXISTS sync_run_results (
			run_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			link_id TEXT NOT NULL,
			status TEXT NOT NULL,
			error_kind TEXT NOT NULL DEFAULT '',
			message TEXT NOT NULL DEFAULT '',
			attempts INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (run_id, seq)
		);`,
	},
	{
		Version:     6,
		Name:        "index_sync_runs_started",
		Description: "Run history ordering",
		SQL:         `CREATE INDEX IF NOT EXISTS idx_sync_runs_started ON sync_runs (started_at);`,
	},
	{
		Version:     7,
		Name:        "index_assignments_project",
		Description: "Per-project assignment listing",
		SQL:         `CREATE INDEX IF NOT EXISTS idx_assignments_project ON assignments (project_id);`,
	},
}

func schemaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 60*time.Second)
}

func (db *DB) runMigrations() error {
	ctx, cancel := schemaContext()
	defer cancel()

	if _, err := db.conn.ExecContext(ctx, schemaMigrationsTable); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := db.appliedVersions(ctx)
	if err != nil {
		return err
	}

	count := 0
	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}
		if _, err := db.conn.ExecContext(ctx, m.SQL); err != nil {
			return fmt.Errorf("failed to execute migration v%d (%s): %w", m.Version, m.Name, err)
		}
		if _, err := db.conn.ExecContext(ctx,
			`INSERT INTO schema_migrations (version, name, description) VALUES (?, ?, ?)`,
			m.Version, m.Name, m.Description); err != nil {
			return fmt.Errorf("failed to record migration v%d: %w", m.Version, err)
		}
		count++
	}

	if count > 0 {
		logging.Info().Int("applied", count).Msg("Applied database migrations")
	}
	return nil
}

func (db *DB) appliedVersions(ctx context.Context) (map[int]bool, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}
	defer closeWithLog(rows, "rows")

	applied := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan migration row: %w", err)
		}
		applied[v] = true
	}
	return applied, rows.Err()
}

// SchemaVersion returns the highest applied migration version.
func (db *DB) SchemaVersion(ctx context.Context) (int, error) {
	ctx, cancel := db.queryContext(ctx)
	defer cancel()

	var version int
	if err := db.conn.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}
