// Linksync - Link Analytics Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/linksync

package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	_ "github.com/duckdb/duckdb-go/v2" // DuckDB driver

	"github.com/tomtom215/linksync/internal/config"
	"github.com/tomtom215/linksync/internal/logging"
	"github.com/tomtom215/linksync/internal/metrics"
)

// DB is the DuckDB-backed store.
type DB struct {
	conn *sql.DB
	cfg  *config.DatabaseConfig

	// linkMu serializes get-or-create on short codes.
	linkMu sync.Mutex

	// runMu serializes sync lock acquisition.
	runMu sync.Mutex

	// afterUnassign runs inside Reassign between the delete and the insert.
	// Tests use it to simulate a crash mid-reassignment.
	afterUnassign func() error
}

// New opens (or creates) the database and applies pending migrations.
func New(cfg *config.DatabaseConfig) (*DB, error) {
	numThreads := cfg.Threads
	if numThreads <= 0 {
		numThreads = runtime.NumCPU()
	}

	if cfg.Path != ":memory:" {
		if dir := filepath.Dir(cfg.Path); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
			}
		}
	}

	maxMemory := cfg.MaxMemory
	if maxMemory == "" {
		maxMemory = "512MB"
	}
	connStr := fmt.Sprintf("%s?access_mode=read_write&threads=%d&max_memory=%s",
		cfg.Path, numThreads, maxMemory)

	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	conn.SetMaxOpenConns(numThreads)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(time.Hour)

	db := &DB{conn: conn, cfg: cfg}
	if err := db.runMigrations(); err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return db, nil
}

// Close checkpoints and closes the database.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if _, err := db.conn.ExecContext(ctx, "CHECKPOINT"); err != nil {
		logging.Warn().Err(err).Msg("Failed to checkpoint database before close")
	}
	return db.conn.Close()
}

// Ping verifies the connection is alive.
func (db *DB) Ping(ctx context.Context) error {
	ctx, cancel := db.queryContext(ctx)
	defer cancel()
	return db.conn.PingContext(ctx)
}

// Conn exposes the underlying pool for health checks and tests.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// queryContext bounds a store call with the configured query timeout.
func (db *DB) queryContext(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := db.cfg.QueryTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return context.WithTimeout(ctx, timeout)
}

// observe records metrics for a finished store call. Use with defer:
//
//	defer db.observe("select", "links", time.Now(), &err)
func (db *DB) observe(operation, table string, start time.Time, errp *error) {
	var err error
	if errp != nil {
		err = *errp
	}
	metrics.RecordDBQuery(operation, table, time.Since(start), err)
}
