// Linksync - Link Analytics Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/linksync

package database

import (
	"context"
	"testing"
	"time"

	"github.com/tomtom215/linksync/internal/config"
	"github.com/tomtom215/linksync/internal/models"
)

// testDBSemaphore limits concurrent in-memory DuckDB instances in CI.
var testDBSemaphore = make(chan struct{}, 1)

func setupTestDB(t *testing.T) *DB {
	t.Helper()

	testDBSemaphore <- struct{}{}
	db, err := New(&config.DatabaseConfig{
		Path:         ":memory:",
		MaxMemory:    "256MB",
		Threads:      2,
		QueryTimeout: 10 * time.Second,
	})
	if err != nil {
		<-testDBSemaphore
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
		<-testDBSemaphore
	})
	return db
}

var testEpoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func insertTestLink(t *testing.T, db *DB, id, code string) *models.Link {
	t.Helper()
	link := &models.Link{
		ID:             id,
		ShortCode:      code,
		LongURL:        "https://example.com/" + code,
		Status:         models.LinkStatusActive,
		LastSyncStatus: models.SyncStatusNever,
		CreatedAt:      testEpoch,
		UpdatedAt:      testEpoch,
	}
	got, created, err := db.CreateLinkIfAbsent(context.Background(), link)
	if err != nil {
		t.Fatalf("CreateLinkIfAbsent(%s) error = %v", code, err)
	}
	if !created {
		t.Fatalf("CreateLinkIfAbsent(%s) created = false", code)
	}
	return got
}

func TestNew_AppliesMigrations(t *testing.T) {
	db := setupTestDB(t)

	version, err := db.SchemaVersion(context.Background())
	if err != nil {
		t.Fatalf("SchemaVersion() error = %v", err)
	}
	if want := migrations[len(migrations)-1].Version; version != want {
		t.Errorf("SchemaVersion() = %d, want %d", version, want)
	}

	if err := db.runMigrations(); err != nil {
		t.Errorf("runMigrations() second pass error = %v", err)
	}
}

func TestPing(t *testing.T) {
	db := setupTestDB(t)
	if err := db.Ping(context.Background()); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
}

func TestIsTransactionConflict(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"conflict", errString("TransactionContext Error: Transaction conflict: cannot update"), true},
		{"update conflict", errString("Conflict on update!"), true},
		{"other", errString("Catalog Error"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := isTransactionConflict(tt.err); got != tt.want {
				t.Errorf("isTransactionConflict() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWithConflictRetry(t *testing.T) {
	t.Parallel()

	calls := 0
	err := withConflictRetry(context.Background(), func() error {
		calls++
		if calls < 2 {
			return errString("Transaction conflict")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("withConflictRetry() error = %v", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

type errString string

func (e errString) Error() string { return string(e) }
