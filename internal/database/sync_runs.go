// Linksync - Link Analytics Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/linksync

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tomtom215/linksync/internal/models"
)

// StaleRunMessage is recorded on runs closed by RecoverStaleRuns.
const StaleRunMessage = "abandoned: run exceeded stale threshold"

const runColumns = `id, trigger_type, status, started_at, finished_at, error_message`

// CreateRun inserts run as the running run. It fails with
// models.ErrConcurrencyConflict if another run has not finished yet; the
// unfinished row is the sync lock.
func (db *DB) CreateRun(ctx context.Context, run *models.SyncRun) (err error) {
	db.runMu.Lock()
	defer db.runMu.Unlock()

	defer db.observe("insert", "sync_runs", time.Now(), &err)
	ctx, cancel := db.queryContext(ctx)
	defer cancel()

	var affected int64
	err = withConflictRetry(ctx, func() error {
		res, execErr := db.conn.ExecContext(ctx, `
			INSERT INTO sync_runs (id, trigger_type, status, started_at, finished_at, error_message)
			SELECT ?, ?, ?, ?, NULL, ''
			WHERE NOT EXISTS (SELECT 1 FROM sync_runs WHERE finished_at IS NULL)`,
			run.ID, string(run.Trigger), string(models.RunStatusRunning), run.StartedAt.UTC())
		if execErr != nil {
			return execErr
		}
		affected, execErr = res.RowsAffected()
		return execErr
	})
	if err != nil {
		return fmt.Errorf("failed to create sync run: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("sync already running: %w", models.ErrConcurrencyConflict)
	}
	run.Status = models.RunStatusRunning
	return nil
}

// RecoverStaleRuns marks running runs started before cutoff as failed and
// returns how many were closed.
func (db *DB) RecoverStaleRuns(ctx context.Context, cutoff, at time.Time) (_ int64, err error) {
	db.runMu.Lock()
	defer db.runMu.Unlock()

	defer db.observe("update", "sync_runs", time.Now(), &err)
	ctx, cancel := db.queryContext(ctx)
	defer cancel()

	var affected int64
	err = withConflictRetry(ctx, func() error {
		res, execErr := db.conn.ExecContext(ctx, `
			UPDATE sync_runs SET status = ?, finished_at = ?, error_message = ?
			WHERE finished_at IS NULL AND started_at < ?`,
			string(models.RunStatusFailed), at.UTC(), StaleRunMessage, cutoff.UTC())
		if execErr != nil {
			return execErr
		}
		affected, execErr = res.RowsAffected()
		return execErr
	})
	if err != nil {
		return 0, fmt.Errorf("failed to recover stale runs: %w", err)
	}
	return affected, nil
}

// FinishRun writes the per-link results, terminal status and finish time of
// run in one transaction, releasing the sync lock.
func (db *DB) FinishRun(ctx context.Context, run *models.SyncRun) (err error) {
	if run.FinishedAt == nil || !run.Status.Terminal() {
		return models.NewValidationError("status", "run must be terminal with a finish time")
	}
	defer db.observe("update", "sync_runs", time.Now(), &err)
	ctx, cancel := db.queryContext(ctx)
	defer cancel()

	err = withConflictRetry(ctx, func() error {
		return db.finishRunTx(ctx, run)
	})
	if err != nil {
		return fmt.Errorf("failed to finish sync run: %w", err)
	}
	return nil
}

func (db *DB) finishRunTx(ctx context.Context, run *models.SyncRun) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer rollback(tx)

	res, err := tx.ExecContext(ctx, `
		UPDATE sync_runs SET status = ?, finished_at = ?, error_message = ?
		WHERE id = ? AND finished_at IS NULL`,
		string(run.Status), run.FinishedAt.UTC(), run.Error, run.ID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("run %s is not running: %w", run.ID, models.ErrNotFound)
	}

	if len(run.Results) > 0 {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO sync_run_results (run_id, seq, link_id, status, error_kind, message, attempts)
			VALUES (?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer closeWithLog(stmt, "statement")
		for i := range run.Results {
			r := &run.Results[i]
			if _, err := stmt.ExecContext(ctx, run.ID, i, r.LinkID, string(r.Status),
				string(r.ErrorKind), r.Message, r.Attempts); err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}

// GetRun returns a run with its results in recorded order.
func (db *DB) GetRun(ctx context.Context, id string) (_ *models.SyncRun, err error) {
	defer db.observe("select", "sync_runs", time.Now(), &err)
	ctx, cancel := db.queryContext(ctx)
	defer cancel()

	run, err := scanRun(db.conn.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM sync_runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("sync run %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sync run: %w", err)
	}

	results, err := db.loadResults(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	run.Results = results[id]
	if run.Results == nil {
		run.Results = []models.LinkResult{}
	}
	return run, nil
}

// RunningRun returns the unfinished run, or models.ErrNotFound when idle.
func (db *DB) RunningRun(ctx context.Context) (_ *models.SyncRun, err error) {
	defer db.observe("select", "sync_runs", time.Now(), &err)
	ctx, cancel := db.queryContext(ctx)
	defer cancel()

	run, err := scanRun(db.conn.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM sync_runs WHERE finished_at IS NULL LIMIT 1`))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("no running sync: %w", models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get running sync: %w", err)
	}
	run.Results = []models.LinkResult{}
	return run, nil
}

// ListRuns returns up to limit runs, newest first, with their results.
func (db *DB) ListRuns(ctx context.Context, limit int) (_ []models.SyncRun, err error) {
	defer db.observe("select", "sync_runs", time.Now(), &err)
	ctx, cancel := db.queryContext(ctx)
	defer cancel()

	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+runColumns+` FROM sync_runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync runs: %w", err)
	}
	runs := make([]models.SyncRun, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			closeWithLog(rows, "rows")
			return nil, fmt.Errorf("failed to scan sync run: %w", err)
		}
		runs = append(runs, *run)
	}
	err = rows.Err()
	closeWithLog(rows, "rows")
	if err != nil {
		return nil, fmt.Errorf("failed to iterate sync runs: %w", err)
	}
	if len(runs) == 0 {
		return runs, nil
	}

	ids := make([]string, len(runs))
	for i := range runs {
		ids[i] = runs[i].ID
	}
	results, err := db.loadResults(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range runs {
		runs[i].Results = results[runs[i].ID]
		if runs[i].Results == nil {
			runs[i].Results = []models.LinkResult{}
		}
	}
	return runs, nil
}

func (db *DB) loadResults(ctx context.Context, runIDs []string) (map[string][]models.LinkResult, error) {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(runIDs)), ", ")
	args := make([]any, len(runIDs))
	for i, id := range runIDs {
		args[i] = id
	}

	rows, err := db.conn.QueryContext(ctx, `
		SELECT run_id, link_id, status, error_kind, message, attempts
		FROM sync_run_results WHERE run_id IN (`+placeholders+`)
		ORDER BY run_id, seq`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query run results: %w", err)
	}
	defer closeWithLog(rows, "rows")

	out := make(map[string][]models.LinkResult, len(runIDs))
	for rows.Next() {
		var (
			runID  string
			r      models.LinkResult
			status string
			kind   string
		)
		if err := rows.Scan(&runID, &r.LinkID, &status, &kind, &r.Message, &r.Attempts); err != nil {
			return nil, fmt.Errorf("failed to scan run result: %w", err)
		}
		r.Status = models.ResultStatus(status)
		r.ErrorKind = models.ErrorKind(kind)
		out[runID] = append(out[runID], r)
	}
	return out, rows.Err()
}

func scanRun(row rowScanner) (*models.SyncRun, error) {
	var (
		run        models.SyncRun
		trigger    string
		status     string
		finishedAt sql.NullTime
	)
	if err := row.Scan(&run.ID, &trigger, &status, &run.StartedAt, &finishedAt, &run.Error); err != nil {
		return nil, err
	}
	run.Trigger = models.RunTrigger(trigger)
	run.Status = models.RunStatus(status)
	run.StartedAt = run.StartedAt.UTC()
	if finishedAt.Valid {
		t := finishedAt.Time.UTC()
		run.FinishedAt = &t
	}
	return &run, nil
}
