// Linksync - Link Analytics Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/linksync

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/linksync/internal/models"
)

// Assign records a link-project association. Assigning an existing pair is a no-op.
func (db *DB) Assign(ctx context.Context, linkID, projectID string, at time.Time) (err error) {
	defer db.observe("insert", "assignments", time.Now(), &err)
	ctx, cancel := db.queryContext(ctx)
	defer cancel()

	err = withConflictRetry(ctx, func() error {
		_, execErr := db.conn.ExecContext(ctx, `
			INSERT INTO assignments (link_id, project_id, assigned_at)
			VALUES (?, ?, ?)
			ON CONFLICT (link_id, project_id) DO NOTHING`,
			linkID, projectID, at.UTC())
		return execErr
	})
	if err != nil {
		return fmt.Errorf("failed to assign link: %w", err)
	}
	return nil
}

// Unassign removes a link-project association. Removing a missing pair is a no-op.
func (db *DB) Unassign(ctx context.Context, linkID, projectID string) (err error) {
	defer db.observe("delete", "assignments", time.Now(), &err)
	ctx, cancel := db.queryContext(ctx)
	defer cancel()

	err = withConflictRetry(ctx, func() error {
		_, execErr := db.conn.ExecContext(ctx,
			`DELETE FROM assignments WHERE link_id = ? AND project_id = ?`,
			linkID, projectID)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("failed to unassign link: %w", err)
	}
	return nil
}

// Reassign moves a link from one project to another in a single transaction.
// Either both changes are visible or neither is.
func (db *DB) Reassign(ctx context.Context, linkID, fromProject, toProject string, at time.Time) (err error) {
	defer db.observe("update", "assignments", time.Now(), &err)
	ctx, cancel := db.queryContext(ctx)
	defer cancel()

	err = withConflictRetry(ctx, func() error {
		return db.reassignTx(ctx, linkID, fromProject, toProject, at)
	})
	if err != nil {
		return fmt.Errorf("failed to reassign link: %w", err)
	}
	return nil
}

func (db *DB) reassignTx(ctx context.Context, linkID, fromProject, toProject string, at time.Time) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer rollback(tx)

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM assignments WHERE link_id = ? AND project_id = ?`,
		linkID, fromProject); err != nil {
		return err
	}
	if db.afterUnassign != nil {
		if err := db.afterUnassign(); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO assignments (link_id, project_id, assigned_at)
		VALUES (?, ?, ?)
		ON CONFLICT (link_id, project_id) DO NOTHING`,
		linkID, toProject, at.UTC()); err != nil {
		return err
	}
	return tx.Commit()
}

// ListAssignmentsByLink returns the projects a link belongs to.
func (db *DB) ListAssignmentsByLink(ctx context.Context, linkID string) (_ []models.Assignment, err error) {
	defer db.observe("select", "assignments", time.Now(), &err)
	ctx, cancel := db.queryContext(ctx)
	defer cancel()

	return db.queryAssignments(ctx, `
		SELECT link_id, project_id, assigned_at FROM assignments
		WHERE link_id = ? ORDER BY project_id`, linkID)
}

// ListAssignmentsByProject returns the links assigned to a project.
func (db *DB) ListAssignmentsByProject(ctx context.Context, projectID string) (_ []models.Assignment, err error) {
	defer db.observe("select", "assignments", time.Now(), &err)
	ctx, cancel := db.queryContext(ctx)
	defer cancel()

	return db.queryAssignments(ctx, `
		SELECT link_id, project_id, assigned_at FROM assignments
		WHERE project_id = ? ORDER BY assigned_at, link_id`, projectID)
}

func (db *DB) queryAssignments(ctx context.Context, query string, args ...any) ([]models.Assignment, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query assignments: %w", err)
	}
	defer closeWithLog(rows, "rows")

	out := make([]models.Assignment, 0)
	for rows.Next() {
		var a models.Assignment
		if err := rows.Scan(&a.LinkID, &a.ProjectID, &a.AssignedAt); err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		a.AssignedAt = a.AssignedAt.UTC()
		out = append(out, a)
	}
	return out, rows.Err()
}
