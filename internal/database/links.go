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

const linkColumns = `id, short_code, long_url, title, status, clicks_total,
	last_synced_at, last_sync_status, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLink(row rowScanner) (*models.Link, error) {
	var (
		link         models.Link
		title        sql.NullString
		lastSyncedAt sql.NullTime
		status       string
		syncStatus   string
	)
	if err := row.Scan(&link.ID, &link.ShortCode, &link.LongURL, &title, &status,
		&link.ClicksTotal, &lastSyncedAt, &syncStatus, &link.CreatedAt, &link.UpdatedAt); err != nil {
		return nil, err
	}
	link.Status = models.LinkStatus(status)
	link.LastSyncStatus = models.SyncStatus(syncStatus)
	if title.Valid {
		link.Title = &title.String
	}
	if lastSyncedAt.Valid {
		t := lastSyncedAt.Time.UTC()
		link.LastSyncedAt = &t
	}
	link.CreatedAt = link.CreatedAt.UTC()
	link.UpdatedAt = link.UpdatedAt.UTC()
	return &link, nil
}

// GetLink returns the link with the given ID or models.ErrNotFound.
func (db *DB) GetLink(ctx context.Context, id string) (_ *models.Link, err error) {
	defer db.observe("select", "links", time.Now(), &err)
	ctx, cancel := db.queryContext(ctx)
	defer cancel()

	link, err := scanLink(db.conn.QueryRowContext(ctx,
		`SELECT `+linkColumns+` FROM links WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("link %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get link: %w", err)
	}
	return link, nil
}

// GetLinkByShortCode returns the link with the given short code or models.ErrNotFound.
func (db *DB) GetLinkByShortCode(ctx context.Context, code string) (_ *models.Link, err error) {
	defer db.observe("select", "links", time.Now(), &err)
	ctx, cancel := db.queryContext(ctx)
	defer cancel()

	link, err := scanLink(db.conn.QueryRowContext(ctx,
		`SELECT `+linkColumns+` FROM links WHERE short_code = ?`, code))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("short code %s: %w", code, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get link by short code: %w", err)
	}
	return link, nil
}

// CreateLinkIfAbsent inserts link unless a link with the same short code
// exists, in which case the existing record is returned with created=false.
// Archived links count as existing.
func (db *DB) CreateLinkIfAbsent(ctx context.Context, link *models.Link) (_ *models.Link, created bool, err error) {
	db.linkMu.Lock()
	defer db.linkMu.Unlock()

	existing, err := db.GetLinkByShortCode(ctx, link.ShortCode)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, false, err
	}

	defer db.observe("insert", "links", time.Now(), &err)
	qctx, cancel := db.queryContext(ctx)
	defer cancel()

	_, err = db.conn.ExecContext(qctx, `
		INSERT INTO links (`+linkColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		link.ID, link.ShortCode, link.LongURL, nullString(link.Title), string(link.Status),
		link.ClicksTotal, nullTime(link.LastSyncedAt), string(link.LastSyncStatus),
		link.CreatedAt.UTC(), link.UpdatedAt.UTC())
	if isConstraintViolation(err) {
		// Lost a race with another writer on the same database file.
		winner, getErr := db.GetLinkByShortCode(ctx, link.ShortCode)
		if getErr != nil {
			return nil, false, fmt.Errorf("failed to re-read link after conflict: %w", getErr)
		}
		return winner, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to insert link: %w", err)
	}
	return link, true, nil
}

// ListLinks returns links matching filter ordered by creation time, plus the
// total number of matching links.
func (db *DB) ListLinks(ctx context.Context, filter models.LinkFilter) (_ []models.Link, total int, err error) {
	defer db.observe("select", "links", time.Now(), &err)
	ctx, cancel := db.queryContext(ctx)
	defer cancel()

	var (
		where []string
		args  []any
	)
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}
	whereSQL := ""
	if len(where) > 0 {
		whereSQL = " WHERE " + strings.Join(where, " AND ")
	}

	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM links`+whereSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count links: %w", err)
	}

	query := `SELECT ` + linkColumns + ` FROM links` + whereSQL + ` ORDER BY created_at, id`
	if filter.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, filter.Limit, filter.Offset)
	}

	links, err := db.queryLinks(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return links, total, nil
}

// ListActiveLinks returns every active link in stable order.
func (db *DB) ListActiveLinks(ctx context.Context) (_ []models.Link, err error) {
	defer db.observe("select", "links", time.Now(), &err)
	ctx, cancel := db.queryContext(ctx)
	defer cancel()

	return db.queryLinks(ctx,
		`SELECT `+linkColumns+` FROM links WHERE status = ? ORDER BY created_at, id`,
		string(models.LinkStatusActive))
}

func (db *DB) queryLinks(ctx context.Context, query string, args ...any) ([]models.Link, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query links: %w", err)
	}
	defer closeWithLog(rows, "rows")

	links := make([]models.Link, 0)
	for rows.Next() {
		link, err := scanLink(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan link: %w", err)
		}
		links = append(links, *link)
	}
	return links, rows.Err()
}

// ArchiveLink marks a link archived. changed is false when it already was.
func (db *DB) ArchiveLink(ctx context.Context, id string, at time.Time) (changed bool, err error) {
	defer db.observe("update", "links", time.Now(), &err)
	qctx, cancel := db.queryContext(ctx)
	defer cancel()

	var affected int64
	err = withConflictRetry(qctx, func() error {
		res, execErr := db.conn.ExecContext(qctx,
			`UPDATE links SET status = ?, updated_at = ? WHERE id = ? AND status <> ?`,
			string(models.LinkStatusArchived), at.UTC(), id, string(models.LinkStatusArchived))
		if execErr != nil {
			return execErr
		}
		affected, execErr = res.RowsAffected()
		return execErr
	})
	if err != nil {
		return false, fmt.Errorf("failed to archive link: %w", err)
	}
	if affected > 0 {
		return true, nil
	}
	if _, err = db.GetLink(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

// UpdateLinkTitle sets or clears (nil) a link's title.
func (db *DB) UpdateLinkTitle(ctx context.Context, id string, title *string, at time.Time) (err error) {
	defer db.observe("update", "links", time.Now(), &err)
	qctx, cancel := db.queryContext(ctx)
	defer cancel()

	var affected int64
	err = withConflictRetry(qctx, func() error {
		res, execErr := db.conn.ExecContext(qctx,
			`UPDATE links SET title = ?, updated_at = ? WHERE id = ?`,
			nullString(title), at.UTC(), id)
		if execErr != nil {
			return execErr
		}
		affected, execErr = res.RowsAffected()
		return execErr
	})
	if err != nil {
		return fmt.Errorf("failed to update link title: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("link %s: %w", id, models.ErrNotFound)
	}
	return nil
}

// ApplySyncResult writes the sync-owned fields of a link in one statement.
// The status column is never touched, so a concurrent archive survives.
func (db *DB) ApplySyncResult(ctx context.Context, id string, clicksTotal int64, status models.SyncStatus, at time.Time) (err error) {
	defer db.observe("update", "links", time.Now(), &err)
	qctx, cancel := db.queryContext(ctx)
	defer cancel()

	var affected int64
	err = withConflictRetry(qctx, func() error {
		res, execErr := db.conn.ExecContext(qctx, `
			UPDATE links
			SET clicks_total = ?, last_sync_status = ?, last_synced_at = ?, updated_at = ?
			WHERE id = ?`,
			clicksTotal, string(status), at.UTC(), at.UTC(), id)
		if execErr != nil {
			return execErr
		}
		affected, execErr = res.RowsAffected()
		return execErr
	})
	if err != nil {
		return fmt.Errorf("failed to apply sync result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("link %s: %w", id, models.ErrNotFound)
	}
	return nil
}

// MarkLinkSyncFailed records a failed attempt without changing clicks_total.
func (db *DB) MarkLinkSyncFailed(ctx context.Context, id string, at time.Time) (err error) {
	defer db.observe("update", "links", time.Now(), &err)
	qctx, cancel := db.queryContext(ctx)
	defer cancel()

	err = withConflictRetry(qctx, func() error {
		_, execErr := db.conn.ExecContext(qctx, `
			UPDATE links SET last_sync_status = ?, last_synced_at = ?, updated_at = ?
			WHERE id = ?`,
			string(models.SyncStatusFailed), at.UTC(), at.UTC(), id)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("failed to mark link sync failed: %w", err)
	}
	return nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
