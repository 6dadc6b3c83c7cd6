// Linksync - Link Analytics Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/linksync

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/linksync/internal/models"
)

// UpsertSnapshots writes snapshots keyed by (link, date) in one transaction.
// A re-synced date replaces the previous row rather than adding to it.
// ClicksOnly snapshots replace clicks and synced_at and keep the stored
// distributions; a new row gets empty ones.
func (db *DB) UpsertSnapshots(ctx context.Context, snapshots []models.AnalyticsSnapshot) (err error) {
	if len(snapshots) == 0 {
		return nil
	}
	defer db.observe("upsert", "analytics_snapshots", time.Now(), &err)
	ctx, cancel := db.queryContext(ctx)
	defer cancel()

	type encoded struct {
		countries string
		referrers string
	}
	enc := make([]encoded, len(snapshots))
	for i := range snapshots {
		c, err := encodeCounts(snapshots[i].Countries)
		if err != nil {
			return fmt.Errorf("failed to encode countries: %w", err)
		}
		r, err := encodeCounts(snapshots[i].Referrers)
		if err != nil {
			return fmt.Errorf("failed to encode referrers: %w", err)
		}
		enc[i] = encoded{countries: c, referrers: r}
	}

	err = withConflictRetry(ctx, func() error {
		tx, err := db.conn.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer rollback(tx)

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO analytics_snapshots (link_id, snapshot_date, clicks, countries, referrers, synced_at)
			VALUES (?, CAST(? AS DATE), ?, ?, ?, ?)
			ON CONFLICT (link_id, snapshot_date) DO UPDATE SET
				clicks = EXCLUDED.clicks,
				countries = EXCLUDED.countries,
				referrers = EXCLUDED.referrers,
				synced_at = EXCLUDED.synced_at`)
		if err != nil {
			return err
		}
		defer closeWithLog(stmt, "statement")

		clicksStmt, err := tx.PrepareContext(ctx, `
			INSERT INTO analytics_snapshots (link_id, snapshot_date, clicks, countries, referrers, synced_at)
			VALUES (?, CAST(? AS DATE), ?, '{}', '{}', ?)
			ON CONFLICT (link_id, snapshot_date) DO UPDATE SET
				clicks = EXCLUDED.clicks,
				synced_at = EXCLUDED.synced_at`)
		if err != nil {
			return err
		}
		defer closeWithLog(clicksStmt, "statement")

		for i := range snapshots {
			s := &snapshots[i]
			if s.ClicksOnly {
				if _, err := clicksStmt.ExecContext(ctx, s.LinkID, s.DateKey(), s.Clicks, s.SyncedAt.UTC()); err != nil {
					return err
				}
				continue
			}
			if _, err := stmt.ExecContext(ctx, s.LinkID, s.DateKey(), s.Clicks,
				enc[i].countries, enc[i].referrers, s.SyncedAt.UTC()); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
	if err != nil {
		return fmt.Errorf("failed to upsert snapshots: %w", err)
	}
	return nil
}

// ListSnapshots returns a link's snapshots with from <= date <= to, oldest first.
// Zero bounds are open.
func (db *DB) ListSnapshots(ctx context.Context, linkID string, from, to time.Time) (_ []models.AnalyticsSnapshot, err error) {
	defer db.observe("select", "analytics_snapshots", time.Now(), &err)
	ctx, cancel := db.queryContext(ctx)
	defer cancel()

	query := `SELECT link_id, strftime(snapshot_date, '%Y-%m-%d'), clicks, countries, referrers, synced_at
		FROM analytics_snapshots WHERE link_id = ?`
	args := []any{linkID}
	if !from.IsZero() {
		query += ` AND snapshot_date >= CAST(? AS DATE)`
		args = append(args, from.UTC().Format(models.DateLayout))
	}
	if !to.IsZero() {
		query += ` AND snapshot_date <= CAST(? AS DATE)`
		args = append(args, to.UTC().Format(models.DateLayout))
	}
	query += ` ORDER BY snapshot_date`

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer closeWithLog(rows, "rows")

	out := make([]models.AnalyticsSnapshot, 0)
	for rows.Next() {
		var (
			s         models.AnalyticsSnapshot
			date      string
			countries string
			referrers string
		)
		if err := rows.Scan(&s.LinkID, &date, &s.Clicks, &countries, &referrers, &s.SyncedAt); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		if s.Date, err = time.Parse(models.DateLayout, date); err != nil {
			return nil, fmt.Errorf("invalid snapshot date %q: %w", date, err)
		}
		if s.Countries, err = decodeCounts(countries); err != nil {
			return nil, fmt.Errorf("failed to decode countries: %w", err)
		}
		if s.Referrers, err = decodeCounts(referrers); err != nil {
			return nil, fmt.Errorf("failed to decode referrers: %w", err)
		}
		s.SyncedAt = s.SyncedAt.UTC()
		out = append(out, s)
	}
	return out, rows.Err()
}

func encodeCounts(m map[string]int64) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeCounts(s string) (map[string]int64, error) {
	m := make(map[string]int64)
	if s == "" {
		return m, nil
	}
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, err
	}
	return m, nil
}
