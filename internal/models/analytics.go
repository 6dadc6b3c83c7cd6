// Linksync - Link Analytics Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/linksync

package models

import "time"

// DateLayout is the calendar-day format used for snapshot dates.
const DateLayout = "2006-01-02"

// AnalyticsSnapshot holds the normalized analytics of one link for one UTC day.
// Snapshots are keyed by (LinkID, Date); rewriting a day replaces it.
//
// ClicksOnly marks a snapshot whose distributions were not fetched in this
// sync. Storing it updates the click count and keeps the stored countries and
// referrers of that day.
type AnalyticsSnapshot struct {
	LinkID     string           `json:"link_id"`
	Date       time.Time        `json:"date"`
	Clicks     int64            `json:"clicks"`
	Countries  map[string]int64 `json:"countries"`
	Referrers  map[string]int64 `json:"referrers"`
	SyncedAt   time.Time        `json:"synced_at"`
	ClicksOnly bool             `json:"-"`
}

// DateKey returns the snapshot date as YYYY-MM-DD.
func (s *AnalyticsSnapshot) DateKey() string {
	return s.Date.UTC().Format(DateLayout)
}

// Day truncates t to midnight UTC.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
