// Linksync - Link Analytics Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/linksync

package models

import "time"

// LinkStatus is the lifecycle state of a link.
type LinkStatus string

const (
	LinkStatusActive   LinkStatus = "active"
	LinkStatusArchived LinkStatus = "archived"
)

// Valid reports whether s is a known link status.
func (s LinkStatus) Valid() bool {
	return s == LinkStatusActive || s == LinkStatusArchived
}

// SyncStatus is the outcome of the most recent sync attempt for a link.
type SyncStatus string

const (
	SyncStatusNever   SyncStatus = "never"
	SyncStatusSuccess SyncStatus = "success"
	SyncStatusPartial SyncStatus = "partial"
	SyncStatusFailed  SyncStatus = "failed"
)

// Link is the canonical record of one shortened URL tracked by the system.
type Link struct {
	ID             string     `json:"id"`
	ShortCode      string     `json:"short_code"`
	LongURL        string     `json:"long_url,omitempty"`
	Title          *string    `json:"title,omitempty"`
	Status         LinkStatus `json:"status"`
	ClicksTotal    int64      `json:"clicks_total"`
	LastSyncedAt   *time.Time `json:"last_synced_at,omitempty"`
	LastSyncStatus SyncStatus `json:"last_sync_status"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// IsActive reports whether the link participates in sync runs.
func (l *Link) IsActive() bool {
	return l.Status == LinkStatusActive
}

// LinkFilter narrows link listings. A zero Status matches every status.
type LinkFilter struct {
	Status LinkStatus
	Limit  int
	Offset int
}
