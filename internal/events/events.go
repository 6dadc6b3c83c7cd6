// Linksync - Link Analytics Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/linksync

package events

import (
	"time"

	"github.com/tomtom215/linksync/internal/models"
)

const (
	TopicSyncRunCompleted = "sync.run.completed"
	TopicLinkArchived     = "link.archived"
)

// SyncRunCompleted summarizes a finished run.
type SyncRunCompleted struct {
	RunID      string            `json:"run_id"`
	Trigger    models.RunTrigger `json:"trigger"`
	Status     models.RunStatus  `json:"status"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
	Succeeded  int               `json:"succeeded"`
	Failed     int               `json:"failed"`
	Skipped    int               `json:"skipped"`
	Error      string            `json:"error,omitempty"`
}

// NewSyncRunCompleted builds the event for a terminal run.
func NewSyncRunCompleted(run *models.SyncRun) SyncRunCompleted {
	ok, failed, skipped := run.Counts()
	ev := SyncRunCompleted{
		RunID:     run.ID,
		Trigger:   run.Trigger,
		Status:    run.Status,
		StartedAt: run.StartedAt,
		Succeeded: ok,
		Failed:    failed,
		Skipped:   skipped,
		Error:     run.Error,
	}
	if run.FinishedAt != nil {
		ev.FinishedAt = *run.FinishedAt
	}
	return ev
}

// LinkArchived is emitted once per link.
type LinkArchived struct {
	LinkID     string    `json:"link_id"`
	ShortCode  string    `json:"short_code"`
	ArchivedAt time.Time `json:"archived_at"`
}
