// Linksync - Link Analytics Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/linksync

package api

import (
	"context"
	"time"

	"github.com/tomtom215/linksync/internal/models"
)

// LinkService manages the link registry.
type LinkService interface {
	Ingest(ctx context.Context, rawInput string, title *string) (*models.Link, bool, error)
	Get(ctx context.Context, linkID string) (*models.Link, error)
	List(ctx context.Context, filter models.LinkFilter) ([]models.Link, int, error)
	UpdateTitle(ctx context.Context, linkID string, title *string) (*models.Link, error)
	Archive(ctx context.Context, linkID string) (*models.Link, error)
}

// AssignmentService manages link to project associations.
type AssignmentService interface {
	Assign(ctx context.Context, linkID, projectID string) error
	Unassign(ctx context.Context, linkID, projectID string) error
	Reassign(ctx context.Context, linkID, fromProjectID, toProjectID string) error
	ListByLink(ctx context.Context, linkID string) ([]models.Assignment, error)
	ListByProject(ctx context.Context, projectID string) ([]models.Assignment, error)
}

// SnapshotReader reads stored daily analytics.
type SnapshotReader interface {
	ListSnapshots(ctx context.Context, linkID string, from, to time.Time) ([]models.AnalyticsSnapshot, error)
}

// SyncService starts and reports on sync runs.
type SyncService interface {
	TriggerAsync(ctx context.Context, trigger models.RunTrigger) (*models.SyncRun, error)
	Run(ctx context.Context, runID string) (*models.SyncRun, error)
	Runs(ctx context.Context, limit int) ([]models.SyncRun, error)
	Current(ctx context.Context) (*models.SyncRun, error)
}

// Pinger reports storage reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies are the services behind the handlers. Components are
// optional liveness probes reported by /health.
type Dependencies struct {
	Links       LinkService
	Assignments AssignmentService
	Snapshots   SnapshotReader
	Sync        SyncService
	DB          Pinger
	Components  map[string]func() bool
	Version     string
}

// Handler implements the HTTP endpoints.
type Handler struct {
	links       LinkService
	assignments AssignmentService
	snapshots   SnapshotReader
	sync        SyncService
	db          Pinger
	components  map[string]func() bool
	version     string
	startTime   time.Time
}

// NewHandler builds a Handler.
func NewHandler(deps Dependencies) *Handler {
	return &Handler{
		links:       deps.Links,
		assignments: deps.Assignments,
		snapshots:   deps.Snapshots,
		sync:        deps.Sync,
		db:          deps.DB,
		components:  deps.Components,
		version:     deps.Version,
		startTime:   time.Now(),
	}
}
