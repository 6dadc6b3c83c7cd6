// Linksync - Link Analytics Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/linksync

// Package assignment manages the many-to-many association between links and
// projects. It is the only writer of assignments.
package assignment

import (
	"context"
	"strings"
	"time"

	"github.com/tomtom215/linksync/internal/logging"
	"github.com/tomtom215/linksync/internal/models"
)

const maxProjectIDLength = 128

// Store is the persistence the manager needs. *database.DB satisfies it.
type Store interface {
	GetLink(ctx context.Context, id string) (*models.Link, error)
	Assign(ctx context.Context, linkID, projectID string, at time.Time) error
	Unassign(ctx context.Context, linkID, projectID string) error
	Reassign(ctx context.Context, linkID, fromProject, toProject string, at time.Time) error
	ListAssignmentsByLink(ctx context.Context, linkID string) ([]models.Assignment, error)
	ListAssignmentsByProject(ctx context.Context, projectID string) ([]models.Assignment, error)
}

// Manager is the assignment manager.
type Manager struct {
	store Store
	now   func() time.Time
}

// New builds a manager over store.
func New(store Store) *Manager {
	return &Manager{store: store, now: func() time.Time { return time.Now().UTC() }}
}

// Assign associates a link with a project. Repeating it is a no-op.
func (m *Manager) Assign(ctx context.Context, linkID, projectID string) error {
	projectID, err := cleanProjectID("project_id", projectID)
	if err != nil {
		return err
	}
	if _, err := m.store.GetLink(ctx, linkID); err != nil {
		return err
	}
	return m.store.Assign(ctx, linkID, projectID, m.now())
}

// Unassign removes an association. Removing a missing one is a no-op.
func (m *Manager) Unassign(ctx context.Context, linkID, projectID string) error {
	projectID, err := cleanProjectID("project_id", projectID)
	if err != nil {
		return err
	}
	return m.store.Unassign(ctx, linkID, projectID)
}

// Reassign moves a link from one project to another atomically. Other
// assignments of the link are untouched. from == to behaves like Assign.
func (m *Manager) Reassign(ctx context.Context, linkID, fromProjectID, toProjectID string) error {
	from, err := cleanProjectID("from", fromProjectID)
	if err != nil {
		return err
	}
	to, err := cleanProjectID("to", toProjectID)
	if err != nil {
		return err
	}
	if _, err := m.store.GetLink(ctx, linkID); err != nil {
		return err
	}
	if from == to {
		return m.store.Assign(ctx, linkID, to, m.now())
	}

	if err := m.store.Reassign(ctx, linkID, from, to, m.now()); err != nil {
		return err
	}
	logging.Ctx(ctx).Info().Str("link_id", linkID).Str("from", from).Str("to", to).Msg("Link reassigned")
	return nil
}

// ListByLink returns the link's assignments ordered by project ID.
func (m *Manager) ListByLink(ctx context.Context, linkID string) ([]models.Assignment, error) {
	return m.store.ListAssignmentsByLink(ctx, linkID)
}

// ListByProject returns the project's assignments in assignment order.
func (m *Manager) ListByProject(ctx context.Context, projectID string) ([]models.Assignment, error) {
	projectID, err := cleanProjectID("project_id", projectID)
	if err != nil {
		return nil, err
	}
	return m.store.ListAssignmentsByProject(ctx, projectID)
}

func cleanProjectID(field, id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", models.NewValidationError(field, "must not be empty")
	}
	if len(id) > maxProjectIDLength {
		return "", models.NewValidationError(field, "must be at most %d bytes", maxProjectIDLength)
	}
	return id, nil
}
