// Linksync - Link Analytics Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/linksync

// Package registry owns canonical link records: ingest with normalization
// and dedup, archive, listing, and the sync-owned fields of a link.
package registry

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/tomtom215/linksync/internal/logging"
	"github.com/tomtom215/linksync/internal/models"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
	maxTitleLength   = 500
)

// Store is the persistence the registry needs. *database.DB satisfies it.
type Store interface {
	CreateLinkIfAbsent(ctx context.Context, link *models.Link) (*models.Link, bool, error)
	GetLink(ctx context.Context, id string) (*models.Link, error)
	ListLinks(ctx context.Context, filter models.LinkFilter) ([]models.Link, int, error)
	ListActiveLinks(ctx context.Context) ([]models.Link, error)
	ArchiveLink(ctx context.Context, id string, at time.Time) (bool, error)
	UpdateLinkTitle(ctx context.Context, id string, title *string, at time.Time) error
	ApplySyncResult(ctx context.Context, id string, clicksTotal int64, status models.SyncStatus, at time.Time) error
	MarkLinkSyncFailed(ctx context.Context, id string, at time.Time) error
}

// EventPublisher receives archive notifications.
type EventPublisher interface {
	LinkArchived(ctx context.Context, link *models.Link)
}

// Registry is the link registry.
type Registry struct {
	store      Store
	normalizer *Normalizer
	events     EventPublisher
	now        func() time.Time
}

// New builds a registry. events may be nil.
func New(store Store, normalizer *Normalizer, events EventPublisher) *Registry {
	return &Registry{
		store:      store,
		normalizer: normalizer,
		events:     events,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Ingest normalizes rawInput and returns the link for the resulting short
// code, creating it if needed. created is false when the code was already
// registered, archived or not; the existing record is returned unchanged.
func (r *Registry) Ingest(ctx context.Context, rawInput string, title *string) (_ *models.Link, created bool, err error) {
	norm, err := r.normalizer.Normalize(ctx, rawInput)
	if err != nil {
		return nil, false, err
	}
	title, err = cleanTitle(title)
	if err != nil {
		return nil, false, err
	}

	now := r.now()
	link, created, err := r.store.CreateLinkIfAbsent(ctx, &models.Link{
		ID:             uuid.NewString(),
		ShortCode:      norm.ShortCode,
		LongURL:        norm.LongURL,
		Title:          title,
		Status:         models.LinkStatusActive,
		LastSyncStatus: models.SyncStatusNever,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	if err != nil {
		return nil, false, err
	}
	if created {
		logging.Ctx(ctx).Info().Str("link_id", link.ID).Str("short_code", link.ShortCode).Msg("Link ingested")
	}
	return link, created, nil
}

// Archive marks a link archived. Archiving twice is a no-op; snapshots and
// run history are kept.
func (r *Registry) Archive(ctx context.Context, linkID string) (*models.Link, error) {
	changed, err := r.store.ArchiveLink(ctx, linkID, r.now())
	if err != nil {
		return nil, err
	}
	link, err := r.store.GetLink(ctx, linkID)
	if err != nil {
		return nil, err
	}
	if changed {
		logging.Ctx(ctx).Info().Str("link_id", linkID).Msg("Link archived")
		if r.events != nil {
			r.events.LinkArchived(ctx, link)
		}
	}
	return link, nil
}

// Get returns a link in any status.
func (r *Registry) Get(ctx context.Context, linkID string) (*models.Link, error) {
	return r.store.GetLink(ctx, linkID)
}

// ListActive returns the links a sync run should contact, in selection order.
func (r *Registry) ListActive(ctx context.Context) ([]models.Link, error) {
	return r.store.ListActiveLinks(ctx)
}

// List returns a page of links and the total matching count.
func (r *Registry) List(ctx context.Context, filter models.LinkFilter) ([]models.Link, int, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, 0, models.NewValidationError("status", "unknown link status %q", filter.Status)
	}
	if filter.Offset < 0 {
		return nil, 0, models.NewValidationError("offset", "must not be negative")
	}
	switch {
	case filter.Limit <= 0:
		filter.Limit = defaultListLimit
	case filter.Limit > maxListLimit:
		filter.Limit = maxListLimit
	}
	return r.store.ListLinks(ctx, filter)
}

// UpdateTitle sets the display title. A nil or blank title clears it.
func (r *Registry) UpdateTitle(ctx context.Context, linkID string, title *string) (*models.Link, error) {
	title, err := cleanTitle(title)
	if err != nil {
		return nil, err
	}
	if err := r.store.UpdateLinkTitle(ctx, linkID, title, r.now()); err != nil {
		return nil, err
	}
	return r.store.GetLink(ctx, linkID)
}

// ApplySyncResult records the provider total and sync outcome of a link.
// The link's status is left untouched so a concurrent archive survives.
func (r *Registry) ApplySyncResult(ctx context.Context, linkID string, clicksTotal int64, status models.SyncStatus, at time.Time) error {
	if clicksTotal < 0 {
		return models.NewValidationError("clicks_total", "must not be negative, got %d", clicksTotal)
	}
	switch status {
	case models.SyncStatusSuccess, models.SyncStatusPartial, models.SyncStatusFailed:
	default:
		return models.NewValidationError("last_sync_status", "invalid sync status %q", status)
	}
	return r.store.ApplySyncResult(ctx, linkID, clicksTotal, status, at)
}

// MarkSyncFailed records a failed sync attempt, keeping the last good total.
func (r *Registry) MarkSyncFailed(ctx context.Context, linkID string, at time.Time) error {
	return r.store.MarkLinkSyncFailed(ctx, linkID, at)
}

func cleanTitle(title *string) (*string, error) {
	if title == nil {
		return nil, nil
	}
	t := strings.TrimSpace(*title)
	if t == "" {
		return nil, nil
	}
	if utf8.RuneCountInString(t) > maxTitleLength {
		return nil, models.NewValidationError("title", "must be at most %d characters", maxTitleLength)
	}
	return &t, nil
}
