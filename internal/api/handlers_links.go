// Linksync - Link Analytics Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/linksync

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/linksync/internal/logging"
	"github.com/tomtom215/linksync/internal/models"
	"github.com/tomtom215/linksync/internal/validation"
)

const defaultPageSize = 50

// snapshotView renders the snapshot date as a calendar day.
type snapshotView struct {
	Date      string           `json:"date"`
	Clicks    int64            `json:"clicks"`
	Countries map[string]int64 `json:"countries"`
	Referrers map[string]int64 `json:"referrers"`
	SyncedAt  time.Time        `json:"synced_at"`
}

// CreateLink ingests a short code or URL. 201 for a new link, 200 when it
// was already tracked.
func (h *Handler) CreateLink(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondServiceError(w, r, err)
		return
	}

	link, created, err := h.links.Ingest(r.Context(), req.Input, req.Title)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
		logging.Ctx(r.Context()).Info().
			Str("link_id", link.ID).
			Str("short_code", link.ShortCode).
			Msg("Link ingested")
	}
	respondJSON(w, r, status, link)
}

// ListLinks returns one page of links.
func (h *Handler) ListLinks(w http.ResponseWriter, r *http.Request) {
	q := listLinksQuery{Status: r.URL.Query().Get("status")}
	var err error
	if q.Limit, err = intParam(r, "limit", defaultPageSize); err != nil {
		respondServiceError(w, r, err)
		return
	}
	if q.Offset, err = intParam(r, "offset", 0); err != nil {
		respondServiceError(w, r, err)
		return
	}
	if err := validation.ValidateStruct(&q); err != nil {
		respondServiceError(w, r, err)
		return
	}

	links, total, err := h.links.List(r.Context(), q.filter())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if links == nil {
		links = []models.Link{}
	}

	respondPage(w, r, links, &Pagination{
		Total:   total,
		Count:   len(links),
		Limit:   q.Limit,
		Offset:  q.Offset,
		HasMore: q.Offset+len(links) < total,
	})
}

// GetLink returns one link.
func (h *Handler) GetLink(w http.ResponseWriter, r *http.Request) {
	link, err := h.links.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, link)
}

// UpdateLink changes the display title. A null or blank title clears it.
func (h *Handler) UpdateLink(w http.ResponseWriter, r *http.Request) {
	var req updateLinkRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondServiceError(w, r, err)
		return
	}

	link, err := h.links.UpdateTitle(r.Context(), chi.URLParam(r, "id"), req.Title)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, link)
}

// ArchiveLink excludes a link from future syncs. Archiving twice is a no-op.
func (h *Handler) ArchiveLink(w http.ResponseWriter, r *http.Request) {
	link, err := h.links.Archive(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, link)
}

// ListSnapshots returns a link's daily analytics in an inclusive date range.
func (h *Handler) ListSnapshots(w http.ResponseWriter, r *http.Request) {
	linkID := chi.URLParam(r, "id")
	q := snapshotQuery{From: r.URL.Query().Get("from"), To: r.URL.Query().Get("to")}
	if err := validation.ValidateStruct(&q); err != nil {
		respondServiceError(w, r, err)
		return
	}
	from, to, err := q.dateRange()
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	if _, err := h.links.Get(r.Context(), linkID); err != nil {
		respondServiceError(w, r, err)
		return
	}

	snaps, err := h.snapshots.ListSnapshots(r.Context(), linkID, from, to)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	out := make([]snapshotView, len(snaps))
	for i := range snaps {
		out[i] = snapshotView{
			Date:      snaps[i].DateKey(),
			Clicks:    snaps[i].Clicks,
			Countries: snaps[i].Countries,
			Referrers: snaps[i].Referrers,
			SyncedAt:  snaps[i].SyncedAt,
		}
	}
	respondJSON(w, r, http.StatusOK, out)
}
