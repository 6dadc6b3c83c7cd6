// Linksync - Link Analytics Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/linksync

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/linksync/internal/models"
)

// ListLinkAssignments returns the projects a link belongs to.
func (h *Handler) ListLinkAssignments(w http.ResponseWriter, r *http.Request) {
	linkID := chi.URLParam(r, "id")
	if _, err := h.links.Get(r.Context(), linkID); err != nil {
		respondServiceError(w, r, err)
		return
	}
	h.respondAssignments(w, r, linkID)
}

// AssignProject adds the link to a project. Repeating it is a no-op.
func (h *Handler) AssignProject(w http.ResponseWriter, r *http.Request) {
	linkID := chi.URLParam(r, "id")
	if err := h.assignments.Assign(r.Context(), linkID, chi.URLParam(r, "projectID")); err != nil {
		respondServiceError(w, r, err)
		return
	}
	h.respondAssignments(w, r, linkID)
}

// UnassignProject removes the link from a project.
func (h *Handler) UnassignProject(w http.ResponseWriter, r *http.Request) {
	linkID := chi.URLParam(r, "id")
	if err := h.assignments.Unassign(r.Context(), linkID, chi.URLParam(r, "projectID")); err != nil {
		respondServiceError(w, r, err)
		return
	}
	h.respondAssignments(w, r, linkID)
}

// ReassignLink moves the link from one project to another in one step.
func (h *Handler) ReassignLink(w http.ResponseWriter, r *http.Request) {
	var req reassignRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondServiceError(w, r, err)
		return
	}

	linkID := chi.URLParam(r, "id")
	if err := h.assignments.Reassign(r.Context(), linkID, req.From, req.To); err != nil {
		respondServiceError(w, r, err)
		return
	}
	h.respondAssignments(w, r, linkID)
}

// ListProjectLinks returns a project's assignments in assignment order.
func (h *Handler) ListProjectLinks(w http.ResponseWriter, r *http.Request) {
	list, err := h.assignments.ListByProject(r.Context(), chi.URLParam(r, "projectID"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if list == nil {
		list = []models.Assignment{}
	}
	respondJSON(w, r, http.StatusOK, list)
}

func (h *Handler) respondAssignments(w http.ResponseWriter, r *http.Request, linkID string) {
	list, err := h.assignments.ListByLink(r.Context(), linkID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if list == nil {
		list = []models.Assignment{}
	}
	respondJSON(w, r, http.StatusOK, list)
}
