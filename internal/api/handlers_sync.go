// Linksync - Link Analytics Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/linksync

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/linksync/internal/auth"
	"github.com/tomtom215/linksync/internal/logging"
	"github.com/tomtom215/linksync/internal/models"
	"github.com/tomtom215/linksync/internal/validation"
)

// TriggerSync starts a manual run and answers 202 with the running run.
// The run continues after the response; poll GET /sync/runs/{runID}.
// Credentials rejected by the provider fail the run up front with 502.
func (h *Handler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	run, err := h.sync.TriggerAsync(r.Context(), models.TriggerManual)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	evt := logging.Ctx(r.Context()).Info().Str("run_id", run.ID)
	if claims, ok := auth.ClaimsFromContext(r.Context()); ok {
		evt = evt.Str("subject", claims.Subject)
	}
	evt.Msg("Manual sync accepted")

	w.Header().Set("Location", "/api/v1/sync/runs/"+run.ID)
	respondJSON(w, r, http.StatusAccepted, run)
}

// ListRuns returns the most recent runs, newest first.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	var (
		q   listRunsQuery
		err error
	)
	if q.Limit, err = intParam(r, "limit", 0); err != nil {
		respondServiceError(w, r, err)
		return
	}
	if err := validation.ValidateStruct(&q); err != nil {
		respondServiceError(w, r, err)
		return
	}

	runs, err := h.sync.Runs(r.Context(), q.Limit)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if runs == nil {
		runs = []models.SyncRun{}
	}
	respondJSON(w, r, http.StatusOK, runs)
}

// GetRun returns one run with its per-link results.
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.sync.Run(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, run)
}

// CurrentRun returns the run in progress, or 404 when no sync is running.
func (h *Handler) CurrentRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.sync.Current(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, run)
}
