// Linksync - Link Analytics Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/linksync

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/tomtom215/linksync/internal/logging"
)

const healthPingTimeout = 2 * time.Second

// HealthStatus is the /health payload.
type HealthStatus struct {
	Status     string          `json:"status"`
	Version    string          `json:"version,omitempty"`
	Database   bool            `json:"database"`
	Components map[string]bool `json:"components,omitempty"`
	Uptime     float64         `json:"uptime_seconds"`
}

// Health reports liveness and storage reachability. It answers 503 when the
// database does not respond; other components only mark it degraded.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthPingTimeout)
	defer cancel()

	status := HealthStatus{
		Status:   "healthy",
		Version:  h.version,
		Database: true,
		Uptime:   time.Since(h.startTime).Seconds(),
	}

	if err := h.db.Ping(ctx); err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Msg("Health check: database unreachable")
		status.Database = false
		status.Status = "unhealthy"
	}

	if len(h.components) > 0 {
		status.Components = make(map[string]bool, len(h.components))
		for name, up := range h.components {
			ok := up()
			status.Components[name] = ok
			if !ok && status.Status == "healthy" {
				status.Status = "degraded"
			}
		}
	}

	code := http.StatusOK
	if !status.Database {
		code = http.StatusServiceUnavailable
	}
	writeEnvelope(w, r, code, &APIResponse{Success: status.Database, Data: status, Metadata: newMetadata(r)})
}
