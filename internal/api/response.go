// Linksync - Link Analytics Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/linksync

package api

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/linksync/internal/logging"
)

// APIResponse is the envelope of every API response.
type APIResponse struct {
	Success  bool      `json:"success"`
	Data     any       `json:"data,omitempty"`
	Error    *APIError `json:"error,omitempty"`
	Metadata Metadata  `json:"metadata"`
}

// APIError is the error body of a failed request.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Metadata accompanies every response.
type Metadata struct {
	Timestamp  time.Time   `json:"timestamp"`
	RequestID  string      `json:"request_id,omitempty"`
	Pagination *Pagination `json:"pagination,omitempty"`
}

// Pagination describes one page of a list response.
type Pagination struct {
	Total   int  `json:"total"`
	Count   int  `json:"count"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
}

func newMetadata(r *http.Request) Metadata {
	return Metadata{
		Timestamp: time.Now().UTC(),
		RequestID: logging.RequestIDFromContext(r.Context()),
	}
}

// respondJSON writes a success envelope.
func respondJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	writeEnvelope(w, r, status, &APIResponse{Success: true, Data: data, Metadata: newMetadata(r)})
}

// respondPage writes a success envelope with pagination metadata.
func respondPage(w http.ResponseWriter, r *http.Request, data any, page *Pagination) {
	meta := newMetadata(r)
	meta.Pagination = page
	writeEnvelope(w, r, http.StatusOK, &APIResponse{Success: true, Data: data, Metadata: meta})
}

// respondError writes an error envelope.
func respondError(w http.ResponseWriter, r *http.Request, status int, code, message string, details any) {
	writeEnvelope(w, r, status, &APIResponse{
		Error:    &APIError{Code: code, Message: message, Details: details},
		Metadata: newMetadata(r),
	})
}

func writeEnvelope(w http.ResponseWriter, r *http.Request, status int, resp *APIResponse) {
	body, err := json.Marshal(resp)
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		logging.Ctx(r.Context()).Debug().Err(err).Msg("Failed to write response")
	}
}
