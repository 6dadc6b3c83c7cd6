// Linksync - Link Analytics Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/linksync

// Package validation validates API request structs with go-playground/validator.
//
// A single validator instance is shared process-wide; it caches struct
// metadata and is safe for concurrent use. Field names in errors come from
// the struct's json tags so messages match the wire format:
//
//	type reassignRequest struct {
//	    From string `json:"from" validate:"required,project_id"`
//	    To   string `json:"to" validate:"required,project_id"`
//	}
//
//	if err := validation.ValidateStruct(&req); err != nil {
//	    // errors.Is(err, models.ErrValidation) == true
//	}
//
// Custom tags:
//   - project_id: 1-128 characters, no whitespace or '/'
//   - link_status: "active" or "archived"
//   - date: YYYY-MM-DD calendar date
package validation
