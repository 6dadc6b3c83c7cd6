// Linksync - Link Analytics Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/linksync

package models

import "time"

// Assignment associates a link with a project. Pairs are unique.
type Assignment struct {
	LinkID     string    `json:"link_id"`
	ProjectID  string    `json:"project_id"`
	AssignedAt time.Time `json:"assigned_at"`
}
