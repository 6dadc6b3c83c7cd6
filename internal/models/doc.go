// Linksync - Link Analytics Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/linksync

// Package models defines the records shared across Linksync components:
// links, project assignments, per-day analytics snapshots and sync runs,
// together with the sentinel errors used to classify failures.
//
// Link status and sync status are string enums rather than booleans so new
// states can be introduced without a schema change.
package models
