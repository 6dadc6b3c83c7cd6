// Linksync - Link Analytics Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/linksync

// Package api serves the HTTP interface: link management, project
// assignments, snapshot queries and sync control under /api/v1, plus
// /health and /metrics.
//
// Every response uses one envelope:
//
//	{"success": true, "data": ..., "metadata": {"timestamp": ..., "request_id": ...}}
//	{"success": false, "error": {"code": "NOT_FOUND", "message": ...}, "metadata": {...}}
//
// Routes under /api/v1 are rate limited per client IP, authenticated with a
// bearer token (package auth) and authorized per role (package authz).
// Viewers may read; admins may also mutate and trigger syncs.
//
// Error mapping:
//
//	validation failure          400 VALIDATION_ERROR
//	missing or bad token        401 UNAUTHORIZED
//	role not permitted          403 FORBIDDEN
//	unknown record              404 NOT_FOUND
//	sync already running        409 CONFLICT
//	provider rejected token     502 PROVIDER_AUTH_ERROR
//	anything else               500 INTERNAL_ERROR
package api
