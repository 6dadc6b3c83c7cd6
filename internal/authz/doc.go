// Linksync - Link Analytics Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/linksync

// Package authz decides whether an authenticated role may call a route.
//
// Decisions come from a Casbin RBAC model matching the request path with
// keyMatch2 and the HTTP method as the action. The default model and
// policy are embedded; both can be overridden with files:
//
//	viewer: GET /api/v1/*
//	admin:  inherits viewer, any method on /api/v1/*
package authz
