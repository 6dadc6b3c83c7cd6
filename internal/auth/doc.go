// Linksync - Link Analytics Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/linksync

// Package auth authenticates API callers with HS256 bearer tokens.
//
// Tokens carry a subject and one role (viewer or admin). They are minted
// out of band by operators (see the server's -mint-token flag) and verified
// on every request by Middleware. Authorization of the role against the
// requested route is handled separately by package authz.
//
// With AUTH_MODE=none every request runs as an anonymous admin. Config
// validation refuses that mode in production.
package auth
