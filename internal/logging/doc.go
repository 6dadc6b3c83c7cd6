// Linksync - Link Analytics Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/linksync

// Package logging provides the zerolog-based structured logger shared by every
// Linksync component.
//
// A package-level logger is configured once at startup and accessed through
// level helpers:
//
//	logging.Init(logging.Config{Level: "info", Format: "json"})
//	logging.Info().Str("run_id", id).Msg("Sync run started")
//	logging.Error().Err(err).Msg("Provider request failed")
//
// Context-aware logging attaches request and correlation IDs propagated by the
// HTTP middleware and the sync orchestrator:
//
//	logging.Ctx(ctx).Warn().Str("link_id", id).Msg("Link sync failed")
//
// # Adapters
//
// Two adapters route third-party logging through the same zerolog sink:
//
//   - SlogHandler implements slog.Handler for sutureslog (supervisor events)
//   - WatermillAdapter implements watermill.LoggerAdapter for the event publisher
//
// # Configuration
//
//	LOG_LEVEL   - trace, debug, info, warn, error (default: info)
//	LOG_FORMAT  - json, console (default: json)
//	LOG_CALLER  - include caller file:line (default: false)
//
// Always terminate event chains with Msg or Send, otherwise nothing is written.
package logging
