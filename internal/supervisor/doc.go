// Linksync - Link Analytics Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/linksync

// Package supervisor runs the long-lived services under a suture tree.
//
// The tree has three layers so a failing layer restarts without taking the
// others down:
//
//	linksync
//	├── messaging-layer  event bus (embedded NATS or in-process channel)
//	├── sync-layer       cron scheduler and manual-run drain
//	└── api-layer        HTTP server
//
// Supervisor events are logged through sutureslog into the zerolog logger.
package supervisor
