// Linksync - Link Analytics Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/linksync

/*
Package main is the entry point for the Linksync server.

Linksync keeps a registry of shortened links, pulls their click analytics from
the link provider once a day, and serves per-link daily snapshots and
project assignments over a REST API.

# Application Architecture

The server runs under a Suture v4 supervisor tree:

	RootSupervisor ("linksync")
	├── MessagingSupervisor ("messaging-layer")
	│   └── Event bus (Watermill over NATS JetStream or an in-process channel)
	├── SyncSupervisor ("sync-layer")
	│   └── Sync service (daily scheduler, drains in-flight runs on shutdown)
	└── APISupervisor ("api-layer")
	    └── HTTP server (chi router, JWT + Casbin)

Component initialization order:

 1. Configuration: Koanf v2 with defaults, config.yaml and environment
 2. Logging: zerolog, bridged to slog for Suture and to Watermill
 3. Database: DuckDB with versioned migrations
 4. Provider client: rate limited, circuit breaker protected HTTP client
 5. Registry, assignment manager and sync orchestrator
 6. Scheduler (SYNC_SCHEDULE_ENABLED)
 7. HTTP server

# Tokens

With AUTH_MODE=jwt every /api/v1 request needs a bearer token signed with
JWT_SECRET. Tokens are minted offline:

	./linksync -mint-token -subject ops -role admin

# Signal Handling

SIGINT and SIGTERM stop the scheduler, let running syncs finish, stop
accepting HTTP connections and close the database.
*/
package main
