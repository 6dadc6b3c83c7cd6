// Linksync - Link Analytics Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/linksync

// Package services adapts component lifecycles to suture.Service.
//
// Each wrapper translates a Start/Stop style API into a blocking Serve(ctx)
// that returns when ctx is canceled, and names itself via String for
// supervisor logs.
package services
