// Linksync - Link Analytics Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/linksync

/*
Package events publishes domain events through Watermill.

Two events are emitted:

	sync.run.completed  after a sync run reaches a terminal status
	link.archived       when a link first transitions to archived

With nats.enabled the bus publishes to a JetStream stream (LINKSYNC, subjects
sync.> and link.>), optionally backed by an embedded nats-server. Otherwise
an in-process Watermill GoChannel is used, which is also what tests
subscribe to.

Publishing is fire-and-forget from the caller's point of view: failures are
logged and counted but never change the outcome of the operation that raised
the event.
*/
package events
