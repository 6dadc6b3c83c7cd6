// Linksync - Link Analytics Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/linksync

/*
Package sync runs link synchronization.

A run moves through idle, acquiring-lock, running and finalizing before it
ends as success, partial or failed:

 1. Lock: the store inserts a running SyncRun only when no unfinished run
    exists. A second trigger gets models.ErrConcurrencyConflict. Runs left
    running longer than sync.stale_run_after are closed as failed first.
 2. Selection: every active link, in creation order.
 3. Per link, on a bounded worker pool: fetch the provider summary and
    breakdown, each under sync.link_timeout, retrying rate-limited and
    transient failures with exponential backoff. A successful fetch is
    normalized by the aggregator, snapshots are upserted, and the
    provider-authoritative total is written to the link.
 4. Finalization: results, terminal status and finish time are written in
    one transaction, which releases the lock. Metrics and a
    sync.run.completed event follow.

An authentication failure from the provider aborts the run: links that have
not completed are recorded as skipped and the run fails.

Per-link errors never escape a run; they are recorded on its results. Only
lock conflicts, storage failures while starting or finishing, and auth
aborts are returned to the caller.
*/
package sync
