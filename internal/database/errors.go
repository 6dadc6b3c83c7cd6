// Linksync - Link Analytics Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/linksync

package database

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/tomtom215/linksync/internal/logging"
)

// closeWithLog closes a resource and logs any error.
func closeWithLog(closer io.Closer, resourceType string) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil {
		logging.Warn().Str("type", resourceType).Err(err).Msg("Failed to close resource")
	}
}

// closeQuietly closes a resource in error paths where the close error is not actionable.
func closeQuietly(closer io.Closer) {
	if closer != nil {
		_ = closer.Close()
	}
}

// rollback is deferred after BeginTx; it is a no-op once the tx committed.
func rollback(tx *sql.Tx) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		logging.Warn().Err(err).Msg("Failed to roll back transaction")
	}
}

// isTransactionConflict reports DuckDB optimistic concurrency failures.
func isTransactionConflict(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "Transaction conflict") ||
		strings.Contains(msg, "Conflict on update")
}

func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "Constraint Error") ||
		strings.Contains(msg, "Duplicate key")
}

const (
	conflictRetries    = 3
	conflictRetryDelay = 20 * time.Millisecond
)

// withConflictRetry re-runs fn when DuckDB reports a write-write conflict,
// which happens when an archive and a sync update touch the same link row.
func withConflictRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt < conflictRetries; attempt++ {
		if err = fn(); !isTransactionConflict(err) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(conflictRetryDelay * time.Duration(attempt+1)):
		}
	}
	return err
}
