// Linksync - Link Analytics Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/linksync

package registry

import (
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/tomtom215/linksync/internal/logging"
	"github.com/tomtom215/linksync/internal/metrics"
)

const resolveKeyPrefix = "resolve:"

// ResolveCache memoizes long URL to short code lookups in BadgerDB so that
// re-ingesting the same long URL does not cost a provider call.
type ResolveCache struct {
	db  *badger.DB
	ttl time.Duration
}

// OpenResolveCache opens the cache at path, or an in-memory cache when path
// is empty. Entries expire after ttl; zero keeps them forever.
func OpenResolveCache(path string, ttl time.Duration) (*ResolveCache, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	opts = opts.WithLogger(nil).WithNumVersionsToKeep(1)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open resolve cache: %w", err)
	}
	return &ResolveCache{db: db, ttl: ttl}, nil
}

// Get returns the cached short code for longURL.
func (c *ResolveCache) Get(longURL string) (string, bool) {
	var code string
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(resolveKeyPrefix + longURL))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			code = string(val)
			return nil
		})
	})
	if err != nil {
		if !errors.Is(err, badger.ErrKeyNotFound) {
			logging.Warn().Err(err).Msg("Resolve cache read failed")
		}
		metrics.ResolveCacheMisses.Inc()
		return "", false
	}
	metrics.ResolveCacheHits.Inc()
	return code, true
}

// Set stores code for longURL.
func (c *ResolveCache) Set(longURL, code string) error {
	return c.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(resolveKeyPrefix+longURL), []byte(code))
		if c.ttl > 0 {
			e = e.WithTTL(c.ttl)
		}
		return txn.SetEntry(e)
	})
}

// Close releases the underlying database.
func (c *ResolveCache) Close() error {
	return c.db.Close()
}
