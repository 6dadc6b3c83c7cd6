// Linksync - Link Analytics Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/linksync

package services

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/linksync/internal/logging"
)

// Scheduler is satisfied by *scheduler.Scheduler.
type Scheduler interface {
	Start(ctx context.Context) error
	Stop() error
}

// SyncService owns the scheduled trigger and, on shutdown, waits for
// in-flight manual runs to finish so no run is left marked running.
type SyncService struct {
	scheduler    Scheduler
	drain        func()
	drainTimeout time.Duration
}

// NewSyncService wraps an optional scheduler (nil when scheduling is
// disabled) and a drain func such as Orchestrator.Wait.
func NewSyncService(scheduler Scheduler, drain func(), drainTimeout time.Duration) *SyncService {
	if drainTimeout <= 0 {
		drainTimeout = time.Minute
	}
	return &SyncService{scheduler: scheduler, drain: drain, drainTimeout: drainTimeout}
}

// Serve implements suture.Service.
func (s *SyncService) Serve(ctx context.Context) error {
	if s.scheduler != nil {
		if err := s.scheduler.Start(ctx); err != nil {
			return fmt.Errorf("scheduler start failed: %w", err)
		}
	}

	<-ctx.Done()

	if s.scheduler != nil {
		if err := s.scheduler.Stop(); err != nil {
			logging.Warn().Err(err).Msg("Scheduler stop failed")
		}
	}
	s.waitForRuns()
	return ctx.Err()
}

func (s *SyncService) waitForRuns() {
	if s.drain == nil {
		return
	}
	done := make(chan struct{})
	go func() {
		s.drain()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(s.drainTimeout):
		logging.Warn().Dur("timeout", s.drainTimeout).Msg("Sync runs still in flight at shutdown")
	}
}

func (s *SyncService) String() string {
	return "sync-service"
}
