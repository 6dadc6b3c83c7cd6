// Linksync - Link Analytics Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/linksync

// Package scheduler fires the daily sync trigger at a fixed UTC time.
//
// The scheduler treats every outcome of the triggered run as a monitoring
// signal: a run that is already in progress is skipped quietly, and a run that
// finishes partial or failed is logged without stopping the schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/linksync/internal/logging"
	"github.com/tomtom215/linksync/internal/metrics"
	"github.com/tomtom215/linksync/internal/models"
)

// RunFunc starts one scheduled sync run and blocks until it finishes.
type RunFunc func(ctx context.Context) (*models.SyncRun, error)

// Scheduler invokes a RunFunc whenever its cron expression matches (UTC).
type Scheduler struct {
	cron   *CronExpression
	expr   string
	run    RunFunc
	logger zerolog.Logger

	// now and after are replaced in tests.
	now   func() time.Time
	after func(time.Duration) <-chan time.Time

	mu      sync.Mutex
	running bool
	nextRun time.Time
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// New parses expr and returns a stopped scheduler.
func New(expr string, run RunFunc) (*Scheduler, error) {
	cron, err := ParseCron(expr)
	if err != nil {
		return nil, fmt.Errorf("parse schedule: %w", err)
	}
	if run == nil {
		return nil, errors.New("scheduler requires a run function")
	}
	return &Scheduler{
		cron:   cron,
		expr:   expr,
		run:    run,
		logger: logging.WithComponent("scheduler"),
		now:    time.Now,
		after:  time.After,
	}, nil
}

// Start begins the scheduling loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already running")
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	s.logger.Info().Str("schedule", s.expr).Str("timezone", "UTC").Msg("Starting sync scheduler")
	go s.loop(ctx)
	return nil
}

// Stop ends the loop and waits for an in-flight run to return.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	stopCh, doneCh := s.stopCh, s.doneCh
	s.mu.Unlock()

	close(stopCh)
	<-doneCh
	s.logger.Info().Msg("Sync scheduler stopped")
	return nil
}

// NextRun returns the next planned trigger time, zero when stopped.
func (s *Scheduler) NextRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextRun
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.doneCh)

	for {
		now := s.now()
		next := s.cron.NextRun(now, time.UTC)
		if next.IsZero() {
			s.logger.Error().Str("schedule", s.expr).Msg("Schedule never matches, scheduler idle")
			return
		}

		s.mu.Lock()
		s.nextRun = next
		s.mu.Unlock()
		s.logger.Debug().Time("next_run", next).Msg("Next scheduled sync")

		select {
		case <-s.after(next.Sub(now)):
			s.fire(ctx)
		case <-s.stopCh:
			s.clearNext()
			return
		case <-ctx.Done():
			s.clearNext()
			return
		}
	}
}

func (s *Scheduler) clearNext() {
	s.mu.Lock()
	s.nextRun = time.Time{}
	s.mu.Unlock()
}

// fire runs one scheduled sync. Errors never stop the schedule.
func (s *Scheduler) fire(ctx context.Context) {
	run, err := s.run(ctx)
	switch {
	case errors.Is(err, models.ErrConcurrencyConflict):
		s.logger.Debug().Msg("Sync already running, skipping scheduled cycle")
		metrics.ScheduledTriggers.WithLabelValues("skipped").Inc()
		return
	case err != nil && run == nil:
		s.logger.Error().Err(err).Msg("Scheduled sync could not start")
		metrics.ScheduledTriggers.WithLabelValues("error").Inc()
		return
	}

	metrics.ScheduledTriggers.WithLabelValues(string(run.Status)).Inc()
	event := s.logger.Info()
	if run.Status != models.RunStatusSuccess {
		event = s.logger.Warn().AnErr("run_error", err)
	}
	event.Str("run_id", run.ID).Str("status", string(run.Status)).Msg("Scheduled sync finished")
}
