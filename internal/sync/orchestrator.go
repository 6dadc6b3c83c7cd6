// Linksync - Link Analytics Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/linksync

package sync

import (
	"context"
	"errors"
	"fmt"
	gosync "sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tomtom215/linksync/internal/config"
	"github.com/tomtom215/linksync/internal/logging"
	"github.com/tomtom215/linksync/internal/metrics"
	"github.com/tomtom215/linksync/internal/models"
	"github.com/tomtom215/linksync/internal/provider"
)

// Store is the run log and snapshot persistence. *database.DB satisfies it.
type Store interface {
	CreateRun(ctx context.Context, run *models.SyncRun) error
	RecoverStaleRuns(ctx context.Context, cutoff, at time.Time) (int64, error)
	FinishRun(ctx context.Context, run *models.SyncRun) error
	GetRun(ctx context.Context, id string) (*models.SyncRun, error)
	RunningRun(ctx context.Context) (*models.SyncRun, error)
	ListRuns(ctx context.Context, limit int) ([]models.SyncRun, error)
	UpsertSnapshots(ctx context.Context, snapshots []models.AnalyticsSnapshot) error
}

// LinkRegistry is the part of the link registry a run uses.
// *registry.Registry satisfies it.
type LinkRegistry interface {
	ListActive(ctx context.Context) ([]models.Link, error)
	ApplySyncResult(ctx context.Context, linkID string, clicksTotal int64, status models.SyncStatus, at time.Time) error
	MarkSyncFailed(ctx context.Context, linkID string, at time.Time) error
}

// EventPublisher receives run completion notifications.
type EventPublisher interface {
	SyncRunCompleted(ctx context.Context, run *models.SyncRun)
}

// Orchestrator executes sync runs.
type Orchestrator struct {
	cfg    config.SyncConfig
	store  Store
	links  LinkRegistry
	client provider.Client
	events EventPublisher

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
	newID func() string

	// inflight tracks runs started by TriggerAsync.
	inflight gosync.WaitGroup

	// mu serializes begin; active is the ID of the run this process holds.
	mu     gosync.Mutex
	active string
}

// New builds an orchestrator. events may be nil.
func New(cfg config.SyncConfig, store Store, links LinkRegistry, client provider.Client, events EventPublisher) *Orchestrator {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 1
	}
	if cfg.LinkTimeout <= 0 {
		cfg.LinkTimeout = 20 * time.Second
	}
	if cfg.WindowDays <= 0 {
		cfg.WindowDays = 30
	}
	if cfg.DistributionDays <= 0 {
		cfg.DistributionDays = 2
	}
	return &Orchestrator{
		cfg:    cfg,
		store:  store,
		links:  links,
		client: client,
		events: events,
		now:    func() time.Time { return time.Now().UTC() },
		sleep:  sleepContext,
		newID:  uuid.NewString,
	}
}

// Trigger runs a sync to completion and returns the finished run. It
// returns models.ErrConcurrencyConflict without a run when another run holds
// the lock, and the finished run plus an error wrapping provider.ErrAuth
// when the provider rejected the credentials.
func (o *Orchestrator) Trigger(ctx context.Context, trigger models.RunTrigger) (*models.SyncRun, error) {
	run, err := o.begin(ctx, trigger)
	if err != nil {
		return run, err
	}
	return o.execute(ctx, run)
}

// TriggerAsync acquires the lock, checks the credentials, returns the
// running run and completes it in the background. Use Wait to block until it
// finishes. Rejected credentials are reported synchronously with the failed
// run, like Trigger.
func (o *Orchestrator) TriggerAsync(ctx context.Context, trigger models.RunTrigger) (*models.SyncRun, error) {
	run, err := o.begin(ctx, trigger)
	if err != nil {
		return run, err
	}
	ack := *run
	ack.Results = []models.LinkResult{}

	o.inflight.Add(1)
	go func() {
		defer o.inflight.Done()
		if _, err := o.execute(context.WithoutCancel(ctx), run); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("run_id", run.ID).Msg("Background sync run ended with error")
		}
	}()
	return &ack, nil
}

// Wait blocks until every run started by TriggerAsync has finished.
func (o *Orchestrator) Wait() {
	o.inflight.Wait()
}

// Run returns a recorded run with its results.
func (o *Orchestrator) Run(ctx context.Context, runID string) (*models.SyncRun, error) {
	return o.store.GetRun(ctx, runID)
}

// Runs returns the most recent runs, newest first.
func (o *Orchestrator) Runs(ctx context.Context, limit int) ([]models.SyncRun, error) {
	return o.store.ListRuns(ctx, limit)
}

// Current returns the run holding the lock, or models.ErrNotFound when idle.
func (o *Orchestrator) Current(ctx context.Context) (*models.SyncRun, error) {
	return o.store.RunningRun(ctx)
}

// begin recovers stale runs, takes the lock and checks the credentials. A
// run this process still holds is never treated as stale, however long it
// has been running. On rejected credentials the run is finished as failed
// and returned with an error wrapping provider.ErrAuth.
func (o *Orchestrator) begin(ctx context.Context, trigger models.RunTrigger) (*models.SyncRun, error) {
	run, err := o.lock(ctx, trigger)
	if err != nil {
		return nil, err
	}
	if err := o.checkAuth(ctx); err != nil {
		return o.rejectCredentials(ctx, run, err)
	}
	return run, nil
}

func (o *Orchestrator) lock(ctx context.Context, trigger models.RunTrigger) (*models.SyncRun, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	now := o.now()
	if o.cfg.StaleRunAfter > 0 && o.active == "" {
		n, err := o.store.RecoverStaleRuns(ctx, now.Add(-o.cfg.StaleRunAfter), now)
		if err != nil {
			return nil, fmt.Errorf("recover stale runs: %w", err)
		}
		if n > 0 {
			logging.Ctx(ctx).Warn().Int64("runs", n).Dur("stale_after", o.cfg.StaleRunAfter).Msg("Closed abandoned sync runs")
		}
	}

	run := &models.SyncRun{
		ID:        o.newID(),
		Trigger:   trigger,
		Status:    models.RunStatusRunning,
		StartedAt: now,
		Results:   []models.LinkResult{},
	}
	if err := o.store.CreateRun(ctx, run); err != nil {
		if errors.Is(err, models.ErrConcurrencyConflict) {
			metrics.SyncConflicts.WithLabelValues(string(trigger)).Inc()
		}
		return nil, err
	}
	o.active = run.ID
	return run, nil
}

func (o *Orchestrator) release(runID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.active == runID {
		o.active = ""
	}
}

// checkAuth returns an error wrapping provider.ErrAuth when the provider
// rejects the credentials. Other failures are left to the per-link calls.
func (o *Orchestrator) checkAuth(ctx context.Context) error {
	callCtx, cancel := context.WithTimeout(ctx, o.cfg.LinkTimeout)
	defer cancel()
	err := o.client.CheckAuth(callCtx)
	if err == nil || errors.Is(err, provider.ErrAuth) {
		return err
	}
	logging.Ctx(ctx).Warn().Err(err).Msg("Provider credential check failed, continuing")
	return nil
}

// rejectCredentials finishes run as failed without contacting the provider
// per link. Active links are recorded as skipped.
func (o *Orchestrator) rejectCredentials(ctx context.Context, run *models.SyncRun, authErr error) (*models.SyncRun, error) {
	ctx = context.WithoutCancel(ctx)
	logger := logging.Ctx(ctx).With().Str("run_id", run.ID).Str("trigger", string(run.Trigger)).Logger()
	logger.Error().Err(authErr).Msg("Provider rejected credentials, aborting run")

	links, err := o.links.ListActive(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to list links for aborted run")
	}
	for i := range links {
		run.Results = append(run.Results, skipped(links[i].ID, 0))
	}
	run.Error = "aborted: provider rejected credentials"
	return o.finish(ctx, run, fmt.Errorf("sync run %s aborted: %w", run.ID, authErr), &logger)
}

// execute runs a locked run to a terminal state. Cancellation of ctx does
// not interrupt the run; only an auth failure does.
func (o *Orchestrator) execute(ctx context.Context, run *models.SyncRun) (*models.SyncRun, error) {
	ctx = context.WithoutCancel(ctx)
	logger := logging.Ctx(ctx).With().Str("run_id", run.ID).Str("trigger", string(run.Trigger)).Logger()

	metrics.SyncInProgress.Inc()
	defer metrics.SyncInProgress.Dec()
	logger.Info().Msg("Sync run started")

	var runErr error
	links, err := o.links.ListActive(ctx)
	if err != nil {
		runErr = fmt.Errorf("list active links: %w", err)
		run.Error = runErr.Error()
	} else {
		var authErr error
		run.Results, authErr = o.syncLinks(ctx, links, &logger)
		if authErr != nil {
			runErr = fmt.Errorf("sync run %s aborted: %w", run.ID, authErr)
			run.Error = "aborted: provider rejected credentials"
		}
	}

	return o.finish(ctx, run, runErr, &logger)
}

// finish records the terminal state of run and releases it.
func (o *Orchestrator) finish(ctx context.Context, run *models.SyncRun, runErr error, logger *zerolog.Logger) (*models.SyncRun, error) {
	defer o.release(run.ID)

	run.Status = finalStatus(run.Results, runErr != nil)
	finished := o.now()
	run.FinishedAt = &finished

	if err := o.store.FinishRun(ctx, run); err != nil {
		logger.Error().Err(err).Msg("Failed to finalize sync run")
		return run, errors.Join(runErr, fmt.Errorf("finalize run: %w", err))
	}

	o.record(run, logger)
	if o.events != nil {
		o.events.SyncRunCompleted(ctx, run)
	}
	return run, runErr
}

func (o *Orchestrator) record(run *models.SyncRun, logger *zerolog.Logger) {
	duration := run.FinishedAt.Sub(run.StartedAt)
	metrics.RecordSyncRun(string(run.Trigger), string(run.Status), duration)
	for i := range run.Results {
		metrics.RecordLinkResult(string(run.Results[i].Status), string(run.Results[i].ErrorKind))
	}

	ok, failed, skipped := run.Counts()
	event := logger.Info()
	if run.Status != models.RunStatusSuccess {
		event = logger.Warn()
	}
	event.Str("status", string(run.Status)).
		Int("succeeded", ok).
		Int("failed", failed).
		Int("skipped", skipped).
		Dur("duration", duration).
		Msg("Sync run finished")
}

// finalStatus: success when nothing failed (including an empty run),
// partial with at least one success and one failure, failed otherwise or
// when the run was aborted.
func finalStatus(results []models.LinkResult, aborted bool) models.RunStatus {
	if aborted {
		return models.RunStatusFailed
	}
	ok, failed, skipped := 0, 0, 0
	for i := range results {
		switch results[i].Status {
		case models.ResultSuccess:
			ok++
		case models.ResultFailed:
			failed++
		case models.ResultSkipped:
			skipped++
		}
	}
	switch {
	case failed == 0 && skipped == 0:
		return models.RunStatusSuccess
	case ok > 0:
		return models.RunStatusPartial
	default:
		return models.RunStatusFailed
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
