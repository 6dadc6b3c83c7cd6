// Linksync - Link Analytics Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/linksync

package sync

import (
	"context"
	"fmt"
	gosync "sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/linksync/internal/aggregator"
	"github.com/tomtom215/linksync/internal/metrics"
	"github.com/tomtom215/linksync/internal/models"
	"github.com/tomtom215/linksync/internal/provider"
)

const abortedMessage = "run aborted: provider rejected credentials"

// syncLinks processes links on a bounded worker pool. Results keep the
// order of links. The returned error is non-nil when a provider auth
// failure aborted the run.
func (o *Orchestrator) syncLinks(ctx context.Context, links []models.Link, logger *zerolog.Logger) ([]models.LinkResult, error) {
	results := make([]models.LinkResult, len(links))
	if len(links) == 0 {
		return results, nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		authOnce gosync.Once
		authErr  error
		wg       gosync.WaitGroup
	)
	jobs := make(chan int)

	workers := min(o.cfg.Concurrency, len(links))
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				res, err := o.syncLink(runCtx, &links[i], logger)
				results[i] = res
				if res.ErrorKind == models.ErrorKindAuth && res.Status == models.ResultFailed {
					authOnce.Do(func() {
						authErr = err
						logger.Error().Err(err).Str("link_id", links[i].ID).Msg("Provider rejected credentials, aborting run")
						cancel()
					})
				}
			}
		}()
	}

dispatch:
	for i := range links {
		if runCtx.Err() != nil {
			break
		}
		select {
		case <-runCtx.Done():
			break dispatch
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	for i := range results {
		if results[i].Status == "" {
			results[i] = skipped(links[i].ID, 0)
		}
	}
	return results, authErr
}

// syncLink fetches, normalizes and persists one link. The returned error is
// the provider error behind a failed result, for logging and abort handling.
func (o *Orchestrator) syncLink(ctx context.Context, link *models.Link, logger *zerolog.Logger) (models.LinkResult, error) {
	if ctx.Err() != nil {
		return skipped(link.ID, 0), nil
	}

	summary, breakdown, attempts, err := o.fetchWithRetry(ctx, link, logger)
	if err != nil {
		kind := provider.Classify(err)
		if ctx.Err() != nil && kind != models.ErrorKindAuth {
			return skipped(link.ID, attempts), nil
		}
		return o.fail(ctx, link, kind, attempts, err, logger), err
	}

	total, err := aggregator.Total(summary)
	if err != nil {
		return o.fail(ctx, link, models.ErrorKindProviderData, attempts, err, logger), err
	}

	now := o.now()
	snapshots, dropped := aggregator.BuildSnapshots(link.ID, breakdown, now)
	if dropped.Total() > 0 {
		logger.Debug().Str("link_id", link.ID).Int("dropped", dropped.Total()).Msg("Dropped malformed analytics entries")
	}

	// Fetched data is persisted even when an abort cancelled ctx meanwhile.
	storeCtx := context.WithoutCancel(ctx)
	if err := o.store.UpsertSnapshots(storeCtx, snapshots); err != nil {
		return o.fail(ctx, link, models.ErrorKindStorage, attempts, err, logger), err
	}
	if err := o.links.ApplySyncResult(storeCtx, link.ID, total, models.SyncStatusSuccess, now); err != nil {
		return o.fail(ctx, link, models.ErrorKindStorage, attempts, err, logger), err
	}

	return models.LinkResult{LinkID: link.ID, Status: models.ResultSuccess, Attempts: attempts}, nil
}

// fetchWithRetry calls the provider for the lifetime summary and the
// breakdown of link, retrying rate-limited and transient failures. Each
// provider call gets its own deadline.
func (o *Orchestrator) fetchWithRetry(ctx context.Context, link *models.Link, logger *zerolog.Logger) (*provider.Summary, *provider.Breakdown, int, error) {
	var err error
	for attempt := 1; attempt <= o.cfg.RetryAttempts; attempt++ {
		var (
			summary   *provider.Summary
			breakdown *provider.Breakdown
		)
		summary, breakdown, err = o.fetch(ctx, link.ShortCode)
		if err == nil {
			return summary, breakdown, attempt, nil
		}
		if !provider.Retryable(err) || attempt == o.cfg.RetryAttempts || ctx.Err() != nil {
			return nil, nil, attempt, err
		}

		delay := o.backoff(attempt, err)
		metrics.SyncRetries.Inc()
		logger.Warn().Err(err).Str("link_id", link.ID).Int("attempt", attempt).Int("max_attempts", o.cfg.RetryAttempts).Dur("delay", delay).Msg("Retry attempt")
		if sleepErr := o.sleep(ctx, delay); sleepErr != nil {
			return nil, nil, attempt, fmt.Errorf("%w (retry wait interrupted: %v)", err, sleepErr)
		}
	}
	return nil, nil, o.cfg.RetryAttempts, err
}

// fetch reads the lifetime total, the daily series over the window and the
// distributions of the most recent days with clicks.
func (o *Orchestrator) fetch(ctx context.Context, shortCode string) (*provider.Summary, *provider.Breakdown, error) {
	var summary *provider.Summary
	err := o.call(ctx, func(ctx context.Context) (err error) {
		summary, err = o.client.GetSummary(ctx, shortCode)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	breakdown := &provider.Breakdown{}
	err = o.call(ctx, func(ctx context.Context) (err error) {
		breakdown.Daily, err = o.client.GetClicks(ctx, shortCode, o.cfg.WindowDays)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	for _, day := range aggregator.RecentActiveDays(breakdown.Daily, o.cfg.DistributionDays) {
		var m *provider.DayMetrics
		err = o.call(ctx, func(ctx context.Context) (err error) {
			m, err = o.client.GetDayMetrics(ctx, shortCode, day)
			return err
		})
		if err != nil {
			return nil, nil, err
		}
		if m == nil {
			continue
		}
		// Keyed by the requested day, whatever the response echoed.
		m.Date = day.Format(provider.DayLayout)
		breakdown.Days = append(breakdown.Days, *m)
	}
	return summary, breakdown, nil
}

// call runs one provider request under link_timeout.
func (o *Orchestrator) call(ctx context.Context, fn func(ctx context.Context) error) error {
	callCtx, cancel := context.WithTimeout(ctx, o.cfg.LinkTimeout)
	defer cancel()
	return fn(callCtx)
}

// backoff doubles retry_delay per attempt up to max_retry_delay. A longer
// Retry-After from the provider wins.
func (o *Orchestrator) backoff(attempt int, err error) time.Duration {
	delay := o.cfg.RetryDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if o.cfg.MaxRetryDelay > 0 && delay >= o.cfg.MaxRetryDelay {
			delay = o.cfg.MaxRetryDelay
			break
		}
	}
	if ra, ok := provider.RetryAfter(err); ok && ra > delay {
		delay = ra
	}
	return delay
}

func (o *Orchestrator) fail(ctx context.Context, link *models.Link, kind models.ErrorKind, attempts int, err error, logger *zerolog.Logger) models.LinkResult {
	logger.Warn().Err(err).Str("link_id", link.ID).Str("error_kind", string(kind)).Int("attempts", attempts).Msg("Link sync failed")
	if markErr := o.links.MarkSyncFailed(context.WithoutCancel(ctx), link.ID, o.now()); markErr != nil {
		logger.Error().Err(markErr).Str("link_id", link.ID).Msg("Failed to record link sync failure")
	}
	return models.LinkResult{
		LinkID:    link.ID,
		Status:    models.ResultFailed,
		ErrorKind: kind,
		Message:   err.Error(),
		Attempts:  attempts,
	}
}

func skipped(linkID string, attempts int) models.LinkResult {
	return models.LinkResult{
		LinkID:    linkID,
		Status:    models.ResultSkipped,
		ErrorKind: models.ErrorKindAuth,
		Message:   abortedMessage,
		Attempts:  attempts,
	}
}
