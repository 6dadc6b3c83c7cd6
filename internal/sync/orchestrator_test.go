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
	"sync/atomic"
	"testing"
	"time"

	"github.com/tomtom215/linksync/internal/config"
	"github.com/tomtom215/linksync/internal/database"
	"github.com/tomtom215/linksync/internal/models"
	"github.com/tomtom215/linksync/internal/provider"
	"github.com/tomtom215/linksync/internal/registry"
)

var testDBSemaphore = make(chan struct{}, 1)

var testEpoch = time.Date(2026, 3, 10, 3, 0, 0, 0, time.UTC)

// mockClient implements provider.Client with function fields. Unset
// fields answer with empty data.
type mockClient struct {
	checkAuth  func(ctx context.Context) error
	summary    func(ctx context.Context, code string) (*provider.Summary, error)
	clicks     func(ctx context.Context, code string, windowDays int) ([]provider.DailyClicks, error)
	dayMetrics func(ctx context.Context, code string, day time.Time) (*provider.DayMetrics, error)
}

func (m *mockClient) CheckAuth(ctx context.Context) error {
	if m.checkAuth == nil {
		return nil
	}
	return m.checkAuth(ctx)
}

func (m *mockClient) GetSummary(ctx context.Context, code string) (*provider.Summary, error) {
	return m.summary(ctx, code)
}

func (m *mockClient) GetClicks(ctx context.Context, code string, windowDays int) ([]provider.DailyClicks, error) {
	if m.clicks == nil {
		return nil, nil
	}
	return m.clicks(ctx, code, windowDays)
}

func (m *mockClient) GetDayMetrics(ctx context.Context, code string, day time.Time) (*provider.DayMetrics, error) {
	if m.dayMetrics == nil {
		return &provider.DayMetrics{}, nil
	}
	return m.dayMetrics(ctx, code, day)
}

func (m *mockClient) LookupByLongURL(context.Context, string) (string, error) {
	return "", provider.ErrProviderNotFound
}

// fixture is the provider's view of one link. countries is keyed by
// YYYY-MM-DD.
type fixture struct {
	total     int64
	daily     []provider.DailyClicks
	countries map[string][]provider.Metric
	err       error
}

// staticClient serves fixed data per short code.
func staticClient(data map[string]fixture) *mockClient {
	return &mockClient{
		summary: func(_ context.Context, code string) (*provider.Summary, error) {
			f, ok := data[code]
			if !ok {
				return nil, fmt.Errorf("%w: %s", provider.ErrProviderNotFound, code)
			}
			if f.err != nil {
				return nil, f.err
			}
			total := f.total
			return &provider.Summary{TotalClicks: &total}, nil
		},
		clicks: func(_ context.Context, code string, _ int) ([]provider.DailyClicks, error) {
			return data[code].daily, nil
		},
		dayMetrics: func(_ context.Context, code string, day time.Time) (*provider.DayMetrics, error) {
			key := day.Format(models.DateLayout)
			return &provider.DayMetrics{Date: key, Countries: data[code].countries[key]}, nil
		},
	}
}

type recordingEvents struct {
	mu   gosync.Mutex
	runs []models.SyncRun
}

func (r *recordingEvents) SyncRunCompleted(_ context.Context, run *models.SyncRun) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, *run)
}

type harness struct {
	orch   *Orchestrator
	db     *database.DB
	reg    *registry.Registry
	events *recordingEvents
	delays []time.Duration
	mu     gosync.Mutex
}

func newHarness(t *testing.T, client provider.Client, concurrency int, opts ...func(*config.SyncConfig)) *harness {
	t.Helper()

	testDBSemaphore <- struct{}{}
	db, err := database.New(&config.DatabaseConfig{Path: ":memory:", MaxMemory: "256MB", Threads: 2})
	if err != nil {
		<-testDBSemaphore
		t.Fatalf("database.New() error = %v", err)
	}

	h := &harness{db: db, events: &recordingEvents{}}
	h.reg = registry.New(db, registry.NewNormalizer([]string{"short.example"}, nil, nil), nil)
	cfg := config.SyncConfig{
		Concurrency:      concurrency,
		RetryAttempts:    3,
		RetryDelay:       time.Second,
		MaxRetryDelay:    30 * time.Second,
		LinkTimeout:      5 * time.Second,
		WindowDays:       30,
		DistributionDays: 2,
		StaleRunAfter:    time.Hour,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	h.orch = New(cfg, db, h.reg, client, h.events)
	h.orch.sleep = func(_ context.Context, d time.Duration) error {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.delays = append(h.delays, d)
		return nil
	}

	t.Cleanup(func() {
		h.orch.Wait()
		_ = db.Close()
		<-testDBSemaphore
	})
	return h
}

// addLinks inserts active links with increasing creation times so selection
// order is the argument order.
func (h *harness) addLinks(t *testing.T, codes ...string) []string {
	t.Helper()
	ids := make([]string, len(codes))
	for i, code := range codes {
		at := testEpoch.Add(time.Duration(i) * time.Second)
		link, _, err := h.db.CreateLinkIfAbsent(context.Background(), &models.Link{
			ID:             "link-" + code,
			ShortCode:      code,
			Status:         models.LinkStatusActive,
			LastSyncStatus: models.SyncStatusNever,
			CreatedAt:      at,
			UpdatedAt:      at,
		})
		if err != nil {
			t.Fatalf("CreateLinkIfAbsent(%s) error = %v", code, err)
		}
		ids[i] = link.ID
	}
	return ids
}

func (h *harness) link(t *testing.T, id string) *models.Link {
	t.Helper()
	l, err := h.reg.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get(%s) error = %v", id, err)
	}
	return l
}

func days(clicks ...int64) []provider.DailyClicks {
	out := make([]provider.DailyClicks, len(clicks))
	for i, c := range clicks {
		out[i] = provider.DailyClicks{Date: dayKey(i - len(clicks)), Clicks: c}
	}
	return out
}

// dayKey is testEpoch's date shifted by offset days.
func dayKey(offset int) string {
	return testEpoch.AddDate(0, 0, offset).Format(models.DateLayout)
}

func TestTrigger_NoLinksIsSuccess(t *testing.T) {
	h := newHarness(t, staticClient(nil), 2)

	run, err := h.orch.Trigger(context.Background(), models.TriggerManual)
	if err != nil {
		t.Fatalf("Trigger() error = %v", err)
	}
	if run.Status != models.RunStatusSuccess || len(run.Results) != 0 || run.FinishedAt == nil {
		t.Errorf("run = %+v", run)
	}
}

func TestTrigger_Idempotent(t *testing.T) {
	client := staticClient(map[string]fixture{
		"aaa111": {total: 40, daily: days(10, 30), countries: map[string][]provider.Metric{
			dayKey(-2): {{Value: "de", Clicks: 10}},
			dayKey(-1): {{Value: "us", Clicks: 30}},
		}},
		"bbb222": {total: 5, daily: days(5)},
	})
	h := newHarness(t, client, 2)
	ids := h.addLinks(t, "aaa111", "bbb222")
	ctx := context.Background()

	snapshotsAfter := func() map[string][]models.AnalyticsSnapshot {
		out := make(map[string][]models.AnalyticsSnapshot)
		for _, id := range ids {
			s, err := h.db.ListSnapshots(ctx, id, time.Time{}, time.Time{})
			if err != nil {
				t.Fatalf("ListSnapshots() error = %v", err)
			}
			out[id] = s
		}
		return out
	}

	if _, err := h.orch.Trigger(ctx, models.TriggerScheduled); err != nil {
		t.Fatalf("first Trigger() error = %v", err)
	}
	first := snapshotsAfter()
	firstTotal := h.link(t, ids[0]).ClicksTotal

	if _, err := h.orch.Trigger(ctx, models.TriggerScheduled); err != nil {
		t.Fatalf("second Trigger() error = %v", err)
	}
	second := snapshotsAfter()

	if got := h.link(t, ids[0]).ClicksTotal; got != firstTotal || got != 40 {
		t.Errorf("ClicksTotal = %d after second run, want %d", got, firstTotal)
	}
	for _, id := range ids {
		if len(first[id]) != len(second[id]) {
			t.Fatalf("%s: snapshot count %d -> %d", id, len(first[id]), len(second[id]))
		}
		for i := range first[id] {
			a, b := first[id][i], second[id][i]
			if a.DateKey() != b.DateKey() || a.Clicks != b.Clicks || len(a.Countries) != len(b.Countries) {
				t.Errorf("%s snapshot %d changed: %+v -> %+v", id, i, a, b)
			}
		}
	}
	if first[ids[0]][0].Countries["DE"] != 10 || first[ids[0]][1].Countries["US"] != 30 {
		t.Errorf("snapshot countries = %v, %v", first[ids[0]][0].Countries, first[ids[0]][1].Countries)
	}
}

func TestTrigger_ArchivedExcluded(t *testing.T) {
	var contacted gosync.Map
	base := staticClient(map[string]fixture{
		"aaa111": {total: 1, daily: days(1)},
		"bbb222": {total: 9, daily: days(9)},
	})
	client := &mockClient{
		summary: func(ctx context.Context, code string) (*provider.Summary, error) {
			contacted.Store(code, true)
			return base.summary(ctx, code)
		},
		clicks:     base.clicks,
		dayMetrics: base.dayMetrics,
	}
	h := newHarness(t, client, 2)
	ids := h.addLinks(t, "aaa111", "bbb222")
	ctx := context.Background()

	seed := []models.AnalyticsSnapshot{{LinkID: ids[1], Date: testEpoch.AddDate(0, 0, -5), Clicks: 3, SyncedAt: testEpoch}}
	if err := h.db.UpsertSnapshots(ctx, seed); err != nil {
		t.Fatalf("UpsertSnapshots() error = %v", err)
	}
	if _, err := h.reg.Archive(ctx, ids[1]); err != nil {
		t.Fatalf("Archive() error = %v", err)
	}

	run, err := h.orch.Trigger(ctx, models.TriggerManual)
	if err != nil {
		t.Fatalf("Trigger() error = %v", err)
	}
	if len(run.Results) != 1 || run.Results[0].LinkID != ids[0] {
		t.Errorf("Results = %+v, want only %s", run.Results, ids[0])
	}
	if _, ok := contacted.Load("bbb222"); ok {
		t.Error("archived link was contacted")
	}

	snaps, _ := h.db.ListSnapshots(ctx, ids[1], time.Time{}, time.Time{})
	if len(snaps) != 1 || snaps[0].Clicks != 3 {
		t.Errorf("archived link snapshots = %+v, want unchanged seed", snaps)
	}
	if got := h.link(t, ids[1]); got.ClicksTotal != 0 || got.Status != models.LinkStatusArchived {
		t.Errorf("archived link = %+v", got)
	}
}

func TestTrigger_PartialFailure(t *testing.T) {
	h := newHarness(t, staticClient(map[string]fixture{
		"aaa111": {total: 1, daily: days(1)},
		"ccc333": {total: 3, daily: days(3)},
	}), 2)
	ids := h.addLinks(t, "aaa111", "bbb222", "ccc333")

	run, err := h.orch.Trigger(context.Background(), models.TriggerManual)
	if err != nil {
		t.Fatalf("Trigger() error = %v", err)
	}
	if run.Status != models.RunStatusPartial {
		t.Errorf("Status = %s, want partial", run.Status)
	}

	want := []struct {
		id     string
		status models.ResultStatus
		kind   models.ErrorKind
	}{
		{ids[0], models.ResultSuccess, models.ErrorKindNone},
		{ids[1], models.ResultFailed, models.ErrorKindNotFound},
		{ids[2], models.ResultSuccess, models.ErrorKindNone},
	}
	if len(run.Results) != len(want) {
		t.Fatalf("len(Results) = %d, want %d", len(run.Results), len(want))
	}
	for i, w := range want {
		r := run.Results[i]
		if r.LinkID != w.id || r.Status != w.status || r.ErrorKind != w.kind {
			t.Errorf("Results[%d] = %+v, want %s %s %q", i, r, w.id, w.status, w.kind)
		}
	}
	if run.Results[1].Attempts != 1 {
		t.Errorf("not-found attempts = %d, want 1", run.Results[1].Attempts)
	}
	if got := h.link(t, ids[1]).LastSyncStatus; got != models.SyncStatusFailed {
		t.Errorf("failed link LastSyncStatus = %s, want failed", got)
	}
	if got := h.link(t, ids[0]).LastSyncStatus; got != models.SyncStatusSuccess {
		t.Errorf("ok link LastSyncStatus = %s, want success", got)
	}

	stored, err := h.orch.Run(context.Background(), run.ID)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if stored.Status != models.RunStatusPartial || len(stored.Results) != 3 || stored.Results[1].LinkID != ids[1] {
		t.Errorf("stored run = %+v", stored)
	}
}

func TestTrigger_AllFailedIsFailed(t *testing.T) {
	h := newHarness(t, staticClient(nil), 1)
	h.addLinks(t, "aaa111", "bbb222")

	run, err := h.orch.Trigger(context.Background(), models.TriggerManual)
	if err != nil {
		t.Fatalf("Trigger() error = %v", err)
	}
	if run.Status != models.RunStatusFailed {
		t.Errorf("Status = %s, want failed", run.Status)
	}
}

func TestTrigger_ProviderAuthoritativeTotal(t *testing.T) {
	h := newHarness(t, staticClient(map[string]fixture{
		"aaa111": {total: 100, daily: days(2, 3, 5)},
	}), 1)
	ids := h.addLinks(t, "aaa111")

	if _, err := h.orch.Trigger(context.Background(), models.TriggerManual); err != nil {
		t.Fatalf("Trigger() error = %v", err)
	}

	snaps, _ := h.db.ListSnapshots(context.Background(), ids[0], time.Time{}, time.Time{})
	var sum int64
	for _, s := range snaps {
		sum += s.Clicks
	}
	if sum != 10 {
		t.Fatalf("snapshot sum = %d, want 10", sum)
	}
	if got := h.link(t, ids[0]).ClicksTotal; got != 100 {
		t.Errorf("ClicksTotal = %d, want provider total 100", got)
	}
}

func TestTrigger_MissingTotalIsProviderData(t *testing.T) {
	client := &mockClient{summary: func(context.Context, string) (*provider.Summary, error) {
		return &provider.Summary{}, nil
	}}
	h := newHarness(t, client, 1)
	h.addLinks(t, "aaa111")

	run, err := h.orch.Trigger(context.Background(), models.TriggerManual)
	if err != nil {
		t.Fatalf("Trigger() error = %v", err)
	}
	if r := run.Results[0]; r.Status != models.ResultFailed || r.ErrorKind != models.ErrorKindProviderData {
		t.Errorf("result = %+v, want failed provider_data", r)
	}
}

func TestTrigger_AuthAbort(t *testing.T) {
	var calls atomic.Int32
	client := &mockClient{summary: func(context.Context, string) (*provider.Summary, error) {
		calls.Add(1)
		return nil, fmt.Errorf("%w: status 401", provider.ErrAuth)
	}}
	h := newHarness(t, client, 1)
	ids := h.addLinks(t, "aaa111", "bbb222", "ccc333")

	run, err := h.orch.Trigger(context.Background(), models.TriggerManual)
	if !errors.Is(err, provider.ErrAuth) {
		t.Fatalf("Trigger() error = %v, want ErrAuth", err)
	}
	if run == nil || run.Status != models.RunStatusFailed {
		t.Fatalf("run = %+v, want failed", run)
	}
	if r := run.Results[0]; r.LinkID != ids[0] || r.Status != models.ResultFailed || r.ErrorKind != models.ErrorKindAuth {
		t.Errorf("Results[0] = %+v, want failed auth", r)
	}
	for i := 1; i < 3; i++ {
		if r := run.Results[i]; r.LinkID != ids[i] || r.Status != models.ResultSkipped || r.ErrorKind != models.ErrorKindAuth {
			t.Errorf("Results[%d] = %+v, want skipped auth", i, r)
		}
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("provider calls = %d, want 1", got)
	}

	if _, err := h.orch.Trigger(context.Background(), models.TriggerManual); !errors.Is(err, provider.ErrAuth) {
		t.Errorf("lock not released after abort: %v", err)
	}
}

func TestTrigger_RetriesTransient(t *testing.T) {
	var calls atomic.Int32
	client := &mockClient{summary: func(context.Context, string) (*provider.Summary, error) {
		if calls.Add(1) <= 2 {
			return nil, fmt.Errorf("%w: status 503", provider.ErrTransientNetwork)
		}
		total := int64(7)
		return &provider.Summary{TotalClicks: &total}, nil
	}}
	h := newHarness(t, client, 1)
	h.addLinks(t, "aaa111")

	run, err := h.orch.Trigger(context.Background(), models.TriggerManual)
	if err != nil {
		t.Fatalf("Trigger() error = %v", err)
	}
	if r := run.Results[0]; r.Status != models.ResultSuccess || r.Attempts != 3 {
		t.Errorf("result = %+v, want success after 3 attempts", r)
	}
	if len(h.delays) != 2 || h.delays[0] != time.Second || h.delays[1] != 2*time.Second {
		t.Errorf("delays = %v, want [1s 2s]", h.delays)
	}
}

func TestTrigger_RetryExhausted(t *testing.T) {
	client := &mockClient{summary: func(context.Context, string) (*provider.Summary, error) {
		return nil, &provider.RateLimitError{RetryAfter: 5 * time.Second}
	}}
	h := newHarness(t, client, 1)
	h.addLinks(t, "aaa111")

	run, err := h.orch.Trigger(context.Background(), models.TriggerManual)
	if err != nil {
		t.Fatalf("Trigger() error = %v", err)
	}
	if r := run.Results[0]; r.Status != models.ResultFailed || r.ErrorKind != models.ErrorKindRateLimited || r.Attempts != 3 {
		t.Errorf("result = %+v, want failed rate_limited after 3 attempts", r)
	}
	for _, d := range h.delays {
		if d != 5*time.Second {
			t.Errorf("delay = %v, want Retry-After 5s", d)
		}
	}
}

func TestTrigger_ConcurrencyConflict(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{}, 1)
	client := &mockClient{summary: func(ctx context.Context, _ string) (*provider.Summary, error) {
		select {
		case entered <- struct{}{}:
		default:
		}
		<-release
		total := int64(1)
		return &provider.Summary{TotalClicks: &total}, nil
	}}
	h := newHarness(t, client, 1)
	h.addLinks(t, "aaa111")
	ctx := context.Background()

	running, err := h.orch.TriggerAsync(ctx, models.TriggerManual)
	if err != nil {
		t.Fatalf("TriggerAsync() error = %v", err)
	}
	if running.Status != models.RunStatusRunning {
		t.Errorf("ack status = %s, want running", running.Status)
	}
	<-entered

	if _, err := h.orch.Trigger(ctx, models.TriggerManual); !errors.Is(err, models.ErrConcurrencyConflict) {
		t.Errorf("Trigger() error = %v, want ErrConcurrencyConflict", err)
	}
	if _, err := h.orch.TriggerAsync(ctx, models.TriggerScheduled); !errors.Is(err, models.ErrConcurrencyConflict) {
		t.Errorf("TriggerAsync() error = %v, want ErrConcurrencyConflict", err)
	}

	runs, err := h.orch.Runs(ctx, 10)
	if err != nil {
		t.Fatalf("Runs() error = %v", err)
	}
	if len(runs) != 1 || runs[0].Status != models.RunStatusRunning {
		t.Errorf("runs = %+v, want exactly one running run", runs)
	}

	close(release)
	h.orch.Wait()

	done, err := h.orch.Run(ctx, running.ID)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if done.Status != models.RunStatusSuccess {
		t.Errorf("finished status = %s, want success", done.Status)
	}
}

func TestTrigger_RecoversStaleRun(t *testing.T) {
	h := newHarness(t, staticClient(nil), 1)
	ctx := context.Background()

	stale := &models.SyncRun{ID: "stale", Trigger: models.TriggerScheduled, StartedAt: time.Now().UTC().Add(-2 * time.Hour)}
	if err := h.db.CreateRun(ctx, stale); err != nil {
		t.Fatalf("CreateRun() error = %v", err)
	}

	if _, err := h.orch.Trigger(ctx, models.TriggerManual); err != nil {
		t.Fatalf("Trigger() error = %v", err)
	}
	got, err := h.orch.Run(ctx, "stale")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got.Status != models.RunStatusFailed || got.Error != database.StaleRunMessage {
		t.Errorf("stale run = %+v", got)
	}
}

func TestTrigger_PublishesEvent(t *testing.T) {
	h := newHarness(t, staticClient(nil), 1)

	run, err := h.orch.Trigger(context.Background(), models.TriggerScheduled)
	if err != nil {
		t.Fatalf("Trigger() error = %v", err)
	}
	h.events.mu.Lock()
	defer h.events.mu.Unlock()
	if len(h.events.runs) != 1 || h.events.runs[0].ID != run.ID {
		t.Errorf("events = %+v", h.events.runs)
	}
}

func TestTrigger_TotalSurvivesWindowShift(t *testing.T) {
	data := map[string]fixture{"aaa111": {total: 40, daily: days(10, 30)}}
	h := newHarness(t, staticClient(data), 1)
	ids := h.addLinks(t, "aaa111")
	ctx := context.Background()

	if _, err := h.orch.Trigger(ctx, models.TriggerScheduled); err != nil {
		t.Fatalf("first Trigger() error = %v", err)
	}

	// The oldest day left the window; the lifetime total is unchanged.
	data["aaa111"] = fixture{total: 40, daily: []provider.DailyClicks{
		{Date: dayKey(-1), Clicks: 30},
		{Date: dayKey(0), Clicks: 0},
	}}
	if _, err := h.orch.Trigger(ctx, models.TriggerScheduled); err != nil {
		t.Fatalf("second Trigger() error = %v", err)
	}

	if got := h.link(t, ids[0]).ClicksTotal; got != 40 {
		t.Errorf("ClicksTotal = %d, want 40 after the window moved", got)
	}
	snaps, _ := h.db.ListSnapshots(ctx, ids[0], time.Time{}, time.Time{})
	if len(snaps) != 3 || snaps[0].DateKey() != dayKey(-2) || snaps[0].Clicks != 10 {
		t.Errorf("snapshots = %+v, want aged-out day kept", snaps)
	}
}

func TestTrigger_KeepsDistributionsOfOlderDays(t *testing.T) {
	data := map[string]fixture{"aaa111": {
		total:     10,
		daily:     []provider.DailyClicks{{Date: dayKey(-2), Clicks: 10}},
		countries: map[string][]provider.Metric{dayKey(-2): {{Value: "US", Clicks: 10}}},
	}}
	base := staticClient(data)

	var (
		mu        gosync.Mutex
		requested []string
	)
	client := &mockClient{
		summary: base.summary,
		clicks:  base.clicks,
		dayMetrics: func(ctx context.Context, code string, day time.Time) (*provider.DayMetrics, error) {
			mu.Lock()
			requested = append(requested, day.Format(models.DateLayout))
			mu.Unlock()
			return base.dayMetrics(ctx, code, day)
		},
	}
	h := newHarness(t, client, 1, func(c *config.SyncConfig) { c.DistributionDays = 1 })
	ids := h.addLinks(t, "aaa111")
	ctx := context.Background()

	if _, err := h.orch.Trigger(ctx, models.TriggerScheduled); err != nil {
		t.Fatalf("first Trigger() error = %v", err)
	}

	data["aaa111"] = fixture{
		total:     15,
		daily:     []provider.DailyClicks{{Date: dayKey(-2), Clicks: 10}, {Date: dayKey(-1), Clicks: 5}},
		countries: map[string][]provider.Metric{dayKey(-1): {{Value: "FR", Clicks: 5}}},
	}
	requested = nil
	if _, err := h.orch.Trigger(ctx, models.TriggerScheduled); err != nil {
		t.Fatalf("second Trigger() error = %v", err)
	}

	if len(requested) != 1 || requested[0] != dayKey(-1) {
		t.Errorf("distributions requested for %v, want only %s", requested, dayKey(-1))
	}
	snaps, _ := h.db.ListSnapshots(ctx, ids[0], time.Time{}, time.Time{})
	if len(snaps) != 2 {
		t.Fatalf("len(snapshots) = %d, want 2", len(snaps))
	}
	if snaps[0].Clicks != 10 || snaps[0].Countries["US"] != 10 {
		t.Errorf("older day = %+v, want its stored countries kept", snaps[0])
	}
	if snaps[1].Clicks != 5 || snaps[1].Countries["FR"] != 5 || snaps[1].Countries["US"] != 0 {
		t.Errorf("latest day = %+v, want that day's countries only", snaps[1])
	}
}

func TestTriggerAsync_PreflightRejectsCredentials(t *testing.T) {
	var summaries atomic.Int32
	client := &mockClient{
		checkAuth: func(context.Context) error {
			return fmt.Errorf("%w: status 403", provider.ErrAuth)
		},
		summary: func(context.Context, string) (*provider.Summary, error) {
			summaries.Add(1)
			total := int64(1)
			return &provider.Summary{TotalClicks: &total}, nil
		},
	}
	h := newHarness(t, client, 2)
	ids := h.addLinks(t, "aaa111", "bbb222")
	ctx := context.Background()

	run, err := h.orch.TriggerAsync(ctx, models.TriggerManual)
	if !errors.Is(err, provider.ErrAuth) {
		t.Fatalf("TriggerAsync() error = %v, want ErrAuth", err)
	}
	if run == nil || run.Status != models.RunStatusFailed || run.FinishedAt == nil {
		t.Fatalf("run = %+v, want finished failed run", run)
	}
	if len(run.Results) != 2 {
		t.Fatalf("len(Results) = %d, want 2", len(run.Results))
	}
	for i, r := range run.Results {
		if r.LinkID != ids[i] || r.Status != models.ResultSkipped || r.ErrorKind != models.ErrorKindAuth {
			t.Errorf("Results[%d] = %+v, want skipped auth", i, r)
		}
	}
	if got := summaries.Load(); got != 0 {
		t.Errorf("per-link provider calls = %d, want 0", got)
	}

	stored, err := h.orch.Run(ctx, run.ID)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if stored.Status != models.RunStatusFailed || stored.Error == "" {
		t.Errorf("stored run = %+v", stored)
	}
	if _, err := h.orch.Current(ctx); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Current() error = %v, want ErrNotFound after rejection", err)
	}
	if _, err := h.orch.Trigger(ctx, models.TriggerManual); !errors.Is(err, provider.ErrAuth) {
		t.Errorf("second Trigger() error = %v, want ErrAuth (lock released)", err)
	}
}

func TestTrigger_PreflightFailureOtherThanAuthContinues(t *testing.T) {
	client := staticClient(map[string]fixture{"aaa111": {total: 3, daily: days(3)}})
	client.checkAuth = func(context.Context) error {
		return fmt.Errorf("%w: status 503", provider.ErrTransientNetwork)
	}
	h := newHarness(t, client, 1)
	h.addLinks(t, "aaa111")

	run, err := h.orch.Trigger(context.Background(), models.TriggerManual)
	if err != nil {
		t.Fatalf("Trigger() error = %v", err)
	}
	if run.Status != models.RunStatusSuccess {
		t.Errorf("Status = %s, want success", run.Status)
	}
}

func TestTrigger_StuckCallTimesOut(t *testing.T) {
	base := staticClient(map[string]fixture{
		"aaa111": {total: 1, daily: days(1)},
		"bbb222": {total: 2, daily: days(2)},
	})
	client := &mockClient{
		summary: func(ctx context.Context, code string) (*provider.Summary, error) {
			if code == "bbb222" {
				<-ctx.Done()
				return nil, ctx.Err()
			}
			return base.summary(ctx, code)
		},
		clicks:     base.clicks,
		dayMetrics: base.dayMetrics,
	}
	h := newHarness(t, client, 2, func(c *config.SyncConfig) { c.LinkTimeout = 50 * time.Millisecond })
	ids := h.addLinks(t, "aaa111", "bbb222")

	start := time.Now()
	run, err := h.orch.Trigger(context.Background(), models.TriggerManual)
	if err != nil {
		t.Fatalf("Trigger() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("run took %v, want bounded by link_timeout", elapsed)
	}
	if run.Status != models.RunStatusPartial {
		t.Errorf("Status = %s, want partial", run.Status)
	}
	if r := run.Results[0]; r.LinkID != ids[0] || r.Status != models.ResultSuccess {
		t.Errorf("Results[0] = %+v, want success", r)
	}
	r := run.Results[1]
	if r.LinkID != ids[1] || r.Status != models.ResultFailed || r.ErrorKind != models.ErrorKindTransient || r.Attempts != 3 {
		t.Errorf("Results[1] = %+v, want failed transient after 3 attempts", r)
	}
}

func TestTrigger_ConcurrencyBound(t *testing.T) {
	codes := []string{"aaa111", "bbb222", "ccc333", "ddd444", "eee555"}
	data := make(map[string]fixture, len(codes))
	for _, c := range codes {
		data[c] = fixture{total: 1, daily: days(1)}
	}
	base := staticClient(data)

	var inFlight, peak atomic.Int32
	client := &mockClient{
		summary: func(ctx context.Context, code string) (*provider.Summary, error) {
			n := inFlight.Add(1)
			defer inFlight.Add(-1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			return base.summary(ctx, code)
		},
		clicks:     base.clicks,
		dayMetrics: base.dayMetrics,
	}
	h := newHarness(t, client, 2)
	h.addLinks(t, codes...)

	run, err := h.orch.Trigger(context.Background(), models.TriggerManual)
	if err != nil {
		t.Fatalf("Trigger() error = %v", err)
	}
	if run.Status != models.RunStatusSuccess || len(run.Results) != len(codes) {
		t.Errorf("run = %+v, want %d successes", run, len(codes))
	}
	if got := peak.Load(); got > 2 || got < 1 {
		t.Errorf("peak in-flight links = %d, want 1..2", got)
	}
}

func TestCurrent_ReportsRunningRun(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{}, 1)
	client := &mockClient{summary: func(context.Context, string) (*provider.Summary, error) {
		select {
		case entered <- struct{}{}:
		default:
		}
		<-release
		total := int64(1)
		return &provider.Summary{TotalClicks: &total}, nil
	}}
	h := newHarness(t, client, 1)
	h.addLinks(t, "aaa111")
	ctx := context.Background()

	if _, err := h.orch.Current(ctx); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("idle Current() error = %v, want ErrNotFound", err)
	}

	running, err := h.orch.TriggerAsync(ctx, models.TriggerManual)
	if err != nil {
		t.Fatalf("TriggerAsync() error = %v", err)
	}
	<-entered

	cur, err := h.orch.Current(ctx)
	if err != nil {
		t.Fatalf("Current() error = %v", err)
	}
	if cur.ID != running.ID || cur.Status != models.RunStatusRunning {
		t.Errorf("Current() = %+v, want running %s", cur, running.ID)
	}

	close(release)
	h.orch.Wait()
	if _, err := h.orch.Current(ctx); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Current() after finish error = %v, want ErrNotFound", err)
	}
}

func TestTrigger_PersistsFetchedDataAfterAbort(t *testing.T) {
	waiting := make(chan struct{})
	var once gosync.Once
	client := &mockClient{
		summary: func(ctx context.Context, code string) (*provider.Summary, error) {
			if code == "bbb222" {
				select {
				case <-waiting:
				case <-ctx.Done():
				}
				return nil, fmt.Errorf("%w: status 401", provider.ErrAuth)
			}
			total := int64(5)
			return &provider.Summary{TotalClicks: &total}, nil
		},
		clicks: func(_ context.Context, code string, _ int) ([]provider.DailyClicks, error) {
			if code == "aaa111" {
				return days(5), nil
			}
			return nil, nil
		},
		// The last call of aaa111 completes only after the abort.
		dayMetrics: func(ctx context.Context, _ string, _ time.Time) (*provider.DayMetrics, error) {
			once.Do(func() { close(waiting) })
			<-ctx.Done()
			return &provider.DayMetrics{Countries: []provider.Metric{{Value: "US", Clicks: 5}}}, nil
		},
	}
	h := newHarness(t, client, 2)
	ids := h.addLinks(t, "aaa111", "bbb222")
	ctx := context.Background()

	run, err := h.orch.Trigger(ctx, models.TriggerManual)
	if !errors.Is(err, provider.ErrAuth) {
		t.Fatalf("Trigger() error = %v, want ErrAuth", err)
	}
	if run.Status != models.RunStatusFailed {
		t.Errorf("Status = %s, want failed", run.Status)
	}
	if r := run.Results[0]; r.LinkID != ids[0] || r.Status != models.ResultSuccess {
		t.Errorf("Results[0] = %+v, want success for data fetched before the abort", r)
	}
	if r := run.Results[1]; r.Status != models.ResultFailed || r.ErrorKind != models.ErrorKindAuth {
		t.Errorf("Results[1] = %+v, want failed auth", r)
	}

	if got := h.link(t, ids[0]); got.ClicksTotal != 5 || got.LastSyncStatus != models.SyncStatusSuccess {
		t.Errorf("link = %+v, want total 5 and success", got)
	}
	snaps, _ := h.db.ListSnapshots(ctx, ids[0], time.Time{}, time.Time{})
	if len(snaps) != 1 || snaps[0].Clicks != 5 || snaps[0].Countries["US"] != 5 {
		t.Errorf("snapshots = %+v, want the fetched day stored", snaps)
	}
}

func TestTrigger_OwnLongRunNotRecovered(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{}, 1)
	client := &mockClient{summary: func(context.Context, string) (*provider.Summary, error) {
		select {
		case entered <- struct{}{}:
		default:
		}
		<-release
		total := int64(1)
		return &provider.Summary{TotalClicks: &total}, nil
	}}
	h := newHarness(t, client, 1)
	var clock atomic.Int64
	clock.Store(testEpoch.UnixNano())
	h.orch.now = func() time.Time { return time.Unix(0, clock.Load()).UTC() }
	h.addLinks(t, "aaa111")
	ctx := context.Background()

	running, err := h.orch.TriggerAsync(ctx, models.TriggerManual)
	if err != nil {
		t.Fatalf("TriggerAsync() error = %v", err)
	}
	<-entered

	// The run is now older than stale_run_after.
	clock.Add(int64(2 * time.Hour))
	if _, err := h.orch.Trigger(ctx, models.TriggerScheduled); !errors.Is(err, models.ErrConcurrencyConflict) {
		t.Errorf("Trigger() error = %v, want ErrConcurrencyConflict", err)
	}

	close(release)
	h.orch.Wait()

	done, err := h.orch.Run(ctx, running.ID)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if done.Status != models.RunStatusSuccess || done.Error != "" {
		t.Errorf("run = %+v, want success, not closed as abandoned", done)
	}
}

func TestFinalStatus(t *testing.T) {
	t.Parallel()

	ok := models.LinkResult{Status: models.ResultSuccess}
	fail := models.LinkResult{Status: models.ResultFailed}
	skip := models.LinkResult{Status: models.ResultSkipped}

	tests := []struct {
		name    string
		results []models.LinkResult
		aborted bool
		want    models.RunStatus
	}{
		{"empty", nil, false, models.RunStatusSuccess},
		{"all ok", []models.LinkResult{ok, ok}, false, models.RunStatusSuccess},
		{"mixed", []models.LinkResult{ok, fail}, false, models.RunStatusPartial},
		{"all failed", []models.LinkResult{fail, fail}, false, models.RunStatusFailed},
		{"aborted with success", []models.LinkResult{ok, skip}, true, models.RunStatusFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := finalStatus(tt.results, tt.aborted); got != tt.want {
				t.Errorf("finalStatus() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestBackoff(t *testing.T) {
	t.Parallel()

	o := &Orchestrator{cfg: config.SyncConfig{RetryDelay: time.Second, MaxRetryDelay: 5 * time.Second}}
	transient := provider.ErrTransientNetwork

	tests := []struct {
		attempt int
		err     error
		want    time.Duration
	}{
		{1, transient, time.Second},
		{2, transient, 2 * time.Second},
		{3, transient, 4 * time.Second},
		{4, transient, 5 * time.Second},
		{1, &provider.RateLimitError{RetryAfter: 10 * time.Second}, 10 * time.Second},
		{3, &provider.RateLimitError{RetryAfter: time.Second}, 4 * time.Second},
	}
	for _, tt := range tests {
		if got := o.backoff(tt.attempt, tt.err); got != tt.want {
			t.Errorf("backoff(%d, %v) = %v, want %v", tt.attempt, tt.err, got, tt.want)
		}
	}
}
