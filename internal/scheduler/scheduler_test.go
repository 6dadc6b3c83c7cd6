// Linksync - Link Analytics Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/linksync

package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tomtom215/linksync/internal/models"
)

func firedImmediately(time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- time.Now()
	return ch
}

func neverFires(time.Duration) <-chan time.Time {
	return nil
}

func TestNew_InvalidSchedule(t *testing.T) {
	t.Parallel()

	run := func(context.Context) (*models.SyncRun, error) { return nil, nil }
	if _, err := New("not a cron", run); err == nil {
		t.Error("expected error for invalid schedule")
	}
	if _, err := New("0 3 * * *", nil); err == nil {
		t.Error("expected error for nil run function")
	}
}

func TestScheduler_FiresRun(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	fired := make(chan struct{}, 8)
	s, err := New("0 3 * * *", func(ctx context.Context) (*models.SyncRun, error) {
		calls.Add(1)
		fired <- struct{}{}
		return &models.SyncRun{ID: "run-1", Status: models.RunStatusPartial}, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	s.after = firedImmediately

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := s.Start(context.Background()); err == nil {
		t.Error("second Start() should fail while running")
	}

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduled run was not invoked")
	}

	if err := s.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if calls.Load() < 1 {
		t.Errorf("calls = %d, want at least 1", calls.Load())
	}
}

func TestScheduler_ConflictDoesNotStopSchedule(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	s, err := New("*/5 * * * *", func(ctx context.Context) (*models.SyncRun, error) {
		calls.Add(1)
		return nil, models.ErrConcurrencyConflict
	})
	if err != nil {
		t.Fatal(err)
	}
	s.after = firedImmediately

	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for calls.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	_ = s.Stop()

	if calls.Load() < 3 {
		t.Errorf("calls = %d, want the schedule to keep firing after conflicts", calls.Load())
	}
}

func TestScheduler_NextRunIsUTC(t *testing.T) {
	t.Parallel()

	s, err := New("0 3 * * *", func(ctx context.Context) (*models.SyncRun, error) {
		return nil, errors.New("unused")
	})
	if err != nil {
		t.Fatal(err)
	}
	s.now = func() time.Time { return time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC) }
	s.after = neverFires

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := s.Start(ctx); err != nil {
		t.Fatal(err)
	}

	want := time.Date(2026, 1, 2, 3, 0, 0, 0, time.UTC)
	deadline := time.Now().Add(2 * time.Second)
	for !s.NextRun().Equal(want) && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := s.NextRun(); !got.Equal(want) {
		t.Errorf("NextRun() = %v, want %v", got, want)
	}

	_ = s.Stop()
	if !s.NextRun().IsZero() {
		t.Error("NextRun() should be zero after Stop")
	}
}
