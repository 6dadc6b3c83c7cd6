// Linksync - Link Analytics Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/linksync

package supervisor

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync/atomic"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// countingService records how often it was served and stopped.
type countingService struct {
	started atomic.Int32
	stopped atomic.Int32
}

func (s *countingService) Serve(ctx context.Context) error {
	s.started.Add(1)
	<-ctx.Done()
	s.stopped.Add(1)
	return ctx.Err()
}

// flakyService fails its first run, then blocks.
type flakyService struct {
	runs atomic.Int32
}

func (s *flakyService) Serve(ctx context.Context) error {
	if s.runs.Add(1) == 1 {
		return errors.New("connection refused")
	}
	<-ctx.Done()
	return ctx.Err()
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestNewSupervisorTree_Defaults(t *testing.T) {
	t.Parallel()

	tree := NewSupervisorTree(testLogger(), TreeConfig{})
	if tree.Root() == nil {
		t.Fatal("Root() is nil")
	}
	if tree.config != DefaultTreeConfig() {
		t.Errorf("config = %+v, want defaults", tree.config)
	}
}

func TestSupervisorTree_Lifecycle(t *testing.T) {
	t.Parallel()

	tree := NewSupervisorTree(testLogger(), TreeConfig{FailureBackoff: 10 * time.Millisecond, ShutdownTimeout: time.Second})
	messaging, syncSvc, api := &countingService{}, &countingService{}, &countingService{}
	tree.AddMessagingService(messaging)
	tree.AddSyncService(syncSvc)
	tree.AddAPIService(api)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := tree.ServeBackground(ctx)

	waitFor(t, func() bool {
		return messaging.started.Load() == 1 && syncSvc.started.Load() == 1 && api.started.Load() == 1
	})

	cancel()
	select {
	case <-errCh:
	case <-time.After(5 * time.Second):
		t.Fatal("tree did not stop")
	}

	for name, s := range map[string]*countingService{"messaging": messaging, "sync": syncSvc, "api": api} {
		if s.stopped.Load() != 1 {
			t.Errorf("%s stopped %d times, want 1", name, s.stopped.Load())
		}
	}
}

func TestSupervisorTree_RestartsFailedService(t *testing.T) {
	t.Parallel()

	tree := NewSupervisorTree(testLogger(), TreeConfig{FailureBackoff: 10 * time.Millisecond, ShutdownTimeout: time.Second})
	flaky := &flakyService{}
	steady := &countingService{}
	tree.AddMessagingService(flaky)
	tree.AddAPIService(steady)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := tree.ServeBackground(ctx)

	waitFor(t, func() bool { return flaky.runs.Load() >= 2 })
	if steady.started.Load() != 1 {
		t.Errorf("api service restarted by messaging failure: started %d times", steady.started.Load())
	}

	cancel()
	<-errCh
}
