// Linksync - Link Analytics Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/linksync

package services

import (
	"context"
	"fmt"
	"time"
)

// Runner is a component with an explicit start and shutdown, such as the
// event bus.
type Runner interface {
	Start(ctx context.Context) error
	Shutdown(ctx context.Context)
	IsRunning() bool
}

// RunnerService supervises a Runner.
type RunnerService struct {
	runner          Runner
	shutdownTimeout time.Duration
	name            string
}

// NewRunnerService wraps runner under name.
func NewRunnerService(name string, runner Runner, shutdownTimeout time.Duration) *RunnerService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &RunnerService{runner: runner, shutdownTimeout: shutdownTimeout, name: name}
}

// Serve implements suture.Service.
func (s *RunnerService) Serve(ctx context.Context) error {
	if err := s.runner.Start(ctx); err != nil {
		return fmt.Errorf("%s start failed: %w", s.name, err)
	}

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	s.runner.Shutdown(shutdownCtx)
	return ctx.Err()
}

func (s *RunnerService) String() string {
	return s.name
}
