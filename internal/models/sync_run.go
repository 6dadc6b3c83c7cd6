// Linksync - Link Analytics Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/linksync

package models

import "time"

// RunTrigger identifies what started a sync run.
type RunTrigger string

const (
	TriggerScheduled RunTrigger = "scheduled"
	TriggerManual    RunTrigger = "manual"
)

// RunStatus is the state of a sync run. A running run is the sync lock.
type RunStatus string

const (
	RunStatusRunning RunStatus = "running"
	RunStatusSuccess RunStatus = "success"
	RunStatusPartial RunStatus = "partial"
	RunStatusFailed  RunStatus = "failed"
)

// Terminal reports whether the run has finished.
func (s RunStatus) Terminal() bool {
	return s != RunStatusRunning
}

// ResultStatus is the outcome for one link within a run.
type ResultStatus string

const (
	ResultSuccess ResultStatus = "success"
	ResultFailed  ResultStatus = "failed"
	ResultSkipped ResultStatus = "skipped"
)

// ErrorKind classifies a per-link failure.
type ErrorKind string

const (
	ErrorKindNone         ErrorKind = ""
	ErrorKindNotFound     ErrorKind = "not_found"
	ErrorKindRateLimited  ErrorKind = "rate_limited"
	ErrorKindTransient    ErrorKind = "transient"
	ErrorKindAuth         ErrorKind = "auth"
	ErrorKindProviderData ErrorKind = "provider_data"
	ErrorKindStorage      ErrorKind = "storage"
	ErrorKindUnknown      ErrorKind = "unknown"
)

// Retryable reports whether a failure of this kind may succeed on retry.
func (k ErrorKind) Retryable() bool {
	return k == ErrorKindRateLimited || k == ErrorKindTransient
}

// LinkResult records what happened to one link during a run.
type LinkResult struct {
	LinkID    string       `json:"link_id"`
	Status    ResultStatus `json:"status"`
	ErrorKind ErrorKind    `json:"error_kind,omitempty"`
	Message   string       `json:"message,omitempty"`
	Attempts  int          `json:"attempts"`
}

// SyncRun is one execution of the sync algorithm.
type SyncRun struct {
	ID         string       `json:"id"`
	Trigger    RunTrigger   `json:"trigger"`
	Status     RunStatus    `json:"status"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt *time.Time   `json:"finished_at,omitempty"`
	Error      string       `json:"error,omitempty"`
	Results    []LinkResult `json:"results"`
}

// Counts tallies the per-link results by status.
func (r *SyncRun) Counts() (succeeded, failed, skipped int) {
	for i := range r.Results {
		switch r.Results[i].Status {
		case ResultSuccess:
			succeeded++
		case ResultFailed:
			failed++
		case ResultSkipped:
			skipped++
		}
	}
	return succeeded, failed, skipped
}
