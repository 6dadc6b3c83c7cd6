// Linksync - Link Analytics Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/linksync

package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/linksync/internal/models"
)

var (
	// ErrProviderNotFound means the provider has no such link.
	ErrProviderNotFound = errors.New("provider: link not found")

	// ErrRateLimited means the provider throttled the request.
	ErrRateLimited = errors.New("provider: rate limited")

	// ErrTransientNetwork covers timeouts, connection failures, 5xx responses
	// and an open circuit breaker.
	ErrTransientNetwork = errors.New("provider: transient network error")

	// ErrAuth means the configured credentials were rejected.
	ErrAuth = errors.New("provider: authentication failed")

	// ErrProviderData means the provider returned a payload that could not be used.
	ErrProviderData = errors.New("provider: invalid data")
)

// RateLimitError is returned for HTTP 429. RetryAfter is zero when the
// provider did not send a usable Retry-After header.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s (retry after %s)", ErrRateLimited, e.RetryAfter)
	}
	return ErrRateLimited.Error()
}

func (e *RateLimitError) Unwrap() error {
	return ErrRateLimited
}

// RetryAfter extracts the provider's requested delay from err, if any.
func RetryAfter(err error) (time.Duration, bool) {
	var rle *RateLimitError
	if errors.As(err, &rle) && rle.RetryAfter > 0 {
		return rle.RetryAfter, true
	}
	return 0, false
}

// Classify maps an error returned by a Client to the kind recorded on a
// sync result. A per-call deadline counts as transient.
func Classify(err error) models.ErrorKind {
	switch {
	case err == nil:
		return models.ErrorKindNone
	case errors.Is(err, ErrAuth):
		return models.ErrorKindAuth
	case errors.Is(err, ErrProviderNotFound):
		return models.ErrorKindNotFound
	case errors.Is(err, ErrRateLimited):
		return models.ErrorKindRateLimited
	case errors.Is(err, ErrTransientNetwork), errors.Is(err, context.DeadlineExceeded):
		return models.ErrorKindTransient
	case errors.Is(err, ErrProviderData):
		return models.ErrorKindProviderData
	default:
		return models.ErrorKindUnknown
	}
}

// Retryable reports whether a failed call is worth repeating.
func Retryable(err error) bool {
	return Classify(err).Retryable()
}
