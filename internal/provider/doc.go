// Linksync - Link Analytics Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/linksync

/*
Package provider is the adapter over the link-shortening provider's REST API.

It exposes three read operations: the click summary of a link, the per-day
click series with country and referrer distributions, and resolution of a
long URL to the short code the provider already holds for it. Link creation
at the provider is not supported.

Every HTTP failure is translated into one of the typed errors in errors.go so
callers never inspect status codes:

	401, 403     ErrAuth
	404          ErrProviderNotFound
	429          *RateLimitError (wraps ErrRateLimited, carries Retry-After)
	5xx, network ErrTransientNetwork
	bad payload  ErrProviderData

Classify maps any error to a models.ErrorKind for recording on sync results.

Resilience:
  - A shared golang.org/x/time/rate limiter paces all outbound requests.
  - A sony/gobreaker circuit breaker trips on sustained transient failures;
    an open circuit is reported as ErrTransientNetwork.
  - Request counts and latencies are exported through internal/metrics.
*/
package provider
