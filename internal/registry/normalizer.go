// Linksync - Link Analytics Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/linksync

package registry

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/tomtom215/linksync/internal/logging"
	"github.com/tomtom215/linksync/internal/models"
)

var shortCodePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{3,64}$`)

// Resolver finds the short code the provider already holds for a long URL.
type Resolver interface {
	LookupByLongURL(ctx context.Context, longURL string) (string, error)
}

// Normalized is the outcome of normalizing user input.
type Normalized struct {
	ShortCode string
	// LongURL is set only when the input was a long URL.
	LongURL string
}

// Normalizer turns pasted input into a canonical short code. Inputs are
// tried in order: a bare code, a URL on a configured short domain, then any
// other http(s) URL resolved through the provider.
type Normalizer struct {
	domains  map[string]bool
	resolver Resolver
	cache    *ResolveCache
}

// NewNormalizer builds a normalizer. resolver and cache may be nil.
func NewNormalizer(shortDomains []string, resolver Resolver, cache *ResolveCache) *Normalizer {
	domains := make(map[string]bool, len(shortDomains))
	for _, d := range shortDomains {
		domains[strings.ToLower(strings.TrimSpace(d))] = true
	}
	return &Normalizer{domains: domains, resolver: resolver, cache: cache}
}

// Normalize returns the canonical short code for raw. Short codes are case
// sensitive; hosts and schemes are not.
func (n *Normalizer) Normalize(ctx context.Context, raw string) (Normalized, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Normalized{}, models.NewValidationError("input", "must not be empty")
	}
	if shortCodePattern.MatchString(raw) {
		return Normalized{ShortCode: raw}, nil
	}

	u, err := n.parseURL(raw)
	if err != nil {
		return Normalized{}, err
	}

	if n.domains[strings.ToLower(u.Hostname())] {
		code, _, _ := strings.Cut(strings.TrimPrefix(u.Path, "/"), "/")
		if !shortCodePattern.MatchString(code) {
			return Normalized{}, models.NewValidationError("input", "no short code in %q", raw)
		}
		return Normalized{ShortCode: code}, nil
	}

	longURL := u.String()
	code, err := n.resolve(ctx, longURL)
	if err != nil {
		return Normalized{}, err
	}
	return Normalized{ShortCode: code, LongURL: longURL}, nil
}

// parseURL accepts http and https URLs. A missing scheme is allowed when the
// input starts with a configured short domain.
func (n *Normalizer) parseURL(raw string) (*url.URL, error) {
	if !strings.Contains(raw, "://") {
		host, _, _ := strings.Cut(raw, "/")
		if !n.domains[strings.ToLower(host)] {
			return nil, models.NewValidationError("input", "%q is neither a short code nor an http(s) URL", raw)
		}
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, models.NewValidationError("input", "invalid URL: %v", err)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return nil, models.NewValidationError("input", "unsupported URL scheme %q", u.Scheme)
	}
	if u.Hostname() == "" {
		return nil, models.NewValidationError("input", "URL has no host")
	}
	u.Scheme = scheme
	u.Host = strings.ToLower(u.Host)
	return u, nil
}

func (n *Normalizer) resolve(ctx context.Context, longURL string) (string, error) {
	if n.cache != nil {
		if code, ok := n.cache.Get(longURL); ok {
			return code, nil
		}
	}
	if n.resolver == nil {
		return "", models.NewValidationError("input", "cannot resolve long URL %q", longURL)
	}

	code, err := n.resolver.LookupByLongURL(ctx, longURL)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("long_url", longURL).Msg("Long URL lookup failed")
		return "", fmt.Errorf("%w: %w", models.NewValidationError("input", "provider has no short link for %q", longURL), err)
	}
	if !shortCodePattern.MatchString(code) {
		return "", models.NewValidationError("input", "provider returned invalid short code %q", code)
	}

	if n.cache != nil {
		if err := n.cache.Set(longURL, code); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Msg("Failed to cache resolved short code")
		}
	}
	return code, nil
}
