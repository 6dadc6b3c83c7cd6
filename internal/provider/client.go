// Linksync - Link Analytics Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/linksync

package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/tomtom215/linksync/internal/config"
	"github.com/tomtom215/linksync/internal/logging"
	"github.com/tomtom215/linksync/internal/metrics"
)

// Client is the provider surface used by the sync orchestrator and the
// input normalizer.
type Client interface {
	CheckAuth(ctx context.Context) error
	GetSummary(ctx context.Context, shortCode string) (*Summary, error)
	GetClicks(ctx context.Context, shortCode string, windowDays int) ([]DailyClicks, error)
	GetDayMetrics(ctx context.Context, shortCode string, day time.Time) (*DayMetrics, error)
	LookupByLongURL(ctx context.Context, longURL string) (string, error)
}

const (
	// maxErrorBodySize caps how much of an error response is read for messages.
	maxErrorBodySize = 64 * 1024

	unitReferenceLayout = "2006-01-02T15:04:05-0700"
)

// HTTPClient talks to the provider's v4 REST API.
type HTTPClient struct {
	baseURL    string
	token      string
	groupID    string
	domain     string
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker[any]
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient builds a client from cfg. The first configured short domain
// is used to address links.
func NewHTTPClient(cfg *config.ProviderConfig) (*HTTPClient, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("provider base URL is required")
	}
	if len(cfg.ShortDomains) == 0 {
		return nil, errors.New("at least one provider short domain is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	c := &HTTPClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.AccessToken,
		groupID:    cfg.OrganizationID,
		domain:     strings.ToLower(cfg.ShortDomains[0]),
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(limit, burst),
	}
	if cfg.CircuitBreaker {
		c.breaker = newBreaker("provider-api")
	}
	return c, nil
}

// CheckAuth verifies the access token against the provider's user endpoint.
func (c *HTTPClient) CheckAuth(ctx context.Context) error {
	var out userResponse
	return c.get(ctx, "user", "/v4/user", nil, &out)
}

// GetSummary returns the lifetime click total of a link. The total is not
// bounded by the sync window, so it never shrinks as old days age out.
func (c *HTTPClient) GetSummary(ctx context.Context, shortCode string) (*Summary, error) {
	q := url.Values{}
	q.Set("unit", "day")
	q.Set("units", "-1")

	var out Summary
	if err := c.get(ctx, "summary", c.bitlinkPath(shortCode, "clicks/summary"), q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetClicks returns the per-day click series of a link over the last
// windowDays days.
func (c *HTTPClient) GetClicks(ctx context.Context, shortCode string, windowDays int) ([]DailyClicks, error) {
	q := url.Values{}
	q.Set("unit", "day")
	q.Set("units", strconv.Itoa(windowDays))

	var out clicksResponse
	if err := c.get(ctx, "clicks", c.bitlinkPath(shortCode, "clicks"), q, &out); err != nil {
		return nil, err
	}
	return out.LinkClicks, nil
}

// GetDayMetrics returns the country and referrer distributions of a link for
// the single UTC day containing day.
func (c *HTTPClient) GetDayMetrics(ctx context.Context, shortCode string, day time.Time) (*DayMetrics, error) {
	q := dayQuery(day)

	var countries metricsResponse
	if err := c.get(ctx, "countries", c.bitlinkPath(shortCode, "countries"), q, &countries); err != nil {
		return nil, err
	}
	var referrers metricsResponse
	if err := c.get(ctx, "referrers", c.bitlinkPath(shortCode, "referring_domains"), q, &referrers); err != nil {
		return nil, err
	}

	return &DayMetrics{
		Date:      dayStart(day).Format(DayLayout),
		Countries: countries.Metrics,
		Referrers: referrers.Metrics,
	}, nil
}

// LookupByLongURL returns the short code the provider holds for longURL.
func (c *HTTPClient) LookupByLongURL(ctx context.Context, longURL string) (string, error) {
	q := url.Values{}
	q.Set("long_url", longURL)
	if c.groupID != "" {
		q.Set("group_guid", c.groupID)
	}

	var out lookupResponse
	if err := c.get(ctx, "lookup", "/v4/bitlinks/lookup", q, &out); err != nil {
		return "", err
	}

	ref := out.ID
	if ref == "" {
		ref = out.Link
	}
	code := ref[strings.LastIndex(ref, "/")+1:]
	if code == "" {
		return "", fmt.Errorf("%w: lookup response has no link id", ErrProviderData)
	}
	return code, nil
}

func (c *HTTPClient) bitlinkPath(shortCode, suffix string) string {
	return fmt.Sprintf("/v4/bitlinks/%s/%s/%s", c.domain, url.PathEscape(shortCode), suffix)
}

// dayQuery selects one day-unit ending at the last second of day's UTC date.
func dayQuery(day time.Time) url.Values {
	end := dayStart(day).Add(24*time.Hour - time.Second)
	q := url.Values{}
	q.Set("unit", "day")
	q.Set("units", "1")
	q.Set("unit_reference", end.Format(unitReferenceLayout))
	return q
}

func dayStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// get runs one GET through the circuit breaker when enabled.
func (c *HTTPClient) get(ctx context.Context, endpoint, path string, query url.Values, out any) error {
	if c.breaker == nil {
		return c.doGet(ctx, endpoint, path, query, out)
	}
	_, err := c.breaker.Execute(func() (any, error) {
		return nil, c.doGet(ctx, endpoint, path, query, out)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		logging.Warn().Err(err).Str("endpoint", endpoint).Msg("[CIRCUIT BREAKER] Request rejected")
		return fmt.Errorf("%w: %w", ErrTransientNetwork, err)
	}
	return err
}

func (c *HTTPClient) doGet(ctx context.Context, endpoint, path string, query url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: rate limiter wait: %w", ErrTransientNetwork, err)
	}

	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordProviderRequest(endpoint, 0, time.Since(start))
		return fmt.Errorf("%w: %s request: %w", ErrTransientNetwork, endpoint, err)
	}
	defer resp.Body.Close()
	metrics.RecordProviderRequest(endpoint, resp.StatusCode, time.Since(start))

	if err := statusError(resp); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s response: %v", ErrProviderData, endpoint, err)
	}
	return nil
}

// statusError maps a non-200 response to the package's typed errors.
func statusError(resp *http.Response) error {
	code := resp.StatusCode
	if code == http.StatusOK {
		return nil
	}
	if code == http.StatusTooManyRequests {
		return &RateLimitError{RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"), time.Now())}
	}

	msg := errorMessage(readBodyForError(resp.Body))
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return fmt.Errorf("%w: status %d: %s", ErrAuth, code, msg)
	case code == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrProviderNotFound, msg)
	case code >= 500:
		return fmt.Errorf("%w: status %d: %s", ErrTransientNetwork, code, msg)
	default:
		return fmt.Errorf("provider: unexpected status %d: %s", code, msg)
	}
}

// parseRetryAfter accepts delta-seconds or an HTTP date (RFC 9110).
func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

func readBodyForError(r io.Reader) []byte {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	if err != nil {
		return []byte("(failed to read response body)")
	}
	return body
}

func errorMessage(body []byte) string {
	var er errorResponse
	if err := json.Unmarshal(body, &er); err == nil && er.Message != "" {
		if er.Description != "" {
			return er.Message + ": " + er.Description
		}
		return er.Message
	}
	return strings.TrimSpace(string(body))
}
