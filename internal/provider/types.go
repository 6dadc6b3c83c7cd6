// Linksync - Link Analytics Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/linksync

package provider

// DayLayout is the provider-day key used by DayMetrics.
const DayLayout = "2006-01-02"

// Summary is the provider's lifetime click summary for one link.
// TotalClicks is nil when the provider omitted the field.
type Summary struct {
	TotalClicks *int64 `json:"total_clicks"`
	Unit        string `json:"unit"`
	Units       int    `json:"units"`
}

// DailyClicks is one point of the per-day click series.
// Date is an RFC 3339 timestamp or a YYYY-MM-DD day, as the provider sends it.
type DailyClicks struct {
	Date   string `json:"date"`
	Clicks int64  `json:"clicks"`
}

// Metric is one bucket of a distribution, keyed by country or referrer.
type Metric struct {
	Value  string `json:"value"`
	Clicks int64  `json:"clicks"`
}

// DayMetrics holds the country and referrer distributions of one UTC day.
// Date is formatted with DayLayout.
type DayMetrics struct {
	Date      string
	Countries []Metric
	Referrers []Metric
}

// Breakdown combines the daily click series with the per-day distributions
// that were fetched. Days absent from Days have unknown distributions.
type Breakdown struct {
	Daily []DailyClicks
	Days  []DayMetrics
}

type clicksResponse struct {
	LinkClicks []DailyClicks `json:"link_clicks"`
	Unit       string        `json:"unit"`
	Units      int           `json:"units"`
}

type metricsResponse struct {
	Metrics []Metric `json:"metrics"`
	Facet   string   `json:"facet"`
}

type lookupResponse struct {
	ID      string `json:"id"`
	Link    string `json:"link"`
	LongURL string `json:"long_url"`
}

type userResponse struct {
	Login string `json:"login"`
	Name  string `json:"name"`
}

type errorResponse struct {
	Message     string `json:"message"`
	Description string `json:"description"`
}
