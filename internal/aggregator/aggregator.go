// Linksync - Link Analytics Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/linksync

// Package aggregator turns provider analytics payloads into per-day
// snapshots with canonical country and referrer keys, and extracts the
// provider-authoritative click total of a link.
package aggregator

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/tomtom215/linksync/internal/metrics"
	"github.com/tomtom215/linksync/internal/models"
	"github.com/tomtom215/linksync/internal/provider"
)

// DirectReferrer is the key for clicks without a referring host.
const DirectReferrer = "direct"

// Dropped counts entries discarded while normalizing one payload.
type Dropped struct {
	Countries int
	Referrers int
	Days      int
}

// Total returns the sum of all dropped entries.
func (d Dropped) Total() int {
	return d.Countries + d.Referrers + d.Days
}

func (d Dropped) record() {
	if d.Countries > 0 {
		metrics.AggregatorDropped.WithLabelValues("country").Add(float64(d.Countries))
	}
	if d.Referrers > 0 {
		metrics.AggregatorDropped.WithLabelValues("referrer").Add(float64(d.Referrers))
	}
	if d.Days > 0 {
		metrics.AggregatorDropped.WithLabelValues("day").Add(float64(d.Days))
	}
}

// Total returns the link's click total as reported by the provider. Local
// snapshots are never summed to derive it.
func Total(summary *provider.Summary) (int64, error) {
	if summary == nil || summary.TotalClicks == nil {
		return 0, fmt.Errorf("%w: summary has no total_clicks", provider.ErrProviderData)
	}
	if *summary.TotalClicks < 0 {
		return 0, fmt.Errorf("%w: negative total_clicks %d", provider.ErrProviderData, *summary.TotalClicks)
	}
	return *summary.TotalClicks, nil
}

// Normalize builds the snapshot of one date: clicks from that date's entries
// in the daily series, countries and referrers from that date's DayMetrics.
// A date with clicks but no fetched distributions is returned ClicksOnly so
// the stored distributions of the day survive; a date without clicks gets
// empty ones.
func Normalize(linkID string, date time.Time, breakdown *provider.Breakdown) (models.AnalyticsSnapshot, Dropped) {
	idx := indexBreakdown(breakdown)
	return idx.snapshot(linkID, models.Day(date))
}

// BuildSnapshots returns one snapshot per provider day, oldest first, each
// built by Normalize. Days that cannot be parsed or carry negative counts are
// dropped.
func BuildSnapshots(linkID string, breakdown *provider.Breakdown, syncedAt time.Time) ([]models.AnalyticsSnapshot, Dropped) {
	idx := indexBreakdown(breakdown)
	dropped := Dropped{Days: idx.droppedDays}

	days := make([]time.Time, 0, len(idx.clicks))
	for day := range idx.clicks {
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	var snaps []models.AnalyticsSnapshot
	for _, day := range days {
		snap, d := idx.snapshot(linkID, day)
		snap.SyncedAt = syncedAt.UTC()
		snaps = append(snaps, snap)
		dropped.Countries += d.Countries
		dropped.Referrers += d.Referrers
	}

	dropped.record()
	return snaps, dropped
}

// RecentActiveDays returns up to n of the most recent days in daily with a
// positive click count, newest first.
func RecentActiveDays(daily []provider.DailyClicks, n int) []time.Time {
	byDay := make(map[time.Time]int64, len(daily))
	for _, d := range daily {
		day, ok := parseDay(d.Date)
		if !ok || d.Clicks < 0 {
			continue
		}
		byDay[day] += d.Clicks
	}

	var active []time.Time
	for day, clicks := range byDay {
		if clicks > 0 {
			active = append(active, day)
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i].After(active[j]) })
	if len(active) > n {
		active = active[:n]
	}
	return active
}

type breakdownIndex struct {
	clicks      map[time.Time]int64
	metrics     map[time.Time]*provider.DayMetrics
	droppedDays int
}

func indexBreakdown(b *provider.Breakdown) breakdownIndex {
	idx := breakdownIndex{
		clicks:  make(map[time.Time]int64),
		metrics: make(map[time.Time]*provider.DayMetrics),
	}
	if b == nil {
		return idx
	}
	for _, d := range b.Daily {
		day, ok := parseDay(d.Date)
		if !ok || d.Clicks < 0 {
			idx.droppedDays++
			continue
		}
		idx.clicks[day] += d.Clicks
	}
	for i := range b.Days {
		if day, ok := parseDay(b.Days[i].Date); ok {
			idx.metrics[day] = &b.Days[i]
		}
	}
	return idx
}

func (idx breakdownIndex) snapshot(linkID string, day time.Time) (models.AnalyticsSnapshot, Dropped) {
	snap := models.AnalyticsSnapshot{
		LinkID: linkID,
		Date:   day,
		Clicks: idx.clicks[day],
	}

	var dropped Dropped
	switch m, ok := idx.metrics[day]; {
	case ok:
		snap.Countries, dropped.Countries = CanonicalCountries(m.Countries)
		snap.Referrers, dropped.Referrers = CanonicalReferrers(m.Referrers)
	case snap.Clicks == 0:
		snap.Countries = map[string]int64{}
		snap.Referrers = map[string]int64{}
	default:
		snap.ClicksOnly = true
	}
	return snap, dropped
}

// CanonicalCountries maps provider country buckets to upper-case ISO 3166
// alpha-2 keys, summing duplicates. Unknown, empty or malformed keys and
// negative counts are dropped.
func CanonicalCountries(in []provider.Metric) (map[string]int64, int) {
	out := make(map[string]int64, len(in))
	dropped := 0
	for _, m := range in {
		key, ok := canonicalCountry(m.Value)
		if !ok || m.Clicks < 0 {
			dropped++
			continue
		}
		out[key] += m.Clicks
	}
	return out, dropped
}

// CanonicalReferrers maps provider referrer buckets to lower-case hosts
// without a leading "www.", summing duplicates. Empty and direct traffic
// collapse into DirectReferrer. Negative counts are dropped.
func CanonicalReferrers(in []provider.Metric) (map[string]int64, int) {
	out := make(map[string]int64, len(in))
	dropped := 0
	for _, m := range in {
		if m.Clicks < 0 {
			dropped++
			continue
		}
		key, ok := canonicalReferrer(m.Value)
		if !ok {
			dropped++
			continue
		}
		out[key] += m.Clicks
	}
	return out, dropped
}

func canonicalCountry(v string) (string, bool) {
	v = strings.TrimSpace(v)
	if len(v) != 2 {
		return "", false
	}
	up := strings.ToUpper(v)
	for i := 0; i < 2; i++ {
		if up[i] < 'A' || up[i] > 'Z' {
			return "", false
		}
	}
	return up, true
}

func canonicalReferrer(v string) (string, bool) {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" || v == DirectReferrer {
		return DirectReferrer, true
	}

	host := v
	if strings.Contains(v, "://") {
		u, err := url.Parse(v)
		if err != nil || u.Hostname() == "" {
			return "", false
		}
		host = u.Hostname()
	} else {
		host, _, _ = strings.Cut(host, "/")
		if h, _, found := strings.Cut(host, ":"); found {
			host = h
		}
	}
	host = strings.TrimSuffix(strings.TrimPrefix(host, "www."), ".")
	if host == "" || strings.ContainsAny(host, " \t") {
		return "", false
	}
	return host, true
}

func parseDay(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05-0700", models.DateLayout} {
		if t, err := time.Parse(layout, s); err == nil {
			// The provider's calendar day, regardless of the offset it is reported in.
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}
