// Linksync - Link Analytics Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/linksync

package database

import (
	"context"
	"testing"
	"time"

	"github.com/tomtom215/linksync/internal/models"
)

func day(s string) time.Time {
	t, err := time.Parse(models.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestUpsertSnapshots_ReplacesSameDate(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	first := []models.AnalyticsSnapshot{
		{LinkID: "link-1", Date: day("2026-03-01"), Clicks: 5, Countries: map[string]int64{"US": 5}, SyncedAt: testEpoch},
		{LinkID: "link-1", Date: day("2026-03-02"), Clicks: 7, SyncedAt: testEpoch},
	}
	if err := db.UpsertSnapshots(ctx, first); err != nil {
		t.Fatalf("UpsertSnapshots() error = %v", err)
	}

	second := []models.AnalyticsSnapshot{
		{LinkID: "link-1", Date: day("2026-03-02"), Clicks: 9, Referrers: map[string]int64{"direct": 9}, SyncedAt: testEpoch.Add(time.Hour)},
	}
	if err := db.UpsertSnapshots(ctx, second); err != nil {
		t.Fatalf("UpsertSnapshots() second error = %v", err)
	}

	got, err := db.ListSnapshots(ctx, "link-1", time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("ListSnapshots() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].DateKey() != "2026-03-01" || got[0].Clicks != 5 || got[0].Countries["US"] != 5 {
		t.Errorf("got[0] = %+v", got[0])
	}
	if got[1].Clicks != 9 {
		t.Errorf("got[1].Clicks = %d, want 9 (replaced, not summed)", got[1].Clicks)
	}
	if got[1].Referrers["direct"] != 9 {
		t.Errorf("got[1].Referrers = %v", got[1].Referrers)
	}
	if len(got[1].Countries) != 0 {
		t.Errorf("got[1].Countries = %v, want empty", got[1].Countries)
	}
}

func TestListSnapshots_Range(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	var snaps []models.AnalyticsSnapshot
	for _, d := range []string{"2026-03-01", "2026-03-02", "2026-03-03", "2026-03-04"} {
		snaps = append(snaps, models.AnalyticsSnapshot{LinkID: "link-1", Date: day(d), Clicks: 1, SyncedAt: testEpoch})
	}
	snaps = append(snaps, models.AnalyticsSnapshot{LinkID: "link-2", Date: day("2026-03-02"), Clicks: 1, SyncedAt: testEpoch})
	if err := db.UpsertSnapshots(ctx, snaps); err != nil {
		t.Fatalf("UpsertSnapshots() error = %v", err)
	}

	got, err := db.ListSnapshots(ctx, "link-1", day("2026-03-02"), day("2026-03-03"))
	if err != nil {
		t.Fatalf("ListSnapshots() error = %v", err)
	}
	if len(got) != 2 || got[0].DateKey() != "2026-03-02" || got[1].DateKey() != "2026-03-03" {
		t.Errorf("ListSnapshots() = %+v", got)
	}
}

func TestUpsertSnapshots_Empty(t *testing.T) {
	db := setupTestDB(t)
	if err := db.UpsertSnapshots(context.Background(), nil); err != nil {
		t.Errorf("UpsertSnapshots(nil) error = %v", err)
	}
}

func TestUpsertSnapshots_ClicksOnlyKeepsDistributions(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	first := []models.AnalyticsSnapshot{{
		LinkID: "link-1", Date: day("2026-03-01"), Clicks: 10,
		Countries: map[string]int64{"US": 10}, Referrers: map[string]int64{"example.com": 10},
		SyncedAt: testEpoch,
	}}
	if err := db.UpsertSnapshots(ctx, first); err != nil {
		t.Fatalf("UpsertSnapshots() error = %v", err)
	}

	next := []models.AnalyticsSnapshot{
		{LinkID: "link-1", Date: day("2026-03-01"), Clicks: 11, SyncedAt: testEpoch.Add(24 * time.Hour), ClicksOnly: true},
		{LinkID: "link-1", Date: day("2026-03-02"), Clicks: 4, SyncedAt: testEpoch.Add(24 * time.Hour), ClicksOnly: true},
	}
	if err := db.UpsertSnapshots(ctx, next); err != nil {
		t.Fatalf("UpsertSnapshots() second error = %v", err)
	}

	got, err := db.ListSnapshots(ctx, "link-1", time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("ListSnapshots() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Clicks != 11 || got[0].Countries["US"] != 10 || got[0].Referrers["example.com"] != 10 {
		t.Errorf("got[0] = %+v, want clicks 11 with stored distributions kept", got[0])
	}
	if !got[0].SyncedAt.Equal(testEpoch.Add(24 * time.Hour)) {
		t.Errorf("got[0].SyncedAt = %v", got[0].SyncedAt)
	}
	if got[1].Clicks != 4 || len(got[1].Countries) != 0 || len(got[1].Referrers) != 0 {
		t.Errorf("got[1] = %+v, want new row with empty distributions", got[1])
	}
}
