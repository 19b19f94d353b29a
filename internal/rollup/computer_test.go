// Gymtrackd - Gym Attendance Analytics
// Copyright 2026 Gymtrackd Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gymtrack/gymtrackd

package rollup

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/gymtrack/gymtrackd/internal/database"
	"github.com/gymtrack/gymtrackd/internal/models"
)

// fakeStore backs the computer and assembler tests with plain maps.
type fakeStore struct {
	visits  map[string][]models.Visit
	rollups map[string]*models.DailyRollup
	manual  map[string]*models.ManualEntry
	cycling []models.CyclingWeek

	periodVisits int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		visits:  make(map[string][]models.Visit),
		rollups: make(map[string]*models.DailyRollup),
		manual:  make(map[string]*models.ManualEntry),
	}
}

func (f *fakeStore) GetClosedVisitsByDate(_ context.Context, date string) ([]models.Visit, error) {
	return f.visits[date], nil
}

func (f *fakeStore) UpsertRollup(_ context.Context, r *models.DailyRollup) error {
	cp := *r
	f.rollups[r.Date] = &cp
	return nil
}

func (f *fakeStore) GetRollupDates(_ context.Context, start, end string) (map[string]struct{}, error) {
	dates := make(map[string]struct{})
	for d := range f.rollups {
		if d >= start && d <= end {
			dates[d] = struct{}{}
		}
	}
	return dates, nil
}

func (f *fakeStore) GetManualEntry(_ context.Context, date string) (*models.ManualEntry, error) {
	if e, ok := f.manual[date]; ok {
		return e, nil
	}
	return nil, database.ErrNotFound
}

func (f *fakeStore) GetRollupsRange(_ context.Context, start, end string) ([]models.DailyRollup, error) {
	var out []models.DailyRollup
	for d := start; d <= end; d = nextDate(d) {
		if r, ok := f.rollups[d]; ok {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeStore) GetWorkdayStatusesDesc(_ context.Context, oldest string) ([]models.DailyRollup, error) {
	var dates []string
	for d, r := range f.rollups {
		if r.IsWorkday && r.Status != models.StatusFuture && d >= oldest {
			dates = append(dates, d)
		}
	}
	// Descending by date.
	for i := 0; i < len(dates); i++ {
		for j := i + 1; j < len(dates); j++ {
			if dates[j] > dates[i] {
				dates[i], dates[j] = dates[j], dates[i]
			}
		}
	}
	out := make([]models.DailyRollup, 0, len(dates))
	for _, d := range dates {
		out = append(out, *f.rollups[d])
	}
	return out, nil
}

func (f *fakeStore) CountQualifiedVisitsBetween(_ context.Context, _, _ string) (int, error) {
	return f.periodVisits, nil
}

func (f *fakeStore) GetCyclingWeeksRange(_ context.Context, _, _ string) ([]models.CyclingWeek, error) {
	return f.cycling, nil
}

func nextDate(d string) string {
	t, _ := time.Parse(dateLayout, d)
	return t.AddDate(0, 0, 1).Format(dateLayout)
}

func closedVisit(date string, minutes int, qualified bool) models.Visit {
	d := minutes
	return models.Visit{VisitDate: date, DurationMinutes: &d, IsQualified: qualified}
}

// Friday March 6th 2026, mid-afternoon UTC.
var now = time.Date(2026, 3, 6, 15, 0, 0, 0, time.UTC)

func TestComputeClassification(t *testing.T) {
	store := newFakeStore()
	store.visits["2026-03-02"] = []models.Visit{
		closedVisit("2026-03-02", 45, true),
		closedVisit("2026-03-02", 15, false),
	}
	store.visits["2026-03-07"] = []models.Visit{
		closedVisit("2026-03-07", 60, true), // Saturday visit, still excluded
	}
	c := NewComputer(store, time.UTC)
	ctx := context.Background()

	tests := []struct {
		date      string
		status    models.DayStatus
		qualified int
		minutes   int
		workday   bool
	}{
		{"2026-03-02", models.StatusVisit, 1, 60, true},    // Monday with visits
		{"2026-03-03", models.StatusMiss, 0, 0, true},      // Tuesday, nothing
		{"2026-03-07", models.StatusExcluded, 0, 0, false}, // Saturday
		{"2026-03-08", models.StatusExcluded, 0, 0, false}, // Sunday
		{"2026-03-09", models.StatusFuture, 0, 0, true},    // next Monday
	}

	for _, tt := range tests {
		t.Run(tt.date, func(t *testing.T) {
			r, err := c.Compute(ctx, tt.date, now)
			if err != nil {
				t.Fatalf("Compute() error = %v", err)
			}
			if r.Status != tt.status {
				t.Errorf("status = %q, want %q", r.Status, tt.status)
			}
			if r.QualifiedVisits != tt.qualified {
				t.Errorf("qualified_visits = %d, want %d", r.QualifiedVisits, tt.qualified)
			}
			if r.TotalMinutes != tt.minutes {
				t.Errorf("total_minutes = %d, want %d", r.TotalMinutes, tt.minutes)
			}
			if r.IsWorkday != tt.workday {
				t.Errorf("is_workday = %v, want %v", r.IsWorkday, tt.workday)
			}
		})
	}
}

func TestComputeIsDeterministic(t *testing.T) {
	store := newFakeStore()
	store.visits["2026-03-02"] = []models.Visit{closedVisit("2026-03-02", 30, true)}
	c := NewComputer(store, time.UTC)
	ctx := context.Background()

	first, err := c.Compute(ctx, "2026-03-02", now)
	if err != nil {
		t.Fatal(err)
	}
	second, err := c.Compute(ctx, "2026-03-02", now)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("recomputation differs: %+v vs %+v", first, second)
	}
}

func TestManualOverride(t *testing.T) {
	store := newFakeStore()
	store.manual["2026-03-03"] = &models.ManualEntry{Date: "2026-03-03", Status: models.StatusVisit}
	store.manual["2026-03-07"] = &models.ManualEntry{Date: "2026-03-07", Status: models.StatusVisit}
	c := NewComputer(store, time.UTC)
	ctx := context.Background()

	// Workday miss flips to visit.
	r, err := c.Compute(ctx, "2026-03-03", now)
	if err != nil {
		t.Fatal(err)
	}
	if r.Status != models.StatusVisit {
		t.Errorf("overridden status = %q, want visit", r.Status)
	}

	// Weekend classification beats the override.
	r, err = c.Compute(ctx, "2026-03-07", now)
	if err != nil {
		t.Fatal(err)
	}
	if r.Status != models.StatusExcluded {
		t.Errorf("Saturday status = %q, want excluded despite override", r.Status)
	}
}

func TestManualOverrideSurvivesRecompute(t *testing.T) {
	store := newFakeStore()
	store.manual["2026-03-03"] = &models.ManualEntry{Date: "2026-03-03", Status: models.StatusVisit}
	c := NewComputer(store, time.UTC)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := c.ComputeAndStore(ctx, "2026-03-03", now, "manual"); err != nil {
			t.Fatal(err)
		}
	}
	if got := store.rollups["2026-03-03"].Status; got != models.StatusVisit {
		t.Errorf("status after recomputes = %q, want visit", got)
	}
}

func TestEnsureRollupsBackfillsGapsOnly(t *testing.T) {
	store := newFakeStore()
	c := NewComputer(store, time.UTC)
	ctx := context.Background()

	// Pre-existing row that backfill must not touch.
	store.rollups["2026-03-03"] = &models.DailyRollup{
		Date:   "2026-03-03",
		Status: models.StatusVisit,
	}

	written, err := c.EnsureRollups(ctx, "2026-03-02", "2026-03-06", now)
	if err != nil {
		t.Fatal(err)
	}
	if written != 4 {
		t.Errorf("written = %d, want 4 (five days minus one existing)", written)
	}
	if got := store.rollups["2026-03-03"].Status; got != models.StatusVisit {
		t.Errorf("existing row overwritten: %q", got)
	}
	if store.rollups["2026-03-02"] == nil || store.rollups["2026-03-06"] == nil {
		t.Error("gap dates not backfilled")
	}
}

func TestEnsureRollupsNeverMaterializesFuture(t *testing.T) {
	store := newFakeStore()
	c := NewComputer(store, time.UTC)

	written, err := c.EnsureRollups(context.Background(), "2026-03-02", "2026-03-13", now)
	if err != nil {
		t.Fatal(err)
	}
	// now is Friday March 6th: only March 2-6 materialize.
	if written != 5 {
		t.Errorf("written = %d, want 5", written)
	}
	for d := "2026-03-07"; d <= "2026-03-13"; d = nextDate(d) {
		if store.rollups[d] != nil {
			t.Errorf("future date %s materialized", d)
		}
	}
}

func TestEnsureRollupsEntirelyFutureRange(t *testing.T) {
	store := newFakeStore()
	c := NewComputer(store, time.UTC)

	written, err := c.EnsureRollups(context.Background(), "2026-04-01", "2026-04-10", now)
	if err != nil {
		t.Fatal(err)
	}
	if written != 0 || len(store.rollups) != 0 {
		t.Errorf("written = %d, rollups = %d, want nothing", written, len(store.rollups))
	}
}

func TestRecomputeTrailing(t *testing.T) {
	store := newFakeStore()
	store.visits["2026-03-04"] = []models.Visit{closedVisit("2026-03-04", 50, true)}
	c := NewComputer(store, time.UTC)

	written, err := c.RecomputeTrailing(context.Background(), 7, now)
	if err != nil {
		t.Fatal(err)
	}
	if written != 7 {
		t.Errorf("written = %d, want 7", written)
	}
	if got := store.rollups["2026-03-04"].Status; got != models.StatusVisit {
		t.Errorf("2026-03-04 status = %q, want visit", got)
	}
	// Feb 28th 2026 is a Saturday.
	if got := store.rollups["2026-02-28"].Status; got != models.StatusExcluded {
		t.Errorf("2026-02-28 status = %q, want excluded", got)
	}
}
