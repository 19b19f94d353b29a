// Gymtrackd - Gym Attendance Analytics
// Copyright 2026 Gymtrackd Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gymtrack/gymtrackd

package strava

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gymtrack/gymtrackd/internal/models"
)

type fakeActivityClient struct {
	activities []Activity
	err        error
	gotAfter   time.Time
}

func (f *fakeActivityClient) GetActivitiesSince(_ context.Context, after time.Time) ([]Activity, error) {
	f.gotAfter = after
	return f.activities, f.err
}

type fakeCyclingStore struct {
	weeks map[string]*models.CyclingWeek
}

func (f *fakeCyclingStore) UpsertCyclingWeek(_ context.Context, w *models.CyclingWeek) error {
	if f.weeks == nil {
		f.weeks = make(map[string]*models.CyclingWeek)
	}
	cp := *w
	f.weeks[w.WeekStart] = &cp
	return nil
}

// Friday March 6th 2026; the current week's Monday is March 2nd.
var syncNow = time.Date(2026, 3, 6, 15, 0, 0, 0, time.UTC)

func ride(day time.Time, distance float64, moving int, kind string) Activity {
	return Activity{Type: kind, Distance: distance, MovingTime: moving, StartDate: day}
}

func TestSyncBucketsRidesByWeek(t *testing.T) {
	client := &fakeActivityClient{activities: []Activity{
		ride(time.Date(2026, 2, 24, 8, 0, 0, 0, time.UTC), 20000, 3600, "Ride"),        // week of Feb 23
		ride(time.Date(2026, 2, 26, 18, 0, 0, 0, time.UTC), 15000, 2700, "VirtualRide"), // week of Feb 23
		ride(time.Date(2026, 3, 3, 7, 0, 0, 0, time.UTC), 30000, 5400, "Ride"),         // week of Mar 2
		ride(time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC), 5000, 1200, "Run"),          // not cycling
	}}
	store := &fakeCyclingStore{}
	s := NewSyncer(client, store, time.UTC, 4)

	written, err := s.Sync(context.Background(), syncNow, 0)
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if written != 4 {
		t.Errorf("written = %d, want 4", written)
	}

	// Window starts three weeks before the current Monday.
	if want := time.Date(2026, 2, 9, 0, 0, 0, 0, time.UTC); !client.gotAfter.Equal(want) {
		t.Errorf("after = %v, want %v", client.gotAfter, want)
	}

	feb23 := store.weeks["2026-02-23"]
	if feb23 == nil || feb23.TotalRides != 2 {
		t.Fatalf("week 2026-02-23 = %+v, want 2 rides", feb23)
	}
	if feb23.TotalDistanceM != 35000 || feb23.TotalMovingTimeSec != 6300 {
		t.Errorf("week 2026-02-23 totals = %+v", feb23)
	}

	mar2 := store.weeks["2026-03-02"]
	if mar2 == nil || mar2.TotalRides != 1 || !mar2.HasRide {
		t.Fatalf("week 2026-03-02 = %+v, want 1 ride", mar2)
	}

	// Rideless weeks get explicit zero rows.
	feb9 := store.weeks["2026-02-09"]
	if feb9 == nil {
		t.Fatal("week 2026-02-09 missing")
	}
	if feb9.HasRide || feb9.TotalRides != 0 {
		t.Errorf("week 2026-02-09 = %+v, want empty", feb9)
	}
}

func TestSyncWeeksBackOverride(t *testing.T) {
	tests := []struct {
		name      string
		weeksBack int
		wantAfter time.Time
		wantRows  int
	}{
		{"zero falls back to configured", 0, time.Date(2026, 2, 9, 0, 0, 0, 0, time.UTC), 4},
		{"narrower than configured", 2, time.Date(2026, 2, 23, 0, 0, 0, 0, time.UTC), 2},
		{"wider than configured", 6, time.Date(2026, 1, 26, 0, 0, 0, 0, time.UTC), 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &fakeActivityClient{}
			store := &fakeCyclingStore{}
			s := NewSyncer(client, store, time.UTC, 4)

			written, err := s.Sync(context.Background(), syncNow, tt.weeksBack)
			if err != nil {
				t.Fatalf("Sync() error = %v", err)
			}
			if written != tt.wantRows {
				t.Errorf("written = %d, want %d", written, tt.wantRows)
			}
			if !client.gotAfter.Equal(tt.wantAfter) {
				t.Errorf("after = %v, want %v", client.gotAfter, tt.wantAfter)
			}
		})
	}
}

func TestSyncFetchFailure(t *testing.T) {
	client := &fakeActivityClient{err: errors.New("api down")}
	store := &fakeCyclingStore{}
	s := NewSyncer(client, store, time.UTC, 4)

	if _, err := s.Sync(context.Background(), syncNow, 0); err == nil {
		t.Fatal("expected error")
	}
	if len(store.weeks) != 0 {
		t.Errorf("weeks written on failure: %d", len(store.weeks))
	}
}

func TestActivityRide(t *testing.T) {
	tests := []struct {
		kind string
		want bool
	}{
		{"Ride", true},
		{"VirtualRide", true},
		{"Run", false},
		{"WeightTraining", false},
		{"", false},
	}
	for _, tt := range tests {
		a := Activity{Type: tt.kind}
		if a.Ride() != tt.want {
			t.Errorf("Ride() for %q = %v, want %v", tt.kind, a.Ride(), tt.want)
		}
	}
}
