// Gymtrackd - Gym Attendance Analytics
// Copyright 2026 Gymtrackd Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gymtrack/gymtrackd

package strava

import (
	"context"
	"fmt"
	"time"

	"github.com/gymtrack/gymtrackd/internal/logging"
	"github.com/gymtrack/gymtrackd/internal/metrics"
	"github.com/gymtrack/gymtrackd/internal/models"
)

const dateLayout = "2006-01-02"

// ActivityClient fetches activities; satisfied by *Client.
type ActivityClient interface {
	GetActivitiesSince(ctx context.Context, after time.Time) ([]Activity, error)
}

// CyclingStore persists the weekly aggregates.
type CyclingStore interface {
	UpsertCyclingWeek(ctx context.Context, w *models.CyclingWeek) error
}

// Syncer buckets ride activities into per-week aggregates. Weeks run Monday
// to Sunday in the configured timezone, matching the attendance calendar.
type Syncer struct {
	client    ActivityClient
	store     CyclingStore
	loc       *time.Location
	weeksBack int
}

// NewSyncer builds a Syncer covering the trailing weeksBack weeks
// (including the current one).
func NewSyncer(client ActivityClient, store CyclingStore, loc *time.Location, weeksBack int) *Syncer {
	if weeksBack < 1 {
		weeksBack = 1
	}
	return &Syncer{client: client, store: store, loc: loc, weeksBack: weeksBack}
}

// Sync fetches activities for the covered window and upserts one row per
// week, including rideless weeks so the overlay has explicit zero rows.
// weeksBack overrides the configured window for this run; values below 1
// mean the default. Returns the number of week rows written.
func (s *Syncer) Sync(ctx context.Context, now time.Time, weeksBack int) (int, error) {
	if weeksBack < 1 {
		weeksBack = s.weeksBack
	}
	firstMonday := mondayOf(now.In(s.loc)).AddDate(0, 0, -7*(weeksBack-1))

	activities, err := s.client.GetActivitiesSince(ctx, firstMonday)
	if err != nil {
		metrics.StravaSyncs.WithLabelValues("error").Inc()
		return 0, fmt.Errorf("activity fetch failed: %w", err)
	}

	weeks := make(map[string]*models.CyclingWeek, weeksBack)
	for w := 0; w < weeksBack; w++ {
		start := firstMonday.AddDate(0, 0, 7*w).Format(dateLayout)
		weeks[start] = &models.CyclingWeek{WeekStart: start}
	}

	rides := 0
	for i := range activities {
		a := &activities[i]
		if !a.Ride() {
			continue
		}
		start := mondayOf(a.StartDate.In(s.loc)).Format(dateLayout)
		week, ok := weeks[start]
		if !ok {
			continue // activity outside the covered window
		}
		week.HasRide = true
		week.TotalRides++
		week.TotalDistanceM += a.Distance
		week.TotalMovingTimeSec += a.MovingTime
		rides++
	}

	written := 0
	for w := 0; w < weeksBack; w++ {
		start := firstMonday.AddDate(0, 0, 7*w).Format(dateLayout)
		if err := s.store.UpsertCyclingWeek(ctx, weeks[start]); err != nil {
			metrics.StravaSyncs.WithLabelValues("error").Inc()
			return written, fmt.Errorf("cycling week upsert failed: %w", err)
		}
		written++
	}

	metrics.StravaSyncs.WithLabelValues("ok").Inc()
	logging.Info().
		Int("weeks", written).
		Int("rides", rides).
		Int("activities", len(activities)).
		Msg("Cycling sync complete")
	return written, nil
}

// mondayOf returns the Monday of t's week at midnight in t's location.
func mondayOf(t time.Time) time.Time {
	dow := int(t.Weekday())
	if dow == 0 {
		dow = 7
	}
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return day.AddDate(0, 0, -(dow - 1))
}
