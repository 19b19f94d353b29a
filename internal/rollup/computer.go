// Gymtrackd - Gym Attendance Analytics
// Copyright 2026 Gymtrackd Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gymtrack/gymtrackd

// Package rollup derives the per-day attendance record from closed visits
// and assembles the summary view: daily statuses, streaks, the heatmap
// grid, and current-period progress.
package rollup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gymtrack/gymtrackd/internal/database"
	"github.com/gymtrack/gymtrackd/internal/logging"
	"github.com/gymtrack/gymtrackd/internal/metrics"
	"github.com/gymtrack/gymtrackd/internal/models"
)

const dateLayout = "2006-01-02"

// RollupStore is the slice of the store the computer needs.
type RollupStore interface {
	GetClosedVisitsByDate(ctx context.Context, date string) ([]models.Visit, error)
	UpsertRollup(ctx context.Context, r *models.DailyRollup) error
	GetRollupDates(ctx context.Context, start, end string) (map[string]struct{}, error)
	GetManualEntry(ctx context.Context, date string) (*models.ManualEntry, error)
}

// Computer derives daily rollups. Computation is a pure function of the
// closed visits for the date (plus any manual override), so recomputing
// with unchanged data always writes the identical row.
type Computer struct {
	store RollupStore
	loc   *time.Location
}

// NewComputer builds a Computer. loc is the timezone that defines "today"
// and calendar-date boundaries.
func NewComputer(store RollupStore, loc *time.Location) *Computer {
	return &Computer{store: store, loc: loc}
}

// today is now rendered as a local calendar date.
func (c *Computer) today(now time.Time) string {
	return now.In(c.loc).Format(dateLayout)
}

// Compute derives the rollup row for one date without storing it.
// Classification order: weekend wins over everything, then future, then
// the visit-derived status with any manual override applied last.
func (c *Computer) Compute(ctx context.Context, date string, now time.Time) (*models.DailyRollup, error) {
	day, err := time.ParseInLocation(dateLayout, date, c.loc)
	if err != nil {
		return nil, fmt.Errorf("invalid rollup date %q: %w", date, err)
	}

	dow := int(day.Weekday()) // 0=Sunday .. 6=Saturday
	r := &models.DailyRollup{
		Date:      date,
		DayOfWeek: dow,
		IsWorkday: dow >= 1 && dow <= 5,
	}

	switch {
	case !r.IsWorkday:
		r.Status = models.StatusExcluded
	case date > c.today(now):
		r.Status = models.StatusFuture
	default:
		visits, err := c.store.GetClosedVisitsByDate(ctx, date)
		if err != nil {
			return nil, fmt.Errorf("visit query for %s failed: %w", date, err)
		}
		for i := range visits {
			if visits[i].DurationMinutes != nil {
				r.TotalMinutes += *visits[i].DurationMinutes
			}
			if visits[i].IsQualified {
				r.QualifiedVisits++
			}
		}
		if r.QualifiedVisits > 0 {
			r.Status = models.StatusVisit
		} else {
			r.Status = models.StatusMiss
		}

		// Manual overrides only reclassify visit/miss days; weekend and
		// future classification always wins.
		entry, err := c.store.GetManualEntry(ctx, date)
		if err != nil && !errors.Is(err, database.ErrNotFound) {
			return nil, fmt.Errorf("manual entry lookup for %s failed: %w", date, err)
		}
		if entry != nil {
			r.Status = entry.Status
		}
	}
	return r, nil
}

// ComputeAndStore derives and upserts the rollup for one date. trigger
// labels the metrics counter (scheduled, ingest, manual, backfill).
func (c *Computer) ComputeAndStore(ctx context.Context, date string, now time.Time, trigger string) (*models.DailyRollup, error) {
	r, err := c.Compute(ctx, date, now)
	if err != nil {
		return nil, err
	}
	if err := c.store.UpsertRollup(ctx, r); err != nil {
		return nil, err
	}
	metrics.RollupsComputed.WithLabelValues(trigger).Inc()
	return r, nil
}

// EnsureRollups backfills missing rollup rows for [start, end], never
// materializing dates past today. Existing rows are left untouched.
// Returns the number of rows written.
func (c *Computer) EnsureRollups(ctx context.Context, start, end string, now time.Time) (int, error) {
	today := c.today(now)
	if end > today {
		end = today
	}
	if start > end {
		return 0, nil
	}

	existing, err := c.store.GetRollupDates(ctx, start, end)
	if err != nil {
		return 0, fmt.Errorf("rollup date scan failed: %w", err)
	}

	startDay, err := time.ParseInLocation(dateLayout, start, c.loc)
	if err != nil {
		return 0, fmt.Errorf("invalid backfill start %q: %w", start, err)
	}

	written := 0
	for d := startDay; ; d = d.AddDate(0, 0, 1) {
		date := d.Format(dateLayout)
		if date > end {
			break
		}
		if _, ok := existing[date]; ok {
			continue
		}
		if _, err := c.ComputeAndStore(ctx, date, now, "backfill"); err != nil {
			return written, err
		}
		written++
	}
	if written > 0 {
		logging.Debug().
			Str("start", start).
			Str("end", end).
			Int("written", written).
			Msg("Backfilled missing rollups")
	}
	return written, nil
}

// RecomputeTrailing recomputes the rollups for the trailing window ending
// today. Late-arriving exits and reaper closures change past visits; this
// converges the derived rows. Returns the number of rows written.
func (c *Computer) RecomputeTrailing(ctx context.Context, days int, now time.Time) (int, error) {
	localNow := now.In(c.loc)
	written := 0
	for i := days - 1; i >= 0; i-- {
		date := localNow.AddDate(0, 0, -i).Format(dateLayout)
		if _, err := c.ComputeAndStore(ctx, date, now, "scheduled"); err != nil {
			return written, fmt.Errorf("recompute of %s failed: %w", date, err)
		}
		written++
	}
	return written, nil
}
