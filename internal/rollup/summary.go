// Gymtrackd - Gym Attendance Analytics
// Copyright 2026 Gymtrackd Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gymtrack/gymtrackd

package rollup

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/gymtrack/gymtrackd/internal/models"
)

// Week-count bounds for the summary window.
const (
	MinWeeks     = 12
	MaxWeeks     = 52
	DefaultWeeks = 12

	// streakHistoryDays bounds the streak scan to the trailing year. A
	// streak longer than retained history reports as the bound, which is
	// an accepted trade for a scan proportional to the window.
	streakHistoryDays = 365
)

// SummaryStore is the slice of the store the assembler reads from.
type SummaryStore interface {
	GetRollupsRange(ctx context.Context, start, end string) ([]models.DailyRollup, error)
	GetWorkdayStatusesDesc(ctx context.Context, oldest string) ([]models.DailyRollup, error)
	CountQualifiedVisitsBetween(ctx context.Context, start, end string) (int, error)
	GetCyclingWeeksRange(ctx context.Context, start, end string) ([]models.CyclingWeek, error)
}

// SummaryParams are the validated query parameters for a summary read.
type SummaryParams struct {
	Mode   models.ProgressMode
	Target int

	// StartDate optionally anchors the window; it is normalized to its
	// week's Monday. Empty means "the window ending this week".
	StartDate string

	// Weeks is the window size, clamped to [MinWeeks, MaxWeeks];
	// zero means DefaultWeeks.
	Weeks int
}

// Assembler builds the summary view. It is read-mostly: the only write is
// the lazy backfill of missing rollup rows.
type Assembler struct {
	store         SummaryStore
	computer      *Computer
	loc           *time.Location
	defaultTarget int
}

// NewAssembler builds an Assembler. defaultTarget is used when the request
// does not carry an explicit target.
func NewAssembler(store SummaryStore, computer *Computer, loc *time.Location, defaultTarget int) *Assembler {
	return &Assembler{
		store:         store,
		computer:      computer,
		loc:           loc,
		defaultTarget: defaultTarget,
	}
}

// Assemble builds the full summary for the requested window as of now.
func (a *Assembler) Assemble(ctx context.Context, p SummaryParams, now time.Time) (*models.Summary, error) {
	localNow := now.In(a.loc)

	weeks := p.Weeks
	if weeks == 0 {
		weeks = DefaultWeeks
	}
	if weeks < MinWeeks {
		weeks = MinWeeks
	}
	if weeks > MaxWeeks {
		weeks = MaxWeeks
	}

	start, err := a.windowStart(p.StartDate, weeks, localNow)
	if err != nil {
		return nil, err
	}
	end := start.AddDate(0, 0, 7*weeks-1)

	startStr := start.Format(dateLayout)
	endStr := end.Format(dateLayout)

	if _, err := a.computer.EnsureRollups(ctx, startStr, endStr, now); err != nil {
		return nil, fmt.Errorf("rollup backfill failed: %w", err)
	}

	rollups, err := a.store.GetRollupsRange(ctx, startStr, endStr)
	if err != nil {
		return nil, fmt.Errorf("rollup fetch failed: %w", err)
	}

	heatmap := BuildHeatmap(rollups, start, weeks)

	// TotalVisits counts attended days, not sessions: two qualified
	// sessions on one date still count once.
	stats := models.SummaryStats{}
	for i := range rollups {
		if rollups[i].Status == models.StatusVisit {
			stats.TotalVisits++
		}
		stats.TotalMinutes += rollups[i].TotalMinutes
	}

	oldest := localNow.AddDate(0, 0, -streakHistoryDays).Format(dateLayout)
	workdays, err := a.store.GetWorkdayStatusesDesc(ctx, oldest)
	if err != nil {
		return nil, fmt.Errorf("streak scan failed: %w", err)
	}
	streaks := CalculateStreaks(workdays)
	stats.CurrentStreak = streaks.Current
	stats.LongestStreak = streaks.Longest

	period, err := a.currentPeriod(ctx, p, localNow)
	if err != nil {
		return nil, err
	}

	cycling, err := a.store.GetCyclingWeeksRange(ctx, startStr, start.AddDate(0, 0, 7*(weeks-1)).Format(dateLayout))
	if err != nil {
		return nil, fmt.Errorf("cycling overlay fetch failed: %w", err)
	}

	return &models.Summary{
		CurrentPeriod: period,
		Heatmap:       heatmap,
		Stats:         stats,
		Cycling:       cycling,
		GeneratedAt:   now.UTC(),
	}, nil
}

// windowStart resolves the heatmap's first Monday: an explicit start date
// is snapped back to its week's Monday; otherwise the window is anchored
// so its last week is the current one.
func (a *Assembler) windowStart(startDate string, weeks int, localNow time.Time) (time.Time, error) {
	if startDate != "" {
		day, err := time.ParseInLocation(dateLayout, startDate, a.loc)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid start date %q: %w", startDate, err)
		}
		return mondayOf(day), nil
	}
	return mondayOf(localNow).AddDate(0, 0, -7*(weeks-1)), nil
}

// currentPeriod computes progress in the running week or month.
func (a *Assembler) currentPeriod(ctx context.Context, p SummaryParams, localNow time.Time) (models.CurrentPeriod, error) {
	target := p.Target
	if target <= 0 {
		target = a.defaultTarget
	}

	var label, periodStart string
	switch p.Mode {
	case models.ModeMonthly:
		label = "This Month"
		periodStart = time.Date(localNow.Year(), localNow.Month(), 1, 0, 0, 0, 0, a.loc).Format(dateLayout)
	default:
		label = "This Week"
		periodStart = mondayOf(localNow).Format(dateLayout)
	}

	visits, err := a.store.CountQualifiedVisitsBetween(ctx, periodStart, localNow.Format(dateLayout))
	if err != nil {
		return models.CurrentPeriod{}, fmt.Errorf("period visit count failed: %w", err)
	}

	percent := 0
	if target > 0 {
		percent = int(math.Round(float64(visits) / float64(target) * 100))
	}

	return models.CurrentPeriod{
		Label:           label,
		Visits:          visits,
		Target:          target,
		ProgressPercent: percent,
	}, nil
}

// mondayOf returns the Monday of t's week at midnight in t's location.
func mondayOf(t time.Time) time.Time {
	dow := int(t.Weekday())
	if dow == 0 {
		dow = 7 // Sunday belongs to the week that started six days earlier
	}
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return day.AddDate(0, 0, -(dow - 1))
}
