// Gymtrackd - Gym Attendance Analytics
// Copyright 2026 Gymtrackd Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gymtrack/gymtrackd

package models

import "time"

// ProgressMode selects the current-period window for progress calculation.
type ProgressMode string

const (
	// ModeWeekly measures progress against a weekly visit target,
	// starting from the Monday of the current week.
	ModeWeekly ProgressMode = "weekly"
	// ModeMonthly measures progress from the first of the current month.
	ModeMonthly ProgressMode = "monthly"
)

// Valid reports whether the mode is a known value.
func (m ProgressMode) Valid() bool {
	return m == ModeWeekly || m == ModeMonthly
}

// DayCell is one workday cell in the heatmap grid.
type DayCell struct {
	Date      string    `json:"date"`
	DayOfWeek int       `json:"day_of_week"` // 1=Monday .. 5=Friday
	Status    DayStatus `json:"status"`
}

// WeekColumn is one week-bucket of the heatmap: the Monday date plus five
// workday cells.
type WeekColumn struct {
	WeekStart string    `json:"week_start"`
	Days      []DayCell `json:"days"`
}

// MonthLabel is a run-length-encoded month header over the heatmap columns:
// contiguous weeks whose Monday falls in the same month merge into one label.
type MonthLabel struct {
	Month     string `json:"month"`      // "Jan", "Feb", ...
	WeekIndex int    `json:"week_index"` // starting column
	WeekSpan  int    `json:"week_span"`  // number of weeks covered
}

// Heatmap is the week-by-day grid of rollup statuses.
type Heatmap struct {
	Weeks       int          `json:"weeks"`
	Grid        []WeekColumn `json:"grid"`
	MonthLabels []MonthLabel `json:"month_labels"`
}

// CurrentPeriod reports progress within the running week or month.
type CurrentPeriod struct {
	Label           string `json:"label"` // "This Week" or "This Month"
	Visits          int    `json:"visits"`
	Target          int    `json:"target"`
	ProgressPercent int    `json:"progress_percent"`
}

// SummaryStats aggregates the visible rollup window plus streaks.
// TotalVisits counts attended days, not individual sessions.
type SummaryStats struct {
	TotalVisits   int `json:"total_visits"`
	TotalMinutes  int `json:"total_minutes"`
	CurrentStreak int `json:"current_streak"`
	LongestStreak int `json:"longest_streak"`
}

// Summary is the full derived view served by GET /gym/summary. It is a pure
// function of stored visits and rollups and is cacheable for a few minutes.
type Summary struct {
	CurrentPeriod CurrentPeriod `json:"current_period"`
	Heatmap       Heatmap       `json:"heatmap"`
	Stats         SummaryStats  `json:"stats"`
	Cycling       []CyclingWeek `json:"cycling,omitempty"`
	GeneratedAt   time.Time     `json:"generated_at"`
}
