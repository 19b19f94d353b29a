// Gymtrackd - Gym Attendance Analytics
// Copyright 2026 Gymtrackd Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gymtrack/gymtrackd

package models

import "time"

// DayStatus classifies a calendar date in the attendance record.
type DayStatus string

const (
	// StatusVisit marks a past workday with at least one qualified visit.
	StatusVisit DayStatus = "visit"
	// StatusMiss marks a past workday with no qualified visit.
	StatusMiss DayStatus = "miss"
	// StatusFuture marks a date after today.
	StatusFuture DayStatus = "future"
	// StatusExcluded marks weekend days, which never count for or against
	// attendance.
	StatusExcluded DayStatus = "excluded"
)

// Valid reports whether the status is a known value.
func (s DayStatus) Valid() bool {
	switch s {
	case StatusVisit, StatusMiss, StatusFuture, StatusExcluded:
		return true
	}
	return false
}

// DailyRollup is the fully derived attendance record for one calendar date.
// Rollups are recomputable at any time: computing the rollup for a date from
// the same underlying visit data always yields the same row, and the store
// upserts it keyed by date.
type DailyRollup struct {
	Date            string    `json:"date"` // YYYY-MM-DD
	DayOfWeek       int       `json:"day_of_week"` // 0=Sunday .. 6=Saturday
	IsWorkday       bool      `json:"is_workday"`
	Status          DayStatus `json:"status"`
	QualifiedVisits int       `json:"qualified_visits"`
	TotalMinutes    int       `json:"total_minutes"`
}

// ManualEntry is an explicit override of a date's status. Manual entries
// live in their own table and are consulted by the rollup computer after the
// automatic status is derived, so they survive recomputation.
type ManualEntry struct {
	Date      string    `json:"date" validate:"required,datetime=2006-01-02"`
	Status    DayStatus `json:"status" validate:"required,oneof=visit miss"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// CyclingWeek is the per-ISO-week cycling summary synced from Strava.
// WeekStart is the Monday date of the week.
type CyclingWeek struct {
	WeekStart          string    `json:"week_start"` // YYYY-MM-DD, a Monday
	HasRide            bool      `json:"has_ride"`
	TotalRides         int       `json:"total_rides"`
	TotalDistanceM     float64   `json:"total_distance_meters"`
	TotalMovingTimeSec int       `json:"total_moving_time_seconds"`
	UpdatedAt          time.Time `json:"updated_at,omitempty"`
}
