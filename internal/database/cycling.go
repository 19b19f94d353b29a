// Gymtrackd - Gym Attendance Analytics
// Copyright 2026 Gymtrackd Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gymtrack/gymtrackd

package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/gymtrack/gymtrackd/internal/models"
)

// UpsertCyclingWeek replaces the cycling summary for one ISO week.
func (db *DB) UpsertCyclingWeek(ctx context.Context, w *models.CyclingWeek) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO cycling_weekly (week_start, has_ride, total_rides, total_distance_meters, total_moving_time_seconds, updated_at)
		VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (week_start) DO UPDATE SET
			has_ride = excluded.has_ride,
			total_rides = excluded.total_rides,
			total_distance_meters = excluded.total_distance_meters,
			total_moving_time_seconds = excluded.total_moving_time_seconds,
			updated_at = excluded.updated_at`,
		w.WeekStart, w.HasRide, w.TotalRides, w.TotalDistanceM, w.TotalMovingTimeSec)
	if err != nil {
		return fmt.Errorf("failed to upsert cycling week %s: %w", w.WeekStart, err)
	}
	return nil
}

// GetCyclingWeeksRange returns cycling weeks with week_start in
// [start, end] inclusive, ordered ascending.
func (db *DB) GetCyclingWeeksRange(ctx context.Context, start, end string) ([]models.CyclingWeek, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT week_start, has_ride, total_rides, total_distance_meters, total_moving_time_seconds, updated_at
		FROM cycling_weekly
		WHERE week_start >= ? AND week_start <= ?
		ORDER BY week_start ASC`, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query cycling weeks: %w", err)
	}
	defer rows.Close()

	var weeks []models.CyclingWeek
	for rows.Next() {
		var w models.CyclingWeek
		var updated sql.NullTime
		if err := rows.Scan(&w.WeekStart, &w.HasRide, &w.TotalRides, &w.TotalDistanceM, &w.TotalMovingTimeSec, &updated); err != nil {
			return nil, fmt.Errorf("failed to scan cycling week: %w", err)
		}
		if updated.Valid {
			w.UpdatedAt = updated.Time.UTC()
		}
		weeks = append(weeks, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("cycling week iteration failed: %w", err)
	}
	return weeks, nil
}
