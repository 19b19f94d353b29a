// Gymtrackd - Gym Attendance Analytics
// Copyright 2026 Gymtrackd Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gymtrack/gymtrackd

package database

import (
	"context"
	"fmt"

	"github.com/gymtrack/gymtrackd/internal/models"
)

// UpsertRollup writes the derived row for a date, replacing any previous
// derived fields. Recomputation with unchanged visit data yields an
// identical row; there is no hidden accumulation.
func (db *DB) UpsertRollup(ctx context.Context, r *models.DailyRollup) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO daily_rollups (roll_date, day_of_week, is_workday, status, qualified_visits, total_minutes, computed_at)
		VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (roll_date) DO UPDATE SET
			day_of_week = excluded.day_of_week,
			is_workday = excluded.is_workday,
			status = excluded.status,
			qualified_visits = excluded.qualified_visits,
			total_minutes = excluded.total_minutes,
			computed_at = excluded.computed_at`,
		r.Date, r.DayOfWeek, r.IsWorkday, string(r.Status), r.QualifiedVisits, r.TotalMinutes)
	if err != nil {
		return fmt.Errorf("failed to upsert rollup for %s: %w", r.Date, err)
	}
	return nil
}

// GetRollupsRange returns rollups with roll_date in [start, end] inclusive,
// ordered by date ascending.
func (db *DB) GetRollupsRange(ctx context.Context, start, end string) ([]models.DailyRollup, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT roll_date, day_of_week, is_workday, status, qualified_visits, total_minutes
		FROM daily_rollups
		WHERE roll_date >= ? AND roll_date <= ?
		ORDER BY roll_date ASC`, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query rollups: %w", err)
	}
	defer rows.Close()

	var rollups []models.DailyRollup
	for rows.Next() {
		var r models.DailyRollup
		var status string
		if err := rows.Scan(&r.Date, &r.DayOfWeek, &r.IsWorkday, &status, &r.QualifiedVisits, &r.TotalMinutes); err != nil {
			return nil, fmt.Errorf("failed to scan rollup row: %w", err)
		}
		r.Status = models.DayStatus(status)
		rollups = append(rollups, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rollup row iteration failed: %w", err)
	}
	return rollups, nil
}

// GetRollupDates returns the set of dates in [start, end] that already have
// a rollup row. Used by the backfill step to fill only the gaps.
func (db *DB) GetRollupDates(ctx context.Context, start, end string) (map[string]struct{}, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT roll_date FROM daily_rollups WHERE roll_date >= ? AND roll_date <= ?`,
		start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query rollup dates: %w", err)
	}
	defer rows.Close()

	dates := make(map[string]struct{})
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("failed to scan rollup date: %w", err)
		}
		dates[d] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rollup date iteration failed: %w", err)
	}
	return dates, nil
}

// GetWorkdayStatusesDesc returns (date, status) pairs for workday rollups
// with status other than "future", most recent first, bounded below by
// oldest. The streak calculator scans this sequence; the bound keeps the
// scan proportional to retained history rather than account age.
func (db *DB) GetWorkdayStatusesDesc(ctx context.Context, oldest string) ([]models.DailyRollup, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT roll_date, status
		FROM daily_rollups
		WHERE is_workday AND status != 'future' AND roll_date >= ?
		ORDER BY roll_date DESC`, oldest)
	if err != nil {
		return nil, fmt.Errorf("failed to query workday rollups: %w", err)
	}
	defer rows.Close()

	var rollups []models.DailyRollup
	for rows.Next() {
		var r models.DailyRollup
		var status string
		if err := rows.Scan(&r.Date, &status); err != nil {
			return nil, fmt.Errorf("failed to scan workday rollup: %w", err)
		}
		r.Status = models.DayStatus(status)
		r.IsWorkday = true
		rollups = append(rollups, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("workday rollup iteration failed: %w", err)
	}
	return rollups, nil
}
