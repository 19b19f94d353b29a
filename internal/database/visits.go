// Gymtrackd - Gym Attendance Analytics
// Copyright 2026 Gymtrackd Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gymtrack/gymtrackd

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gymtrack/gymtrackd/internal/models"
)

// ErrVisitAlreadyOpen is returned by OpenVisit when another open visit
// exists for the location at insert time.
var ErrVisitAlreadyOpen = errors.New("open visit already exists for location")

// OpenVisit creates a new open visit for the location, atomically enforcing
// the single-open-visit invariant: the insert only applies if no open visit
// for the location exists at execution time. Two racing enters cannot both
// succeed; the loser gets ErrVisitAlreadyOpen.
func (db *DB) OpenVisit(ctx context.Context, v *models.Visit) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}

	result, err := db.conn.ExecContext(ctx, `
		INSERT INTO visits (id, enter_event_id, location_name, enter_time, visit_date, created_at)
		SELECT ?, ?, ?, ?, ?, ?
		WHERE NOT EXISTS (
			SELECT 1 FROM visits WHERE location_name = ? AND exit_time IS NULL
		)`,
		v.ID, v.EnterEventID, v.LocationName, v.EnterTime.UTC(), v.VisitDate, v.CreatedAt,
		v.LocationName)
	if err != nil {
		return fmt.Errorf("failed to open visit: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if rows == 0 {
		return ErrVisitAlreadyOpen
	}
	return nil
}

// FindOpenVisit returns the most recent open visit for the location
// (ordered by enter time descending in case more than one slipped through),
// or ErrNotFound.
func (db *DB) FindOpenVisit(ctx context.Context, location string) (*models.Visit, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT id, enter_event_id, location_name, enter_time, visit_date,
		       exit_event_id, exit_time, duration_minutes, is_qualified, auto_closed, created_at
		FROM visits
		WHERE location_name = ? AND exit_time IS NULL
		ORDER BY enter_time DESC
		LIMIT 1`, location)
	return scanVisit(row)
}

// HasRecentExit reports whether an exit was recorded for the location with
// an exit time after the given instant. The sessionizer uses this to detect
// rapid re-entry within the dedup window.
func (db *DB) HasRecentExit(ctx context.Context, location string, after time.Time) (bool, error) {
	var n int
	err := db.conn.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM visits
		WHERE location_name = ? AND exit_time IS NOT NULL AND exit_time > ?`,
		location, after.UTC()).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check recent exits: %w", err)
	}
	return n > 0, nil
}

// CloseVisit records an exit on an open visit. The update is guarded by
// "exit_time IS NULL": if the visit was closed concurrently (for example by
// the reaper), no row is touched and the method returns false.
func (db *DB) CloseVisit(ctx context.Context, visitID, exitEventID uuid.UUID, exitTime time.Time, durationMinutes int, qualified bool) (bool, error) {
	result, err := db.conn.ExecContext(ctx, `
		UPDATE visits
		SET exit_event_id = ?, exit_time = ?, duration_minutes = ?, is_qualified = ?
		WHERE id = ? AND exit_time IS NULL`,
		exitEventID, exitTime.UTC(), durationMinutes, qualified, visitID)
	if err != nil {
		return false, fmt.Errorf("failed to close visit: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return rows == 1, nil
}

// AutoCloseVisit force-closes a stale visit with a synthesized exit time.
// Same "still open" guard as CloseVisit, so a genuine exit that lands first
// wins and the reaper's write becomes a no-op.
func (db *DB) AutoCloseVisit(ctx context.Context, visitID uuid.UUID, exitTime time.Time, durationMinutes int, qualified bool) (bool, error) {
	result, err := db.conn.ExecContext(ctx, `
		UPDATE visits
		SET exit_time = ?, duration_minutes = ?, is_qualified = ?, auto_closed = true
		WHERE id = ? AND exit_time IS NULL`,
		exitTime.UTC(), durationMinutes, qualified, visitID)
	if err != nil {
		return false, fmt.Errorf("failed to auto-close visit: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return rows == 1, nil
}

// FindStaleOpenVisits returns all open visits whose enter time is before
// the cutoff, oldest first.
func (db *DB) FindStaleOpenVisits(ctx context.Context, cutoff time.Time) ([]models.Visit, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, enter_event_id, location_name, enter_time, visit_date,
		       exit_event_id, exit_time, duration_minutes, is_qualified, auto_closed, created_at
		FROM visits
		WHERE exit_time IS NULL AND enter_time < ?
		ORDER BY enter_time ASC`, cutoff.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query stale visits: %w", err)
	}
	defer rows.Close()
	return scanVisits(rows)
}

// GetClosedVisitsByDate returns all closed visits whose local visit date
// equals the given date. Open visits are excluded: a rollup only counts
// sessions whose duration is known.
func (db *DB) GetClosedVisitsByDate(ctx context.Context, date string) ([]models.Visit, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, enter_event_id, location_name, enter_time, visit_date,
		       exit_event_id, exit_time, duration_minutes, is_qualified, auto_closed, created_at
		FROM visits
		WHERE visit_date = ? AND exit_time IS NOT NULL
		ORDER BY enter_time ASC`, date)
	if err != nil {
		return nil, fmt.Errorf("failed to query visits for date %s: %w", date, err)
	}
	defer rows.Close()
	return scanVisits(rows)
}

// CountQualifiedVisitsBetween counts qualified visits with a visit date in
// [start, end] inclusive. Used for the current-period progress figure.
func (db *DB) CountQualifiedVisitsBetween(ctx context.Context, start, end string) (int, error) {
	var n int
	err := db.conn.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM visits
		WHERE visit_date >= ? AND visit_date <= ? AND is_qualified`,
		start, end).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count qualified visits: %w", err)
	}
	return n, nil
}

// CountOpenVisits returns the number of currently open visits across all
// locations. The reaper bounds this set; exported for health reporting and
// tests.
func (db *DB) CountOpenVisits(ctx context.Context) (int, error) {
	var n int
	if err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM visits WHERE exit_time IS NULL`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count open visits: %w", err)
	}
	return n, nil
}

// GetVisit returns a visit by ID, or ErrNotFound.
func (db *DB) GetVisit(ctx context.Context, id uuid.UUID) (*models.Visit, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT id, enter_event_id, location_name, enter_time, visit_date,
		       exit_event_id, exit_time, duration_minutes, is_qualified, auto_closed, created_at
		FROM visits
		WHERE id = ?`, id)
	return scanVisit(row)
}

// rowScanner abstracts *sql.Row and *sql.Rows for shared scanning.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanVisitInto(s rowScanner, v *models.Visit) error {
	var exitEventID sql.Null[uuid.UUID]
	var exitTime sql.NullTime
	var duration sql.NullInt64

	err := s.Scan(&v.ID, &v.EnterEventID, &v.LocationName, &v.EnterTime, &v.VisitDate,
		&exitEventID, &exitTime, &duration, &v.IsQualified, &v.AutoClosed, &v.CreatedAt)
	if err != nil {
		return err
	}

	v.EnterTime = v.EnterTime.UTC()
	if exitEventID.Valid {
		id := exitEventID.V
		v.ExitEventID = &id
	}
	if exitTime.Valid {
		t := exitTime.Time.UTC()
		v.ExitTime = &t
	}
	if duration.Valid {
		d := int(duration.Int64)
		v.DurationMinutes = &d
	}
	return nil
}

func scanVisit(row *sql.Row) (*models.Visit, error) {
	var v models.Visit
	if err := scanVisitInto(row, &v); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan visit: %w", err)
	}
	return &v, nil
}

func scanVisits(rows *sql.Rows) ([]models.Visit, error) {
	var visits []models.Visit
	for rows.Next() {
		var v models.Visit
		if err := scanVisitInto(rows, &v); err != nil {
			return nil, fmt.Errorf("failed to scan visit row: %w", err)
		}
		visits = append(visits, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("visit row iteration failed: %w", err)
	}
	return visits, nil
}
