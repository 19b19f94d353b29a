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

	"github.com/gymtrack/gymtrackd/internal/models"
)

// UpsertManualEntry stores a status override for a date, replacing any
// previous override.
func (db *DB) UpsertManualEntry(ctx context.Context, e *models.ManualEntry) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO manual_entries (entry_date, status, created_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (entry_date) DO UPDATE SET
			status = excluded.status,
			created_at = excluded.created_at`,
		e.Date, string(e.Status))
	if err != nil {
		return fmt.Errorf("failed to upsert manual entry for %s: %w", e.Date, err)
	}
	return nil
}

// GetManualEntry returns the override for a date, or ErrNotFound. The
// rollup computer consults this after deriving the automatic status, so
// overrides survive recomputation.
func (db *DB) GetManualEntry(ctx context.Context, date string) (*models.ManualEntry, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT entry_date, status, created_at FROM manual_entries WHERE entry_date = ?`, date)

	var e models.ManualEntry
	var status string
	if err := row.Scan(&e.Date, &status, &e.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query manual entry: %w", err)
	}
	e.Status = models.DayStatus(status)
	return &e, nil
}
