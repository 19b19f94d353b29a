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
)

// StravaToken is the stored OAuth credential set. A single row (id = 1)
// holds the current tokens; refresh replaces them in place.
type StravaToken struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    int64 // unix seconds
	AthleteID    int64
}

// GetStravaToken returns the stored token set, or ErrNotFound when the
// OAuth flow has never completed.
func (db *DB) GetStravaToken(ctx context.Context) (*StravaToken, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT access_token, refresh_token, expires_at, athlete_id FROM strava_tokens WHERE id = 1`)

	var t StravaToken
	var athlete sql.NullInt64
	if err := row.Scan(&t.AccessToken, &t.RefreshToken, &t.ExpiresAt, &athlete); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query strava token: %w", err)
	}
	t.AthleteID = athlete.Int64
	return &t, nil
}

// SaveStravaToken stores or replaces the token set.
func (db *DB) SaveStravaToken(ctx context.Context, t *StravaToken) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO strava_tokens (id, access_token, refresh_token, expires_at, athlete_id, updated_at)
		VALUES (1, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (id) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			expires_at = excluded.expires_at,
			athlete_id = excluded.athlete_id,
			updated_at = excluded.updated_at`,
		t.AccessToken, t.RefreshToken, t.ExpiresAt, t.AthleteID)
	if err != nil {
		return fmt.Errorf("failed to save strava token: %w", err)
	}
	return nil
}
