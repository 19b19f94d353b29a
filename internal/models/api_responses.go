// Gymtrackd - Gym Attendance Analytics
// Copyright 2026 Gymtrackd Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gymtrack/gymtrackd

package models

import "time"

// APIResponse is the standardized response wrapper used by all HTTP
// endpoints.
//
// Status field values:
//   - "success": request completed, see Data
//   - "error": request failed, see Error
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata carries response timing information for observability.
type Metadata struct {
	Timestamp   time.Time `json:"timestamp"`
	QueryTimeMS int64     `json:"query_time_ms,omitempty"`
}

// APIError is a structured error payload.
//
// Common codes: VALIDATION_ERROR, AUTHENTICATION_ERROR, DATABASE_ERROR,
// NOT_FOUND, METHOD_NOT_ALLOWED.
type APIError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// IngestResult is the response body for POST /ingest/geofency.
// Duplicate ingestion is a successful idempotent no-op, reported with
// Status "duplicate" and the existing event's hash.
type IngestResult struct {
	Status    string         `json:"status"` // "created" or "duplicate"
	EventID   string         `json:"event_id,omitempty"`
	EventHash string         `json:"event_hash"`
	Action    EventAction    `json:"action,omitempty"`
	Timestamp *time.Time     `json:"timestamp,omitempty"`
	Location  string         `json:"location,omitempty"`
	Session   *SessionResult `json:"session,omitempty"`
}

// JobRunResult reports what a maintenance run accomplished. Cycling sync
// failures are non-fatal, so the counts reflect whatever did succeed.
type JobRunResult struct {
	ClosedVisits    int       `json:"closed_visits"`
	RollupsUpdated  int       `json:"rollups_updated"`
	CyclingWeeks    int       `json:"cycling_weeks_synced"`
	CyclingSyncedOK bool      `json:"cycling_sync_ok"`
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at"`
}
