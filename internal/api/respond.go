// Gymtrackd - Gym Attendance Analytics
// Copyright 2026 Gymtrackd Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gymtrack/gymtrackd

// Package api wires the HTTP surface: webhook ingestion, the summary read,
// manual overrides, Strava authorization, and the job trigger.
package api

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/gymtrack/gymtrackd/internal/logging"
	"github.com/gymtrack/gymtrackd/internal/models"
)

// respondJSON writes the standard success envelope.
func respondJSON(w http.ResponseWriter, status int, data interface{}, started time.Time) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := models.APIResponse{
		Status: "success",
		Data:   data,
		Metadata: models.Metadata{
			Timestamp:   time.Now().UTC(),
			QueryTimeMS: time.Since(started).Milliseconds(),
		},
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logging.Error().Err(err).Msg("Failed to encode response")
	}
}

// respondError writes the standard error envelope.
func respondError(w http.ResponseWriter, status int, code, message string, details interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := models.APIResponse{
		Status:   "error",
		Metadata: models.Metadata{Timestamp: time.Now().UTC()},
		Error: &models.APIError{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logging.Error().Err(err).Msg("Failed to encode error response")
	}
}
