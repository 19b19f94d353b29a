// Gymtrackd - Gym Attendance Analytics
// Copyright 2026 Gymtrackd Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gymtrack/gymtrackd

package models

import (
	"time"

	"github.com/google/uuid"
)

// EventAction is the direction of a location event.
type EventAction string

const (
	// ActionEnter marks arrival at a location.
	ActionEnter EventAction = "enter"
	// ActionExit marks departure from a location.
	ActionExit EventAction = "exit"
)

// Valid reports whether the action is a known value.
func (a EventAction) Valid() bool {
	return a == ActionEnter || a == ActionExit
}

// Event is a single raw enter/exit signal from a location sensor.
// Events are append-only and deduplicated by EventHash, a SHA-256 over
// "timestamp|action|location". Re-ingesting an identical triple returns the
// existing event instead of creating a duplicate.
type Event struct {
	ID           uuid.UUID   `json:"id"`
	EventHash    string      `json:"event_hash"`
	Timestamp    time.Time   `json:"timestamp"` // normalized to UTC
	Action       EventAction `json:"action"`
	LocationName string      `json:"location"`
	RawPayload   string      `json:"-"` // original webhook body, kept for audit
	CreatedAt    time.Time   `json:"created_at"`
}
