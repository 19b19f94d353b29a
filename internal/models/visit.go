// Gymtrackd - Gym Attendance Analytics
// Copyright 2026 Gymtrackd Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gymtrack/gymtrackd

package models

import (
	"time"

	"github.com/google/uuid"
)

// Visit is a sessionized enter-to-exit interval at a location.
//
// Lifecycle: a visit is created OPEN by an enter event and transitions
// exactly once to CLOSED, either by a matching exit event or by the reaper.
// Once closed it is immutable. At most one open visit exists per location at
// any instant; the store enforces this with an atomic check-and-insert.
type Visit struct {
	ID           uuid.UUID `json:"id"`
	EnterEventID uuid.UUID `json:"enter_event_id"`
	LocationName string    `json:"location"`
	EnterTime    time.Time `json:"enter_time"`

	// VisitDate is the local calendar date (YYYY-MM-DD) of EnterTime in the
	// configured timezone. Rollups group by this field.
	VisitDate string `json:"visit_date"`

	// Exit fields are nil while the visit is open.
	ExitEventID     *uuid.UUID `json:"exit_event_id,omitempty"`
	ExitTime        *time.Time `json:"exit_time,omitempty"`
	DurationMinutes *int       `json:"duration_minutes,omitempty"`

	// IsQualified is set at close time: duration >= the minimum-stay
	// threshold counts toward attendance.
	IsQualified bool `json:"is_qualified"`

	// AutoClosed marks visits force-closed by the reaper rather than a
	// genuine exit event.
	AutoClosed bool `json:"auto_closed"`

	CreatedAt time.Time `json:"created_at"`
}

// Open reports whether the visit has not yet been closed.
func (v *Visit) Open() bool {
	return v.ExitTime == nil
}

// SessionAction is the outcome of feeding one event through the sessionizer.
type SessionAction string

const (
	// SessionVisitStarted means a new open visit was created.
	SessionVisitStarted SessionAction = "visit_started"
	// SessionVisitClosed means the open visit was closed by an exit.
	SessionVisitClosed SessionAction = "visit_closed"
	// SessionVisitIgnored means the enter was suppressed (rapid re-entry or
	// a visit already in progress).
	SessionVisitIgnored SessionAction = "visit_ignored"
	// SessionNoOpenVisit means an exit arrived with nothing to close.
	SessionNoOpenVisit SessionAction = "no_open_visit"
)

// SessionResult describes what the sessionizer did with an event.
// Ignored enters and unmatched exits are expected outcomes, not errors.
type SessionResult struct {
	Action          SessionAction `json:"action"`
	VisitID         *uuid.UUID    `json:"visit_id,omitempty"`
	DurationMinutes *int          `json:"duration,omitempty"`
	IsQualified     *bool         `json:"is_qualified,omitempty"`
	Reason          string        `json:"reason,omitempty"`
}
