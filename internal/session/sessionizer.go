// Gymtrackd - Gym Attendance Analytics
// Copyright 2026 Gymtrackd Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gymtrack/gymtrackd

// Package session implements the visit state machine: enter events open
// visits, exit events close them, and the reaper force-closes visits whose
// exit never arrived.
package session

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/gymtrack/gymtrackd/internal/config"
	"github.com/gymtrack/gymtrackd/internal/database"
	"github.com/gymtrack/gymtrackd/internal/logging"
	"github.com/gymtrack/gymtrackd/internal/models"
)

// VisitStore is the slice of the store the sessionizer and reaper need.
type VisitStore interface {
	OpenVisit(ctx context.Context, v *models.Visit) error
	FindOpenVisit(ctx context.Context, location string) (*models.Visit, error)
	HasRecentExit(ctx context.Context, location string, after time.Time) (bool, error)
	CloseVisit(ctx context.Context, visitID, exitEventID uuid.UUID, exitTime time.Time, durationMinutes int, qualified bool) (bool, error)
	AutoCloseVisit(ctx context.Context, visitID uuid.UUID, exitTime time.Time, durationMinutes int, qualified bool) (bool, error)
	FindStaleOpenVisits(ctx context.Context, cutoff time.Time) ([]models.Visit, error)
}

// Sessionizer drives visit transitions from stored events.
type Sessionizer struct {
	store    VisitStore
	loc      *time.Location
	minVisit time.Duration
	dedup    time.Duration
}

// NewSessionizer builds a Sessionizer from attendance settings. loc is the
// timezone used to assign visits to local calendar dates.
func NewSessionizer(store VisitStore, cfg config.AttendanceConfig, loc *time.Location) *Sessionizer {
	return &Sessionizer{
		store:    store,
		loc:      loc,
		minVisit: time.Duration(cfg.MinVisitMinutes) * time.Minute,
		dedup:    cfg.DedupWindow,
	}
}

// Process advances the state machine for one event. Ignored enters and
// unmatched exits are reported in the result, not as errors; an error means
// the store failed and the transition did not happen.
func (s *Sessionizer) Process(ctx context.Context, e *models.Event) (*models.SessionResult, error) {
	switch e.Action {
	case models.ActionEnter:
		return s.processEnter(ctx, e)
	case models.ActionExit:
		return s.processExit(ctx, e)
	default:
		return nil, fmt.Errorf("unknown event action %q", e.Action)
	}
}

func (s *Sessionizer) processEnter(ctx context.Context, e *models.Event) (*models.SessionResult, error) {
	// An exit inside the re-entry window means this enter is a continuation
	// of the previous session (stepped out briefly), not a new visit.
	recentExit, err := s.store.HasRecentExit(ctx, e.LocationName, e.Timestamp.Add(-s.dedup))
	if err != nil {
		return nil, fmt.Errorf("re-entry check failed: %w", err)
	}
	if recentExit {
		logging.Debug().
			Str("location", e.LocationName).
			Time("event_time", e.Timestamp).
			Msg("Rapid re-entry ignored")
		return &models.SessionResult{
			Action: models.SessionVisitIgnored,
			Reason: "rapid re-entry within dedup window",
		}, nil
	}

	visit := &models.Visit{
		EnterEventID: e.ID,
		LocationName: e.LocationName,
		EnterTime:    e.Timestamp,
		VisitDate:    e.Timestamp.In(s.loc).Format("2006-01-02"),
	}
	if err := s.store.OpenVisit(ctx, visit); err != nil {
		if errors.Is(err, database.ErrVisitAlreadyOpen) {
			return &models.SessionResult{
				Action: models.SessionVisitIgnored,
				Reason: "visit already in progress",
			}, nil
		}
		return nil, fmt.Errorf("open visit failed: %w", err)
	}

	logging.Info().
		Str("visit_id", visit.ID.String()).
		Str("location", visit.LocationName).
		Str("visit_date", visit.VisitDate).
		Msg("Visit started")

	return &models.SessionResult{
		Action:  models.SessionVisitStarted,
		VisitID: &visit.ID,
	}, nil
}

func (s *Sessionizer) processExit(ctx context.Context, e *models.Event) (*models.SessionResult, error) {
	visit, err := s.store.FindOpenVisit(ctx, e.LocationName)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return &models.SessionResult{
				Action: models.SessionNoOpenVisit,
				Reason: "no open visit for location",
			}, nil
		}
		return nil, fmt.Errorf("open visit lookup failed: %w", err)
	}

	duration := durationMinutes(visit.EnterTime, e.Timestamp)
	qualified := time.Duration(duration)*time.Minute >= s.minVisit

	closed, err := s.store.CloseVisit(ctx, visit.ID, e.ID, e.Timestamp, duration, qualified)
	if err != nil {
		return nil, fmt.Errorf("close visit failed: %w", err)
	}
	if !closed {
		// Lost the race against the reaper; the visit is already closed.
		return &models.SessionResult{
			Action: models.SessionNoOpenVisit,
			Reason: "visit closed concurrently",
		}, nil
	}

	logging.Info().
		Str("visit_id", visit.ID.String()).
		Str("location", visit.LocationName).
		Int("duration_minutes", duration).
		Bool("is_qualified", qualified).
		Msg("Visit closed")

	return &models.SessionResult{
		Action:          models.SessionVisitClosed,
		VisitID:         &visit.ID,
		DurationMinutes: &duration,
		IsQualified:     &qualified,
	}, nil
}

// durationMinutes is the rounded minute count between enter and exit,
// clamped at zero for out-of-order timestamps.
func durationMinutes(enter, exit time.Time) int {
	m := int(math.Round(exit.Sub(enter).Minutes()))
	if m < 0 {
		return 0
	}
	return m
}
