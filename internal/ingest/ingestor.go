// Gymtrackd - Gym Attendance Analytics
// Copyright 2026 Gymtrackd Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gymtrack/gymtrackd

package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gymtrack/gymtrackd/internal/database"
	"github.com/gymtrack/gymtrackd/internal/logging"
	"github.com/gymtrack/gymtrackd/internal/metrics"
	"github.com/gymtrack/gymtrackd/internal/models"
)

// EventStore is the slice of the store the ingestor needs.
type EventStore interface {
	GetEventByHash(ctx context.Context, hash string) (*models.Event, error)
	InsertEvent(ctx context.Context, e *models.Event) error
}

// Sessionizer advances the visit state machine for a stored event.
type Sessionizer interface {
	Process(ctx context.Context, e *models.Event) (*models.SessionResult, error)
}

// Ingestor is the dedup gate in front of the event log. Exactly one of
// two things happens per normalized payload: a new event is appended and
// sessionized, or the existing event for the same triple is returned
// untouched.
type Ingestor struct {
	store   EventStore
	session Sessionizer
}

// New returns an Ingestor over the given store and sessionizer.
func New(store EventStore, session Sessionizer) *Ingestor {
	return &Ingestor{store: store, session: session}
}

// Ingest runs the dedup check, appends the event if new, and feeds it
// through the sessionizer. rawPayload is retained verbatim for debugging.
func (in *Ingestor) Ingest(ctx context.Context, n *Normalized, rawPayload string) (*models.IngestResult, error) {
	hash := EventHash(n.Timestamp, n.Action, n.Location)

	existing, err := in.store.GetEventByHash(ctx, hash)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("dedup lookup failed: %w", err)
	}
	if existing != nil {
		metrics.IngestResults.WithLabelValues("duplicate").Inc()
		logging.Debug().
			Str("event_hash", hash).
			Str("location", n.Location).
			Msg("Duplicate event, skipping")
		return duplicateResult(existing), nil
	}

	event := &models.Event{
		EventHash:    hash,
		Timestamp:    n.Timestamp,
		Action:       n.Action,
		LocationName: n.Location,
		RawPayload:   rawPayload,
		CreatedAt:    time.Now().UTC(),
	}

	if err := in.store.InsertEvent(ctx, event); err != nil {
		// A concurrent retry may have won the insert race; the unique
		// constraint on event_hash surfaces that as an error. Re-read and
		// treat it as the duplicate it is.
		if existing, lookupErr := in.store.GetEventByHash(ctx, hash); lookupErr == nil {
			metrics.IngestResults.WithLabelValues("duplicate").Inc()
			return duplicateResult(existing), nil
		}
		return nil, fmt.Errorf("event insert failed: %w", err)
	}

	metrics.IngestResults.WithLabelValues("created").Inc()

	session, err := in.session.Process(ctx, event)
	if err != nil {
		// The event is durably stored; sessionization failure must not make
		// the webhook retry (which would dedup to a no-op and never
		// sessionize). Report the stored event and log the failure.
		logging.Error().
			Err(err).
			Str("event_id", event.ID.String()).
			Msg("Sessionization failed for stored event")
	} else {
		metrics.SessionTransitions.WithLabelValues(string(session.Action)).Inc()
	}

	logging.Info().
		Str("event_id", event.ID.String()).
		Str("action", string(event.Action)).
		Str("location", event.LocationName).
		Time("event_time", event.Timestamp).
		Msg("Event ingested")

	ts := event.Timestamp
	return &models.IngestResult{
		Status:    "created",
		EventID:   event.ID.String(),
		EventHash: event.EventHash,
		Action:    event.Action,
		Timestamp: &ts,
		Location:  event.LocationName,
		Session:   session,
	}, nil
}

func duplicateResult(e *models.Event) *models.IngestResult {
	ts := e.Timestamp
	return &models.IngestResult{
		Status:    "duplicate",
		EventID:   e.ID.String(),
		EventHash: e.EventHash,
		Action:    e.Action,
		Timestamp: &ts,
		Location:  e.LocationName,
	}
}
