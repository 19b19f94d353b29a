// Gymtrackd - Gym Attendance Analytics
// Copyright 2026 Gymtrackd Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gymtrack/gymtrackd

package ingest

import (
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/gymtrack/gymtrackd/internal/models"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		payload  Payload
		wantErr  bool
		action   models.EventAction
		location string
		ts       time.Time
	}{
		{
			name:     "geofency native fields",
			payload:  Payload{Name: "Iron Temple", Entry: "1", Date: "2026-03-02T07:15:00Z"},
			action:   models.ActionEnter,
			location: "Iron Temple",
			ts:       time.Date(2026, 3, 2, 7, 15, 0, 0, time.UTC),
		},
		{
			name:     "geofency exit",
			payload:  Payload{Name: "Iron Temple", Entry: "0", Date: "2026-03-02T08:05:00Z"},
			action:   models.ActionExit,
			location: "Iron Temple",
			ts:       time.Date(2026, 3, 2, 8, 5, 0, 0, time.UTC),
		},
		{
			name:     "generic aliases",
			payload:  Payload{Location: "Downtown Gym", Action: "exit", Timestamp: "2026-03-02T18:00:00Z"},
			action:   models.ActionExit,
			location: "Downtown Gym",
			ts:       time.Date(2026, 3, 2, 18, 0, 0, 0, time.UTC),
		},
		{
			name:     "native fields win over aliases",
			payload:  Payload{Name: "A", Location: "B", Entry: "1", Date: "2026-03-02T07:00:00Z"},
			action:   models.ActionEnter,
			location: "A",
			ts:       time.Date(2026, 3, 2, 7, 0, 0, 0, time.UTC),
		},
		{
			name:     "zoned timestamp converted to UTC",
			payload:  Payload{Name: "Gym", Entry: "1", Date: "2026-03-02T09:15:00+02:00"},
			action:   models.ActionEnter,
			location: "Gym",
			ts:       time.Date(2026, 3, 2, 7, 15, 0, 0, time.UTC),
		},
		{
			name:     "naive timestamp assumed UTC",
			payload:  Payload{Name: "Gym", Entry: "1", Date: "2026-03-02 07:15:00"},
			action:   models.ActionEnter,
			location: "Gym",
			ts:       time.Date(2026, 3, 2, 7, 15, 0, 0, time.UTC),
		},
		{
			name:    "missing location",
			payload: Payload{Entry: "1", Date: "2026-03-02T07:15:00Z"},
			wantErr: true,
		},
		{
			name:    "missing action",
			payload: Payload{Name: "Gym", Date: "2026-03-02T07:15:00Z"},
			wantErr: true,
		},
		{
			name:    "unknown action value",
			payload: Payload{Name: "Gym", Action: "lurk", Timestamp: "2026-03-02T07:15:00Z"},
			wantErr: true,
		},
		{
			name:    "missing timestamp",
			payload: Payload{Name: "Gym", Entry: "1"},
			wantErr: true,
		},
		{
			name:    "garbage timestamp",
			payload: Payload{Name: "Gym", Entry: "1", Date: "yesterday"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.payload.Normalize()
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if !errors.Is(err, ErrInvalidPayload) {
					t.Errorf("error = %v, want ErrInvalidPayload", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Normalize() error = %v", err)
			}
			if got.Action != tt.action {
				t.Errorf("action = %q, want %q", got.Action, tt.action)
			}
			if got.Location != tt.location {
				t.Errorf("location = %q, want %q", got.Location, tt.location)
			}
			if !got.Timestamp.Equal(tt.ts) {
				t.Errorf("timestamp = %v, want %v", got.Timestamp, tt.ts)
			}
		})
	}
}

func TestParseForm(t *testing.T) {
	values := url.Values{}
	values.Set("name", "Iron Temple")
	values.Set("entry", "1")
	values.Set("date", "2026-03-02T07:15:00Z")

	p := ParseForm(values)
	n, err := p.Normalize()
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if n.Action != models.ActionEnter || n.Location != "Iron Temple" {
		t.Errorf("got %+v", n)
	}
}

func TestParseJSONMalformed(t *testing.T) {
	if _, err := ParseJSON([]byte(`{"name":`)); !errors.Is(err, ErrInvalidPayload) {
		t.Errorf("error = %v, want ErrInvalidPayload", err)
	}
}

func TestEventHash(t *testing.T) {
	ts := time.Date(2026, 3, 2, 7, 15, 0, 0, time.UTC)

	h1 := EventHash(ts, models.ActionEnter, "Iron Temple")
	h2 := EventHash(ts, models.ActionEnter, "Iron Temple")
	if h1 != h2 {
		t.Error("hash not deterministic")
	}
	if len(h1) != 64 {
		t.Errorf("hash length = %d, want 64 hex chars", len(h1))
	}

	// Same instant in a different zone must hash identically.
	zoned := ts.In(time.FixedZone("CET", 3600))
	if EventHash(zoned, models.ActionEnter, "Iron Temple") != h1 {
		t.Error("hash depends on timestamp zone representation")
	}

	if EventHash(ts, models.ActionExit, "Iron Temple") == h1 {
		t.Error("hash ignores action")
	}
	if EventHash(ts, models.ActionEnter, "Downtown Gym") == h1 {
		t.Error("hash ignores location")
	}
	if EventHash(ts.Add(time.Second), models.ActionEnter, "Iron Temple") == h1 {
		t.Error("hash ignores timestamp")
	}
}
