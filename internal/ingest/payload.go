// Gymtrackd - Gym Attendance Analytics
// Copyright 2026 Gymtrackd Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gymtrack/gymtrackd

// Package ingest turns heterogeneous Geofency webhook payloads into
// deduplicated stored events and feeds them through the sessionizer.
//
// The dedup hash over (timestamp, action, location) is the idempotency
// boundary that makes webhook retries safe: re-ingesting an identical
// triple returns the existing event and never re-invokes sessionization.
package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/goccy/go-json"

	"github.com/gymtrack/gymtrackd/internal/models"
)

// ErrInvalidPayload is returned when required fields are missing or the
// timestamp does not parse. Handlers map it to a 400.
var ErrInvalidPayload = errors.New("invalid ingest payload")

// Payload is the raw webhook body. Geofency's own field names (name,
// entry, date) and the generic aliases (location, action, timestamp) are
// both accepted; entry is "1" for enter and "0" for exit.
type Payload struct {
	Name  string `json:"name,omitempty"`
	Entry string `json:"entry,omitempty"`
	Date  string `json:"date,omitempty"`

	Location  string `json:"location,omitempty"`
	Action    string `json:"action,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

// Normalized is the validated (timestamp, action, location) triple.
type Normalized struct {
	Timestamp time.Time // UTC
	Action    models.EventAction
	Location  string
}

// ParseJSON decodes a JSON webhook body.
func ParseJSON(body []byte) (*Payload, error) {
	var p Payload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("%w: malformed JSON body", ErrInvalidPayload)
	}
	return &p, nil
}

// ParseForm decodes a form-encoded webhook body. Geofency often sends
// application/x-www-form-urlencoded.
func ParseForm(values url.Values) *Payload {
	return &Payload{
		Name:      values.Get("name"),
		Entry:     values.Get("entry"),
		Date:      values.Get("date"),
		Location:  values.Get("location"),
		Action:    values.Get("action"),
		Timestamp: values.Get("timestamp"),
	}
}

// timestampLayouts are tried in order when normalizing the event time.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// Normalize validates the payload and resolves the field aliases into a
// single triple. It returns ErrInvalidPayload when the location, action,
// or timestamp cannot be determined, or the timestamp does not parse.
func (p *Payload) Normalize() (*Normalized, error) {
	location := p.Name
	if location == "" {
		location = p.Location
	}
	if location == "" {
		return nil, fmt.Errorf("%w: missing location (name/location)", ErrInvalidPayload)
	}

	var action models.EventAction
	switch {
	case p.Action != "":
		action = models.EventAction(p.Action)
		if !action.Valid() {
			return nil, fmt.Errorf("%w: unknown action %q", ErrInvalidPayload, p.Action)
		}
	case p.Entry != "":
		if p.Entry == "1" {
			action = models.ActionEnter
		} else {
			action = models.ActionExit
		}
	default:
		return nil, fmt.Errorf("%w: missing action (entry/action)", ErrInvalidPayload)
	}

	raw := p.Date
	if raw == "" {
		raw = p.Timestamp
	}
	if raw == "" {
		return nil, fmt.Errorf("%w: missing timestamp (date/timestamp)", ErrInvalidPayload)
	}

	ts, err := parseTimestamp(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: unparseable timestamp %q", ErrInvalidPayload, raw)
	}

	return &Normalized{
		Timestamp: ts.UTC(),
		Action:    action,
		Location:  location,
	}, nil
}

// parseTimestamp tries the accepted layouts; layouts without a zone are
// interpreted as UTC.
func parseTimestamp(raw string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("no layout matched %q", raw)
}

// EventHash computes the stable dedup hash over the normalized triple:
// SHA-256 of "timestamp|action|location" with the timestamp rendered as
// RFC 3339 UTC.
func EventHash(ts time.Time, action models.EventAction, location string) string {
	data := ts.UTC().Format(time.RFC3339) + "|" + string(action) + "|" + location
	sum := sha256.Sum256([]byte(data))
	return hex.EncodeToString(sum[:])
}
