// Gymtrackd - Gym Attendance Analytics
// Copyright 2026 Gymtrackd Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gymtrack/gymtrackd

// Package metrics defines the Prometheus instruments. All instruments are
// registered on the default registry via promauto and exposed at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// IngestResults counts ingested webhook events by outcome
	// (created, duplicate, invalid).
	IngestResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gymtrackd_ingest_events_total",
		Help: "Webhook events processed, by outcome.",
	}, []string{"outcome"})

	// SessionTransitions counts sessionizer outcomes
	// (visit_started, visit_closed, visit_ignored, no_open_visit).
	SessionTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gymtrackd_session_transitions_total",
		Help: "Sessionizer outcomes per processed event.",
	}, []string{"action"})

	// ReaperClosures counts visits force-closed by the reaper.
	ReaperClosures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gymtrackd_reaper_closed_visits_total",
		Help: "Open visits force-closed after exceeding the auto-close deadline.",
	})

	// RollupsComputed counts daily rollup rows written, by trigger
	// (scheduled, ingest, manual, backfill).
	RollupsComputed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gymtrackd_rollups_computed_total",
		Help: "Daily rollup rows computed and written.",
	}, []string{"trigger"})

	// StravaSyncs counts cycling sync attempts by result (ok, error).
	StravaSyncs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gymtrackd_strava_syncs_total",
		Help: "Strava cycling sync attempts, by result.",
	}, []string{"result"})

	// OpenVisits tracks the number of currently open visits.
	OpenVisits = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gymtrackd_open_visits",
		Help: "Visits currently open (entered, not yet exited or reaped).",
	})

	// RequestDuration observes HTTP handler latency by route and status class.
	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gymtrackd_http_request_duration_seconds",
		Help:    "HTTP request latency by route and status class.",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"route", "method", "status"})
)
