// Gymtrackd - Gym Attendance Analytics
// Copyright 2026 Gymtrackd Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gymtrack/gymtrackd

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gymtrack/gymtrackd/internal/config"
	"github.com/gymtrack/gymtrackd/internal/middleware"
)

// NewRouter assembles the HTTP surface.
//
// Route tiers:
//   - open: /health, /metrics, /strava/callback (state-authenticated)
//   - read token: GET /gym/summary
//   - write token: ingestion, manual overrides, sync and job triggers
func NewRouter(h *Handlers, cfg *config.Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.PrometheusMetrics)

	origins := cfg.Server.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-Auth-Token"},
		MaxAge:         300,
	}))

	if !cfg.Server.RateLimitDisabled {
		reqs, window := cfg.Server.RateLimitReqs, cfg.Server.RateLimitWindow
		if reqs <= 0 {
			reqs = 120
		}
		if window <= 0 {
			window = time.Minute
		}
		r.Use(httprate.LimitByIP(reqs, window))
	}

	auth := middleware.NewAuth(cfg.Auth)

	r.Get("/health", h.Health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Get("/strava/callback", h.StravaCallback)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireRead)
		r.Get("/gym/summary", h.GymSummary)
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireWrite)
		r.Post("/ingest/geofency", h.IngestGeofency)
		r.Post("/gym/manual", h.GymManual)
		r.Post("/strava/sync", h.StravaSync)
		r.Post("/api/v1/jobs/run", h.JobsRun)
	})

	return r
}
