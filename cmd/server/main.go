// Gymtrackd - Gym Attendance Analytics
// Copyright 2026 Gymtrackd Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gymtrack/gymtrackd

// Package main is the entry point for the gymtrackd server.
//
// Gymtrackd is a self-hosted gym attendance tracker. Geofence webhooks
// (Geofency) post enter/exit events, which are deduplicated and sessionized
// into visits; a periodic job reaps stale visits and recomputes daily
// rollups; the summary endpoint serves the heatmap, streaks, and progress
// view, optionally overlaid with Strava cycling data.
//
// # Startup order
//
//  1. Configuration (Koanf v2: defaults, config.yaml, environment)
//  2. Logging (zerolog)
//  3. DuckDB store and schema
//  4. Sessionizer, reaper, rollup computer, summary assembler
//  5. Strava client and syncer (when enabled)
//  6. Maintenance scheduler and HTTP server under the supervisor tree
//
// # Configuration
//
// Required environment: AUTH_WRITE_TOKEN, AUTH_READ_TOKEN. Everything else
// has defaults; see config.yaml for the full surface.
//
// # Signal handling
//
// SIGINT/SIGTERM cancel the supervisor context: the HTTP server drains
// in-flight requests (10s timeout), the scheduler stops, and the database
// is closed.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gymtrack/gymtrackd/internal/api"
	"github.com/gymtrack/gymtrackd/internal/config"
	"github.com/gymtrack/gymtrackd/internal/database"
	"github.com/gymtrack/gymtrackd/internal/ingest"
	"github.com/gymtrack/gymtrackd/internal/logging"
	"github.com/gymtrack/gymtrackd/internal/rollup"
	"github.com/gymtrack/gymtrackd/internal/scheduler"
	"github.com/gymtrack/gymtrackd/internal/session"
	"github.com/gymtrack/gymtrackd/internal/strava"
	"github.com/gymtrack/gymtrackd/internal/supervisor"
	"github.com/gymtrack/gymtrackd/internal/supervisor/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("timezone", cfg.Attendance.Timezone).
		Int("port", cfg.Server.Port).
		Msg("Starting gymtrackd")

	loc := time.UTC
	if cfg.Attendance.Timezone != "" {
		loc, err = time.LoadLocation(cfg.Attendance.Timezone)
		if err != nil {
			logging.Fatal().Err(err).Str("timezone", cfg.Attendance.Timezone).Msg("Invalid timezone")
		}
	}

	db, err := database.New(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open database")
	}
	defer db.Close()

	sessionizer := session.NewSessionizer(db, cfg.Attendance, loc)
	reaper := session.NewReaper(db, cfg.Attendance)
	ingestor := ingest.New(db, sessionizer)
	computer := rollup.NewComputer(db, loc)
	assembler := rollup.NewAssembler(db, computer, loc, cfg.Attendance.WeeklyTarget)

	var stravaClient *strava.Client
	var syncer *strava.Syncer
	if cfg.Strava.Enabled {
		stravaClient = strava.NewClient(cfg.Strava, db)
		syncer = strava.NewSyncer(stravaClient, db, loc, cfg.Strava.WeeksBack)
		logging.Info().Int("weeks_back", cfg.Strava.WeeksBack).Msg("Strava integration enabled")
	}

	// Interface-typed nils must stay nil interfaces, so wire conditionally.
	var job *scheduler.MaintenanceJob
	if syncer != nil {
		job = scheduler.NewMaintenanceJob(reaper, computer, syncer, cfg.Jobs)
	} else {
		job = scheduler.NewMaintenanceJob(reaper, computer, nil, cfg.Jobs)
	}

	var authorizer api.StravaAuthorizer
	var cyclingSyncer api.CyclingSyncer
	if stravaClient != nil {
		authorizer = stravaClient
		cyclingSyncer = syncer
	}
	handlers := api.NewHandlers(ingestor, assembler, db, computer, job, db, cfg, authorizer, cyclingSyncer)
	router := api.NewRouter(handlers, cfg)

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddJobService(scheduler.NewRunner(job, cfg.Jobs))
	tree.AddAPIService(services.NewHTTPService(server, 10*time.Second))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logging.Info().Str("addr", server.Addr).Msg("Serving")
	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervisor tree exited")
		os.Exit(1)
	}
	logging.Info().Msg("Shutdown complete")
}
