// Gymtrackd - Gym Attendance Analytics
// Copyright 2026 Gymtrackd Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gymtrack/gymtrackd

// Package scheduler runs the periodic maintenance job: reap stale visits,
// recompute the trailing rollup window, and sync cycling data.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gymtrack/gymtrackd/internal/config"
	"github.com/gymtrack/gymtrackd/internal/logging"
	"github.com/gymtrack/gymtrackd/internal/models"
)

// Reaper force-closes stale visits; satisfied by *session.Reaper.
type Reaper interface {
	Reap(ctx context.Context, now time.Time) (int, error)
}

// RollupComputer recomputes the trailing window; satisfied by
// *rollup.Computer.
type RollupComputer interface {
	RecomputeTrailing(ctx context.Context, days int, now time.Time) (int, error)
}

// CyclingSyncer syncs the cycling overlay; satisfied by *strava.Syncer.
// weeksBack < 1 means the configured default window.
type CyclingSyncer interface {
	Sync(ctx context.Context, now time.Time, weeksBack int) (int, error)
}

// MaintenanceJob bundles the three maintenance steps. The ordering matters:
// reaping first so the recompute sees the closures it produced. The cycling
// sync is best-effort and never fails the run.
type MaintenanceJob struct {
	reaper   Reaper
	computer RollupComputer
	syncer   CyclingSyncer // nil when Strava is disabled
	cfg      config.JobsConfig

	mu sync.Mutex // one run at a time; scheduled and manual triggers overlap
}

// NewMaintenanceJob builds the job. syncer may be nil.
func NewMaintenanceJob(reaper Reaper, computer RollupComputer, syncer CyclingSyncer, cfg config.JobsConfig) *MaintenanceJob {
	return &MaintenanceJob{
		reaper:   reaper,
		computer: computer,
		syncer:   syncer,
		cfg:      cfg,
	}
}

// Run executes one maintenance pass. Reap and recompute failures abort the
// run; a cycling sync failure is logged and reported in the result only.
func (j *MaintenanceJob) Run(ctx context.Context) (*models.JobRunResult, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	result := &models.JobRunResult{StartedAt: time.Now().UTC()}
	now := result.StartedAt

	closed, err := j.reaper.Reap(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("reap step failed: %w", err)
	}
	result.ClosedVisits = closed

	updated, err := j.computer.RecomputeTrailing(ctx, j.cfg.RecomputeDays, now)
	if err != nil {
		return nil, fmt.Errorf("rollup recompute step failed: %w", err)
	}
	result.RollupsUpdated = updated

	if j.syncer != nil {
		weeks, err := j.syncer.Sync(ctx, now, 0)
		if err != nil {
			logging.Warn().Err(err).Msg("Cycling sync failed, continuing")
		} else {
			result.CyclingWeeks = weeks
			result.CyclingSyncedOK = true
		}
	}

	result.FinishedAt = time.Now().UTC()
	logging.Info().
		Int("closed_visits", result.ClosedVisits).
		Int("rollups_updated", result.RollupsUpdated).
		Int("cycling_weeks", result.CyclingWeeks).
		Bool("cycling_ok", result.CyclingSyncedOK).
		Dur("elapsed", result.FinishedAt.Sub(result.StartedAt)).
		Msg("Maintenance run complete")
	return result, nil
}

// Runner drives the job on a fixed interval as a supervised service.
type Runner struct {
	job *MaintenanceJob
	cfg config.JobsConfig
}

// NewRunner builds a Runner around the job.
func NewRunner(job *MaintenanceJob, cfg config.JobsConfig) *Runner {
	return &Runner{job: job, cfg: cfg}
}

// Serve implements suture.Service: run on the interval until the context
// is canceled. A failed run is logged, not returned, so the supervisor
// does not restart-loop on a persistently failing dependency.
func (r *Runner) Serve(ctx context.Context) error {
	interval := r.cfg.Interval
	if interval <= 0 {
		interval = 24 * time.Hour
	}

	if r.cfg.RunOnStartup {
		if _, err := r.job.Run(ctx); err != nil {
			logging.Error().Err(err).Msg("Startup maintenance run failed")
		}
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := r.job.Run(ctx); err != nil {
				logging.Error().Err(err).Msg("Scheduled maintenance run failed")
			}
		}
	}
}

// String implements fmt.Stringer for supervisor logging.
func (r *Runner) String() string {
	return "maintenance-scheduler"
}
