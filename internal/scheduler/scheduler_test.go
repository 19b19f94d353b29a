// Gymtrackd - Gym Attendance Analytics
// Copyright 2026 Gymtrackd Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gymtrack/gymtrackd

package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gymtrack/gymtrackd/internal/config"
)

type fakeReaper struct {
	closed int
	err    error
	calls  atomic.Int32
}

func (f *fakeReaper) Reap(_ context.Context, _ time.Time) (int, error) {
	f.calls.Add(1)
	return f.closed, f.err
}

type fakeComputer struct {
	updated int
	err     error
	gotDays int
}

func (f *fakeComputer) RecomputeTrailing(_ context.Context, days int, _ time.Time) (int, error) {
	f.gotDays = days
	return f.updated, f.err
}

type fakeSyncer struct {
	weeks        int
	err          error
	calls        int
	gotWeeksBack int
}

func (f *fakeSyncer) Sync(_ context.Context, _ time.Time, weeksBack int) (int, error) {
	f.calls++
	f.gotWeeksBack = weeksBack
	return f.weeks, f.err
}

func jobsConfig() config.JobsConfig {
	return config.JobsConfig{Interval: time.Hour, RecomputeDays: 7}
}

func TestRunHappyPath(t *testing.T) {
	reaper := &fakeReaper{closed: 2}
	computer := &fakeComputer{updated: 7}
	syncer := &fakeSyncer{weeks: 4}
	job := NewMaintenanceJob(reaper, computer, syncer, jobsConfig())

	result, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.ClosedVisits != 2 || result.RollupsUpdated != 7 || result.CyclingWeeks != 4 {
		t.Errorf("result = %+v", result)
	}
	if !result.CyclingSyncedOK {
		t.Error("cycling_sync_ok = false, want true")
	}
	if computer.gotDays != 7 {
		t.Errorf("recompute days = %d, want 7", computer.gotDays)
	}
	if syncer.gotWeeksBack != 0 {
		t.Errorf("weeksBack = %d, want 0 (the configured window)", syncer.gotWeeksBack)
	}
	if result.FinishedAt.Before(result.StartedAt) {
		t.Error("finished before started")
	}
}

func TestRunCyclingFailureIsNonFatal(t *testing.T) {
	job := NewMaintenanceJob(&fakeReaper{closed: 1}, &fakeComputer{updated: 7},
		&fakeSyncer{err: errors.New("strava down")}, jobsConfig())

	result, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v, cycling failure must not fail the run", err)
	}
	if result.CyclingSyncedOK {
		t.Error("cycling_sync_ok = true after failure")
	}
	if result.ClosedVisits != 1 || result.RollupsUpdated != 7 {
		t.Errorf("other steps lost: %+v", result)
	}
}

func TestRunWithoutSyncer(t *testing.T) {
	job := NewMaintenanceJob(&fakeReaper{}, &fakeComputer{}, nil, jobsConfig())

	result, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.CyclingSyncedOK || result.CyclingWeeks != 0 {
		t.Errorf("result = %+v, want no cycling activity", result)
	}
}

func TestRunReapFailureAborts(t *testing.T) {
	computer := &fakeComputer{}
	job := NewMaintenanceJob(&fakeReaper{err: errors.New("db gone")}, computer, nil, jobsConfig())

	if _, err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if computer.gotDays != 0 {
		t.Error("recompute ran after reap failure")
	}
}

func TestRunRecomputeFailureAborts(t *testing.T) {
	job := NewMaintenanceJob(&fakeReaper{}, &fakeComputer{err: errors.New("db gone")}, nil, jobsConfig())
	if _, err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestRunnerRunOnStartup(t *testing.T) {
	reaper := &fakeReaper{}
	cfg := config.JobsConfig{Interval: time.Hour, RecomputeDays: 7, RunOnStartup: true}
	runner := NewRunner(NewMaintenanceJob(reaper, &fakeComputer{}, nil, cfg), cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runner.Serve(ctx) }()

	// The startup run happens before the first tick.
	deadline := time.After(2 * time.Second)
	for reaper.calls.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("startup run never happened")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Serve() = %v, want context.Canceled", err)
	}
}
