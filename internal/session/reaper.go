// Gymtrackd - Gym Attendance Analytics
// Copyright 2026 Gymtrackd Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gymtrack/gymtrackd

package session

import (
	"context"
	"fmt"
	"time"

	"github.com/gymtrack/gymtrackd/internal/config"
	"github.com/gymtrack/gymtrackd/internal/logging"
	"github.com/gymtrack/gymtrackd/internal/metrics"
)

// Reaper force-closes visits whose exit event never arrived. A visit open
// longer than the auto-close deadline gets a synthesized exit at exactly
// enter time plus the deadline, so a phone that died at the gym yields a
// plausible full-length session instead of an unbounded one.
type Reaper struct {
	store     VisitStore
	autoClose time.Duration
	minVisit  time.Duration
}

// NewReaper builds a Reaper from attendance settings.
func NewReaper(store VisitStore, cfg config.AttendanceConfig) *Reaper {
	return &Reaper{
		store:     store,
		autoClose: time.Duration(cfg.AutoCloseMinutes) * time.Minute,
		minVisit:  time.Duration(cfg.MinVisitMinutes) * time.Minute,
	}
}

// Reap closes every visit open past the deadline as of now. Returns the
// number of visits closed. A visit that a genuine exit closes mid-reap is
// skipped by the store's still-open guard and not counted.
func (r *Reaper) Reap(ctx context.Context, now time.Time) (int, error) {
	stale, err := r.store.FindStaleOpenVisits(ctx, now.Add(-r.autoClose))
	if err != nil {
		return 0, fmt.Errorf("stale visit scan failed: %w", err)
	}

	closed := 0
	for i := range stale {
		v := &stale[i]
		exitTime := v.EnterTime.Add(r.autoClose)
		duration := int(r.autoClose.Minutes())
		qualified := r.autoClose >= r.minVisit

		ok, err := r.store.AutoCloseVisit(ctx, v.ID, exitTime, duration, qualified)
		if err != nil {
			return closed, fmt.Errorf("auto-close of visit %s failed: %w", v.ID, err)
		}
		if !ok {
			continue
		}

		closed++
		metrics.ReaperClosures.Inc()
		logging.Warn().
			Str("visit_id", v.ID.String()).
			Str("location", v.LocationName).
			Time("enter_time", v.EnterTime).
			Time("exit_time", exitTime).
			Msg("Visit auto-closed, no exit event received")
	}
	return closed, nil
}
