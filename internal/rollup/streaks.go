// Gymtrackd - Gym Attendance Analytics
// Copyright 2026 Gymtrackd Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gymtrack/gymtrackd

package rollup

import "github.com/gymtrack/gymtrackd/internal/models"

// Streaks holds the consecutive-attendance figures.
type Streaks struct {
	Current int
	Longest int
}

// CalculateStreaks scans workday rollups ordered most recent first and
// counts consecutive visit-status runs. The current streak is the run
// length at the first non-visit row (weekends and future days are not in
// the input, so they neither extend nor break a run).
func CalculateStreaks(rollups []models.DailyRollup) Streaks {
	var s Streaks
	run := 0
	currentSet := false

	for i := range rollups {
		if rollups[i].Status == models.StatusVisit {
			run++
			continue
		}
		if !currentSet {
			s.Current = run
			currentSet = true
		}
		if run > s.Longest {
			s.Longest = run
		}
		run = 0
	}

	if !currentSet {
		s.Current = run
	}
	if run > s.Longest {
		s.Longest = run
	}
	return s
}
