// Gymtrackd - Gym Attendance Analytics
// Copyright 2026 Gymtrackd Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gymtrack/gymtrackd

package rollup

import (
	"testing"

	"github.com/gymtrack/gymtrackd/internal/models"
)

// statuses builds a most-recent-first rollup list from oldest-first input,
// matching how the scenarios read naturally.
func statuses(oldestFirst ...models.DayStatus) []models.DailyRollup {
	rollups := make([]models.DailyRollup, 0, len(oldestFirst))
	for i := len(oldestFirst) - 1; i >= 0; i-- {
		rollups = append(rollups, models.DailyRollup{Status: oldestFirst[i], IsWorkday: true})
	}
	return rollups
}

func TestCalculateStreaks(t *testing.T) {
	v, m := models.StatusVisit, models.StatusMiss

	tests := []struct {
		name            string
		rollups         []models.DailyRollup
		current, longest int
	}{
		{"empty history", nil, 0, 0},
		{"miss then four visits", statuses(m, v, v, v, v), 4, 4},
		{"visit miss visit", statuses(v, m, v), 1, 1},
		{"ends on a miss", statuses(v, v, m), 0, 2},
		{"all visits", statuses(v, v, v), 3, 3},
		{"all misses", statuses(m, m, m), 0, 0},
		{"longest run in the past", statuses(v, v, v, v, m, v, v), 2, 4},
		{"single visit", statuses(v), 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateStreaks(tt.rollups)
			if got.Current != tt.current {
				t.Errorf("current = %d, want %d", got.Current, tt.current)
			}
			if got.Longest != tt.longest {
				t.Errorf("longest = %d, want %d", got.Longest, tt.longest)
			}
		})
	}
}
