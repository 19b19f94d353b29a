// Gymtrackd - Gym Attendance Analytics
// Copyright 2026 Gymtrackd Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gymtrack/gymtrackd

package rollup

import (
	"time"

	"github.com/gymtrack/gymtrackd/internal/models"
)

// BuildHeatmap arranges rollups into a grid of weeks x five workday cells.
// Pure function: start must be a Monday, weeks is the exact column count.
// Dates with no rollup row default to future, which covers both dates past
// today (never materialized) and gaps the backfill has not reached.
func BuildHeatmap(rollups []models.DailyRollup, start time.Time, weeks int) models.Heatmap {
	byDate := make(map[string]models.DayStatus, len(rollups))
	for i := range rollups {
		byDate[rollups[i].Date] = rollups[i].Status
	}

	h := models.Heatmap{
		Weeks: weeks,
		Grid:  make([]models.WeekColumn, 0, weeks),
	}

	for w := 0; w < weeks; w++ {
		monday := start.AddDate(0, 0, 7*w)
		col := models.WeekColumn{
			WeekStart: monday.Format(dateLayout),
			Days:      make([]models.DayCell, 0, 5),
		}
		for d := 0; d < 5; d++ {
			date := monday.AddDate(0, 0, d).Format(dateLayout)
			status, ok := byDate[date]
			if !ok {
				status = models.StatusFuture
			}
			col.Days = append(col.Days, models.DayCell{
				Date:      date,
				DayOfWeek: d + 1,
				Status:    status,
			})
		}
		h.Grid = append(h.Grid, col)
	}

	h.MonthLabels = buildMonthLabels(start, weeks)
	return h
}

// buildMonthLabels run-length-encodes the month of each week's Monday:
// contiguous weeks in the same month merge into one label with its starting
// column and span.
func buildMonthLabels(start time.Time, weeks int) []models.MonthLabel {
	var labels []models.MonthLabel
	for w := 0; w < weeks; w++ {
		month := start.AddDate(0, 0, 7*w).Format("Jan")
		if n := len(labels); n > 0 && labels[n-1].Month == month {
			labels[n-1].WeekSpan++
			continue
		}
		labels = append(labels, models.MonthLabel{
			Month:     month,
			WeekIndex: w,
			WeekSpan:  1,
		})
	}
	return labels
}
