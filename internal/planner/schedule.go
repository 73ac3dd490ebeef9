package planner

import (
	"fmt"
	"time"
)

// DateFormat is the calendar date layout used in Dates maps and in storage.
const DateFormat = "2006-01-02"

// Midnight truncates t to its calendar date at midnight UTC. All plan dates
// pass through this so date equality is a plain Equal check.
func Midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DayLabel returns the ordinal key used in the Days and Dates maps.
func DayLabel(i int) string {
	return fmt.Sprintf("Day%d", i)
}

// NextStartDate decides the calendar date where newly generated days begin.
//
// With no active days the window starts today. When the latest active date is
// today or later, the window continues the day after it so no two active
// entries share a date. A latest date strictly in the past is stale data;
// restarting at today resets continuity instead of planting new plans in the
// past.
func NextStartDate(latest *time.Time, today time.Time) time.Time {
	today = Midnight(today)
	if latest == nil {
		return today
	}
	last := Midnight(*latest)
	if !last.Before(today) {
		return last.AddDate(0, 0, 1)
	}
	return today
}
