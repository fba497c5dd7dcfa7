package reminder

import (
	"fmt"
	"time"
)

// DayMode selects how the due day of a billing period is determined.
const (
	// DayModeLastDay places the reminder on the last calendar day of the month.
	DayModeLastDay = "lastDay"
	// DayModeCustomDay places it on a fixed day, clamped to the month's length.
	DayModeCustomDay = "customDay"
)

const (
	defaultHour   = 9
	defaultMinute = 30
)

// Schedule describes when in each month a reminder becomes due.
type Schedule struct {
	DayMode    string
	DayOfMonth int
	// TimeOfDay is a 24-hour "HH:MM" string. Malformed input falls back to
	// 09:30; out-of-range components are clamped.
	TimeOfDay string
	// Location is the zone the schedule is interpreted in. When nil, the
	// zone of the reference time is used.
	Location *time.Location
}

// PeriodKey returns the "YYYY-MM" key identifying now's billing period.
func PeriodKey(now time.Time) string {
	return now.Format("2006-01")
}

// ComputeDueAt returns the due timestamp for the billing period containing
// now. It is pure: deterministic given its inputs and free of I/O.
func ComputeDueAt(now time.Time, schedule Schedule) time.Time {
	loc := schedule.Location
	if loc == nil {
		loc = now.Location()
	}
	now = now.In(loc)

	hour, minute := parseTimeOfDay(schedule.TimeOfDay)

	year, month, _ := now.Date()
	lastDay := lastDayOfMonth(year, month, loc)

	day := lastDay
	if schedule.DayMode == DayModeCustomDay {
		day = schedule.DayOfMonth
		if day < 1 {
			day = 1
		}
		if day > lastDay {
			day = lastDay
		}
	}

	return time.Date(year, month, day, hour, minute, 0, 0, loc)
}

// parseTimeOfDay parses "HH:MM". Anything malformed yields the 09:30
// default; parsed values outside the valid range are clamped rather than
// rejected.
func parseTimeOfDay(value string) (hour, minute int) {
	var h, m int
	if n, err := fmt.Sscanf(value, "%2d:%2d", &h, &m); err != nil || n != 2 {
		return defaultHour, defaultMinute
	}
	return clamp(h, 0, 23), clamp(m, 0, 59)
}

func lastDayOfMonth(year int, month time.Month, loc *time.Location) int {
	// Day zero of the following month normalizes to this month's last day.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
