// Package schedule decides when a scan schedule must run. IsDue is a pure
// predicate over wall-clock fields; the orchestrator owns the last-run
// bookkeeping around it.
//
// All comparisons use UTC wall-clock fields (hour, minute, weekday, day of
// month). UTC is the single documented time zone for due checks.
package schedule

import (
	"strconv"
	"strings"
	"time"

	"github.com/exiscale/urlhealth/internal/models"
)

// Defaults for optional schedule qualifiers.
const (
	DefaultTime = "09:00"
	DefaultDay  = "monday"
	DefaultDate = 1
)

// minRunGap guards against re-triggering within one scheduler tick.
const minRunGap = time.Minute

// IsDue reports whether the schedule must run at now. Rules, in precedence
// order: disabled schedules are never due; a schedule that has never run is
// due immediately; a schedule that ran less than a minute ago is not due;
// otherwise the frequency's wall-clock condition decides. An unknown
// frequency is never due (fail closed, no scan).
func IsDue(s models.Schedule, now time.Time) bool {
	if !s.Enabled {
		return false
	}
	if s.LastScan == nil {
		return true
	}
	if now.Sub(*s.LastScan) < minRunGap {
		return false
	}

	now = now.UTC()
	hour, minute := scheduledTime(s.ScheduledTime)

	switch s.Frequency {
	case models.FreqHourly:
		// Top of each hour.
		return now.Minute() == 0
	case models.FreqDaily:
		return now.Hour() == hour && now.Minute() == minute
	case models.FreqWeekly:
		return weekdayName(now.Weekday()) == scheduledDay(s.ScheduledDay) &&
			now.Hour() == hour && now.Minute() == minute
	case models.FreqMonthly:
		return now.Day() == scheduledDate(s.ScheduledDate) &&
			now.Hour() == hour && now.Minute() == minute
	default:
		return false
	}
}

// NextRun returns the first instant strictly after `after` at which the
// schedule's wall-clock condition holds, or the zero time for disabled
// schedules and unknown frequencies. The 1-minute re-trigger guard is a
// runtime concern and is not applied here.
func NextRun(s models.Schedule, after time.Time) time.Time {
	if !s.Enabled {
		return time.Time{}
	}
	after = after.UTC()
	hour, minute := scheduledTime(s.ScheduledTime)

	switch s.Frequency {
	case models.FreqHourly:
		next := after.Truncate(time.Hour).Add(time.Hour)
		return next
	case models.FreqDaily:
		next := time.Date(after.Year(), after.Month(), after.Day(), hour, minute, 0, 0, time.UTC)
		if !next.After(after) {
			next = next.AddDate(0, 0, 1)
		}
		return next
	case models.FreqWeekly:
		day := scheduledDay(s.ScheduledDay)
		next := time.Date(after.Year(), after.Month(), after.Day(), hour, minute, 0, 0, time.UTC)
		for i := 0; i < 8; i++ {
			if next.After(after) && weekdayName(next.Weekday()) == day {
				return next
			}
			next = next.AddDate(0, 0, 1)
		}
		return time.Time{}
	case models.FreqMonthly:
		date := scheduledDate(s.ScheduledDate)
		// Walk month starts so a day that normalizes past a short month
		// (the 31st in April) skips that month without skipping the next.
		month := time.Date(after.Year(), after.Month(), 1, 0, 0, 0, 0, time.UTC)
		for i := 0; i < 24; i++ {
			next := time.Date(month.Year(), month.Month(), date, hour, minute, 0, 0, time.UTC)
			if next.After(after) && next.Day() == date {
				return next
			}
			month = month.AddDate(0, 1, 0)
		}
		return time.Time{}
	default:
		return time.Time{}
	}
}

// scheduledTime parses "HH:MM", falling back to the default on malformed
// input.
func scheduledTime(s string) (hour, minute int) {
	if s == "" {
		s = DefaultTime
	}
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return scheduledTime(DefaultTime)
	}
	h, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || h < 0 || h > 23 || m < 0 || m > 59 {
		return scheduledTime(DefaultTime)
	}
	return h, m
}

func scheduledDay(s string) string {
	if s == "" {
		return DefaultDay
	}
	return strings.ToLower(strings.TrimSpace(s))
}

func scheduledDate(d int) int {
	if d < 1 || d > 31 {
		return DefaultDate
	}
	return d
}

func weekdayName(d time.Weekday) string {
	return strings.ToLower(d.String())
}
