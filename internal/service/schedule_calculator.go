package service

import (
	"fmt"
	"time"

	"duekeeper/internal/model"
)

// dueHour is the time of day every computed due date is pinned to, so that
// converting between nearby offsets never changes the calendar date.
const dueHour = 12

const secondsPerDay = 24 * 60 * 60

// NextDueDate returns the due date of the occurrence following currentDueDate.
//
// FixedDate schedules return currentDueDate unchanged. Recurring schedules
// always return a date strictly after today (calendar-date comparison in
// today's location), however far in the past currentDueDate is.
func NextDueDate(schedule model.Schedule, currentDueDate, today time.Time) (time.Time, error) {
	if err := schedule.Validate(); err != nil {
		return time.Time{}, err
	}

	switch schedule.Kind {
	case model.ScheduleFixedDate:
		return currentDueDate, nil
	case model.ScheduleEveryNMonths:
		return nextMonthly(schedule.Months, currentDueDate, today), nil
	case model.ScheduleYearly:
		return nextYearly(schedule.Month, schedule.Day, today), nil
	default:
		return time.Time{}, fmt.Errorf("%w: %q", model.ErrUnknownScheduleKind, string(schedule.Kind))
	}
}

// nextMonthly adds n months until the result passes today. Each step is
// computed from the original anchor day so a clamped Feb 28 does not drag
// later occurrences off the 31st.
func nextMonthly(n int, current, today time.Time) time.Time {
	year, month, day := current.Date()
	loc := current.Location()
	for k := 1; ; k++ {
		next := clampedDate(year, month+time.Month(k*n), day, loc)
		if DaysBetween(today, next) > 0 {
			return next
		}
	}
}

// nextYearly picks month/day in today's year, or the following year when that
// date is today or earlier.
func nextYearly(month time.Month, day int, today time.Time) time.Time {
	loc := today.Location()
	candidate := clampedDate(today.Year(), month, day, loc)
	if DaysBetween(today, candidate) <= 0 {
		candidate = clampedDate(today.Year()+1, month, day, loc)
	}
	return candidate
}

// clampedDate builds year/month/day at noon, clamping day to the month length.
// month may overflow twelve; it is normalised first.
func clampedDate(year int, month time.Month, day int, loc *time.Location) time.Time {
	first := time.Date(year, month, 1, dueHour, 0, 0, 0, loc)
	if last := model.DaysInMonth(first.Month(), first.Year()); day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, dueHour, 0, 0, 0, loc)
}

// NormalizeDueDate pins t's calendar date to noon in loc.
func NormalizeDueDate(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, dueHour, 0, 0, 0, loc)
}

// StartOfDay truncates t to midnight in its own location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// DaysBetween counts calendar days from a to b, each read in its own location.
// It is DST-safe: only the dates matter, not the elapsed hours.
func DaysBetween(a, b time.Time) int {
	return int(civilDay(b) - civilDay(a))
}

// civilDay numbers t's calendar date as days since the Unix epoch. Unix
// seconds cover every year time.Date accepts, unlike time.Duration.
func civilDay(t time.Time) int64 {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / secondsPerDay
}
