package model

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidSchedule is returned when a schedule parameter is missing or out of range.
	ErrInvalidSchedule = errors.New("invalid schedule")
	// ErrUnknownScheduleKind is returned when a stored schedule kind is not recognised.
	ErrUnknownScheduleKind = errors.New("unknown schedule kind")
)

// ScheduleKind tells how an obligation recurs.
type ScheduleKind string

const (
	ScheduleFixedDate    ScheduleKind = "fixed"
	ScheduleEveryNMonths ScheduleKind = "every_n_months"
	ScheduleYearly       ScheduleKind = "yearly"
)

// Schedule is a tagged union of the supported recurrence kinds.
// Only the fields of the active Kind are meaningful.
type Schedule struct {
	Kind   ScheduleKind
	Months int        // EveryNMonths
	Month  time.Month // Yearly
	Day    int        // Yearly
}

// FixedDate returns a schedule that never recurs.
func FixedDate() Schedule {
	return Schedule{Kind: ScheduleFixedDate}
}

// EveryNMonths returns a schedule that adds n months to the previous due date.
func EveryNMonths(n int) (Schedule, error) {
	s := Schedule{Kind: ScheduleEveryNMonths, Months: n}
	if err := s.Validate(); err != nil {
		return Schedule{}, err
	}
	return s, nil
}

// Yearly returns a schedule that recurs on the same calendar date every year.
// Feb 29 is accepted and clamps to Feb 28 in non-leap years.
func Yearly(month time.Month, day int) (Schedule, error) {
	s := Schedule{Kind: ScheduleYearly, Month: month, Day: day}
	if err := s.Validate(); err != nil {
		return Schedule{}, err
	}
	return s, nil
}

// YearlyFromMMDD decodes the packed month*100+day form.
func YearlyFromMMDD(mmdd int) (Schedule, error) {
	return Yearly(time.Month(mmdd/100), mmdd%100)
}

// Recurs reports whether the schedule has a next occurrence.
func (s Schedule) Recurs() bool {
	return s.Kind == ScheduleEveryNMonths || s.Kind == ScheduleYearly
}

// MMDD packs a yearly schedule's month and day.
func (s Schedule) MMDD() int {
	return int(s.Month)*100 + s.Day
}

// Validate checks the parameters of the active kind.
func (s Schedule) Validate() error {
	switch s.Kind {
	case ScheduleFixedDate:
		return nil
	case ScheduleEveryNMonths:
		if s.Months < 1 {
			return fmt.Errorf("%w: every n months needs n >= 1, got %d", ErrInvalidSchedule, s.Months)
		}
		return nil
	case ScheduleYearly:
		if s.Month < time.January || s.Month > time.December {
			return fmt.Errorf("%w: month %d out of range", ErrInvalidSchedule, int(s.Month))
		}
		// 2000 is a leap year, so Feb 29 is a valid target.
		if s.Day < 1 || s.Day > DaysInMonth(s.Month, 2000) {
			return fmt.Errorf("%w: day %d out of range for %s", ErrInvalidSchedule, s.Day, s.Month)
		}
		return nil
	case "":
		return fmt.Errorf("%w: missing kind", ErrInvalidSchedule)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownScheduleKind, string(s.Kind))
	}
}

func (s Schedule) String() string {
	switch s.Kind {
	case ScheduleFixedDate:
		return "once"
	case ScheduleEveryNMonths:
		if s.Months == 1 {
			return "every month"
		}
		return fmt.Sprintf("every %d months", s.Months)
	case ScheduleYearly:
		return fmt.Sprintf("yearly %02d-%02d", int(s.Month), s.Day)
	default:
		return string(s.Kind)
	}
}

// EncodeSchedule flattens a schedule into its storage columns.
// Yearly schedules store MMDD in param.
func EncodeSchedule(s Schedule) (kind string, param int) {
	switch s.Kind {
	case ScheduleEveryNMonths:
		return string(s.Kind), s.Months
	case ScheduleYearly:
		return string(s.Kind), s.MMDD()
	default:
		return string(s.Kind), 0
	}
}

// DecodeSchedule rebuilds a schedule from its storage columns. It never fails:
// bad rows surface later through Validate so only the affected task is rejected.
func DecodeSchedule(kind string, param int) Schedule {
	s := Schedule{Kind: ScheduleKind(kind)}
	switch s.Kind {
	case ScheduleEveryNMonths:
		s.Months = param
	case ScheduleYearly:
		s.Month = time.Month(param / 100)
		s.Day = param % 100
	}
	return s
}

// DaysInMonth returns the number of days in month of year.
func DaysInMonth(month time.Month, year int) int {
	// Move to next month, roll back a day.
	firstOfMonth := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	firstOfNextMonth := firstOfMonth.AddDate(0, 1, 0)
	lastOfMonth := firstOfNextMonth.AddDate(0, 0, -1)
	return lastOfMonth.Day()
}
