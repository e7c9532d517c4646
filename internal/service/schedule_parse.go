package service

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"duekeeper/internal/model"
)

// ParseSchedule reads the user-facing schedule forms:
//
//	once
//	monthly | every month | every 3 months | every 3m
//	yearly 02-29 | yearly 0229
func ParseSchedule(raw string) (model.Schedule, error) {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(raw)))
	if len(fields) == 0 {
		return model.Schedule{}, fmt.Errorf("%w: empty schedule", model.ErrInvalidSchedule)
	}

	switch fields[0] {
	case "once", "fixed":
		if len(fields) != 1 {
			break
		}
		return model.FixedDate(), nil
	case "monthly":
		if len(fields) != 1 {
			break
		}
		return model.EveryNMonths(1)
	case "every":
		return parseEvery(fields[1:])
	case "yearly", "annually":
		if len(fields) != 2 {
			break
		}
		return parseMonthDay(fields[1])
	}
	return model.Schedule{}, fmt.Errorf("%w: cannot parse %q", model.ErrInvalidSchedule, raw)
}

func parseEvery(rest []string) (model.Schedule, error) {
	switch {
	case len(rest) == 1 && (rest[0] == "month" || rest[0] == "year"):
		if rest[0] == "year" {
			return model.EveryNMonths(12)
		}
		return model.EveryNMonths(1)
	case len(rest) == 1 && strings.HasSuffix(rest[0], "m"):
		return everyN(strings.TrimSuffix(rest[0], "m"))
	case len(rest) == 2 && (rest[1] == "months" || rest[1] == "month"):
		return everyN(rest[0])
	}
	return model.Schedule{}, fmt.Errorf("%w: expected \"every N months\"", model.ErrInvalidSchedule)
}

func everyN(raw string) (model.Schedule, error) {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return model.Schedule{}, fmt.Errorf("%w: bad month count %q", model.ErrInvalidSchedule, raw)
	}
	return model.EveryNMonths(n)
}

func parseMonthDay(raw string) (model.Schedule, error) {
	if m, d, ok := strings.Cut(raw, "-"); ok {
		month, errM := strconv.Atoi(m)
		day, errD := strconv.Atoi(d)
		if errM != nil || errD != nil {
			return model.Schedule{}, fmt.Errorf("%w: bad date %q, expected MM-DD", model.ErrInvalidSchedule, raw)
		}
		return model.Yearly(time.Month(month), day)
	}
	mmdd, err := strconv.Atoi(raw)
	if err != nil || len(raw) != 4 {
		return model.Schedule{}, fmt.Errorf("%w: bad date %q, expected MM-DD", model.ErrInvalidSchedule, raw)
	}
	return model.YearlyFromMMDD(mmdd)
}

// ParseDueDate reads a YYYY-MM-DD date as a due date pinned to noon in loc.
func ParseDueDate(raw string, loc *time.Location) (time.Time, error) {
	d, err := time.ParseInLocation(model.DateLayout, strings.TrimSpace(raw), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", raw)
	}
	return NormalizeDueDate(d, loc), nil
}
