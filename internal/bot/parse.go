package bot

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"duekeeper/internal/model"
	"duekeeper/internal/service"
)

// parseNewTask reads "title | schedule | YYYY-MM-DD [| category]".
func parseNewTask(args string, loc *time.Location) (service.TaskInput, error) {
	parts := strings.Split(args, "|")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	if len(parts) < 3 || len(parts) > 4 {
		return service.TaskInput{}, fmt.Errorf("expected: title | schedule | YYYY-MM-DD [| category]")
	}
	if parts[0] == "" {
		return service.TaskInput{}, fmt.Errorf("title is required")
	}

	schedule, err := service.ParseSchedule(parts[1])
	if err != nil {
		return service.TaskInput{}, err
	}
	due, err := service.ParseDueDate(parts[2], loc)
	if err != nil {
		return service.TaskInput{}, err
	}

	input := service.TaskInput{
		Title:    parts[0],
		Schedule: schedule,
		DueDate:  due,
	}
	if len(parts) == 4 {
		input.Category = parts[3]
	}
	return input, nil
}

// parseRemind reads "off", "on" or "HH:MM days [overdue on|off]" on top of current.
func parseRemind(args string, current model.ReminderPreferences) (model.ReminderPreferences, error) {
	fields := strings.Fields(strings.ToLower(args))
	prefs := current

	switch {
	case len(fields) == 1 && fields[0] == "off":
		prefs.Enabled = false
		return prefs, nil
	case len(fields) == 1 && fields[0] == "on":
		prefs.Enabled = true
		return prefs, nil
	case len(fields) == 2, len(fields) == 4 && fields[2] == "overdue":
	default:
		return current, fmt.Errorf("usage: /remind 09:00 3 [overdue on|off]")
	}

	hh, mm, ok := strings.Cut(fields[0], ":")
	if !ok {
		return current, fmt.Errorf("time must be HH:MM")
	}
	hour, errH := strconv.Atoi(hh)
	minute, errM := strconv.Atoi(mm)
	if errH != nil || errM != nil {
		return current, fmt.Errorf("time must be HH:MM")
	}
	days, err := strconv.Atoi(fields[1])
	if err != nil {
		return current, fmt.Errorf("days must be a number")
	}

	prefs.Enabled = true
	prefs.Hour = hour
	prefs.Minute = minute
	prefs.DaysBefore = days
	if len(fields) == 4 {
		switch fields[3] {
		case "on":
			prefs.OverdueEnabled = true
		case "off":
			prefs.OverdueEnabled = false
		default:
			return current, fmt.Errorf("overdue must be on or off")
		}
	}
	if err := prefs.Validate(); err != nil {
		return current, err
	}
	return prefs, nil
}

// Household actions.
const (
	householdNew   = "new"
	householdJoin  = "join"
	householdLeave = "leave"
)

// parseHousehold reads "new", "join <invite code>" or "leave".
func parseHousehold(args string) (action, code string, err error) {
	fields := strings.Fields(args)
	switch {
	case len(fields) == 1 && strings.EqualFold(fields[0], householdNew):
		return householdNew, "", nil
	case len(fields) == 1 && strings.EqualFold(fields[0], householdLeave):
		return householdLeave, "", nil
	case len(fields) == 2 && strings.EqualFold(fields[0], householdJoin):
		return householdJoin, fields[1], nil
	}
	return "", "", fmt.Errorf("usage: /household new | join <invite code> | leave")
}

func describePrefs(p model.ReminderPreferences) string {
	if !p.Enabled {
		return "🔕 Reminders are off. Turn them on with /remind on."
	}
	overdue := "off"
	if p.OverdueEnabled {
		overdue = "on"
	}
	return fmt.Sprintf("🔔 Reminders at %02d:%02d, starting %d day(s) before the due date. Overdue reminders: %s.",
		p.Hour, p.Minute, p.DaysBefore, overdue)
}
