package service

import (
	"time"

	"duekeeper/internal/model"
)

// Decision is a planned single-task reminder.
type Decision struct {
	TaskID  uint
	Title   string
	FireAt  time.Time
	Kind    model.ReminderKind
	DueDate time.Time
}

// LedgerKey is the dedup key for this decision's occurrence.
func (d Decision) LedgerKey() model.LedgerKey {
	return model.LedgerKey{TaskID: d.TaskID, Kind: d.Kind, DueDate: d.DueDate}
}

// Plan computes the next reminder for a pending task, or reports false when
// there is none. now must already be in the user's location: the reminder time
// of day is applied with that location's offset at planning time, so a DST
// switch between planning and firing can skew a reminder by up to an hour.
//
// Inside the reminder window (overdue, or due within DaysBefore days) the
// reminder fires at the next daily slot. Its kind is taken from the slot's
// day, so a due-today task whose slot has already passed fires tomorrow as
// overdue. Before the window opens the reminder is scheduled for DaysBefore
// days ahead of the due date.
func Plan(task model.Task, prefs model.ReminderPreferences, now time.Time) (Decision, bool) {
	if task.CompletedAt != nil || !prefs.Enabled {
		return Decision{}, false
	}

	daysUntilDue := DaysBetween(StartOfDay(now), task.DueDate)

	var fireAt time.Time
	var kind model.ReminderKind
	if daysUntilDue <= prefs.DaysBefore {
		fireAt = nextSlot(now, prefs)
		kind = windowKind(DaysBetween(fireAt, task.DueDate))
	} else {
		y, m, d := task.DueDate.Date()
		fireAt = time.Date(y, m, d-prefs.DaysBefore, prefs.Hour, prefs.Minute, 0, 0, now.Location())
		kind = model.ReminderScheduled
	}

	if kind == model.ReminderOverdue && !prefs.OverdueEnabled {
		return Decision{}, false
	}
	if !fireAt.After(now) {
		return Decision{}, false
	}

	return Decision{
		TaskID:  task.ID,
		Title:   task.Title,
		FireAt:  fireAt,
		Kind:    kind,
		DueDate: task.DueDate,
	}, true
}

// dailySlot is the reminder time on now's calendar day.
func dailySlot(now time.Time, prefs model.ReminderPreferences) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d, prefs.Hour, prefs.Minute, 0, 0, now.Location())
}

// nextSlot is today's reminder time if still ahead of now, else tomorrow's.
func nextSlot(now time.Time, prefs model.ReminderPreferences) time.Time {
	slot := dailySlot(now, prefs)
	if !slot.After(now) {
		y, m, d := now.Date()
		slot = time.Date(y, m, d+1, prefs.Hour, prefs.Minute, 0, 0, now.Location())
	}
	return slot
}

func windowKind(daysUntilDue int) model.ReminderKind {
	switch {
	case daysUntilDue < 0:
		return model.ReminderOverdue
	case daysUntilDue == 0:
		return model.ReminderDueToday
	default:
		return model.ReminderDueSoon
	}
}
