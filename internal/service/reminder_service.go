package service

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"duekeeper/internal/model"
)

// ReminderService builds human-readable digests of a user's obligations.
type ReminderService struct {
	taskSvc     *TaskService
	categorySvc *CategoryService
	loc         *time.Location
}

func NewReminderService(taskSvc *TaskService, categorySvc *CategoryService, loc *time.Location) *ReminderService {
	if loc == nil {
		loc = time.UTC
	}
	return &ReminderService{taskSvc: taskSvc, categorySvc: categorySvc, loc: loc}
}

// Classify puts a pending task in the same urgency class the planner uses,
// with the reminder window taken from prefs.
func Classify(task model.Task, prefs model.ReminderPreferences, today time.Time) model.ReminderKind {
	days := DaysBetween(today, task.DueDate)
	if days > prefs.DaysBefore {
		return model.ReminderScheduled
	}
	return windowKind(days)
}

// Digest renders pending obligations grouped by urgency, followed by
// completed recurring ones waiting for their next occurrence.
func (s *ReminderService) Digest(ctx context.Context, user *model.User, now time.Time) (string, error) {
	tasks, err := s.taskSvc.ListTasks(ctx, user, now)
	if err != nil {
		return "", err
	}
	catNames, err := s.categorySvc.Names(ctx, user)
	if err != nil {
		return "", err
	}

	local := now.In(user.Location(s.loc))
	today := StartOfDay(local)

	groups := make(map[model.ReminderKind][]model.Task)
	var done []model.Task
	for _, task := range tasks {
		if task.IsCompleted() {
			if task.Schedule.Recurs() {
				done = append(done, task)
			}
			continue
		}
		kind := Classify(task, user.Reminders, today)
		groups[kind] = append(groups[kind], task)
	}

	var builder strings.Builder
	builder.WriteString("📋 <b>Obligations</b>\n")
	builder.WriteString(fmt.Sprintf("🗓 %s\n", local.Format(model.DateLayout)))

	sections := []struct {
		kind  model.ReminderKind
		title string
	}{
		{model.ReminderOverdue, "⚠️ <b>Overdue</b>"},
		{model.ReminderDueToday, "🔥 <b>Due today</b>"},
		{model.ReminderDueSoon, "⏳ <b>Due soon</b>"},
		{model.ReminderScheduled, "🟢 <b>Later</b>"},
	}
	empty := true
	for _, sec := range sections {
		list := groups[sec.kind]
		if len(list) == 0 {
			continue
		}
		empty = false
		builder.WriteString("\n" + sec.title + "\n")
		for _, task := range list {
			builder.WriteString(FormatTask(task, catNames, today))
		}
	}
	if empty {
		builder.WriteString("\n— nothing pending\n")
	}

	if len(done) > 0 {
		builder.WriteString("\n♻️ <b>Done, next occurrence pending</b>\n")
		for _, task := range done {
			builder.WriteString(formatRecurring(task))
		}
	}

	return strings.TrimSpace(builder.String()), nil
}

// FormatTask renders one pending task as an HTML line block.
func FormatTask(task model.Task, catNames map[uint]string, today time.Time) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("#%d %s", task.ID, html.EscapeString(strings.TrimSpace(task.Title))))
	if label := categoryLabel(task.CategoryID, catNames); label != "" {
		sb.WriteString(fmt.Sprintf(" <i>(%s)</i>", html.EscapeString(label)))
	}

	due := task.DueDate.Format(model.DateLayout)
	switch days := DaysBetween(today, task.DueDate); {
	case days < 0:
		sb.WriteString(fmt.Sprintf("\n   ⏰ %s · <b>overdue %d d</b>", due, -days))
	case days == 0:
		sb.WriteString(fmt.Sprintf("\n   ⏰ %s · today", due))
	default:
		sb.WriteString(fmt.Sprintf("\n   ⏰ %s · in %d d", due, days))
	}
	if task.Schedule.Recurs() {
		sb.WriteString(fmt.Sprintf(" · ♻️ %s", task.Schedule))
	}

	if task.Description != "" {
		sb.WriteString(fmt.Sprintf("\n   📝 %s", html.EscapeString(strings.TrimSpace(task.Description))))
	}

	sb.WriteByte('\n')
	return sb.String()
}

func formatRecurring(task model.Task) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("✅ #%d %s", task.ID, html.EscapeString(strings.TrimSpace(task.Title))))
	sb.WriteString(fmt.Sprintf("\n   📆 current: %s · %s", task.DueDate.Format(model.DateLayout), task.Schedule))
	if task.CompletedAt != nil {
		sb.WriteString(fmt.Sprintf(" · done %s", task.CompletedAt.Format(model.DateLayout)))
	}
	sb.WriteByte('\n')
	return sb.String()
}

func categoryLabel(categoryID *uint, catNames map[uint]string) string {
	if categoryID == nil {
		return ""
	}
	return strings.TrimSpace(catNames[*categoryID])
}
