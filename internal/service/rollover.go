package service

import (
	"fmt"
	"time"

	"duekeeper/internal/model"
)

// AdvanceIfNeeded moves a completed recurring task to its next occurrence once
// its due date has fully elapsed. It is a pure transform: the returned task
// either equals the input or has DueDate advanced and CompletedAt cleared
// together. changed reports which.
//
// Pending tasks are never moved, however overdue. Completed FixedDate tasks are
// terminal. A task whose schedule cannot be evaluated is returned unchanged
// with the error.
func AdvanceIfNeeded(task model.Task, today time.Time) (advanced model.Task, changed bool, err error) {
	if task.CompletedAt == nil {
		return task, false, nil
	}
	if err := task.Schedule.Validate(); err != nil {
		return task, false, fmt.Errorf("task %d: %w", task.ID, err)
	}
	if !task.Schedule.Recurs() {
		return task, false, nil
	}
	if DaysBetween(task.DueDate, today) <= 0 {
		// Still inside the completed grace period.
		return task, false, nil
	}

	next, err := NextDueDate(task.Schedule, task.DueDate, today)
	if err != nil {
		return task, false, fmt.Errorf("task %d: %w", task.ID, err)
	}

	advanced = task
	advanced.DueDate = next
	advanced.CompletedAt = nil
	return advanced, true, nil
}
