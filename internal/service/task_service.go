package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"duekeeper/internal/model"
	"duekeeper/internal/repository"
)

// TaskInput represents data required to create a task.
type TaskInput struct {
	Title       string
	Description string
	Category    string
	Schedule    model.Schedule
	DueDate     time.Time
	// Shared puts the task in the user's household.
	Shared bool
}

// TaskService wraps task-related business logic. Every read goes through
// rollover so callers never see a stale occurrence.
type TaskService struct {
	taskRepo     *repository.TaskRepository
	categoryRepo *repository.CategoryRepository
	loc          *time.Location
	log          zerolog.Logger
}

func NewTaskService(taskRepo *repository.TaskRepository, categoryRepo *repository.CategoryRepository, loc *time.Location, log zerolog.Logger) *TaskService {
	if loc == nil {
		loc = time.UTC
	}
	return &TaskService{
		taskRepo:     taskRepo,
		categoryRepo: categoryRepo,
		loc:          loc,
		log:          log.With().Str("component", "tasks").Logger(),
	}
}

func (s *TaskService) CreateTask(ctx context.Context, user *model.User, input TaskInput) (*model.Task, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, fmt.Errorf("title is required")
	}
	if err := input.Schedule.Validate(); err != nil {
		return nil, err
	}
	if input.DueDate.IsZero() {
		return nil, fmt.Errorf("due date is required")
	}

	var categoryID *uint
	if input.Category != "" {
		category, err := s.categoryRepo.GetOrCreate(ctx, user.ID, input.Category)
		if err != nil {
			return nil, err
		}
		if category != nil {
			categoryID = &category.ID
		}
	}

	task := model.Task{
		UserID:      user.ID,
		CategoryID:  categoryID,
		Title:       title,
		Description: strings.TrimSpace(input.Description),
		Schedule:    input.Schedule,
		DueDate:     NormalizeDueDate(input.DueDate, user.Location(s.loc)),
	}
	if input.Shared {
		if user.HouseholdID == nil {
			return nil, fmt.Errorf("user %d has no household to share with", user.ID)
		}
		task.HouseholdID = user.HouseholdID
	}

	if err := s.taskRepo.Create(ctx, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// ListTasks returns the user's tasks with rollover applied and persisted.
// A task whose schedule is broken is returned as stored.
func (s *TaskService) ListTasks(ctx context.Context, user *model.User, now time.Time) ([]model.Task, error) {
	tasks, err := s.taskRepo.ListForUser(ctx, *user)
	if err != nil {
		return nil, err
	}

	today := StartOfDay(now.In(user.Location(s.loc)))
	for i, task := range tasks {
		advanced, changed, err := AdvanceIfNeeded(task, today)
		if err != nil {
			s.log.Warn().Err(err).Uint("task", task.ID).Msg("rollover skipped")
			continue
		}
		if !changed {
			continue
		}
		if err := s.taskRepo.SaveRollover(ctx, advanced); err != nil {
			return nil, err
		}
		s.log.Debug().
			Uint("task", task.ID).
			Str("from", task.DueDate.Format(model.DateLayout)).
			Str("to", advanced.DueDate.Format(model.DateLayout)).
			Msg("rolled over")
		tasks[i] = advanced
	}
	return tasks, nil
}

func (s *TaskService) GetTask(ctx context.Context, user *model.User, taskID uint) (*model.Task, error) {
	return s.taskRepo.FindForUser(ctx, *user, taskID)
}

// CompleteTask marks the current occurrence done. Completing it twice is a no-op.
func (s *TaskService) CompleteTask(ctx context.Context, user *model.User, taskID uint, completedAt time.Time) (*model.Task, error) {
	task, err := s.taskRepo.FindForUser(ctx, *user, taskID)
	if err != nil {
		return nil, err
	}
	if task.IsCompleted() {
		return task, nil
	}
	if _, err := s.taskRepo.MarkCompleted(ctx, task, completedAt); err != nil {
		return nil, err
	}
	return task, nil
}

// RescheduleTask moves the current occurrence to a new due date.
func (s *TaskService) RescheduleTask(ctx context.Context, user *model.User, taskID uint, dueDate time.Time) (*model.Task, error) {
	task, err := s.taskRepo.FindForUser(ctx, *user, taskID)
	if err != nil {
		return nil, err
	}
	if err := s.taskRepo.Reschedule(ctx, task, NormalizeDueDate(dueDate, user.Location(s.loc))); err != nil {
		return nil, err
	}
	return task, nil
}

// ShareTask puts an owned task into the user's household. Only the owner may share.
func (s *TaskService) ShareTask(ctx context.Context, user *model.User, taskID uint) (*model.Task, error) {
	if user.HouseholdID == nil {
		return nil, fmt.Errorf("user %d has no household to share with", user.ID)
	}
	task, err := s.taskRepo.FindForUser(ctx, *user, taskID)
	if err != nil {
		return nil, err
	}
	if task.UserID != user.ID {
		return nil, fmt.Errorf("task %d belongs to another member", taskID)
	}
	if err := s.taskRepo.SetHousehold(ctx, task, user.HouseholdID); err != nil {
		return nil, err
	}
	return task, nil
}

// DeleteTask removes a task completely (for both one-time and recurring tasks).
func (s *TaskService) DeleteTask(ctx context.Context, user *model.User, taskID uint) error {
	return s.taskRepo.Delete(ctx, *user, taskID)
}
