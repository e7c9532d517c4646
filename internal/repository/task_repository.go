package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"duekeeper/internal/model"
)

// TaskRepository handles CRUD for obligations.
type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) Create(ctx context.Context, task *model.Task) error {
	if err := r.db.WithContext(ctx).Create(task).Error; err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

// visibleTo limits a query to tasks the user owns or shares through a household.
func visibleTo(db *gorm.DB, user model.User) *gorm.DB {
	if user.HouseholdID != nil {
		return db.Where("user_id = ? OR household_id = ?", user.ID, *user.HouseholdID)
	}
	return db.Where("user_id = ?", user.ID)
}

// ListForUser returns every task visible to the user, soonest due first.
func (r *TaskRepository) ListForUser(ctx context.Context, user model.User) ([]model.Task, error) {
	var tasks []model.Task
	if err := visibleTo(r.db.WithContext(ctx), user).
		Order("due_date ASC, id ASC").
		Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

func (r *TaskRepository) FindForUser(ctx context.Context, user model.User, taskID uint) (*model.Task, error) {
	var task model.Task
	if err := visibleTo(r.db.WithContext(ctx), user).Where("id = ?", taskID).First(&task).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

// MarkCompleted records completion of the current occurrence. It reports false
// when the occurrence was already completed.
func (r *TaskRepository) MarkCompleted(ctx context.Context, task *model.Task, completedAt time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Task{}).
		Where("id = ? AND completed_at IS NULL", task.ID).
		UpdateColumns(map[string]interface{}{
			"completed_at":     completedAt,
			"completion_count": gorm.Expr("completion_count + 1"),
			"updated_at":       time.Now(),
		})
	if res.Error != nil {
		return false, fmt.Errorf("complete task: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	task.CompletedAt = &completedAt
	task.CompletionCount++
	return true, nil
}

// SaveRollover writes an advanced occurrence back. Due date and completion are
// changed in one statement, and only while the row is still completed, so a
// second reader racing the same rollover becomes a no-op.
func (r *TaskRepository) SaveRollover(ctx context.Context, task model.Task) error {
	if task.CompletedAt != nil {
		return fmt.Errorf("save rollover: task %d is still completed", task.ID)
	}
	err := r.db.WithContext(ctx).Model(&model.Task{}).
		Where("id = ? AND completed_at IS NOT NULL", task.ID).
		UpdateColumns(map[string]interface{}{
			"due_date":     task.DueDate,
			"completed_at": nil,
			"updated_at":   time.Now(),
		}).Error
	if err != nil {
		return fmt.Errorf("save rollover: %w", err)
	}
	return nil
}

// Reschedule moves the due date of the current occurrence. The ledger treats
// the new date as a fresh occurrence.
func (r *TaskRepository) Reschedule(ctx context.Context, task *model.Task, dueDate time.Time) error {
	err := r.db.WithContext(ctx).Model(&model.Task{}).
		Where("id = ?", task.ID).
		UpdateColumns(map[string]interface{}{
			"due_date":   dueDate,
			"updated_at": time.Now(),
		}).Error
	if err != nil {
		return fmt.Errorf("reschedule task: %w", err)
	}
	task.DueDate = dueDate
	return nil
}

// SetHousehold shares the task with household, or makes it private again when nil.
func (r *TaskRepository) SetHousehold(ctx context.Context, task *model.Task, household *uint) error {
	err := r.db.WithContext(ctx).Model(&model.Task{}).
		Where("id = ?", task.ID).
		UpdateColumns(map[string]interface{}{
			"household_id": household,
			"updated_at":   time.Now(),
		}).Error
	if err != nil {
		return fmt.Errorf("share task: %w", err)
	}
	task.HouseholdID = household
	return nil
}

// Delete removes a task owned by the user, regardless of it being recurring or not.
// Household members cannot delete each other's shared tasks.
func (r *TaskRepository) Delete(ctx context.Context, user model.User, taskID uint) error {
	res := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", taskID, user.ID).Delete(&model.Task{})
	if res.Error != nil {
		return fmt.Errorf("delete task: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
