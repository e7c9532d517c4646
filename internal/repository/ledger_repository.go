package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"duekeeper/internal/model"
)

// LedgerRepository is the SQL reminder ledger. The unique index on
// (task_id, kind, due_date) decides which of two racing writers wins.
type LedgerRepository struct {
	db *gorm.DB
}

func NewLedgerRepository(db *gorm.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

func (r *LedgerRepository) Delivered(ctx context.Context, key model.LedgerKey) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.LedgerEntry{}).
		Where("task_id = ? AND kind = ? AND due_date = ?", key.TaskID, string(key.Kind), key.Snapshot()).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("check ledger: %w", err)
	}
	return count > 0, nil
}

// Record appends an entry. It reports false, without error, when an entry for
// the key already exists.
func (r *LedgerRepository) Record(ctx context.Context, key model.LedgerKey, deliveredAt time.Time) (bool, error) {
	entry := model.LedgerEntry{
		TaskID:      key.TaskID,
		Kind:        string(key.Kind),
		DueDate:     key.Snapshot(),
		DeliveredAt: deliveredAt,
	}
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&entry)
	if res.Error != nil {
		return false, fmt.Errorf("record ledger: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *LedgerRepository) ListForTask(ctx context.Context, taskID uint) ([]model.LedgerEntry, error) {
	var entries []model.LedgerEntry
	if err := r.db.WithContext(ctx).Where("task_id = ?", taskID).Order("id ASC").Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("list ledger: %w", err)
	}
	return entries, nil
}
