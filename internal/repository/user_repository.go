package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"duekeeper/internal/model"
)

// UserRepository handles CRUD for users and their reminder preferences.
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// UpsertFromTelegram finds or creates a user based on TelegramID and updates basic profile info.
// New users get default reminder preferences with the Telegram channel switched on.
func (r *UserRepository) UpsertFromTelegram(ctx context.Context, telegramID int64, firstName, lastName, username string) (*model.User, error) {
	var user model.User
	db := r.db.WithContext(ctx)
	err := db.Where("telegram_id = ?", telegramID).First(&user).Error
	switch {
	case err == nil:
		updates := map[string]interface{}{
			"first_name": firstName,
			"last_name":  lastName,
			"username":   username,
		}
		if err := db.Model(&user).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("update user: %w", err)
		}
		return &user, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		user = model.User{
			TelegramID:        &telegramID,
			FirstName:         firstName,
			LastName:          lastName,
			Username:          username,
			RemindersEntitled: true,
			Reminders:         model.DefaultReminderPreferences(),
			Channels:          model.ChannelSet{Telegram: true},
		}
		if err := db.Create(&user).Error; err != nil {
			return nil, fmt.Errorf("create user: %w", err)
		}
		return &user, nil
	default:
		return nil, fmt.Errorf("find user: %w", err)
	}
}

func (r *UserRepository) FindByTelegramID(ctx context.Context, telegramID int64) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where("telegram_id = ?", telegramID).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) ListAll(ctx context.Context) ([]model.User, error) {
	var users []model.User
	if err := r.db.WithContext(ctx).Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// ListReminderEligible returns users who are entitled to reminders and have them switched on.
// Channel availability is checked by the dispatcher.
func (r *UserRepository) ListReminderEligible(ctx context.Context) ([]model.User, error) {
	var users []model.User
	if err := r.db.WithContext(ctx).
		Where("reminders_entitled = ? AND reminder_enabled = ?", true, true).
		Order("id ASC").
		Find(&users).Error; err != nil {
		return nil, fmt.Errorf("list eligible users: %w", err)
	}
	return users, nil
}

// UpdateReminders replaces the user's reminder preferences.
func (r *UserRepository) UpdateReminders(ctx context.Context, user *model.User, prefs model.ReminderPreferences) error {
	if err := prefs.Validate(); err != nil {
		return err
	}
	updates := map[string]interface{}{
		"reminder_enabled":         prefs.Enabled,
		"reminder_hour":            prefs.Hour,
		"reminder_minute":          prefs.Minute,
		"reminder_days_before":     prefs.DaysBefore,
		"reminder_overdue_enabled": prefs.OverdueEnabled,
	}
	if err := r.db.WithContext(ctx).Model(user).Updates(updates).Error; err != nil {
		return fmt.Errorf("update reminders: %w", err)
	}
	user.Reminders = prefs
	return nil
}

// SetHousehold moves the user into household, or out of any household when it is nil.
func (r *UserRepository) SetHousehold(ctx context.Context, user *model.User, household *uint) error {
	if err := r.db.WithContext(ctx).Model(user).Update("household_id", household).Error; err != nil {
		return fmt.Errorf("set household: %w", err)
	}
	user.HouseholdID = household
	return nil
}
