package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"duekeeper/internal/model"
)

// HouseholdRepository manages households and membership.
type HouseholdRepository struct {
	db *gorm.DB
}

func NewHouseholdRepository(db *gorm.DB) *HouseholdRepository {
	return &HouseholdRepository{db: db}
}

// Create makes a household owned by owner with a fresh invite code and moves
// the owner into it.
func (r *HouseholdRepository) Create(ctx context.Context, owner *model.User) (*model.Household, error) {
	household := model.Household{OwnerID: owner.ID, InviteCode: uuid.NewString()}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&household).Error; err != nil {
			return err
		}
		return tx.Model(owner).Update("household_id", household.ID).Error
	})
	if err != nil {
		return nil, fmt.Errorf("create household: %w", err)
	}
	owner.HouseholdID = &household.ID
	return &household, nil
}

// Join moves user into the household holding code. An unknown code returns
// gorm.ErrRecordNotFound.
func (r *HouseholdRepository) Join(ctx context.Context, user *model.User, code string) (*model.Household, error) {
	var household model.Household
	db := r.db.WithContext(ctx)
	if err := db.Where("invite_code = ?", strings.TrimSpace(code)).First(&household).Error; err != nil {
		return nil, err
	}
	if err := db.Model(user).Update("household_id", household.ID).Error; err != nil {
		return nil, fmt.Errorf("join household: %w", err)
	}
	user.HouseholdID = &household.ID
	return &household, nil
}

func (r *HouseholdRepository) FindByID(ctx context.Context, id uint) (*model.Household, error) {
	var household model.Household
	if err := r.db.WithContext(ctx).First(&household, id).Error; err != nil {
		return nil, err
	}
	return &household, nil
}
