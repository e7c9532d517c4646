package model

import (
	"time"

	"gorm.io/gorm"
)

// Task is a recurring (or one-time) obligation with a single pending occurrence.
type Task struct {
	ID          uint  `gorm:"primaryKey"`
	UserID      uint  `gorm:"index"`
	HouseholdID *uint `gorm:"index"`
	CategoryID  *uint `gorm:"index"`
	Title       string
	Description string

	Schedule      Schedule `gorm:"-"`
	ScheduleKind  string   `gorm:"size:32"`
	ScheduleParam int

	DueDate         time.Time `gorm:"index"`
	CompletedAt     *time.Time
	CompletionCount int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IsCompleted reports whether the current occurrence has been marked done.
func (t Task) IsCompleted() bool {
	return t.CompletedAt != nil
}

// BeforeSave packs the schedule into its storage columns.
func (t *Task) BeforeSave(*gorm.DB) error {
	t.ScheduleKind, t.ScheduleParam = EncodeSchedule(t.Schedule)
	return nil
}

// AfterFind unpacks the storage columns into Schedule.
func (t *Task) AfterFind(*gorm.DB) error {
	t.Schedule = DecodeSchedule(t.ScheduleKind, t.ScheduleParam)
	return nil
}
