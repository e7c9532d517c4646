package model

import (
	"fmt"
	"time"
)

// ReminderKind is the urgency class of a reminder.
type ReminderKind string

const (
	ReminderOverdue   ReminderKind = "overdue"
	ReminderDueToday  ReminderKind = "due-today"
	ReminderDueSoon   ReminderKind = "due-soon"
	ReminderScheduled ReminderKind = "scheduled"
)

// DateLayout is the calendar-date form used for due-date snapshots.
const DateLayout = "2006-01-02"

// LedgerKey identifies one reminder for one occurrence of a task.
type LedgerKey struct {
	TaskID  uint
	Kind    ReminderKind
	DueDate time.Time
}

// Snapshot is the calendar date of the due date the reminder was computed against.
func (k LedgerKey) Snapshot() string {
	return k.DueDate.Format(DateLayout)
}

func (k LedgerKey) String() string {
	return fmt.Sprintf("%d:%s:%s", k.TaskID, k.Kind, k.Snapshot())
}

// LedgerEntry records that a reminder was delivered. Rows are append-only;
// the unique index makes the first writer win.
type LedgerEntry struct {
	ID          uint   `gorm:"primaryKey"`
	TaskID      uint   `gorm:"uniqueIndex:idx_ledger_occurrence"`
	Kind        string `gorm:"uniqueIndex:idx_ledger_occurrence;size:16"`
	DueDate     string `gorm:"uniqueIndex:idx_ledger_occurrence;size:10"`
	DeliveredAt time.Time
	CreatedAt   time.Time
}
