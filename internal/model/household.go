package model

import "time"

// Household groups users who see each other's shared tasks. Joining needs the
// invite code, which only the owner is shown.
type Household struct {
	ID         uint   `gorm:"primaryKey"`
	OwnerID    uint   `gorm:"index"`
	InviteCode string `gorm:"uniqueIndex;size:36"`
	CreatedAt  time.Time
}
