package model

import "time"

// Wallet holds a user's prepaid balance. The balance is authoritative here;
// clients only mirror it after a successful server response.
type Wallet struct {
	UserID       string `gorm:"primaryKey;size:128"`
	BalanceCents int64  `gorm:"not null;default:0"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
