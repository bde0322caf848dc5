package model

import "time"

// PushSubscription holds a browser push subscription used for dispense
// receipts and low-balance notices. A user may hold several (one per device).
type PushSubscription struct {
	Endpoint  string    `gorm:"primaryKey"`
	UserID    string    `gorm:"index;size:128;not null"`
	P256DH    string    `gorm:"column:p256dh;not null"`
	Auth      string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
}
