package model

import "time"

// Machine states as stored in the database.
const (
	MachineStatusActive      = "active"
	MachineStatusMaintenance = "maintenance"
	MachineStatusRetired     = "retired"
)

// Machine represents a deployed water-vending kiosk.
type Machine struct {
	ID          int64   `gorm:"primaryKey"`
	Code        string  `gorm:"uniqueIndex;size:32;not null"` // Identifier printed in the kiosk QR
	Location    string  `gorm:"size:256;not null"`
	Status      string  `gorm:"size:32;not null;default:active"`
	FlowRateLpm float64 `gorm:"not null;default:0"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Dispensable reports whether the machine may serve a dispense request.
func (m *Machine) Dispensable() bool {
	return m.Status == MachineStatusActive
}
