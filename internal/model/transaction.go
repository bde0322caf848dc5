package model

import "time"

// Wallet transaction kinds.
const (
	TxKindDispense = "dispense"
	TxKindTopUp    = "topup"
)

// WalletTransaction is one ledger entry: a dispense debit or a top-up credit.
// BalanceBeforeCents/BalanceAfterCents record the wallet around the mutation
// so the ledger is auditable without replaying it.
type WalletTransaction struct {
	ID                 int64  `gorm:"autoIncrement;primaryKey"`
	TxID               string `gorm:"uniqueIndex;size:64;not null"`
	UserID             string `gorm:"index;size:128;not null"`
	Kind               string `gorm:"size:32;not null"`
	MachineCode        string `gorm:"size:32"`
	Location           string `gorm:"size:256"`
	Liters             float64
	AmountCents        int64 `gorm:"not null"`
	BalanceBeforeCents int64 `gorm:"not null"`
	BalanceAfterCents  int64 `gorm:"not null"`
	CreatedAt          time.Time
}
