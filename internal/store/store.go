package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"water-vending-backend/internal/model"
)

// ErrWalletNotFound is returned when a debit targets a user without a wallet.
var ErrWalletNotFound = errors.New("wallet not found")

// InsufficientFundsError is the expected business outcome of a debit against
// a wallet that cannot cover the amount. It carries the balance so the
// caller can report the exact shortfall.
type InsufficientFundsError struct {
	BalanceCents int64
	AmountCents  int64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: balance=%d amount=%d", e.BalanceCents, e.AmountCents)
}

// DispenseDebit describes one balance-checked dispense debit.
type DispenseDebit struct {
	MachineCode string
	Location    string
	Liters      float64
	AmountCents int64
}

// Store defines the interface for all database operations.
type Store interface {
	DB() *gorm.DB
	MachineByCode(ctx context.Context, code string) (*model.Machine, error)
	WalletByUser(ctx context.Context, userID string) (*model.Wallet, error)
	DebitWallet(ctx context.Context, userID string, debit DispenseDebit) (*model.WalletTransaction, error)
	CreditWallet(ctx context.Context, userID string, amountCents int64) (*model.WalletTransaction, error)
	TransactionsByUser(ctx context.Context, userID string, limit int) ([]model.WalletTransaction, error)
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) DB() *gorm.DB {
	return s.db
}

// MachineByCode looks up a machine by the identifier embedded in its QR.
func (s *gormStore) MachineByCode(ctx context.Context, code string) (*model.Machine, error) {
	var machine model.Machine
	if err := s.db.WithContext(ctx).First(&machine, "code = ?", code).Error; err != nil {
		return nil, err
	}
	return &machine, nil
}

// WalletByUser fetches the user's wallet, creating an empty one on first
// contact so new accounts always have a balance of zero rather than an error.
func (s *gormStore) WalletByUser(ctx context.Context, userID string) (*model.Wallet, error) {
	var wallet model.Wallet
	err := s.db.WithContext(ctx).
		Where(model.Wallet{UserID: userID}).
		FirstOrCreate(&wallet).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch wallet for user %s: %w", userID, err)
	}
	return &wallet, nil
}

// DebitWallet performs one balance-checked debit and records the ledger
// entry, all in a single transaction. The balance check and the decrement
// are one conditional UPDATE so concurrent dispense requests cannot drive
// the balance negative.
func (s *gormStore) DebitWallet(ctx context.Context, userID string, debit DispenseDebit) (*model.WalletTransaction, error) {
	if debit.AmountCents <= 0 {
		return nil, fmt.Errorf("debit amount must be positive, got %d", debit.AmountCents)
	}

	var entry *model.WalletTransaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Wallet{}).
			Where("user_id = ? AND balance_cents >= ?", userID, debit.AmountCents).
			Update("balance_cents", gorm.Expr("balance_cents - ?", debit.AmountCents))
		if res.Error != nil {
			return fmt.Errorf("failed to debit wallet for user %s: %w", userID, res.Error)
		}

		if res.RowsAffected == 0 {
			var wallet model.Wallet
			if err := tx.First(&wallet, "user_id = ?", userID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrWalletNotFound
				}
				return err
			}
			return &InsufficientFundsError{
				BalanceCents: wallet.BalanceCents,
				AmountCents:  debit.AmountCents,
			}
		}

		var wallet model.Wallet
		if err := tx.First(&wallet, "user_id = ?", userID).Error; err != nil {
			return fmt.Errorf("failed to re-read wallet for user %s: %w", userID, err)
		}

		entry = &model.WalletTransaction{
			TxID:               uuid.NewString(),
			UserID:             userID,
			Kind:               model.TxKindDispense,
			MachineCode:        debit.MachineCode,
			Location:           debit.Location,
			Liters:             debit.Liters,
			AmountCents:        debit.AmountCents,
			BalanceBeforeCents: wallet.BalanceCents + debit.AmountCents,
			BalanceAfterCents:  wallet.BalanceCents,
		}
		if err := tx.Create(entry).Error; err != nil {
			return fmt.Errorf("failed to record dispense transaction: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// CreditWallet tops up the user's wallet and records the ledger entry.
func (s *gormStore) CreditWallet(ctx context.Context, userID string, amountCents int64) (*model.WalletTransaction, error) {
	if amountCents <= 0 {
		return nil, fmt.Errorf("credit amount must be positive, got %d", amountCents)
	}

	var entry *model.WalletTransaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var wallet model.Wallet
		if err := tx.Where(model.Wallet{UserID: userID}).FirstOrCreate(&wallet).Error; err != nil {
			return fmt.Errorf("failed to fetch wallet for user %s: %w", userID, err)
		}

		before := wallet.BalanceCents
		wallet.BalanceCents += amountCents
		if err := tx.Save(&wallet).Error; err != nil {
			return fmt.Errorf("failed to credit wallet for user %s: %w", userID, err)
		}

		entry = &model.WalletTransaction{
			TxID:               uuid.NewString(),
			UserID:             userID,
			Kind:               model.TxKindTopUp,
			AmountCents:        amountCents,
			BalanceBeforeCents: before,
			BalanceAfterCents:  wallet.BalanceCents,
		}
		if err := tx.Create(entry).Error; err != nil {
			return fmt.Errorf("failed to record topup transaction: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// TransactionsByUser returns the user's most recent ledger entries.
func (s *gormStore) TransactionsByUser(ctx context.Context, userID string, limit int) ([]model.WalletTransaction, error) {
	if limit <= 0 {
		limit = 50
	}
	var entries []model.WalletTransaction
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions for user %s: %w", userID, err)
	}
	return entries, nil
}
