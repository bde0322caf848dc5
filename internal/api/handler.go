package api

import (
	"time"

	"water-vending-backend/config"
	"water-vending-backend/internal/store"
)

// ReceiptDispatcher accepts ledger entry ids for asynchronous receipt
// delivery. Satisfied by notification.WorkerPool.
type ReceiptDispatcher interface {
	Dispatch(entryID int64)
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store    store.Store
	cfg      *config.Config
	receipts ReceiptDispatcher
	idem     *idempotencyGuard
}

// NewHandler creates a new API handler. receipts may be nil when receipt
// notifications are disabled.
func NewHandler(s store.Store, cfg *config.Config, receipts ReceiptDispatcher) *Handler {
	ttl := time.Duration(cfg.Dispense.IdempotencyTTLSeconds) * time.Second
	return &Handler{
		store:    s,
		cfg:      cfg,
		receipts: receipts,
		idem:     newIdempotencyGuard(ttl),
	}
}
