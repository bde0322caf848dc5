package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"gorm.io/gorm"

	"water-vending-backend/internal/model"
)

// Sender defines the interface for sending a web push notification.
type Sender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of Sender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// receiptPayload is the JSON delivered to the service worker after a
// successful dispense.
type receiptPayload struct {
	Title        string  `json:"title"`
	Body         string  `json:"body"`
	TxID         string  `json:"txId"`
	AmountCents  int64   `json:"amountCents"`
	BalanceCents int64   `json:"balanceCents"`
	Liters       float64 `json:"liters"`
}

// WorkerPool manages a pool of workers delivering dispense receipts.
type WorkerPool struct {
	size    int
	jobs    chan int64
	db      *gorm.DB
	webpush *webpush.Options
	sender  Sender
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, db *gorm.DB, webpushOptions *webpush.Options) *WorkerPool {
	return &WorkerPool{
		size:    size,
		jobs:    make(chan int64, size), // Buffered channel
		db:      db,
		webpush: webpushOptions,
		sender:  &WebPushSender{}, // Use the real sender by default
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

// worker is the actual worker goroutine.
func (wp *WorkerPool) worker(ctx context.Context, id int) {
	log.Printf("Receipt worker %d started", id)
	for {
		select {
		case entryID := <-wp.jobs:
			wp.sendReceipt(ctx, entryID)
		case <-ctx.Done():
			log.Printf("Receipt worker %d shutting down", id)
			return
		}
	}
}

// Dispatch queues a ledger entry for receipt delivery.
func (wp *WorkerPool) Dispatch(entryID int64) {
	wp.jobs <- entryID
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan int64 {
	return wp.jobs
}

// sendReceipt fans one ledger entry out to all of the owner's subscriptions.
func (wp *WorkerPool) sendReceipt(ctx context.Context, entryID int64) {
	var entry model.WalletTransaction
	if err := wp.db.WithContext(ctx).First(&entry, entryID).Error; err != nil {
		log.Printf("Error fetching ledger entry %d: %v", entryID, err)
		return
	}

	var subscriptions []model.PushSubscription
	err := wp.db.WithContext(ctx).
		Where("user_id = ?", entry.UserID).
		Find(&subscriptions).Error
	if err != nil {
		log.Printf("Error fetching subscriptions for user %s: %v", entry.UserID, err)
		return
	}
	if len(subscriptions) == 0 {
		return
	}

	payload, err := json.Marshal(receiptPayload{
		Title:        "Dispensado completado",
		Body:         fmt.Sprintf("%.1f L en %s", entry.Liters, entry.Location),
		TxID:         entry.TxID,
		AmountCents:  entry.AmountCents,
		BalanceCents: entry.BalanceAfterCents,
		Liters:       entry.Liters,
	})
	if err != nil {
		log.Printf("Error marshaling receipt for tx %s: %v", entry.TxID, err)
		return
	}

	log.Printf("Sending %d receipt notifications for tx %s", len(subscriptions), entry.TxID)
	for _, sub := range subscriptions {
		wp.sendNotification(ctx, sub, payload)
	}
}

// sendNotification sends a single web push notification.
func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		log.Printf("Error sending notification to %s: %v", sub.Endpoint, err)
		return
	}
	defer resp.Body.Close()

	// Handle expired subscriptions
	if resp.StatusCode == http.StatusGone {
		log.Printf("Subscription for endpoint %s is expired. Deleting.", sub.Endpoint)
		if err := wp.db.WithContext(ctx).Delete(&sub).Error; err != nil {
			log.Printf("Failed to delete expired subscription %s: %v", sub.Endpoint, err)
		}
	}
}
