package flow

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// PendingIntent is the durable note-to-self that lets the dispense flow
// resume after the authentication detour: "the user scanned this machine
// before signing in".
type PendingIntent struct {
	MachineID       string    `json:"machineId"`
	DisplayLocation string    `json:"displayLocation"`
	CreatedAt       time.Time `json:"createdAt"`
}

// IntentStore is a durable single-slot store for exactly one pending
// dispense intent. It must survive a full navigation away to the external
// auth domain and back.
type IntentStore interface {
	// Save overwrites any existing intent unconditionally.
	Save(intent PendingIntent) error
	// TakeAndClear atomically reads and deletes the stored intent. A second
	// call immediately after returns ok=false. A corrupt or expired blob is
	// treated as absent and cleared.
	TakeAndClear() (PendingIntent, bool)
}

// FileIntentStore keeps the intent as one JSON blob in a file, the
// equivalent of the single localStorage key a browser client would use.
// All operations share one mutex, so a Save racing a TakeAndClear resolves
// to exactly one of the two values.
type FileIntentStore struct {
	mu   sync.Mutex
	path string
	ttl  time.Duration // zero disables expiry
}

// NewFileIntentStore creates a store backed by the given file path. ttl of
// zero means intents never expire.
func NewFileIntentStore(path string, ttl time.Duration) *FileIntentStore {
	return &FileIntentStore{path: path, ttl: ttl}
}

// DefaultIntentPath returns the conventional slot path for one user's
// pending intent under dir. Hashing the user id keeps arbitrary provider
// subjects out of filenames.
func DefaultIntentPath(dir, userID string) string {
	sum := sha256.Sum256([]byte(userID))
	return filepath.Join(dir, "intent-"+hex.EncodeToString(sum[:8])+".json")
}

// Save overwrites any existing intent. Last write wins.
func (s *FileIntentStore) Save(intent PendingIntent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(intent)
	if err != nil {
		return fmt.Errorf("failed to encode pending intent: %w", err)
	}

	// Write-then-rename so a crash mid-write never leaves a torn blob.
	tmp := s.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create intent directory: %w", err)
	}
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write pending intent: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to commit pending intent: %w", err)
	}
	return nil
}

// TakeAndClear consumes the stored intent, if any.
func (s *FileIntentStore) TakeAndClear() (PendingIntent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		return PendingIntent{}, false
	}

	if err := os.Remove(s.path); err != nil {
		log.Printf("Warning: failed to clear pending intent: %v", err)
	}

	var intent PendingIntent
	if err := json.Unmarshal(data, &intent); err != nil {
		log.Printf("Discarding corrupt pending intent: %v", err)
		return PendingIntent{}, false
	}
	if intent.MachineID == "" {
		return PendingIntent{}, false
	}

	if s.ttl > 0 && time.Since(intent.CreatedAt) > s.ttl {
		return PendingIntent{}, false
	}

	return intent, true
}
