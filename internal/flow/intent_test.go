package flow

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIntentStore(t *testing.T, ttl time.Duration) *FileIntentStore {
	t.Helper()
	return NewFileIntentStore(filepath.Join(t.TempDir(), "pending_intent.json"), ttl)
}

func TestIntentSingleConsumption(t *testing.T) {
	store := newTestIntentStore(t, 0)

	intent := PendingIntent{MachineID: "007", DisplayLocation: "Av. Central 12", CreatedAt: time.Now()}
	require.NoError(t, store.Save(intent))

	got, ok := store.TakeAndClear()
	require.True(t, ok)
	assert.Equal(t, "007", got.MachineID)
	assert.Equal(t, "Av. Central 12", got.DisplayLocation)

	// The slot is empty immediately after the first take.
	_, ok = store.TakeAndClear()
	assert.False(t, ok)
}

func TestIntentLastWriteWins(t *testing.T) {
	store := newTestIntentStore(t, 0)

	require.NoError(t, store.Save(PendingIntent{MachineID: "A", CreatedAt: time.Now()}))
	require.NoError(t, store.Save(PendingIntent{MachineID: "B", CreatedAt: time.Now()}))

	got, ok := store.TakeAndClear()
	require.True(t, ok)
	assert.Equal(t, "B", got.MachineID)
}

func TestIntentSurvivesReload(t *testing.T) {
	// A fresh store instance over the same path sees the intent, which is
	// what a full page navigation to the auth domain and back looks like.
	path := filepath.Join(t.TempDir(), "pending_intent.json")

	first := NewFileIntentStore(path, 0)
	require.NoError(t, first.Save(PendingIntent{MachineID: "007", CreatedAt: time.Now()}))

	second := NewFileIntentStore(path, 0)
	got, ok := second.TakeAndClear()
	require.True(t, ok)
	assert.Equal(t, "007", got.MachineID)
}

func TestIntentCorruptBlobTreatedAsAbsent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pending_intent.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	store := NewFileIntentStore(path, 0)
	_, ok := store.TakeAndClear()
	assert.False(t, ok)

	// The corrupt blob was cleared, not left to fail again.
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestIntentExpiryBehavesAsAbsent(t *testing.T) {
	store := newTestIntentStore(t, time.Minute)

	require.NoError(t, store.Save(PendingIntent{
		MachineID: "007",
		CreatedAt: time.Now().Add(-2 * time.Minute),
	}))

	_, ok := store.TakeAndClear()
	assert.False(t, ok)
}

func TestIntentEmptyMachineIDTreatedAsAbsent(t *testing.T) {
	store := newTestIntentStore(t, 0)
	require.NoError(t, store.Save(PendingIntent{CreatedAt: time.Now()}))

	_, ok := store.TakeAndClear()
	assert.False(t, ok)
}
