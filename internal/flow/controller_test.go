package flow

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newResolveServer(t *testing.T, calls *atomic.Int64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		m := r.URL.Query().Get("m")
		if m == "007" {
			w.Write([]byte(`{"ok":true,"machineId":"007","machineLocation":"Av. Central 12"}`))
			return
		}
		w.Write([]byte(`{"ok":false,"error":"NOT_FOUND_OR_INACTIVE"}`))
	}))
}

// TestFlowResumption walks the full handoff: an unauthenticated user scans
// machine 007, gets parked behind the sign-in redirect, and a fresh watcher
// mount after authentication routes straight to dispensing without a second
// validation round trip.
func TestFlowResumption(t *testing.T) {
	var validatorCalls atomic.Int64
	server := newResolveServer(t, &validatorCalls)
	defer server.Close()

	intents := newTestIntentStore(t, 0)
	auth := &fakeAuth{signedIn: false, signInBase: "https://auth.example.com/signin"}
	controller := NewController(
		"https://agua.example.com",
		"https://agua.example.com/r",
		NewValidator(server.URL, nil),
		intents,
		auth,
	)

	// Step 1: scan before signing in.
	outcome, err := controller.Resolve(context.Background(), "https://agua.example.com/r?m=007&sig=abc&ts=1")
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingAuth, outcome.State)
	assert.Contains(t, outcome.RedirectURL, "https://auth.example.com/signin")
	assert.Contains(t, outcome.RedirectURL, "return_to=")
	assert.Equal(t, int64(1), validatorCalls.Load())

	// Step 2: auth completes, a fresh mount's watcher resumes the flow.
	auth.signedIn = true
	watcher := NewWatcher(intents, auth)
	resumed, ok, err := watcher.ResumePending(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, StateRouted, resumed.State)
	assert.True(t, resumed.FromQR)
	assert.Equal(t, "007", resumed.Machine.MachineID)
	assert.Equal(t, "Av. Central 12", resumed.Machine.DisplayLocation)

	// The stored intent was already validated; no second round trip.
	assert.Equal(t, int64(1), validatorCalls.Load())

	// The intent was consumed exactly once.
	_, ok, err = watcher.ResumePending(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestResolveSignedInRoutesDirectly(t *testing.T) {
	var calls atomic.Int64
	server := newResolveServer(t, &calls)
	defer server.Close()

	intents := newTestIntentStore(t, 0)
	controller := NewController("", "", NewValidator(server.URL, nil), intents, &fakeAuth{signedIn: true})

	outcome, err := controller.Resolve(context.Background(), "007")
	require.NoError(t, err)
	assert.Equal(t, StateRouted, outcome.State)
	assert.True(t, outcome.FromQR)
	assert.Equal(t, "007", outcome.Machine.MachineID)

	// Nothing was parked in the store.
	_, ok := intents.TakeAndClear()
	assert.False(t, ok)
}

func TestResolveErrorStates(t *testing.T) {
	var calls atomic.Int64
	server := newResolveServer(t, &calls)
	defer server.Close()

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	down.Close()

	testCases := []struct {
		name     string
		baseURL  string
		raw      string
		expected ErrorCode
	}{
		{"unparseable payload", server.URL, "", ErrorMissingParameters},
		{"unknown machine", server.URL, "999", ErrorInvalidQR},
		{"validator unreachable", down.URL, "007", ErrorNetwork},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			controller := NewController("", "", NewValidator(tc.baseURL, nil), newTestIntentStore(t, 0), &fakeAuth{signedIn: true})
			outcome, err := controller.Resolve(context.Background(), tc.raw)
			require.NoError(t, err)
			assert.Equal(t, StateError, outcome.State)
			assert.Equal(t, tc.expected, outcome.Error)
		})
	}
}

// blockingAuth parks the first WaitUntilLoaded call until released so a
// second scan can overtake the first.
type blockingAuth struct {
	fakeAuth
	entered chan struct{}
	release chan struct{}
	first   atomic.Bool
}

func (b *blockingAuth) WaitUntilLoaded(ctx context.Context) (bool, error) {
	if b.first.CompareAndSwap(false, true) {
		close(b.entered)
		<-b.release
	}
	return b.signedIn, ctx.Err()
}

func TestResolveLastRequestWins(t *testing.T) {
	var calls atomic.Int64
	server := newResolveServer(t, &calls)
	defer server.Close()

	auth := &blockingAuth{entered: make(chan struct{}), release: make(chan struct{})}
	auth.signedIn = true
	controller := NewController("", "", NewValidator(server.URL, nil), newTestIntentStore(t, 0), auth)

	var wg sync.WaitGroup
	var staleOutcome Outcome
	var staleErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		staleOutcome, staleErr = controller.Resolve(context.Background(), "007")
	}()

	// Wait for the first sequence to park on the auth suspension point.
	<-auth.entered

	// A second scan supersedes it and completes normally.
	fresh, err := controller.Resolve(context.Background(), "007")
	require.NoError(t, err)
	assert.Equal(t, StateRouted, fresh.State)

	close(auth.release)
	wg.Wait()

	assert.ErrorIs(t, staleErr, ErrSuperseded)
	assert.Equal(t, Outcome{}, staleOutcome, "a superseded sequence must not produce an outcome")
}

func TestIntentStorePathHelper(t *testing.T) {
	// DefaultIntentPath keeps per-user slots apart.
	a := filepath.Base(DefaultIntentPath("state", "user-a"))
	b := filepath.Base(DefaultIntentPath("state", "user-b"))
	assert.NotEqual(t, a, b)
}
