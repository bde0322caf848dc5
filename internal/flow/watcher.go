package flow

import "context"

// Watcher resumes a dispense flow interrupted by the authentication
// detour. It runs once per application mount, on whatever page the hosted
// auth provider landed the user.
type Watcher struct {
	intents IntentStore
	auth    Authenticator
}

// NewWatcher creates a watcher over the shared intent store.
func NewWatcher(intents IntentStore, auth Authenticator) *Watcher {
	return &Watcher{intents: intents, auth: auth}
}

// ResumePending consumes a stored intent and routes straight to the
// dispense stage. The machine was validated before the intent was stored,
// so no second validation round trip happens here. The store's atomic
// take-and-clear guarantees at-most-once consumption even when several
// mounts race.
func (w *Watcher) ResumePending(ctx context.Context) (Outcome, bool, error) {
	signedIn, err := w.auth.WaitUntilLoaded(ctx)
	if err != nil {
		return Outcome{}, false, err
	}
	if !signedIn {
		return Outcome{}, false, nil
	}

	intent, ok := w.intents.TakeAndClear()
	if !ok {
		return Outcome{}, false, nil
	}

	return Outcome{
		State: StateRouted,
		Machine: &VerifiedMachine{
			MachineID:       intent.MachineID,
			DisplayLocation: intent.DisplayLocation,
		},
		FromQR: true,
	}, true, nil
}
