package flow

import (
	"context"
	"errors"
	"log"
	"sync/atomic"
	"time"

	"water-vending-backend/internal/qr"
)

// State is a stage of one QR resolution sequence.
type State string

const (
	StateChecking     State = "checking"
	StateValidated    State = "validated"
	StateAwaitingAuth State = "awaiting_auth"
	StateRouted       State = "routed"
	StateError        State = "error"
)

// ErrorCode classifies terminal resolution failures. Each maps to an
// actionable next step for the user (rescan, retry, or nothing).
type ErrorCode string

const (
	ErrorMissingParameters ErrorCode = "missing_parameters"
	ErrorInvalidQR         ErrorCode = "invalid_qr"
	ErrorNetwork           ErrorCode = "network"
)

// ErrSuperseded is returned when a newer scan started while this resolution
// was in flight. The stale sequence must not apply its outcome.
var ErrSuperseded = errors.New("resolution superseded by a newer scan")

// Outcome is the terminal result of one resolution sequence.
type Outcome struct {
	State       State
	Machine     *VerifiedMachine // set when State is routed
	FromQR      bool
	RedirectURL string    // set when State is awaiting_auth
	Error       ErrorCode // set when State is error
}

// Controller orchestrates parse → validate → auth check → route for one
// scanned or typed machine reference. It owns the pending-intent handoff
// around the external authentication boundary.
type Controller struct {
	origin    string
	returnURL string
	validator *Validator
	intents   IntentStore
	auth      Authenticator

	gen atomic.Uint64
}

// NewController wires a controller. origin resolves root-relative QR
// payloads; returnURL is where the hosted sign-in should land the user
// afterwards (the resolver page).
func NewController(origin, returnURL string, validator *Validator, intents IntentStore, auth Authenticator) *Controller {
	return &Controller{
		origin:    origin,
		returnURL: returnURL,
		validator: validator,
		intents:   intents,
		auth:      auth,
	}
}

// Resolve runs one full resolution sequence for a raw payload. Each call
// supersedes any sequence still in flight: the newest scan wins and stale
// sequences finish with ErrSuperseded instead of an outcome.
func (c *Controller) Resolve(ctx context.Context, raw string) (Outcome, error) {
	myGen := c.gen.Add(1)

	// Checking
	ref := qr.Parse(raw, c.origin)
	if !ref.Valid() {
		return Outcome{State: StateError, Error: ErrorMissingParameters}, nil
	}

	machine, err := c.validator.Validate(ctx, ref)
	if err != nil {
		if c.gen.Load() != myGen {
			return Outcome{}, ErrSuperseded
		}
		return Outcome{State: StateError, Error: classifyValidation(err)}, nil
	}
	if c.gen.Load() != myGen {
		return Outcome{}, ErrSuperseded
	}

	// Validated; auth status may still be loading. This is a suspension
	// point, not a failure.
	signedIn, err := c.auth.WaitUntilLoaded(ctx)
	if err != nil {
		return Outcome{}, err
	}
	if c.gen.Load() != myGen {
		return Outcome{}, ErrSuperseded
	}

	if !signedIn {
		intent := PendingIntent{
			MachineID:       machine.MachineID,
			DisplayLocation: machine.DisplayLocation,
			CreatedAt:       time.Now(),
		}
		if err := c.intents.Save(intent); err != nil {
			// The redirect is still worth taking; the user just loses the
			// automatic resume and will rescan.
			log.Printf("Failed to persist pending intent for machine %s: %v", machine.MachineID, err)
		}
		return Outcome{
			State:       StateAwaitingAuth,
			Machine:     machine,
			RedirectURL: c.auth.SignInURL(c.returnURL),
		}, nil
	}

	return Outcome{State: StateRouted, Machine: machine, FromQR: true}, nil
}

func classifyValidation(err error) ErrorCode {
	var verr *ValidationError
	if !errors.As(err, &verr) {
		return ErrorNetwork
	}
	switch verr.Code {
	case CodeMissingParameters:
		return ErrorMissingParameters
	case CodeNetworkError:
		return ErrorNetwork
	default:
		return ErrorInvalidQR
	}
}
