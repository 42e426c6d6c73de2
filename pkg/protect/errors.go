package protect

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors for the individual pipeline stages. Stage code wraps
// failures with one of these so the orchestrator can classify them without
// string matching.
var (
	// ErrSessionLaunch indicates the headless browser failed to start or
	// a page/context could not be created.
	ErrSessionLaunch = errors.New("browser session launch failed")

	// ErrAuthentication indicates missing credentials, an unreachable
	// login form, or credentials the controller rejected.
	ErrAuthentication = errors.New("controller authentication failed")

	// ErrNotFound indicates the event/device combination yields no
	// playable clip (expired retention, wrong device name).
	ErrNotFound = errors.New("event video not found")

	// ErrTimeout indicates a page never reached its expected state within
	// the configured timeout budget.
	ErrTimeout = errors.New("timed out waiting for page state")
)

// Kind is the failure classification carried by RetrievalError.
type Kind string

const (
	KindSession        Kind = "session"
	KindAuthentication Kind = "authentication"
	KindNotFound       Kind = "not_found"
	KindTimeout        Kind = "timeout"
	KindInternal       Kind = "internal"
)

// RetrievalError is the single error type surfaced by RetrieveVideo. It
// wraps the underlying stage error with a classification kind and the name
// of the stage that failed. Messages identify the stage but never contain
// credential values.
type RetrievalError struct {
	Kind  Kind
	Stage string
	Err   error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("video retrieval failed at %s stage (%s): %v", e.Stage, e.Kind, e.Err)
}

func (e *RetrievalError) Unwrap() error {
	return e.Err
}

// classify wraps a stage error into a RetrievalError, mapping the stage
// sentinels onto kinds. Context deadline expiry counts as a timeout;
// anything unrecognized is internal.
func classify(stage string, err error) *RetrievalError {
	kind := KindInternal
	switch {
	case errors.Is(err, ErrSessionLaunch):
		kind = KindSession
	case errors.Is(err, ErrAuthentication):
		kind = KindAuthentication
	case errors.Is(err, ErrNotFound):
		kind = KindNotFound
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		kind = KindTimeout
	}
	return &RetrievalError{Kind: kind, Stage: stage, Err: err}
}
