package session

import "errors"

// Errors surfaced synchronously to the calling participant.
// Signaling-specific errors (negotiation timeout, out-of-sequence
// messages) live in pkg/signal next to the state machine.
var (
	// ErrValidation indicates a malformed or empty payload.
	ErrValidation = errors.New("invalid request payload")

	// ErrPresenterConflict indicates the presenter slot is already held
	// by another participant.
	ErrPresenterConflict = errors.New("another participant is presenting")

	// ErrNotPresenter indicates the caller does not hold the presenter slot.
	ErrNotPresenter = errors.New("participant is not the presenter")

	// ErrNotFound indicates an unknown participant id.
	ErrNotFound = errors.New("unknown participant")

	// ErrUnavailable indicates the capture subsystem is not producing frames.
	ErrUnavailable = errors.New("capture source unavailable")
)
