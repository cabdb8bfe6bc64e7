package monitor

import "errors"

var (
	// ErrAlreadyRunning is returned when Start is called on a running monitor.
	// Calling start twice is a caller bug and is never downgraded to a no-op.
	ErrAlreadyRunning = errors.New("monitor is already running")

	// ErrAlreadyInitialized is returned when Init is called a second time.
	ErrAlreadyInitialized = errors.New("monitor is already initialized")

	// ErrNotInitialized is returned when Start is called before Init.
	ErrNotInitialized = errors.New("monitor is not initialized")

	// ErrDuplicateSignal is returned when opening an already-tracked signal id.
	ErrDuplicateSignal = errors.New("signal id is already tracked")

	// ErrUnknownSignal is returned when updating an untracked signal id.
	// Callers should treat this as "nothing to do", not as a fatal error.
	ErrUnknownSignal = errors.New("signal id is not tracked")

	// ErrAlertNotFound is returned when dismissing an unknown alert id.
	ErrAlertNotFound = errors.New("alert not found")

	// ErrValidation is returned for bad input to a public operation.
	ErrValidation = errors.New("validation failed")
)
