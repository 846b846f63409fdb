package appointments

import "errors"

var (
	ErrNotFound          = errors.New("ERR_APPOINTMENT_NOT_FOUND")
	ErrNotAvailable      = errors.New("ERR_APPOINTMENT_NOT_AVAILABLE")
	ErrNoAvailableAgents = errors.New("ERR_NO_AVAILABLE_AGENTS")
	ErrInvalidAction     = errors.New("ERR_INVALID_CONFIRMATION_TYPE")

	// Guard-mismatch errors, one per consumed transition, so a stale email
	// link reports why it no longer works.
	ErrAlreadyConfirmed          = errors.New("ERR_APPOINTMENT_ALREADY_CONFIRMED")
	ErrAlreadyCancelled          = errors.New("ERR_APPOINTMENT_ALREADY_CANCELLED")
	ErrAlreadyReprogrammed       = errors.New("ERR_APPOINTMENT_ALREADY_REPROGRAMMED")
	ErrAlreadyAccepted           = errors.New("ERR_APPOINTMENT_ALREADY_ACCEPTED")
	ErrAlreadyRejected           = errors.New("ERR_APPOINTMENT_ALREADY_REJECTED")
	ErrAlreadyCancelReprogrammed = errors.New("ERR_APPOINTMENT_ALREADY_CANCEL_REPROGRAMMED")
)
