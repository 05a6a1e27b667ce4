package errors

// Error is a domain error with a stable machine-readable code.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

var (
	// Validation errors, rejected synchronously and never retried.
	ErrInvalidInterval        = &Error{Code: "invalid_interval", Message: "invalid reservation interval"}
	ErrDuplicateActiveBooking = &Error{Code: "duplicate_active_booking", Message: "vehicle already has an active booking"}

	// Contention outcome, a legitimate business result rather than a fault.
	ErrNoSlotAvailable = &Error{Code: "no_slot_available", Message: "no compatible slot is free for the requested interval"}

	// State-conflict errors, the booking is not in a state that allows the transition.
	ErrCancellationWindowClosed = &Error{Code: "cancellation_window_closed", Message: "cancellation deadline has passed"}
	ErrNotCancellable           = &Error{Code: "not_cancellable", Message: "booking can no longer be cancelled"}
	ErrNotConfirmed             = &Error{Code: "not_confirmed", Message: "booking is not confirmed"}
	ErrNotActive                = &Error{Code: "not_active", Message: "booking is not active"}

	ErrBookingNotFound = &Error{Code: "booking_not_found", Message: "booking not found"}

	// ErrSlotConflict signals that a concurrent claim won the slot; the engine
	// retries against the next candidate and never surfaces it to callers.
	ErrSlotConflict = &Error{Code: "slot_conflict", Message: "slot was claimed concurrently"}
)
