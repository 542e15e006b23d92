package dispatch

import "errors"

var (
	// ErrBookingFrozen marks a booking parked for manual review after an
	// invariant violation. The engine refuses to touch it again.
	ErrBookingFrozen = errors.New("booking frozen pending manual review")
	// ErrNotAwaitingAssignment means the booking is not in a state where a
	// new offer may be created.
	ErrNotAwaitingAssignment = errors.New("booking is not awaiting assignment")
	// ErrBookingNotConfirmed means a reassignment was requested for a
	// booking with no accepted assignment.
	ErrBookingNotConfirmed = errors.New("booking is not confirmed")
	// ErrInvalidOutcome means the response outcome is neither accept nor
	// reject.
	ErrInvalidOutcome = errors.New("invalid response outcome")
	// ErrInvariantViolation means the ledger disagreed with the one-pending
	// rule; the booking has been frozen.
	ErrInvariantViolation = errors.New("assignment invariant violation")
	// ErrInvalidTransition means a booking status update did not apply.
	ErrInvalidTransition = errors.New("invalid booking status transition")
)
