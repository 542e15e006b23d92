package bookingRepo

import (
	"context"

	"servly/models"
)

// BookingRepository defines methods for booking data access. Status updates
// are conditional on the expected prior status so that an unexpected current
// state surfaces as a lost update instead of being overwritten.
type BookingRepository interface {
	// Create inserts a new booking record.
	Create(ctx context.Context, b *models.Booking) error
	// GetByID retrieves a booking by its ID.
	GetByID(ctx context.Context, id string) (*models.Booking, error)
	// UpdateStatus moves a booking from one status to another; returns
	// whether the update applied.
	UpdateStatus(ctx context.Context, id, from, to string) (bool, error)
	// SetProvider records the provider that won the booking.
	SetProvider(ctx context.Context, id, providerID string) error
	// MarkUrgent flags a booking so subsequent offers use the shortened
	// response window.
	MarkUrgent(ctx context.Context, id string) error
	// ListByStatus returns all bookings currently in a status. Used by the
	// recovery sweep to re-kick stalled escalation rounds.
	ListByStatus(ctx context.Context, status string) ([]models.Booking, error)
	// Freeze forces a booking into the frozen state regardless of its
	// current status. Used on invariant violations only.
	Freeze(ctx context.Context, id string) error
}
