package assignmentRepo

import (
	"context"
	"time"

	"servly/models"
)

// AssignmentRepository is the assignment ledger: one row per offer, rows are
// never deleted. Status changes go through a conditional transition so that
// a provider response and a deadline expiry racing for the same row resolve
// to exactly one winner.
type AssignmentRepository interface {
	// Create inserts a new assignment row.
	Create(ctx context.Context, a *models.Assignment) error
	// GetByID retrieves an assignment by its unique ID.
	GetByID(ctx context.Context, id string) (*models.Assignment, error)
	// ListByBooking returns every assignment for a booking, ordered by rank.
	ListByBooking(ctx context.Context, bookingID string) ([]models.Assignment, error)
	// GetPending returns the single pending assignment for a booking, or nil.
	GetPending(ctx context.Context, bookingID string) (*models.Assignment, error)
	// CountPending counts pending rows for a booking (reconciliation check).
	CountPending(ctx context.Context, bookingID string) (int64, error)
	// TransitionStatus atomically moves an assignment from one status to
	// another. It returns the row after the attempt and whether this caller
	// won the transition. A lost race is not an error.
	TransitionStatus(ctx context.Context, id, from, to string, at time.Time, reason string) (*models.Assignment, bool, error)
	// ListExpiredPending returns pending rows whose deadline has passed.
	ListExpiredPending(ctx context.Context, now time.Time) ([]models.Assignment, error)
}
