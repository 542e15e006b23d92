package dispatch

import (
	"context"
	"time"

	assignmentRepo "servly/database/repository/assignment"
	bookingRepo "servly/database/repository/booking"
	"servly/models"
	"servly/services/notification"

	"go.uber.org/zap"
)

// Provider response outcomes.
const (
	OutcomeAccept = "accept"
	OutcomeReject = "reject"
)

// Service is the escalation controller: it owns every booking status
// transition and the assignment ledger, offering a booking to ranked
// candidates one at a time until one accepts or the list runs out.
type Service interface {
	// SubmitBooking registers a booking and starts its first escalation
	// round. Candidate exhaustion is not an error to the caller.
	SubmitBooking(ctx context.Context, b *models.Booking) (*models.Booking, error)
	// RequestAssignment offers the booking to the next untried candidate,
	// or marks it unassignable and raises an operator alert.
	RequestAssignment(ctx context.Context, bookingID string) error
	// RecordResponse applies a provider's accept/reject. Idempotent and
	// race-safe against a concurrent timeout for the same assignment.
	RecordResponse(ctx context.Context, assignmentID, outcome string) error
	// RecordTimeout applies a deadline expiry, symmetric to RecordResponse.
	RecordTimeout(ctx context.Context, assignmentID string) error
	// Supersede terminates any pending offer and halts escalation; used
	// when the booking itself is withdrawn.
	Supersede(ctx context.Context, bookingID, reason string) error
	// Reassign invalidates a confirmed booking's accepted assignment after
	// a provider-caused incident and re-enters escalation with an
	// urgency-shortened window.
	Reassign(ctx context.Context, bookingID, reason string) error
	// GetBooking returns a booking's current state.
	GetBooking(ctx context.Context, bookingID string) (*models.Booking, error)
	// History returns the booking's assignment rows in escalation order.
	History(ctx context.Context, bookingID string) ([]models.Assignment, error)
	// MarkInProgress and MarkCompleted are recorded on behalf of mission
	// tracking; the engine stays the single writer of booking status.
	MarkInProgress(ctx context.Context, bookingID string) error
	MarkCompleted(ctx context.Context, bookingID string) error
}

// DeadlineTimers is the scheduler boundary the controller drives. Timers are
// best-effort; the ledger's expires_at is authoritative.
type DeadlineTimers interface {
	Arm(assignmentID string, expiresAt time.Time)
	Disarm(assignmentID string)
}

// Policy holds the response-window configuration.
type Policy struct {
	StandardWindow   time.Duration
	UrgentWindow     time.Duration
	UrgencyThreshold time.Duration
}

// Window returns the response window for a booking.
func (p Policy) Window(urgent bool) time.Duration {
	if urgent {
		return p.UrgentWindow
	}
	return p.StandardWindow
}

// DefaultDispatchService implements Service.
type DefaultDispatchService struct {
	BookingRepo bookingRepo.BookingRepository
	Ledger      assignmentRepo.AssignmentRepository
	Candidates  CandidateSource
	Deadlines   DeadlineTimers
	Notifier    notification.Notifier
	Policy      Policy
	Logger      *zap.Logger

	locks bookingLocks
	now   func() time.Time
}

// NewDispatchService wires a controller with its collaborators.
func NewDispatchService(
	bookings bookingRepo.BookingRepository,
	ledger assignmentRepo.AssignmentRepository,
	candidates CandidateSource,
	deadlines DeadlineTimers,
	notifier notification.Notifier,
	policy Policy,
	logger *zap.Logger,
) *DefaultDispatchService {
	return &DefaultDispatchService{
		BookingRepo: bookings,
		Ledger:      ledger,
		Candidates:  candidates,
		Deadlines:   deadlines,
		Notifier:    notifier,
		Policy:      policy,
		Logger:      logger,
		now:         time.Now,
	}
}
