package incidentRepo

import (
	"context"
	"time"

	"servly/models"
)

// IncidentRepository defines methods for incident data access.
type IncidentRepository interface {
	// Create inserts a new incident record.
	Create(ctx context.Context, inc *models.Incident) error
	// GetByID retrieves an incident by its ID.
	GetByID(ctx context.Context, id string) (*models.Incident, error)
	// ListByBooking returns all incidents reported against a booking.
	ListByBooking(ctx context.Context, bookingID string) ([]models.Incident, error)
	// UpdateStatus moves an incident to a new status, stamping the
	// resolution time for terminal states.
	UpdateStatus(ctx context.Context, id, status string, at time.Time) error
}
