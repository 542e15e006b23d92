package incident

import (
	"context"

	incidentRepo "servly/database/repository/incident"
	"servly/models"
	"servly/services/dispatch"
	"servly/services/notification"

	"go.uber.org/zap"
)

// IncidentService accepts external incident reports and translates them into
// escalation-controller calls. Incidents live in their own lifecycle but can
// interrupt a booking's.
type IncidentService interface {
	// Report validates and stores an incident, then applies its effect on
	// the booking's assignment state.
	Report(ctx context.Context, inc *models.Incident) (*models.Incident, error)
	// GetByID retrieves an incident.
	GetByID(ctx context.Context, id string) (*models.Incident, error)
	// ListByBooking returns all incidents for a booking.
	ListByBooking(ctx context.Context, bookingID string) ([]models.Incident, error)
	// UpdateStatus lets an operator move an incident through its lifecycle.
	UpdateStatus(ctx context.Context, id, status string) error
}

// DefaultIncidentService implements IncidentService.
type DefaultIncidentService struct {
	Repo     incidentRepo.IncidentRepository
	Dispatch dispatch.Service
	Notifier notification.Notifier
	Logger   *zap.Logger
}
