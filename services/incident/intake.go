package incident

import (
	"context"
	"fmt"
	"time"

	"servly/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var validTypes = map[string]bool{
	models.IncidentProviderAbsent:         true,
	models.IncidentClientAbsent:           true,
	models.IncidentLastMinuteCancellation: true,
	models.IncidentQualityComplaint:       true,
	models.IncidentPaymentDispute:         true,
}

var validStatuses = map[string]bool{
	models.IncidentOpen:          true,
	models.IncidentInvestigating: true,
	models.IncidentResolved:      true,
	models.IncidentDismissed:     true,
}

// Report stores the incident, then maps its type onto the escalation
// controller per policy: provider-caused incidents on a confirmed booking
// trigger an immediate re-dispatch, client absence cancels the booking, and
// complaints/disputes are recorded for human review only.
func (s *DefaultIncidentService) Report(ctx context.Context, inc *models.Incident) (*models.Incident, error) {
	if inc.BookingID == "" {
		return nil, fmt.Errorf("incident must reference a booking")
	}
	if !validTypes[inc.Type] {
		return nil, fmt.Errorf("unknown incident type %q", inc.Type)
	}
	if inc.Severity == "" {
		inc.Severity = models.SeverityMedium
	}
	inc.ID = uuid.New().String()
	inc.Status = models.IncidentOpen
	inc.CreatedAt = time.Now()

	if err := s.Repo.Create(ctx, inc); err != nil {
		return nil, fmt.Errorf("failed to record incident: %w", err)
	}
	s.Logger.Info("incident reported",
		zap.String("incident_id", inc.ID),
		zap.String("booking_id", inc.BookingID),
		zap.String("type", inc.Type),
		zap.String("severity", inc.Severity))

	if inc.Severity == models.SeverityHigh || inc.Severity == models.SeverityCritical {
		s.alert(ctx, inc)
	}

	switch inc.Type {
	case models.IncidentProviderAbsent, models.IncidentLastMinuteCancellation:
		err := s.Dispatch.Reassign(ctx, inc.BookingID, inc.Type)
		if err != nil {
			// The incident stays open for an operator; the report itself
			// succeeded.
			s.Logger.Warn("incident-triggered reassignment failed",
				zap.String("incident_id", inc.ID),
				zap.String("booking_id", inc.BookingID),
				zap.Error(err))
			return inc, nil
		}
		// A successful re-dispatch resolves the triggering incident. If the
		// round exhausted instead, the incident stays open for the operator
		// the exhaustion alert already summoned.
		b, err := s.Dispatch.GetBooking(ctx, inc.BookingID)
		if err != nil || b.Status == models.BookingUnassignable {
			return inc, nil
		}
		if err := s.Repo.UpdateStatus(ctx, inc.ID, models.IncidentResolved, time.Now()); err != nil {
			s.Logger.Warn("failed to auto-resolve incident",
				zap.String("incident_id", inc.ID), zap.Error(err))
		} else {
			inc.Status = models.IncidentResolved
		}

	case models.IncidentClientAbsent:
		if err := s.Dispatch.Supersede(ctx, inc.BookingID, inc.Type); err != nil {
			s.Logger.Warn("incident-triggered cancellation failed",
				zap.String("incident_id", inc.ID),
				zap.String("booking_id", inc.BookingID),
				zap.Error(err))
		}

	case models.IncidentQualityComplaint, models.IncidentPaymentDispute:
		// Recorded against the booking; assignment state untouched.
	}

	return inc, nil
}

func (s *DefaultIncidentService) GetByID(ctx context.Context, id string) (*models.Incident, error) {
	return s.Repo.GetByID(ctx, id)
}

func (s *DefaultIncidentService) ListByBooking(ctx context.Context, bookingID string) ([]models.Incident, error) {
	return s.Repo.ListByBooking(ctx, bookingID)
}

func (s *DefaultIncidentService) UpdateStatus(ctx context.Context, id, status string) error {
	if !validStatuses[status] {
		return fmt.Errorf("unknown incident status %q", status)
	}
	return s.Repo.UpdateStatus(ctx, id, status, time.Now())
}

func (s *DefaultIncidentService) alert(ctx context.Context, inc *models.Incident) {
	err := s.Notifier.Notify(ctx, models.RecipientOperator, "oncall", models.TemplateOperatorAlert, map[string]string{
		"incident_id": inc.ID,
		"booking_id":  inc.BookingID,
		"type":        inc.Type,
		"severity":    inc.Severity,
		"description": inc.Description,
	})
	if err != nil {
		s.Logger.Warn("operator alert dispatch failed",
			zap.String("incident_id", inc.ID), zap.Error(err))
	}
}
