package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"servly/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SubmitBooking registers a booking and starts escalation. The urgency flag
// is derived from time-to-start at submission.
func (s *DefaultDispatchService) SubmitBooking(ctx context.Context, b *models.Booking) (*models.Booking, error) {
	if b.UserID == "" || b.ServiceType == "" {
		return nil, fmt.Errorf("booking must carry a user and a service type")
	}
	if b.Start.IsZero() {
		return nil, fmt.Errorf("booking must carry a scheduled start time")
	}
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	now := s.now()
	b.Status = models.BookingAwaitingAssignment
	b.Urgent = b.Start.Sub(now) < s.Policy.UrgencyThreshold
	b.CreatedAt = now
	b.UpdatedAt = now

	if err := s.BookingRepo.Create(ctx, b); err != nil {
		return nil, fmt.Errorf("failed to create booking: %w", err)
	}

	// A failed first round leaves the booking awaiting; the recovery sweep
	// retries it rather than surfacing a fatal error to the caller.
	if err := s.RequestAssignment(ctx, b.ID); err != nil {
		s.Logger.Warn("initial assignment round failed, booking left awaiting",
			zap.String("booking_id", b.ID), zap.Error(err))
	}

	updated, err := s.BookingRepo.GetByID(ctx, b.ID)
	if err != nil {
		return b, nil
	}
	return updated, nil
}

// RequestAssignment runs one escalation step: offer to the next untried
// candidate, or exhaust. Candidate retrieval is collaborator I/O and happens
// outside the per-booking critical section; so do timer arming and
// notification dispatch, once the ledger write is durable.
func (s *DefaultDispatchService) RequestAssignment(ctx context.Context, bookingID string) error {
	candidates, err := s.Candidates.GetRankedCandidates(ctx, bookingID)
	if err != nil {
		return fmt.Errorf("candidate fetch failed for booking %s: %w", bookingID, err)
	}

	unlock := s.locks.lock(bookingID)
	offer, alert, err := s.offerNextLocked(ctx, bookingID, candidates)
	unlock()
	if err != nil {
		return err
	}

	if alert != nil {
		s.raiseAlert(ctx, alert)
		return nil
	}
	if offer != nil {
		s.Deadlines.Arm(offer.ID, offer.ExpiresAt)
		s.notify(ctx, models.RecipientProvider, offer.ProviderID, models.TemplateOfferProposed, map[string]string{
			"booking_id":    offer.BookingID,
			"assignment_id": offer.ID,
			"expires_at":    offer.ExpiresAt.Format(time.RFC3339),
		})
	}
	return nil
}

// offerNextLocked holds the booking lock and performs only ledger/store
// transitions. Returns either the new pending offer or the alert to raise on
// exhaustion.
func (s *DefaultDispatchService) offerNextLocked(ctx context.Context, bookingID string, candidates []models.Candidate) (*models.Assignment, *models.AlertEvent, error) {
	b, err := s.BookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, nil, err
	}
	if b.Status == models.BookingFrozen {
		return nil, nil, ErrBookingFrozen
	}
	if b.Status != models.BookingAwaitingAssignment {
		return nil, nil, ErrNotAwaitingAssignment
	}

	pending, err := s.Ledger.CountPending(ctx, bookingID)
	if err != nil {
		return nil, nil, err
	}
	if pending > 0 {
		return nil, nil, s.freeze(ctx, bookingID, pending)
	}

	history, err := s.Ledger.ListByBooking(ctx, bookingID)
	if err != nil {
		return nil, nil, err
	}
	attempted := make(map[string]bool, len(history))
	for _, row := range history {
		attempted[row.ProviderID] = true
	}

	var next *models.Candidate
	for i := range candidates {
		if !attempted[candidates[i].ProviderID] {
			next = &candidates[i]
			break
		}
	}

	if next == nil {
		won, err := s.BookingRepo.UpdateStatus(ctx, bookingID, models.BookingAwaitingAssignment, models.BookingUnassignable)
		if err != nil {
			return nil, nil, err
		}
		if !won {
			return nil, nil, ErrInvalidTransition
		}
		s.Logger.Warn("candidate list exhausted, booking unassignable",
			zap.String("booking_id", bookingID), zap.Int("attempts", len(history)))
		return nil, &models.AlertEvent{
			BookingID: bookingID,
			Reason:    "candidate list exhausted",
			History:   history,
			RaisedAt:  s.now(),
		}, nil
	}

	now := s.now()
	offer := &models.Assignment{
		ID:         uuid.New().String(),
		BookingID:  bookingID,
		ProviderID: next.ProviderID,
		Rank:       len(history) + 1,
		Score:      next.Score,
		Status:     models.AssignmentPending,
		OfferedAt:  now,
		ExpiresAt:  now.Add(s.Policy.Window(b.Urgent)),
	}
	if err := s.Ledger.Create(ctx, offer); err != nil {
		return nil, nil, fmt.Errorf("failed to create assignment: %w", err)
	}
	won, err := s.BookingRepo.UpdateStatus(ctx, bookingID, models.BookingAwaitingAssignment, models.BookingAssignedPending)
	if err != nil {
		return nil, nil, err
	}
	if !won {
		return nil, nil, ErrInvalidTransition
	}

	s.Logger.Info("assignment offered",
		zap.String("booking_id", bookingID),
		zap.String("assignment_id", offer.ID),
		zap.String("provider_id", offer.ProviderID),
		zap.Int("rank", offer.Rank),
		zap.Time("expires_at", offer.ExpiresAt))
	return offer, nil, nil
}

// RecordResponse applies a provider response through the conditional
// transition. A response that lost the race against a timeout (or a
// duplicate delivery) is discarded and logged, never an error.
func (s *DefaultDispatchService) RecordResponse(ctx context.Context, assignmentID, outcome string) error {
	var to string
	switch outcome {
	case OutcomeAccept:
		to = models.AssignmentAccepted
	case OutcomeReject:
		to = models.AssignmentRejected
	default:
		return ErrInvalidOutcome
	}
	return s.settle(ctx, assignmentID, to, "provider response")
}

// RecordTimeout applies a deadline expiry, symmetric to RecordResponse.
func (s *DefaultDispatchService) RecordTimeout(ctx context.Context, assignmentID string) error {
	return s.settle(ctx, assignmentID, models.AssignmentTimeout, "deadline expiry")
}

func (s *DefaultDispatchService) settle(ctx context.Context, assignmentID, to, cause string) error {
	a, err := s.Ledger.GetByID(ctx, assignmentID)
	if err != nil {
		return err
	}

	unlock := s.locks.lock(a.BookingID)
	row, won, err := s.Ledger.TransitionStatus(ctx, assignmentID, models.AssignmentPending, to, s.now(), "")
	if err != nil {
		unlock()
		return err
	}
	if !won {
		unlock()
		s.Logger.Info("transition lost race, discarded",
			zap.String("event", "race_loss"),
			zap.String("assignment_id", assignmentID),
			zap.String("attempted", to),
			zap.String("current_status", row.Status),
			zap.String("cause", cause))
		return nil
	}
	s.Deadlines.Disarm(assignmentID)

	switch to {
	case models.AssignmentAccepted:
		confirmWon, err := s.BookingRepo.UpdateStatus(ctx, row.BookingID, models.BookingAssignedPending, models.BookingConfirmed)
		if err != nil {
			unlock()
			return err
		}
		if !confirmWon {
			err := s.freeze(ctx, row.BookingID, 0)
			unlock()
			return err
		}
		if err := s.BookingRepo.SetProvider(ctx, row.BookingID, row.ProviderID); err != nil {
			unlock()
			return err
		}
		unlock()
		b, err := s.BookingRepo.GetByID(ctx, row.BookingID)
		if err != nil {
			return err
		}
		s.Logger.Info("assignment accepted, booking confirmed",
			zap.String("booking_id", row.BookingID),
			zap.String("assignment_id", row.ID),
			zap.String("provider_id", row.ProviderID))
		s.notify(ctx, models.RecipientUser, b.UserID, models.TemplateBookingConfirmed, map[string]string{
			"booking_id":  row.BookingID,
			"provider_id": row.ProviderID,
		})
		return nil

	case models.AssignmentRejected, models.AssignmentTimeout:
		backWon, err := s.BookingRepo.UpdateStatus(ctx, row.BookingID, models.BookingAssignedPending, models.BookingAwaitingAssignment)
		if err != nil {
			unlock()
			return err
		}
		if !backWon {
			err := s.freeze(ctx, row.BookingID, 0)
			unlock()
			return err
		}
		unlock()
		s.Logger.Info("offer declined, escalating",
			zap.String("booking_id", row.BookingID),
			zap.String("assignment_id", row.ID),
			zap.String("provider_id", row.ProviderID),
			zap.String("outcome", to))
		return s.RequestAssignment(ctx, row.BookingID)
	}
	return nil
}

// Supersede hard-cancels the booking's escalation: any pending offer becomes
// superseded and the booking ends cancelled.
func (s *DefaultDispatchService) Supersede(ctx context.Context, bookingID, reason string) error {
	unlock := s.locks.lock(bookingID)

	b, err := s.BookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		unlock()
		return err
	}
	if b.Status == models.BookingFrozen {
		unlock()
		return ErrBookingFrozen
	}

	var withdrawn *models.Assignment
	pending, err := s.Ledger.GetPending(ctx, bookingID)
	if err != nil {
		unlock()
		return err
	}
	if pending != nil {
		row, won, err := s.Ledger.TransitionStatus(ctx, pending.ID, models.AssignmentPending, models.AssignmentSuperseded, s.now(), reason)
		if err != nil {
			unlock()
			return err
		}
		if won {
			s.Deadlines.Disarm(row.ID)
			withdrawn = row
		}
	}

	if b.Active() {
		if _, err := s.BookingRepo.UpdateStatus(ctx, bookingID, b.Status, models.BookingCancelled); err != nil {
			unlock()
			return err
		}
	}
	unlock()

	s.Logger.Info("booking superseded",
		zap.String("booking_id", bookingID), zap.String("reason", reason))
	if withdrawn != nil {
		s.notify(ctx, models.RecipientProvider, withdrawn.ProviderID, models.TemplateOfferWithdrawn, map[string]string{
			"booking_id":    bookingID,
			"assignment_id": withdrawn.ID,
			"reason":        reason,
		})
	}
	s.notify(ctx, models.RecipientUser, b.UserID, models.TemplateBookingCancelled, map[string]string{
		"booking_id": bookingID,
		"reason":     reason,
	})
	return nil
}

// Reassign retroactively invalidates the accepted assignment of a confirmed
// booking and re-enters escalation. The mission start is close by then, so
// the booking is flagged urgent and the new offer gets the short window.
func (s *DefaultDispatchService) Reassign(ctx context.Context, bookingID, reason string) error {
	unlock := s.locks.lock(bookingID)

	b, err := s.BookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		unlock()
		return err
	}
	if b.Status == models.BookingFrozen {
		unlock()
		return ErrBookingFrozen
	}
	if b.Status != models.BookingConfirmed {
		unlock()
		return ErrBookingNotConfirmed
	}

	history, err := s.Ledger.ListByBooking(ctx, bookingID)
	if err != nil {
		unlock()
		return err
	}
	for _, row := range history {
		if row.Status == models.AssignmentAccepted {
			if _, _, err := s.Ledger.TransitionStatus(ctx, row.ID, models.AssignmentAccepted, models.AssignmentSuperseded, s.now(), reason); err != nil {
				unlock()
				return err
			}
		}
	}

	won, err := s.BookingRepo.UpdateStatus(ctx, bookingID, models.BookingConfirmed, models.BookingAwaitingAssignment)
	if err != nil {
		unlock()
		return err
	}
	if !won {
		unlock()
		return ErrInvalidTransition
	}
	if err := s.BookingRepo.MarkUrgent(ctx, bookingID); err != nil {
		unlock()
		return err
	}
	unlock()

	s.Logger.Info("confirmed booking re-entering escalation",
		zap.String("booking_id", bookingID), zap.String("reason", reason))
	if inv, ok := s.Candidates.(RoundInvalidator); ok {
		inv.InvalidateRound(ctx, bookingID)
	}
	s.notify(ctx, models.RecipientUser, b.UserID, models.TemplateReassigned, map[string]string{
		"booking_id": bookingID,
		"reason":     reason,
	})
	return s.RequestAssignment(ctx, bookingID)
}

// GetBooking returns a booking's current state.
func (s *DefaultDispatchService) GetBooking(ctx context.Context, bookingID string) (*models.Booking, error) {
	return s.BookingRepo.GetByID(ctx, bookingID)
}

// History returns the booking's assignment rows in escalation order.
func (s *DefaultDispatchService) History(ctx context.Context, bookingID string) ([]models.Assignment, error) {
	return s.Ledger.ListByBooking(ctx, bookingID)
}

// MarkInProgress records mission start.
func (s *DefaultDispatchService) MarkInProgress(ctx context.Context, bookingID string) error {
	return s.advance(ctx, bookingID, models.BookingConfirmed, models.BookingInProgress)
}

// MarkCompleted records mission completion.
func (s *DefaultDispatchService) MarkCompleted(ctx context.Context, bookingID string) error {
	return s.advance(ctx, bookingID, models.BookingInProgress, models.BookingCompleted)
}

func (s *DefaultDispatchService) advance(ctx context.Context, bookingID, from, to string) error {
	unlock := s.locks.lock(bookingID)
	defer unlock()
	won, err := s.BookingRepo.UpdateStatus(ctx, bookingID, from, to)
	if err != nil {
		return err
	}
	if !won {
		return ErrInvalidTransition
	}
	return nil
}

// freeze parks a booking after an invariant violation. Loud, never silently
// repaired: picking a winner among duplicate pending rows would guess.
func (s *DefaultDispatchService) freeze(ctx context.Context, bookingID string, pendingCount int64) error {
	s.Logger.Error("assignment invariant violated, freezing booking",
		zap.String("booking_id", bookingID),
		zap.Int64("pending_count", pendingCount))
	if err := s.BookingRepo.Freeze(ctx, bookingID); err != nil {
		s.Logger.Error("failed to freeze booking", zap.String("booking_id", bookingID), zap.Error(err))
	}
	return ErrInvariantViolation
}

// raiseAlert emits an operator alert. Fire-and-forget: delivery failure must
// not roll back the transition that triggered it.
func (s *DefaultDispatchService) raiseAlert(ctx context.Context, alert *models.AlertEvent) {
	historyJSON, err := json.Marshal(alert.History)
	if err != nil {
		historyJSON = []byte("[]")
	}
	s.notify(ctx, models.RecipientOperator, "oncall", models.TemplateOperatorAlert, map[string]string{
		"booking_id": alert.BookingID,
		"reason":     alert.Reason,
		"history":    string(historyJSON),
		"raised_at":  alert.RaisedAt.Format(time.RFC3339),
	})
}

func (s *DefaultDispatchService) notify(ctx context.Context, recipientType, recipientID, templateKind string, data map[string]string) {
	if err := s.Notifier.Notify(ctx, recipientType, recipientID, templateKind, data); err != nil {
		s.Logger.Warn("notification dispatch failed",
			zap.String("recipient_type", recipientType),
			zap.String("recipient_id", recipientID),
			zap.String("template_kind", templateKind),
			zap.Error(err))
	}
}
