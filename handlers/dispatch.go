package handlers

import (
	"errors"
	"net/http"
	"time"

	"servly/models"
	"servly/services/dispatch"
	"servly/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// DispatchHandler exposes the assignment engine to collaborators.
type DispatchHandler struct {
	Service dispatch.Service
	Logger  *zap.Logger
}

// NewDispatchHandler creates a DispatchHandler.
func NewDispatchHandler(svc dispatch.Service, logger *zap.Logger) *DispatchHandler {
	return &DispatchHandler{Service: svc, Logger: logger}
}

// SubmitBooking begins the assignment lifecycle for a booking.
func (h *DispatchHandler) SubmitBooking(c *gin.Context) {
	var input struct {
		ID          string          `json:"id"`
		UserID      string          `json:"user_id" binding:"required"`
		ServiceType string          `json:"service_type" binding:"required"`
		Start       time.Time       `json:"start" binding:"required"`
		DurationMin int             `json:"duration_min"`
		LocationGeo models.GeoPoint `json:"location_geo"`
		TotalPrice  float64         `json:"total_price"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid input", err.Error())
		return
	}

	booking := &models.Booking{
		ID:          input.ID,
		UserID:      input.UserID,
		ServiceType: input.ServiceType,
		Start:       input.Start,
		DurationMin: input.DurationMin,
		LocationGeo: input.LocationGeo,
		TotalPrice:  input.TotalPrice,
	}
	created, err := h.Service.SubmitBooking(c.Request.Context(), booking)
	if err != nil {
		utils.JSONError(c, http.StatusInternalServerError, "failed to submit booking", err.Error())
		return
	}
	c.JSON(http.StatusCreated, created)
}

// SubmitResponse records a provider's accept/reject for an assignment. A
// response arriving after the deadline already fired is discarded quietly:
// the caller sees the assignment as it stands, not an error.
func (h *DispatchHandler) SubmitResponse(c *gin.Context) {
	assignmentID := c.Param("id")
	var input struct {
		Outcome string `json:"outcome" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid input", err.Error())
		return
	}

	err := h.Service.RecordResponse(c.Request.Context(), assignmentID, input.Outcome)
	if errors.Is(err, dispatch.ErrInvalidOutcome) {
		utils.JSONError(c, http.StatusBadRequest, "invalid outcome", "outcome must be accept or reject")
		return
	}
	if err != nil {
		utils.JSONError(c, http.StatusInternalServerError, "failed to record response", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "recorded"})
}

// CancelBooking withdraws a booking, superseding any outstanding offer.
func (h *DispatchHandler) CancelBooking(c *gin.Context) {
	bookingID := c.Param("id")
	var input struct {
		Reason string `json:"reason"`
	}
	_ = c.ShouldBindJSON(&input)
	if input.Reason == "" {
		input.Reason = "client cancellation"
	}

	if err := h.Service.Supersede(c.Request.Context(), bookingID, input.Reason); err != nil {
		if errors.Is(err, dispatch.ErrBookingFrozen) {
			utils.JSONError(c, http.StatusConflict, "booking frozen", "booking is under manual review")
			return
		}
		utils.JSONError(c, http.StatusInternalServerError, "failed to cancel booking", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cancelled"})
}

// GetBooking returns the booking's current status.
func (h *DispatchHandler) GetBooking(c *gin.Context) {
	bookingID := c.Param("id")
	booking, err := h.Service.GetBooking(c.Request.Context(), bookingID)
	if err != nil {
		utils.JSONError(c, http.StatusNotFound, "booking not found", err.Error())
		return
	}
	c.JSON(http.StatusOK, booking)
}

// GetAssignmentHistory returns the ordered assignment rows for a booking,
// for operator dashboards.
func (h *DispatchHandler) GetAssignmentHistory(c *gin.Context) {
	bookingID := c.Param("id")
	history, err := h.Service.History(c.Request.Context(), bookingID)
	if err != nil {
		utils.JSONError(c, http.StatusInternalServerError, "failed to fetch assignment history", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"booking_id": bookingID, "assignments": history})
}

// MarkProgress lets mission tracking report start/completion.
func (h *DispatchHandler) MarkProgress(c *gin.Context) {
	bookingID := c.Param("id")
	var input struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid input", err.Error())
		return
	}

	var err error
	switch input.Status {
	case models.BookingInProgress:
		err = h.Service.MarkInProgress(c.Request.Context(), bookingID)
	case models.BookingCompleted:
		err = h.Service.MarkCompleted(c.Request.Context(), bookingID)
	default:
		utils.JSONError(c, http.StatusBadRequest, "invalid status", "status must be in_progress or completed")
		return
	}
	if errors.Is(err, dispatch.ErrInvalidTransition) {
		utils.JSONError(c, http.StatusConflict, "invalid transition", "booking is not in the expected state")
		return
	}
	if err != nil {
		utils.JSONError(c, http.StatusInternalServerError, "failed to update booking", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": input.Status})
}
