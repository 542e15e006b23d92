package handlers

import (
	"net/http"

	"servly/models"
	"servly/services/incident"
	"servly/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// IncidentHandler exposes incident intake and operator resolution.
type IncidentHandler struct {
	Service incident.IncidentService
	Logger  *zap.Logger
}

// NewIncidentHandler creates an IncidentHandler.
func NewIncidentHandler(svc incident.IncidentService, logger *zap.Logger) *IncidentHandler {
	return &IncidentHandler{Service: svc, Logger: logger}
}

// ReportIncident accepts an incident report and applies its dispatch effect.
func (h *IncidentHandler) ReportIncident(c *gin.Context) {
	var input struct {
		BookingID   string `json:"booking_id" binding:"required"`
		Type        string `json:"type" binding:"required"`
		Severity    string `json:"severity"`
		Description string `json:"description"`
		ReporterID  string `json:"reporter_id"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid input", err.Error())
		return
	}

	inc := &models.Incident{
		BookingID:   input.BookingID,
		Type:        input.Type,
		Severity:    input.Severity,
		Description: input.Description,
		ReporterID:  input.ReporterID,
	}
	created, err := h.Service.Report(c.Request.Context(), inc)
	if err != nil {
		utils.JSONError(c, http.StatusBadRequest, "failed to report incident", err.Error())
		return
	}
	c.JSON(http.StatusCreated, created)
}

// GetIncident returns one incident.
func (h *IncidentHandler) GetIncident(c *gin.Context) {
	inc, err := h.Service.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		utils.JSONError(c, http.StatusNotFound, "incident not found", err.Error())
		return
	}
	c.JSON(http.StatusOK, inc)
}

// ListBookingIncidents returns all incidents for a booking.
func (h *IncidentHandler) ListBookingIncidents(c *gin.Context) {
	rows, err := h.Service.ListByBooking(c.Request.Context(), c.Param("id"))
	if err != nil {
		utils.JSONError(c, http.StatusInternalServerError, "failed to list incidents", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"booking_id": c.Param("id"), "incidents": rows})
}

// UpdateIncidentStatus lets an operator move an incident through its
// lifecycle.
func (h *IncidentHandler) UpdateIncidentStatus(c *gin.Context) {
	var input struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid input", err.Error())
		return
	}
	if err := h.Service.UpdateStatus(c.Request.Context(), c.Param("id"), input.Status); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "failed to update incident", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": input.Status})
}
