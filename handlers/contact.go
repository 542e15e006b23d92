package handlers

import (
	"net/http"

	contactRepo "servly/database/repository/contact"
	"servly/models"
	"servly/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ContactHandler registers push targets for notification recipients.
type ContactHandler struct {
	Repo   contactRepo.ContactRepository
	Logger *zap.Logger
}

// NewContactHandler creates a ContactHandler.
func NewContactHandler(repo contactRepo.ContactRepository, logger *zap.Logger) *ContactHandler {
	return &ContactHandler{Repo: repo, Logger: logger}
}

// RegisterPushToken stores or replaces the FCM token for a recipient.
func (h *ContactHandler) RegisterPushToken(c *gin.Context) {
	var input struct {
		Role  string `json:"role" binding:"required"`
		ID    string `json:"id" binding:"required"`
		Token string `json:"token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid input", err.Error())
		return
	}
	switch input.Role {
	case models.RecipientUser, models.RecipientProvider, models.RecipientOperator:
	default:
		utils.JSONError(c, http.StatusBadRequest, "invalid role", "role must be user, provider or operator")
		return
	}

	if err := h.Repo.SetToken(c.Request.Context(), input.Role, input.ID, input.Token); err != nil {
		utils.JSONError(c, http.StatusInternalServerError, "failed to register push token", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "registered"})
}
