package routes

import (
	"net/http"
	"time"

	"servly/handlers"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// RegisterDispatchRoutes registers the assignment engine endpoints.
func RegisterDispatchRoutes(r *gin.Engine, dh *handlers.DispatchHandler) {
	api := r.Group("/api/dispatch")
	{
		api.POST("/bookings", dh.SubmitBooking)
		api.GET("/bookings/:id", dh.GetBooking)
		api.GET("/bookings/:id/assignments", dh.GetAssignmentHistory)
		api.POST("/bookings/:id/cancel", dh.CancelBooking)
		api.PUT("/bookings/:id/progress", dh.MarkProgress)
		api.POST("/assignments/:id/response", dh.SubmitResponse)
	}
}

// RegisterIncidentRoutes registers incident intake and operator endpoints.
func RegisterIncidentRoutes(r *gin.Engine, ih *handlers.IncidentHandler) {
	api := r.Group("/api/dispatch")
	{
		api.POST("/incidents", ih.ReportIncident)
		api.GET("/incidents/:id", ih.GetIncident)
		api.PUT("/incidents/:id/status", ih.UpdateIncidentStatus)
		api.GET("/bookings/:id/incidents", ih.ListBookingIncidents)
	}
}

// RegisterContactRoutes registers push-target management.
func RegisterContactRoutes(r *gin.Engine, ch *handlers.ContactHandler) {
	r.POST("/api/dispatch/contacts/token", ch.RegisterPushToken)
}

// RegisterRoutes wires the full HTTP surface.
func RegisterRoutes(r *gin.Engine, dh *handlers.DispatchHandler, ih *handlers.IncidentHandler) {
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	RegisterDispatchRoutes(r, dh)
	RegisterIncidentRoutes(r, ih)
}
