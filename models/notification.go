package models

import "time"

// Recipient types for dispatched notifications.
const (
	RecipientUser     = "user"
	RecipientProvider = "provider"
	RecipientOperator = "operator"
)

// Template kinds. The engine decides that a notification fires and with what
// payload; rendering and delivery belong to the dispatch worker.
const (
	TemplateOfferProposed    = "offer_proposed"
	TemplateOfferWithdrawn   = "offer_withdrawn"
	TemplateBookingConfirmed = "booking_confirmed"
	TemplateBookingCancelled = "booking_cancelled"
	TemplateReassigned       = "reassigned"
	TemplateOperatorAlert    = "operator_alert"
)

// NotificationPayload is the task payload queued for the dispatch worker.
type NotificationPayload struct {
	RecipientType string            `json:"recipientType"`
	RecipientID   string            `json:"recipientId"`
	TemplateKind  string            `json:"templateKind"`
	Data          map[string]string `json:"data"`
	QueuedAt      time.Time         `json:"queuedAt"`
}

// AlertEvent is the payload of an operator alert: why a booking needs human
// attention, with the accumulated assignment history attached.
type AlertEvent struct {
	BookingID string       `json:"booking_id"`
	Reason    string       `json:"reason"`
	History   []Assignment `json:"history"`
	RaisedAt  time.Time    `json:"raised_at"`
}
