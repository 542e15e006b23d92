package models

import "time"

// Incident types.
const (
	IncidentProviderAbsent         = "provider_absent"
	IncidentClientAbsent           = "client_absent"
	IncidentLastMinuteCancellation = "last_minute_cancellation"
	IncidentQualityComplaint       = "quality_complaint"
	IncidentPaymentDispute         = "payment_dispute"
)

// Incident severities.
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// Incident statuses.
const (
	IncidentOpen          = "open"
	IncidentInvestigating = "investigating"
	IncidentResolved      = "resolved"
	IncidentDismissed     = "dismissed"
)

// Incident is an out-of-band report tied to a booking. It is tracked
// independently of the assignment state machine but may trigger transitions
// in it (re-dispatch, cancellation).
type Incident struct {
	ID          string     `bson:"id" json:"id"`
	BookingID   string     `bson:"booking_id" json:"booking_id"`
	Type        string     `bson:"type" json:"type"`
	Severity    string     `bson:"severity" json:"severity"`
	Description string     `bson:"description" json:"description"`
	ReporterID  string     `bson:"reporter_id" json:"reporter_id"`
	Status      string     `bson:"status" json:"status"`
	CreatedAt   time.Time  `bson:"created_at" json:"created_at"`
	ResolvedAt  *time.Time `bson:"resolved_at,omitempty" json:"resolved_at,omitempty"`
}
