package models

import "time"

// Booking statuses. All transitions except InProgress/Completed are owned by
// the dispatch engine; mission tracking reports those two back through it.
const (
	BookingAwaitingAssignment = "awaiting_assignment"
	BookingAssignedPending    = "assigned_pending_response"
	BookingConfirmed          = "confirmed"
	BookingInProgress         = "in_progress"
	BookingCompleted          = "completed"
	BookingCancelled          = "cancelled"
	BookingUnassignable       = "unassignable"
	BookingFrozen             = "frozen"
)

// Booking represents a client service request moving through assignment.
type Booking struct {
	ID          string    `bson:"id" json:"id"`                       // Unique booking identifier (UUID)
	UserID      string    `bson:"user_id" json:"user_id"`             // Client who requested the service
	ServiceType string    `bson:"service_type" json:"service_type"`   // e.g. "cleaning", "laundry", "chauffeur"
	Start       time.Time `bson:"start" json:"start"`                 // Scheduled mission start
	DurationMin int       `bson:"duration_min" json:"duration_min"`   // Scheduled duration in minutes
	LocationGeo GeoPoint  `bson:"location_geo" json:"location_geo"`   // Service location
	TotalPrice  float64   `bson:"total_price" json:"total_price"`     // Agreed price
	Urgent      bool      `bson:"urgent" json:"urgent"`               // Derived from time-to-start; shortens response windows
	Status      string    `bson:"status" json:"status"`               // One of the Booking* constants
	ProviderID  string    `bson:"provider_id,omitempty" json:"provider_id,omitempty"` // Set once an assignment is accepted
	CreatedAt   time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at" json:"updated_at"`
}

// Active reports whether the booking is still inside the dispatch lifecycle.
func (b *Booking) Active() bool {
	switch b.Status {
	case BookingAwaitingAssignment, BookingAssignedPending, BookingConfirmed:
		return true
	}
	return false
}
