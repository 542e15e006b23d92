package models

import "time"

// Assignment statuses. Pending is the only non-terminal state.
const (
	AssignmentPending    = "pending"
	AssignmentAccepted   = "accepted"
	AssignmentRejected   = "rejected"
	AssignmentTimeout    = "timeout"
	AssignmentSuperseded = "superseded"
)

// Assignment is one offer of a booking to one candidate provider. Rows are
// append-only: every offer ever made stays in the ledger as audit trail.
type Assignment struct {
	ID          string     `bson:"id" json:"id"`
	BookingID   string     `bson:"booking_id" json:"booking_id"`
	ProviderID  string     `bson:"provider_id" json:"provider_id"`
	Rank        int        `bson:"rank" json:"rank"`   // 1 = primary, 2.. = backups in escalation order
	Score       float64    `bson:"score" json:"score"` // Copied from the candidate list at offer time
	Status      string     `bson:"status" json:"status"`
	OfferedAt   time.Time  `bson:"offered_at" json:"offered_at"`
	ExpiresAt   time.Time  `bson:"expires_at" json:"expires_at"` // Authoritative deadline; timers are best-effort
	RespondedAt *time.Time `bson:"responded_at,omitempty" json:"responded_at,omitempty"`
	Reason      string     `bson:"reason,omitempty" json:"reason,omitempty"` // Populated for superseded rows
}

// Terminal reports whether the assignment can no longer change state.
func (a *Assignment) Terminal() bool {
	return a.Status != AssignmentPending
}
