package models

import "time"

// Contact maps a notification recipient to its push target. Kept minimal:
// account profiles live with the identity collaborator, the dispatch worker
// only needs a token per (role, id).
type Contact struct {
	ID        string    `bson:"id" json:"id"`
	Role      string    `bson:"role" json:"role"` // user | provider | operator
	FCMToken  string    `bson:"fcm_token" json:"fcm_token"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
