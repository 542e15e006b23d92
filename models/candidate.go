package models

// Candidate is one entry of the ranked list produced by the matching
// collaborator: a provider eligible for a booking, with its score.
type Candidate struct {
	ProviderID string  `json:"provider_id"`
	Score      float64 `json:"score"`
}
