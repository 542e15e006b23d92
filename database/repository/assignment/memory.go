package assignmentRepo

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"servly/models"
)

// MemoryAssignmentRepo is an in-memory AssignmentRepository with the same
// conditional-transition semantics as the Mongo implementation. Used by unit
// tests and local runs without a database.
type MemoryAssignmentRepo struct {
	mu   sync.Mutex
	rows map[string]*models.Assignment
}

// NewMemoryAssignmentRepo creates an empty in-memory ledger.
func NewMemoryAssignmentRepo() *MemoryAssignmentRepo {
	return &MemoryAssignmentRepo{rows: make(map[string]*models.Assignment)}
}

func (r *MemoryAssignmentRepo) Create(ctx context.Context, a *models.Assignment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.rows[a.ID]; exists {
		return fmt.Errorf("assignment %s already exists", a.ID)
	}
	clone := *a
	r.rows[a.ID] = &clone
	return nil
}

func (r *MemoryAssignmentRepo) GetByID(ctx context.Context, id string) (*models.Assignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return nil, fmt.Errorf("assignment not found: %s", id)
	}
	clone := *row
	return &clone, nil
}

func (r *MemoryAssignmentRepo) ListByBooking(ctx context.Context, bookingID string) ([]models.Assignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var rows []models.Assignment
	for _, row := range r.rows {
		if row.BookingID == bookingID {
			rows = append(rows, *row)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Rank < rows[j].Rank })
	return rows, nil
}

func (r *MemoryAssignmentRepo) GetPending(ctx context.Context, bookingID string) (*models.Assignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.BookingID == bookingID && row.Status == models.AssignmentPending {
			clone := *row
			return &clone, nil
		}
	}
	return nil, nil
}

func (r *MemoryAssignmentRepo) CountPending(ctx context.Context, bookingID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, row := range r.rows {
		if row.BookingID == bookingID && row.Status == models.AssignmentPending {
			n++
		}
	}
	return n, nil
}

func (r *MemoryAssignmentRepo) TransitionStatus(ctx context.Context, id, from, to string, at time.Time, reason string) (*models.Assignment, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return nil, false, fmt.Errorf("assignment not found: %s", id)
	}
	if row.Status != from {
		clone := *row
		return &clone, false, nil
	}
	row.Status = to
	respondedAt := at
	row.RespondedAt = &respondedAt
	if reason != "" {
		row.Reason = reason
	}
	clone := *row
	return &clone, true, nil
}

func (r *MemoryAssignmentRepo) ListExpiredPending(ctx context.Context, now time.Time) ([]models.Assignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var rows []models.Assignment
	for _, row := range r.rows {
		if row.Status == models.AssignmentPending && !row.ExpiresAt.After(now) {
			rows = append(rows, *row)
		}
	}
	return rows, nil
}
