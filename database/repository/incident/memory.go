package incidentRepo

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"servly/models"
)

// MemoryIncidentRepo is an in-memory IncidentRepository for tests and local
// runs.
type MemoryIncidentRepo struct {
	mu   sync.Mutex
	rows map[string]*models.Incident
}

// NewMemoryIncidentRepo creates an empty in-memory incident store.
func NewMemoryIncidentRepo() *MemoryIncidentRepo {
	return &MemoryIncidentRepo{rows: make(map[string]*models.Incident)}
}

func (r *MemoryIncidentRepo) Create(ctx context.Context, inc *models.Incident) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.rows[inc.ID]; exists {
		return fmt.Errorf("incident %s already exists", inc.ID)
	}
	clone := *inc
	r.rows[inc.ID] = &clone
	return nil
}

func (r *MemoryIncidentRepo) GetByID(ctx context.Context, id string) (*models.Incident, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return nil, fmt.Errorf("incident not found: %s", id)
	}
	clone := *row
	return &clone, nil
}

func (r *MemoryIncidentRepo) ListByBooking(ctx context.Context, bookingID string) ([]models.Incident, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var rows []models.Incident
	for _, row := range r.rows {
		if row.BookingID == bookingID {
			rows = append(rows, *row)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].CreatedAt.Before(rows[j].CreatedAt) })
	return rows, nil
}

func (r *MemoryIncidentRepo) UpdateStatus(ctx context.Context, id, status string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return fmt.Errorf("incident not found: %s", id)
	}
	row.Status = status
	if status == models.IncidentResolved || status == models.IncidentDismissed {
		resolvedAt := at
		row.ResolvedAt = &resolvedAt
	}
	return nil
}
