package bookingRepo

import (
	"context"
	"fmt"
	"sync"
	"time"

	"servly/models"
)

// MemoryBookingRepo is an in-memory BookingRepository for tests and local
// runs.
type MemoryBookingRepo struct {
	mu   sync.Mutex
	rows map[string]*models.Booking
}

// NewMemoryBookingRepo creates an empty in-memory booking store.
func NewMemoryBookingRepo() *MemoryBookingRepo {
	return &MemoryBookingRepo{rows: make(map[string]*models.Booking)}
}

func (r *MemoryBookingRepo) Create(ctx context.Context, b *models.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.rows[b.ID]; exists {
		return fmt.Errorf("booking %s already exists", b.ID)
	}
	clone := *b
	r.rows[b.ID] = &clone
	return nil
}

func (r *MemoryBookingRepo) GetByID(ctx context.Context, id string) (*models.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return nil, fmt.Errorf("booking not found: %s", id)
	}
	clone := *row
	return &clone, nil
}

func (r *MemoryBookingRepo) UpdateStatus(ctx context.Context, id, from, to string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return false, fmt.Errorf("booking not found: %s", id)
	}
	if row.Status != from {
		return false, nil
	}
	row.Status = to
	row.UpdatedAt = time.Now()
	return true, nil
}

func (r *MemoryBookingRepo) SetProvider(ctx context.Context, id, providerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return fmt.Errorf("booking not found: %s", id)
	}
	row.ProviderID = providerID
	row.UpdatedAt = time.Now()
	return nil
}

func (r *MemoryBookingRepo) MarkUrgent(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return fmt.Errorf("booking not found: %s", id)
	}
	row.Urgent = true
	row.UpdatedAt = time.Now()
	return nil
}

func (r *MemoryBookingRepo) ListByStatus(ctx context.Context, status string) ([]models.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var rows []models.Booking
	for _, row := range r.rows {
		if row.Status == status {
			rows = append(rows, *row)
		}
	}
	return rows, nil
}

func (r *MemoryBookingRepo) Freeze(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return fmt.Errorf("booking not found: %s", id)
	}
	row.Status = models.BookingFrozen
	row.UpdatedAt = time.Now()
	return nil
}
