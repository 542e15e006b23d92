package dispatch

import (
	"context"
	"sync"
	"time"

	assignmentRepo "servly/database/repository/assignment"
	bookingRepo "servly/database/repository/booking"
	"servly/models"

	"go.uber.org/zap"
)

// DeadlineScheduler keeps one in-process timer per active assignment and
// fires the controller's timeout path when a deadline passes. Timers are a
// latency optimization only: the ledger's expires_at is the source of truth,
// and the periodic sweep reconciles against it after restarts or missed
// fires. Duplicate fires are harmless because the controller's conditional
// transition lets exactly one through.
type DeadlineScheduler struct {
	Ledger   assignmentRepo.AssignmentRepository
	Bookings bookingRepo.BookingRepository
	Logger   *zap.Logger

	mu        sync.Mutex
	timers    map[string]*time.Timer
	onTimeout func(ctx context.Context, assignmentID string) error
	onRekick  func(ctx context.Context, bookingID string) error
}

// NewDeadlineScheduler creates a scheduler over the given ledger.
func NewDeadlineScheduler(ledger assignmentRepo.AssignmentRepository, bookings bookingRepo.BookingRepository, logger *zap.Logger) *DeadlineScheduler {
	return &DeadlineScheduler{
		Ledger:   ledger,
		Bookings: bookings,
		Logger:   logger,
		timers:   make(map[string]*time.Timer),
	}
}

// Bind wires the scheduler to the controller. Separate from the constructor
// because the controller and scheduler reference each other.
func (d *DeadlineScheduler) Bind(onTimeout func(ctx context.Context, assignmentID string) error, onRekick func(ctx context.Context, bookingID string) error) {
	d.onTimeout = onTimeout
	d.onRekick = onRekick
}

// Arm schedules a one-shot timer for an assignment deadline. Re-arming the
// same assignment replaces the previous timer.
func (d *DeadlineScheduler) Arm(assignmentID string, expiresAt time.Time) {
	delay := time.Until(expiresAt)
	if delay < 0 {
		delay = 0
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if old, exists := d.timers[assignmentID]; exists {
		old.Stop()
	}
	d.timers[assignmentID] = time.AfterFunc(delay, func() {
		d.mu.Lock()
		delete(d.timers, assignmentID)
		d.mu.Unlock()
		d.fire(context.Background(), assignmentID)
	})
}

// Disarm cancels a pending timer. Safe to call when the timer already fired
// or never existed.
func (d *DeadlineScheduler) Disarm(assignmentID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if t, exists := d.timers[assignmentID]; exists {
		t.Stop()
		delete(d.timers, assignmentID)
	}
}

func (d *DeadlineScheduler) fire(ctx context.Context, assignmentID string) {
	if d.onTimeout == nil {
		return
	}
	if err := d.onTimeout(ctx, assignmentID); err != nil {
		d.Logger.Warn("timeout handling failed",
			zap.String("assignment_id", assignmentID), zap.Error(err))
	}
}

// Sweep reconciles in-memory timers against the ledger: every pending
// assignment past its deadline gets a synthesized timeout, and bookings left
// awaiting by a failed round get re-kicked.
func (d *DeadlineScheduler) Sweep(ctx context.Context) {
	expired, err := d.Ledger.ListExpiredPending(ctx, time.Now())
	if err != nil {
		d.Logger.Warn("sweep: listing expired assignments failed", zap.Error(err))
	} else {
		for _, row := range expired {
			d.Logger.Info("sweep: synthesizing timeout",
				zap.String("assignment_id", row.ID),
				zap.String("booking_id", row.BookingID),
				zap.Time("expires_at", row.ExpiresAt))
			d.Disarm(row.ID)
			d.fire(ctx, row.ID)
		}
	}

	if d.onRekick == nil {
		return
	}
	stalled, err := d.Bookings.ListByStatus(ctx, models.BookingAwaitingAssignment)
	if err != nil {
		d.Logger.Warn("sweep: listing awaiting bookings failed", zap.Error(err))
		return
	}
	for _, b := range stalled {
		if err := d.onRekick(ctx, b.ID); err != nil {
			d.Logger.Warn("sweep: re-kick failed",
				zap.String("booking_id", b.ID), zap.Error(err))
		}
	}
}

// Run performs the startup recovery sweep and keeps sweeping on a ticker
// until the context is cancelled.
func (d *DeadlineScheduler) Run(ctx context.Context, interval time.Duration) {
	d.Sweep(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.Sweep(ctx)
		}
	}
}
