package dispatch

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	assignmentRepo "servly/database/repository/assignment"
	bookingRepo "servly/database/repository/booking"
	"servly/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// stubCandidates serves a fixed ranked list and counts fetches.
type stubCandidates struct {
	mu      sync.Mutex
	list    []models.Candidate
	err     error
	fetches int
}

func (s *stubCandidates) GetRankedCandidates(ctx context.Context, bookingID string) ([]models.Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetches++
	if s.err != nil {
		return nil, s.err
	}
	out := make([]models.Candidate, len(s.list))
	copy(out, s.list)
	return out, nil
}

// recordingNotifier captures every Notify call.
type recordingNotifier struct {
	mu    sync.Mutex
	calls []notifyCall
}

type notifyCall struct {
	RecipientType string
	RecipientID   string
	TemplateKind  string
	Data          map[string]string
}

func (n *recordingNotifier) Notify(ctx context.Context, recipientType, recipientID, templateKind string, data map[string]string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, notifyCall{recipientType, recipientID, templateKind, data})
	return nil
}

func (n *recordingNotifier) byKind(kind string) []notifyCall {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []notifyCall
	for _, c := range n.calls {
		if c.TemplateKind == kind {
			out = append(out, c)
		}
	}
	return out
}

// manualTimers records arm/disarm without firing anything; tests drive
// timeouts explicitly.
type manualTimers struct {
	mu       sync.Mutex
	armed    map[string]time.Time
	disarmed []string
}

func newManualTimers() *manualTimers {
	return &manualTimers{armed: make(map[string]time.Time)}
}

func (t *manualTimers) Arm(assignmentID string, expiresAt time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.armed[assignmentID] = expiresAt
}

func (t *manualTimers) Disarm(assignmentID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.armed, assignmentID)
	t.disarmed = append(t.disarmed, assignmentID)
}

var testPolicy = Policy{
	StandardWindow:   30 * time.Minute,
	UrgentWindow:     10 * time.Minute,
	UrgencyThreshold: 4 * time.Hour,
}

type fixture struct {
	svc      *DefaultDispatchService
	bookings *bookingRepo.MemoryBookingRepo
	ledger   *assignmentRepo.MemoryAssignmentRepo
	source   *stubCandidates
	notifier *recordingNotifier
	timers   *manualTimers
}

func newFixture(candidates ...models.Candidate) *fixture {
	f := &fixture{
		bookings: bookingRepo.NewMemoryBookingRepo(),
		ledger:   assignmentRepo.NewMemoryAssignmentRepo(),
		source:   &stubCandidates{list: candidates},
		notifier: &recordingNotifier{},
		timers:   newManualTimers(),
	}
	f.svc = NewDispatchService(f.bookings, f.ledger, f.source, f.timers, f.notifier, testPolicy, zap.NewNop())
	return f
}

func (f *fixture) submit(t *testing.T, start time.Time) *models.Booking {
	t.Helper()
	b, err := f.svc.SubmitBooking(context.Background(), &models.Booking{
		UserID:      "user-1",
		ServiceType: "cleaning",
		Start:       start,
	})
	require.NoError(t, err)
	return b
}

func (f *fixture) pending(t *testing.T, bookingID string) *models.Assignment {
	t.Helper()
	a, err := f.ledger.GetPending(context.Background(), bookingID)
	require.NoError(t, err)
	require.NotNil(t, a, "expected a pending assignment")
	return a
}

func TestEscalationThroughRejectionAndTimeout(t *testing.T) {
	ctx := context.Background()
	f := newFixture(
		models.Candidate{ProviderID: "P1", Score: 0.9},
		models.Candidate{ProviderID: "P2", Score: 0.7},
		models.Candidate{ProviderID: "P3", Score: 0.5},
	)

	b := f.submit(t, time.Now().Add(24*time.Hour))
	assert.Equal(t, models.BookingAssignedPending, b.Status)

	// P1 is offered first and rejects.
	first := f.pending(t, b.ID)
	assert.Equal(t, "P1", first.ProviderID)
	assert.Equal(t, 1, first.Rank)
	assert.InDelta(t, 0.9, first.Score, 1e-9)
	require.NoError(t, f.svc.RecordResponse(ctx, first.ID, OutcomeReject))

	// P2 is offered next and never responds.
	second := f.pending(t, b.ID)
	assert.Equal(t, "P2", second.ProviderID)
	assert.Equal(t, 2, second.Rank)
	require.NoError(t, f.svc.RecordTimeout(ctx, second.ID))

	// P3 accepts.
	third := f.pending(t, b.ID)
	assert.Equal(t, "P3", third.ProviderID)
	assert.Equal(t, 3, third.Rank)
	require.NoError(t, f.svc.RecordResponse(ctx, third.ID, OutcomeAccept))

	final, err := f.bookings.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingConfirmed, final.Status)
	assert.Equal(t, "P3", final.ProviderID)

	history, err := f.svc.History(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, models.AssignmentRejected, history[0].Status)
	assert.Equal(t, models.AssignmentTimeout, history[1].Status)
	assert.Equal(t, models.AssignmentAccepted, history[2].Status)

	// The winning provider's timer was disarmed and the client notified.
	assert.Contains(t, f.timers.disarmed, third.ID)
	assert.Len(t, f.notifier.byKind(models.TemplateBookingConfirmed), 1)
	assert.Len(t, f.notifier.byKind(models.TemplateOfferProposed), 3)
}

func TestExhaustionRaisesSingleAlert(t *testing.T) {
	ctx := context.Background()
	f := newFixture(models.Candidate{ProviderID: "P1", Score: 0.8})

	b := f.submit(t, time.Now().Add(24*time.Hour))
	only := f.pending(t, b.ID)
	require.NoError(t, f.svc.RecordTimeout(ctx, only.ID))

	final, err := f.bookings.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingUnassignable, final.Status)

	alerts := f.notifier.byKind(models.TemplateOperatorAlert)
	require.Len(t, alerts, 1)
	assert.Equal(t, b.ID, alerts[0].Data["booking_id"])
	assert.Equal(t, models.RecipientOperator, alerts[0].RecipientType)
}

func TestAllCandidatesReject(t *testing.T) {
	ctx := context.Background()
	f := newFixture(
		models.Candidate{ProviderID: "P1", Score: 0.9},
		models.Candidate{ProviderID: "P2", Score: 0.7},
	)

	b := f.submit(t, time.Now().Add(24*time.Hour))
	for i := 0; i < 2; i++ {
		a := f.pending(t, b.ID)
		require.NoError(t, f.svc.RecordResponse(ctx, a.ID, OutcomeReject))
	}

	final, err := f.bookings.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingUnassignable, final.Status)
	assert.Len(t, f.notifier.byKind(models.TemplateOperatorAlert), 1)
}

func TestLateResponseAfterTimeoutIsDiscarded(t *testing.T) {
	ctx := context.Background()
	f := newFixture(
		models.Candidate{ProviderID: "P1", Score: 0.9},
		models.Candidate{ProviderID: "P2", Score: 0.7},
	)

	b := f.submit(t, time.Now().Add(24*time.Hour))
	first := f.pending(t, b.ID)

	require.NoError(t, f.svc.RecordTimeout(ctx, first.ID))
	// The late accept is a no-op, not an error.
	require.NoError(t, f.svc.RecordResponse(ctx, first.ID, OutcomeAccept))

	row, err := f.ledger.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AssignmentTimeout, row.Status)

	// Escalation went on to P2 regardless.
	assert.Equal(t, "P2", f.pending(t, b.ID).ProviderID)
}

func TestResponseTimeoutRaceHasExactlyOneWinner(t *testing.T) {
	for i := 0; i < 50; i++ {
		f := newFixture(
			models.Candidate{ProviderID: "P1", Score: 0.9},
			models.Candidate{ProviderID: "P2", Score: 0.7},
		)
		ctx := context.Background()
		b := f.submit(t, time.Now().Add(24*time.Hour))
		first := f.pending(t, b.ID)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = f.svc.RecordResponse(ctx, first.ID, OutcomeAccept)
		}()
		go func() {
			defer wg.Done()
			_ = f.svc.RecordTimeout(ctx, first.ID)
		}()
		wg.Wait()

		row, err := f.ledger.GetByID(ctx, first.ID)
		require.NoError(t, err)
		require.Contains(t, []string{models.AssignmentAccepted, models.AssignmentTimeout}, row.Status)

		final, err := f.bookings.GetByID(ctx, b.ID)
		require.NoError(t, err)
		switch row.Status {
		case models.AssignmentAccepted:
			assert.Equal(t, models.BookingConfirmed, final.Status)
		case models.AssignmentTimeout:
			assert.Equal(t, models.BookingAssignedPending, final.Status)
			assert.Equal(t, "P2", f.pending(t, b.ID).ProviderID)
		}

		n, err := f.ledger.CountPending(ctx, b.ID)
		require.NoError(t, err)
		assert.LessOrEqual(t, n, int64(1))
	}
}

func TestAtMostOnePendingThroughoutEscalation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(
		models.Candidate{ProviderID: "P1", Score: 0.9},
		models.Candidate{ProviderID: "P2", Score: 0.7},
		models.Candidate{ProviderID: "P3", Score: 0.5},
	)

	b := f.submit(t, time.Now().Add(24*time.Hour))
	for i := 0; i < 3; i++ {
		n, err := f.ledger.CountPending(ctx, b.ID)
		require.NoError(t, err)
		require.LessOrEqual(t, n, int64(1))
		a := f.pending(t, b.ID)
		require.NoError(t, f.svc.RecordResponse(ctx, a.ID, OutcomeReject))
	}
	n, err := f.ledger.CountPending(ctx, b.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestUrgentBookingGetsShortWindow(t *testing.T) {
	f := newFixture(models.Candidate{ProviderID: "P1", Score: 0.9})

	// Starts in one hour, under the four-hour urgency threshold.
	b := f.submit(t, time.Now().Add(time.Hour))
	assert.True(t, b.Urgent)

	a := f.pending(t, b.ID)
	window := a.ExpiresAt.Sub(a.OfferedAt)
	assert.Equal(t, testPolicy.UrgentWindow, window)
}

func TestRoutineBookingGetsStandardWindow(t *testing.T) {
	f := newFixture(models.Candidate{ProviderID: "P1", Score: 0.9})

	b := f.submit(t, time.Now().Add(48*time.Hour))
	assert.False(t, b.Urgent)

	a := f.pending(t, b.ID)
	window := a.ExpiresAt.Sub(a.OfferedAt)
	assert.Equal(t, testPolicy.StandardWindow, window)
}

func TestSupersedeWithdrawsPendingOffer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(
		models.Candidate{ProviderID: "P1", Score: 0.9},
		models.Candidate{ProviderID: "P2", Score: 0.7},
	)

	b := f.submit(t, time.Now().Add(24*time.Hour))
	first := f.pending(t, b.ID)

	require.NoError(t, f.svc.Supersede(ctx, b.ID, "client cancellation"))

	row, err := f.ledger.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AssignmentSuperseded, row.Status)
	assert.Equal(t, "client cancellation", row.Reason)
	assert.Contains(t, f.timers.disarmed, first.ID)

	final, err := f.bookings.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingCancelled, final.Status)

	// Escalation halted: the late timeout for the withdrawn offer is a
	// no-op and P2 is never offered.
	require.NoError(t, f.svc.RecordTimeout(ctx, first.ID))
	history, err := f.svc.History(ctx, b.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestReassignExcludesPreviousProvider(t *testing.T) {
	ctx := context.Background()
	f := newFixture(
		models.Candidate{ProviderID: "P1", Score: 0.9},
		models.Candidate{ProviderID: "P2", Score: 0.7},
	)

	b := f.submit(t, time.Now().Add(24*time.Hour))
	first := f.pending(t, b.ID)
	require.NoError(t, f.svc.RecordResponse(ctx, first.ID, OutcomeAccept))

	require.NoError(t, f.svc.Reassign(ctx, b.ID, models.IncidentProviderAbsent))

	// The accepted row is retroactively superseded and a fresh offer goes
	// to the next candidate, never back to P1.
	replacement := f.pending(t, b.ID)
	assert.Equal(t, "P2", replacement.ProviderID)

	oldRow, err := f.ledger.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AssignmentSuperseded, oldRow.Status)
	assert.Equal(t, models.IncidentProviderAbsent, oldRow.Reason)

	// Re-dispatch runs on the urgent window.
	window := replacement.ExpiresAt.Sub(replacement.OfferedAt)
	assert.Equal(t, testPolicy.UrgentWindow, window)
}

func TestReassignRequiresConfirmedBooking(t *testing.T) {
	ctx := context.Background()
	f := newFixture(models.Candidate{ProviderID: "P1", Score: 0.9})

	b := f.submit(t, time.Now().Add(24*time.Hour))
	err := f.svc.Reassign(ctx, b.ID, models.IncidentProviderAbsent)
	assert.ErrorIs(t, err, ErrBookingNotConfirmed)
}

func TestInvalidOutcomeRejected(t *testing.T) {
	f := newFixture(models.Candidate{ProviderID: "P1", Score: 0.9})
	b := f.submit(t, time.Now().Add(24*time.Hour))
	a := f.pending(t, b.ID)

	err := f.svc.RecordResponse(context.Background(), a.ID, "maybe")
	assert.ErrorIs(t, err, ErrInvalidOutcome)
}

func TestCandidateFetchFailureLeavesBookingAwaiting(t *testing.T) {
	f := newFixture()
	f.source.err = fmt.Errorf("matching service unavailable")

	b := f.submit(t, time.Now().Add(24*time.Hour))

	final, err := f.bookings.GetByID(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingAwaitingAssignment, final.Status)

	// Once the matcher recovers, a re-kick picks the booking up.
	f.source.mu.Lock()
	f.source.err = nil
	f.source.list = []models.Candidate{{ProviderID: "P1", Score: 0.9}}
	f.source.mu.Unlock()
	require.NoError(t, f.svc.RequestAssignment(context.Background(), b.ID))
	assert.Equal(t, "P1", f.pending(t, b.ID).ProviderID)
}

func TestMarkProgressTransitions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(models.Candidate{ProviderID: "P1", Score: 0.9})

	b := f.submit(t, time.Now().Add(24*time.Hour))
	a := f.pending(t, b.ID)

	// Cannot start a mission before confirmation.
	assert.ErrorIs(t, f.svc.MarkInProgress(ctx, b.ID), ErrInvalidTransition)

	require.NoError(t, f.svc.RecordResponse(ctx, a.ID, OutcomeAccept))
	require.NoError(t, f.svc.MarkInProgress(ctx, b.ID))
	require.NoError(t, f.svc.MarkCompleted(ctx, b.ID))

	final, err := f.bookings.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingCompleted, final.Status)
}
