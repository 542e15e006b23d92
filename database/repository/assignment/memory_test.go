package assignmentRepo

import (
	"context"
	"sync"
	"testing"
	"time"

	"servly/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T, repo *MemoryAssignmentRepo, id, bookingID, status string, expiresAt time.Time) {
	t.Helper()
	require.NoError(t, repo.Create(context.Background(), &models.Assignment{
		ID:         id,
		BookingID:  bookingID,
		ProviderID: "prov-" + id,
		Rank:       1,
		Status:     status,
		OfferedAt:  time.Now(),
		ExpiresAt:  expiresAt,
	}))
}

func TestTransitionStatusSingleWinner(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryAssignmentRepo()
	seed(t, repo, "a1", "b1", models.AssignmentPending, time.Now().Add(time.Hour))

	row, won, err := repo.TransitionStatus(ctx, "a1", models.AssignmentPending, models.AssignmentAccepted, time.Now(), "")
	require.NoError(t, err)
	assert.True(t, won)
	assert.Equal(t, models.AssignmentAccepted, row.Status)
	require.NotNil(t, row.RespondedAt)

	// The losing transition observes the settled row, not an error.
	row, won, err = repo.TransitionStatus(ctx, "a1", models.AssignmentPending, models.AssignmentTimeout, time.Now(), "")
	require.NoError(t, err)
	assert.False(t, won)
	assert.Equal(t, models.AssignmentAccepted, row.Status)
}

func TestTransitionStatusConcurrentCallers(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryAssignmentRepo()
	seed(t, repo, "a1", "b1", models.AssignmentPending, time.Now().Add(time.Hour))

	outcomes := []string{models.AssignmentAccepted, models.AssignmentRejected, models.AssignmentTimeout}
	wins := make(chan string, len(outcomes))
	var wg sync.WaitGroup
	for _, to := range outcomes {
		wg.Add(1)
		go func(to string) {
			defer wg.Done()
			_, won, err := repo.TransitionStatus(ctx, "a1", models.AssignmentPending, to, time.Now(), "")
			require.NoError(t, err)
			if won {
				wins <- to
			}
		}(to)
	}
	wg.Wait()
	close(wins)

	var winners []string
	for w := range wins {
		winners = append(winners, w)
	}
	require.Len(t, winners, 1)

	row, err := repo.GetByID(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, winners[0], row.Status)
}

func TestTransitionStatusFromNonPendingState(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryAssignmentRepo()
	seed(t, repo, "a1", "b1", models.AssignmentAccepted, time.Now().Add(time.Hour))

	// Retroactive invalidation moves accepted rows to superseded.
	row, won, err := repo.TransitionStatus(ctx, "a1", models.AssignmentAccepted, models.AssignmentSuperseded, time.Now(), "provider_absent")
	require.NoError(t, err)
	assert.True(t, won)
	assert.Equal(t, models.AssignmentSuperseded, row.Status)
	assert.Equal(t, "provider_absent", row.Reason)
}

func TestListExpiredPending(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryAssignmentRepo()
	now := time.Now()
	seed(t, repo, "past-pending", "b1", models.AssignmentPending, now.Add(-time.Minute))
	seed(t, repo, "future-pending", "b2", models.AssignmentPending, now.Add(time.Hour))
	seed(t, repo, "past-settled", "b3", models.AssignmentTimeout, now.Add(-time.Minute))

	rows, err := repo.ListExpiredPending(ctx, now)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "past-pending", rows[0].ID)
}

func TestListByBookingOrderedByRank(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryAssignmentRepo()
	for i, id := range []string{"third", "first", "second"} {
		rank := []int{3, 1, 2}[i]
		require.NoError(t, repo.Create(ctx, &models.Assignment{
			ID:        id,
			BookingID: "b1",
			Rank:      rank,
			Status:    models.AssignmentRejected,
			OfferedAt: time.Now(),
			ExpiresAt: time.Now().Add(time.Hour),
		}))
	}

	rows, err := repo.ListByBooking(ctx, "b1")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"first", "second", "third"}, []string{rows[0].ID, rows[1].ID, rows[2].ID})
}
