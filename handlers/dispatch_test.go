package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	assignmentRepo "servly/database/repository/assignment"
	bookingRepo "servly/database/repository/booking"
	incidentRepo "servly/database/repository/incident"
	"servly/handlers"
	"servly/models"
	"servly/routes"
	"servly/services/dispatch"
	"servly/services/incident"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubCandidates struct {
	list []models.Candidate
}

func (s *stubCandidates) GetRankedCandidates(ctx context.Context, bookingID string) ([]models.Candidate, error) {
	return s.list, nil
}

type nopNotifier struct{}

func (nopNotifier) Notify(ctx context.Context, recipientType, recipientID, templateKind string, data map[string]string) error {
	return nil
}

type noopTimers struct{}

func (noopTimers) Arm(assignmentID string, expiresAt time.Time) {}
func (noopTimers) Disarm(assignmentID string)                   {}

func newTestRouter(candidates ...models.Candidate) (*gin.Engine, *assignmentRepo.MemoryAssignmentRepo) {
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()

	bookings := bookingRepo.NewMemoryBookingRepo()
	ledger := assignmentRepo.NewMemoryAssignmentRepo()
	incidents := incidentRepo.NewMemoryIncidentRepo()

	svc := dispatch.NewDispatchService(
		bookings,
		ledger,
		&stubCandidates{list: candidates},
		noopTimers{},
		nopNotifier{},
		dispatch.Policy{
			StandardWindow:   30 * time.Minute,
			UrgentWindow:     10 * time.Minute,
			UrgencyThreshold: 4 * time.Hour,
		},
		logger,
	)
	incidentSvc := &incident.DefaultIncidentService{
		Repo:     incidents,
		Dispatch: svc,
		Notifier: nopNotifier{},
		Logger:   logger,
	}

	router := gin.New()
	routes.RegisterRoutes(router, handlers.NewDispatchHandler(svc, logger), handlers.NewIncidentHandler(incidentSvc, logger))
	return router, ledger
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestSubmitBookingEndpoint(t *testing.T) {
	router, ledger := newTestRouter(models.Candidate{ProviderID: "P1", Score: 0.9})

	w := doJSON(t, router, http.MethodPost, "/api/dispatch/bookings", gin.H{
		"user_id":      "user-1",
		"service_type": "cleaning",
		"start":        time.Now().Add(24 * time.Hour).Format(time.RFC3339),
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var created models.Booking
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, models.BookingAssignedPending, created.Status)

	pending, err := ledger.GetPending(context.Background(), created.ID)
	require.NoError(t, err)
	require.NotNil(t, pending)
	assert.Equal(t, "P1", pending.ProviderID)
}

func TestSubmitBookingValidation(t *testing.T) {
	router, _ := newTestRouter()
	w := doJSON(t, router, http.MethodPost, "/api/dispatch/bookings", gin.H{
		"service_type": "cleaning",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProviderResponseEndpoint(t *testing.T) {
	router, ledger := newTestRouter(models.Candidate{ProviderID: "P1", Score: 0.9})

	w := doJSON(t, router, http.MethodPost, "/api/dispatch/bookings", gin.H{
		"user_id":      "user-1",
		"service_type": "cleaning",
		"start":        time.Now().Add(24 * time.Hour).Format(time.RFC3339),
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var created models.Booking
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	pending, err := ledger.GetPending(context.Background(), created.ID)
	require.NoError(t, err)
	require.NotNil(t, pending)

	w = doJSON(t, router, http.MethodPost, fmt.Sprintf("/api/dispatch/assignments/%s/response", pending.ID), gin.H{
		"outcome": "accept",
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, http.MethodGet, fmt.Sprintf("/api/dispatch/bookings/%s", created.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var fetched models.Booking
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &fetched))
	assert.Equal(t, models.BookingConfirmed, fetched.Status)
	assert.Equal(t, "P1", fetched.ProviderID)

	// A duplicate or invalid outcome is rejected with 400.
	w = doJSON(t, router, http.MethodPost, fmt.Sprintf("/api/dispatch/assignments/%s/response", pending.ID), gin.H{
		"outcome": "shrug",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAssignmentHistoryEndpoint(t *testing.T) {
	router, ledger := newTestRouter(
		models.Candidate{ProviderID: "P1", Score: 0.9},
		models.Candidate{ProviderID: "P2", Score: 0.7},
	)

	w := doJSON(t, router, http.MethodPost, "/api/dispatch/bookings", gin.H{
		"user_id":      "user-1",
		"service_type": "cleaning",
		"start":        time.Now().Add(24 * time.Hour).Format(time.RFC3339),
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var created models.Booking
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	pending, err := ledger.GetPending(context.Background(), created.ID)
	require.NoError(t, err)
	w = doJSON(t, router, http.MethodPost, fmt.Sprintf("/api/dispatch/assignments/%s/response", pending.ID), gin.H{
		"outcome": "reject",
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, http.MethodGet, fmt.Sprintf("/api/dispatch/bookings/%s/assignments", created.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)

	var out struct {
		Assignments []models.Assignment `json:"assignments"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	require.Len(t, out.Assignments, 2)
	assert.Equal(t, models.AssignmentRejected, out.Assignments[0].Status)
	assert.Equal(t, models.AssignmentPending, out.Assignments[1].Status)
}

func TestIncidentReportEndpoint(t *testing.T) {
	router, ledger := newTestRouter(
		models.Candidate{ProviderID: "P1", Score: 0.9},
		models.Candidate{ProviderID: "P2", Score: 0.7},
	)

	w := doJSON(t, router, http.MethodPost, "/api/dispatch/bookings", gin.H{
		"user_id":      "user-1",
		"service_type": "cleaning",
		"start":        time.Now().Add(24 * time.Hour).Format(time.RFC3339),
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var created models.Booking
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	pending, err := ledger.GetPending(context.Background(), created.ID)
	require.NoError(t, err)
	w = doJSON(t, router, http.MethodPost, fmt.Sprintf("/api/dispatch/assignments/%s/response", pending.ID), gin.H{
		"outcome": "accept",
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, http.MethodPost, "/api/dispatch/incidents", gin.H{
		"booking_id": created.ID,
		"type":       models.IncidentProviderAbsent,
		"severity":   models.SeverityHigh,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	replacement, err := ledger.GetPending(context.Background(), created.ID)
	require.NoError(t, err)
	require.NotNil(t, replacement)
	assert.Equal(t, "P2", replacement.ProviderID)
}

func TestCancelBookingEndpoint(t *testing.T) {
	router, ledger := newTestRouter(models.Candidate{ProviderID: "P1", Score: 0.9})

	w := doJSON(t, router, http.MethodPost, "/api/dispatch/bookings", gin.H{
		"user_id":      "user-1",
		"service_type": "cleaning",
		"start":        time.Now().Add(24 * time.Hour).Format(time.RFC3339),
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var created models.Booking
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = doJSON(t, router, http.MethodPost, fmt.Sprintf("/api/dispatch/bookings/%s/cancel", created.ID), gin.H{
		"reason": "changed my mind",
	})
	require.Equal(t, http.StatusOK, w.Code)

	pending, err := ledger.GetPending(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Nil(t, pending)
}
