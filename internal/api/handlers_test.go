package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hackgods/telehealth-booking/internal/appointment"
	"github.com/hackgods/telehealth-booking/internal/identity"
	"github.com/hackgods/telehealth-booking/internal/metrics"
	"github.com/hackgods/telehealth-booking/internal/review"
)

// fakeScheduling returns canned results per method so handler tests can
// exercise status mapping without a real service behind them.
type fakeScheduling struct {
	bookFn    func(req appointment.BookRequest) (*appointment.Appointment, error)
	confirmFn func(actor identity.Actor, id uuid.UUID) (*appointment.Appointment, error)
	cancelFn  func(actor identity.Actor, id uuid.UUID, reason string) (*appointment.Appointment, appointment.RefundQuote, error)
}

func (f *fakeScheduling) Book(_ context.Context, req appointment.BookRequest) (*appointment.Appointment, error) {
	return f.bookFn(req)
}

func (f *fakeScheduling) Confirm(_ context.Context, actor identity.Actor, id uuid.UUID) (*appointment.Appointment, error) {
	return f.confirmFn(actor, id)
}

func (f *fakeScheduling) Decline(_ context.Context, actor identity.Actor, id uuid.UUID, _ string) (*appointment.Appointment, error) {
	return f.confirmFn(actor, id)
}

func (f *fakeScheduling) Cancel(_ context.Context, actor identity.Actor, id uuid.UUID, reason string) (*appointment.Appointment, appointment.RefundQuote, error) {
	return f.cancelFn(actor, id, reason)
}

func (f *fakeScheduling) Complete(_ context.Context, actor identity.Actor, id uuid.UUID, _ *string) (*appointment.Appointment, error) {
	return f.confirmFn(actor, id)
}

func (f *fakeScheduling) Availability(_ context.Context, _ uuid.UUID, _ string) ([]appointment.Slot, error) {
	return []appointment.Slot{}, nil
}

func (f *fakeScheduling) Get(_ context.Context, actor identity.Actor, id uuid.UUID) (*appointment.Appointment, error) {
	return f.confirmFn(actor, id)
}

func (f *fakeScheduling) List(_ context.Context, _ identity.Actor, _, _ int) ([]appointment.Appointment, error) {
	return []appointment.Appointment{}, nil
}

func (f *fakeScheduling) GetTherapist(_ context.Context, _ uuid.UUID) (*appointment.Therapist, error) {
	return nil, appointment.ErrTherapistNotFound
}

type fakeReviews struct {
	submitFn func(actor identity.Actor, appointmentID uuid.UUID, req review.SubmitRequest) (*review.Review, *review.TherapistStats, error)
}

func (f *fakeReviews) Submit(_ context.Context, actor identity.Actor, appointmentID uuid.UUID, req review.SubmitRequest) (*review.Review, *review.TherapistStats, error) {
	return f.submitFn(actor, appointmentID, req)
}

func (f *fakeReviews) ListByTherapist(_ context.Context, _ uuid.UUID, _, _ int) ([]review.Review, error) {
	return []review.Review{}, nil
}

func sampleAppointment(patientID, therapistID uuid.UUID) *appointment.Appointment {
	return &appointment.Appointment{
		ID:           uuid.New(),
		PatientID:    patientID,
		TherapistID:  therapistID,
		ScheduledAt:  time.Date(2024, 6, 3, 14, 0, 0, 0, time.UTC),
		Timezone:     "UTC",
		DurationMins: 60,
		Type:         appointment.TypeScheduled,
		Status:       appointment.StatusPending,
		AmountCents:  8000,
	}
}

func newTestRouter(sched SchedulingService, revs ReviewService) http.Handler {
	return NewRouter(RouterConfig{
		Scheduling: sched,
		Reviews:    revs,
		Identity:   identity.HeaderProvider{},
		Log:        zap.NewNop(),
		Metrics:    metrics.New(),
		Env:        "test",
		Version:    "test",
	})
}

func doJSON(t *testing.T, router http.Handler, method, path string, actor *identity.Actor, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	} else {
		buf.WriteString("{}")
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if actor != nil {
		req.Header.Set("X-Actor-Id", actor.ID.String())
		req.Header.Set("X-Actor-Role", string(actor.Role))
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var e ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e))
	return e.Error
}

func TestBookEndpointCreates(t *testing.T) {
	patientID := uuid.New()
	therapistID := uuid.New()

	sched := &fakeScheduling{
		bookFn: func(req appointment.BookRequest) (*appointment.Appointment, error) {
			assert.Equal(t, patientID, req.PatientID)
			assert.Equal(t, therapistID, req.TherapistID)
			return sampleAppointment(req.PatientID, req.TherapistID), nil
		},
	}
	router := newTestRouter(sched, &fakeReviews{})

	actor := &identity.Actor{ID: patientID, Role: identity.RolePatient}
	rec := doJSON(t, router, http.MethodPost, "/appointments", actor, map[string]any{
		"therapist_id":  therapistID.String(),
		"scheduled_at":  "2024-06-03T14:00:00Z",
		"duration_mins": 60,
		"timezone":      "UTC",
		"type":          "scheduled",
		"amount_cents":  8000,
	})

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp AppointmentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "pending", resp.Status)
	assert.Equal(t, patientID, resp.PatientID)
}

func TestBookEndpointRequiresActor(t *testing.T) {
	router := newTestRouter(&fakeScheduling{}, &fakeReviews{})

	rec := doJSON(t, router, http.MethodPost, "/appointments", nil, map[string]any{})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthenticated", errorCode(t, rec))
}

func TestBookEndpointRejectsTherapistActor(t *testing.T) {
	router := newTestRouter(&fakeScheduling{}, &fakeReviews{})

	actor := &identity.Actor{ID: uuid.New(), Role: identity.RoleTherapist}
	rec := doJSON(t, router, http.MethodPost, "/appointments", actor, map[string]any{})

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "forbidden", errorCode(t, rec))
}

func TestBookEndpointRejectsBadTherapistID(t *testing.T) {
	router := newTestRouter(&fakeScheduling{}, &fakeReviews{})

	actor := &identity.Actor{ID: uuid.New(), Role: identity.RolePatient}
	rec := doJSON(t, router, http.MethodPost, "/appointments", actor, map[string]any{
		"therapist_id": "not-a-uuid",
		"scheduled_at": "2024-06-03T14:00:00Z",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_therapist_id", errorCode(t, rec))
}

func TestBookEndpointConflictMapping(t *testing.T) {
	cases := []struct {
		err  error
		code string
	}{
		{appointment.ErrSlotTaken, "slot_taken"},
		{appointment.ErrSlotBeingBooked, "slot_being_booked"},
	}

	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			sched := &fakeScheduling{
				bookFn: func(appointment.BookRequest) (*appointment.Appointment, error) {
					return nil, tc.err
				},
			}
			router := newTestRouter(sched, &fakeReviews{})

			actor := &identity.Actor{ID: uuid.New(), Role: identity.RolePatient}
			rec := doJSON(t, router, http.MethodPost, "/appointments", actor, map[string]any{
				"therapist_id":  uuid.NewString(),
				"scheduled_at":  "2024-06-03T14:00:00Z",
				"duration_mins": 60,
				"timezone":      "UTC",
				"amount_cents":  8000,
			})

			assert.Equal(t, http.StatusConflict, rec.Code)
			assert.Equal(t, tc.code, errorCode(t, rec))
		})
	}
}

func TestConfirmEndpointStatusMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"invalid transition", appointment.ErrInvalidTransition, http.StatusConflict, "invalid_state"},
		{"not a party", appointment.ErrNotAllowed, http.StatusForbidden, "forbidden"},
		{"unknown appointment", appointment.ErrAppointmentNotFound, http.StatusNotFound, "not_found"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sched := &fakeScheduling{
				confirmFn: func(identity.Actor, uuid.UUID) (*appointment.Appointment, error) {
					return nil, tc.err
				},
			}
			router := newTestRouter(sched, &fakeReviews{})

			actor := &identity.Actor{ID: uuid.New(), Role: identity.RoleTherapist}
			path := fmt.Sprintf("/appointments/%s/confirm", uuid.NewString())
			rec := doJSON(t, router, http.MethodPost, path, actor, nil)

			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.code, errorCode(t, rec))
		})
	}
}

func TestConfirmEndpointRejectsBadID(t *testing.T) {
	router := newTestRouter(&fakeScheduling{}, &fakeReviews{})

	actor := &identity.Actor{ID: uuid.New(), Role: identity.RoleTherapist}
	rec := doJSON(t, router, http.MethodPost, "/appointments/nope/confirm", actor, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_appointment_id", errorCode(t, rec))
}

func TestCancelEndpointReturnsRefundQuote(t *testing.T) {
	patientID := uuid.New()
	therapistID := uuid.New()

	sched := &fakeScheduling{
		cancelFn: func(actor identity.Actor, id uuid.UUID, reason string) (*appointment.Appointment, appointment.RefundQuote, error) {
			assert.Equal(t, "schedule change", reason)
			a := sampleAppointment(patientID, therapistID)
			a.Status = appointment.StatusCancelled
			return a, appointment.RefundQuote{Percent: 50, AmountCents: 4000}, nil
		},
	}
	router := newTestRouter(sched, &fakeReviews{})

	actor := &identity.Actor{ID: patientID, Role: identity.RolePatient}
	path := fmt.Sprintf("/appointments/%s/cancel", uuid.NewString())
	rec := doJSON(t, router, http.MethodPost, path, actor, CancelRequest{Reason: "schedule change"})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp CancelResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "cancelled", resp.Appointment.Status)
	assert.Equal(t, 50, resp.RefundPercent)
	assert.Equal(t, int64(4000), resp.RefundCents)
	assert.False(t, resp.ManualReview)
}

func TestSubmitReviewEndpoint(t *testing.T) {
	patientID := uuid.New()
	therapistID := uuid.New()
	appointmentID := uuid.New()

	revs := &fakeReviews{
		submitFn: func(actor identity.Actor, id uuid.UUID, req review.SubmitRequest) (*review.Review, *review.TherapistStats, error) {
			assert.Equal(t, appointmentID, id)
			assert.Equal(t, 5, req.Rating)
			return &review.Review{
					ID:            uuid.New(),
					AppointmentID: id,
					PatientID:     patientID,
					TherapistID:   therapistID,
					Rating:        5,
					Tags:          []string{"empathetic"},
					Anonymous:     true,
				}, &review.TherapistStats{AverageRating: 4.5, TotalReviews: 2}, nil
		},
	}
	router := newTestRouter(&fakeScheduling{}, revs)

	actor := &identity.Actor{ID: patientID, Role: identity.RolePatient}
	path := fmt.Sprintf("/appointments/%s/review", appointmentID)
	rec := doJSON(t, router, http.MethodPost, path, actor, SubmitReviewRequest{
		Rating:    5,
		Tags:      []string{"empathetic"},
		Anonymous: true,
	})

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp SubmitReviewResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.InDelta(t, 4.5, resp.AverageRating, 1e-9)
	assert.Equal(t, 2, resp.TotalReviews)
	// Anonymous review: patient id withheld from the payload.
	assert.Nil(t, resp.Review.PatientID)
}

func TestSubmitReviewEndpointDuplicate(t *testing.T) {
	revs := &fakeReviews{
		submitFn: func(identity.Actor, uuid.UUID, review.SubmitRequest) (*review.Review, *review.TherapistStats, error) {
			return nil, nil, review.ErrDuplicateReview
		},
	}
	router := newTestRouter(&fakeScheduling{}, revs)

	actor := &identity.Actor{ID: uuid.New(), Role: identity.RolePatient}
	path := fmt.Sprintf("/appointments/%s/review", uuid.NewString())
	rec := doJSON(t, router, http.MethodPost, path, actor, SubmitReviewRequest{Rating: 4})

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "duplicate_review", errorCode(t, rec))
}

func TestAvailabilityEndpointRequiresDate(t *testing.T) {
	router := newTestRouter(&fakeScheduling{}, &fakeReviews{})

	actor := &identity.Actor{ID: uuid.New(), Role: identity.RolePatient}
	path := fmt.Sprintf("/therapists/%s/availability", uuid.NewString())
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("X-Actor-Id", actor.ID.String())
	req.Header.Set("X-Actor-Role", string(actor.Role))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "missing_date", errorCode(t, rec))
}

func TestHeaderProviderRejectsUnknownRole(t *testing.T) {
	router := newTestRouter(&fakeScheduling{}, &fakeReviews{})

	req := httptest.NewRequest(http.MethodGet, "/appointments", nil)
	req.Header.Set("X-Actor-Id", uuid.NewString())
	req.Header.Set("X-Actor-Role", "admin")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
