package review

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hackgods/telehealth-booking/internal/appointment"
	"github.com/hackgods/telehealth-booking/internal/identity"
)

// fakeRepo recomputes the aggregate from all stored reviews on every insert,
// the same contract the postgres implementation keeps inside its transaction.
type fakeRepo struct {
	reviews []Review
}

func (f *fakeRepo) CreateWithStats(_ context.Context, rev *Review) (*Review, *TherapistStats, error) {
	for _, existing := range f.reviews {
		if existing.AppointmentID == rev.AppointmentID {
			return nil, nil, ErrDuplicateReview
		}
	}

	cp := *rev
	cp.CreatedAt = time.Now()
	f.reviews = append(f.reviews, cp)

	stats := f.statsFor(rev.TherapistID)
	out := cp
	return &out, &stats, nil
}

func (f *fakeRepo) ListByTherapist(_ context.Context, therapistID uuid.UUID, limit, offset int) ([]Review, error) {
	var out []Review
	for _, r := range f.reviews {
		if r.TherapistID == therapistID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRepo) statsFor(therapistID uuid.UUID) TherapistStats {
	var sum, count int
	for _, r := range f.reviews {
		if r.TherapistID == therapistID {
			sum += r.Rating
			count++
		}
	}
	if count == 0 {
		return TherapistStats{}
	}
	return TherapistStats{
		AverageRating: float64(sum) / float64(count),
		TotalReviews:  count,
	}
}

type fakeAppointments struct {
	appts map[uuid.UUID]*appointment.Appointment
}

func (f *fakeAppointments) GetAppointmentByID(_ context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	a, ok := f.appts[id]
	if !ok {
		return nil, appointment.ErrAppointmentNotFound
	}
	return a, nil
}

func newReviewFixture() (*Service, *fakeRepo, *fakeAppointments, uuid.UUID) {
	repo := &fakeRepo{}
	appts := &fakeAppointments{appts: make(map[uuid.UUID]*appointment.Appointment)}
	svc := NewService(repo, appts, zap.NewNop())
	therapistID := uuid.New()
	return svc, repo, appts, therapistID
}

func completedAppointment(appts *fakeAppointments, therapistID uuid.UUID) *appointment.Appointment {
	a := &appointment.Appointment{
		ID:          uuid.New(),
		PatientID:   uuid.New(),
		TherapistID: therapistID,
		Status:      appointment.StatusCompleted,
	}
	appts.appts[a.ID] = a
	return a
}

func TestSubmitRecomputesAggregate(t *testing.T) {
	svc, _, appts, therapistID := newReviewFixture()

	for i, rating := range []int{5, 3, 4} {
		a := completedAppointment(appts, therapistID)
		actor := identity.Actor{ID: a.PatientID, Role: identity.RolePatient}

		rev, stats, err := svc.Submit(context.Background(), actor, a.ID, SubmitRequest{Rating: rating})
		require.NoError(t, err, "review %d", i)
		assert.Equal(t, rating, rev.Rating)
		assert.Equal(t, i+1, stats.TotalReviews)
	}

	// One more to push the average off a clean value: (5+3+4+1)/4 = 3.25.
	a := completedAppointment(appts, therapistID)
	actor := identity.Actor{ID: a.PatientID, Role: identity.RolePatient}
	_, stats, err := svc.Submit(context.Background(), actor, a.ID, SubmitRequest{Rating: 1})
	require.NoError(t, err)
	assert.InDelta(t, 3.25, stats.AverageRating, 1e-9)
	assert.Equal(t, 4, stats.TotalReviews)
}

func TestSubmitDuplicateLeavesStatsAlone(t *testing.T) {
	svc, repo, appts, therapistID := newReviewFixture()
	a := completedAppointment(appts, therapistID)
	actor := identity.Actor{ID: a.PatientID, Role: identity.RolePatient}

	_, stats, err := svc.Submit(context.Background(), actor, a.ID, SubmitRequest{Rating: 5})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalReviews)

	_, _, err = svc.Submit(context.Background(), actor, a.ID, SubmitRequest{Rating: 1})
	assert.ErrorIs(t, err, ErrDuplicateReview)

	after := repo.statsFor(therapistID)
	assert.Equal(t, 1, after.TotalReviews)
	assert.InDelta(t, 5.0, after.AverageRating, 1e-9)
}

func TestSubmitRejectsOutOfRangeRating(t *testing.T) {
	svc, _, appts, therapistID := newReviewFixture()
	a := completedAppointment(appts, therapistID)
	actor := identity.Actor{ID: a.PatientID, Role: identity.RolePatient}

	for _, rating := range []int{0, -1, 6} {
		_, _, err := svc.Submit(context.Background(), actor, a.ID, SubmitRequest{Rating: rating})
		assert.ErrorIs(t, err, ErrInvalidRating, "rating %d", rating)
	}
}

func TestSubmitRequiresCompletedAppointment(t *testing.T) {
	svc, _, appts, therapistID := newReviewFixture()
	a := completedAppointment(appts, therapistID)
	a.Status = appointment.StatusConfirmed
	actor := identity.Actor{ID: a.PatientID, Role: identity.RolePatient}

	_, _, err := svc.Submit(context.Background(), actor, a.ID, SubmitRequest{Rating: 5})
	assert.ErrorIs(t, err, ErrNotCompleted)
}

func TestSubmitRequiresPatientOfRecord(t *testing.T) {
	svc, _, appts, therapistID := newReviewFixture()
	a := completedAppointment(appts, therapistID)

	otherPatient := identity.Actor{ID: uuid.New(), Role: identity.RolePatient}
	_, _, err := svc.Submit(context.Background(), otherPatient, a.ID, SubmitRequest{Rating: 5})
	assert.ErrorIs(t, err, appointment.ErrNotAllowed)

	// The therapist cannot review their own session either.
	therapist := identity.Actor{ID: therapistID, Role: identity.RoleTherapist}
	_, _, err = svc.Submit(context.Background(), therapist, a.ID, SubmitRequest{Rating: 5})
	assert.ErrorIs(t, err, appointment.ErrNotAllowed)
}

func TestSubmitUnknownAppointment(t *testing.T) {
	svc, _, _, _ := newReviewFixture()
	actor := identity.Actor{ID: uuid.New(), Role: identity.RolePatient}

	_, _, err := svc.Submit(context.Background(), actor, uuid.New(), SubmitRequest{Rating: 4})
	assert.ErrorIs(t, err, appointment.ErrAppointmentNotFound)
}

func TestSubmitDefaultsTags(t *testing.T) {
	svc, _, appts, therapistID := newReviewFixture()
	a := completedAppointment(appts, therapistID)
	actor := identity.Actor{ID: a.PatientID, Role: identity.RolePatient}

	rev, _, err := svc.Submit(context.Background(), actor, a.ID, SubmitRequest{Rating: 4, Anonymous: true})
	require.NoError(t, err)
	assert.NotNil(t, rev.Tags)
	assert.Empty(t, rev.Tags)
	assert.True(t, rev.Anonymous)
}
