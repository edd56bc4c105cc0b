package review

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/telehealth-booking/internal/appointment"
	"github.com/hackgods/telehealth-booking/internal/identity"
)

// AppointmentStore is the slice of the appointment repository the review
// service needs to validate a submission.
type AppointmentStore interface {
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
}

type Service struct {
	repo  Repository
	appts AppointmentStore
	log   *zap.Logger
}

func NewService(repo Repository, appts AppointmentStore, log *zap.Logger) *Service {
	return &Service{
		repo:  repo,
		appts: appts,
		log:   log,
	}
}

type SubmitRequest struct {
	Rating    int
	Feedback  *string
	Tags      []string
	Anonymous bool
}

// Submit records the patient's review of a completed session and returns
// the review together with the therapist's recomputed aggregate stats.
// Only the session's patient may review, exactly once per appointment.
func (s *Service) Submit(ctx context.Context, actor identity.Actor, appointmentID uuid.UUID, req SubmitRequest) (*Review, *TherapistStats, error) {
	if req.Rating < 1 || req.Rating > 5 {
		return nil, nil, ErrInvalidRating
	}

	appt, err := s.appts.GetAppointmentByID(ctx, appointmentID)
	if err != nil {
		if errors.Is(err, appointment.ErrAppointmentNotFound) {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("load appointment: %w", err)
	}

	if actor.Role != identity.RolePatient || actor.ID != appt.PatientID {
		return nil, nil, appointment.ErrNotAllowed
	}
	if appt.Status != appointment.StatusCompleted {
		return nil, nil, ErrNotCompleted
	}

	tags := req.Tags
	if tags == nil {
		tags = []string{}
	}

	rev := &Review{
		ID:            uuid.New(),
		AppointmentID: appt.ID,
		PatientID:     appt.PatientID,
		TherapistID:   appt.TherapistID,
		Rating:        req.Rating,
		Feedback:      req.Feedback,
		Tags:          tags,
		Anonymous:     req.Anonymous,
	}

	created, stats, err := s.repo.CreateWithStats(ctx, rev)
	if err != nil {
		return nil, nil, err
	}

	s.log.Info("review recorded",
		zap.String("appointment_id", appt.ID.String()),
		zap.String("therapist_id", appt.TherapistID.String()),
		zap.Int("rating", req.Rating),
		zap.Float64("average_rating", stats.AverageRating),
		zap.Int("total_reviews", stats.TotalReviews),
	)

	return created, stats, nil
}

// ListByTherapist returns a therapist's reviews, newest first. Reviews
// marked anonymous have their patient id withheld at the API layer.
func (s *Service) ListByTherapist(ctx context.Context, therapistID uuid.UUID, limit, offset int) ([]Review, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListByTherapist(ctx, therapistID, limit, offset)
}
