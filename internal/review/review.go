package review

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrDuplicateReview = errors.New("appointment already has a review")
	ErrInvalidRating   = errors.New("rating must be between 1 and 5")
	ErrNotCompleted    = errors.New("appointment is not completed")
)

type Review struct {
	ID            uuid.UUID
	AppointmentID uuid.UUID
	PatientID     uuid.UUID
	TherapistID   uuid.UUID
	Rating        int
	Feedback      *string
	Tags          []string
	Anonymous     bool
	CreatedAt     time.Time
}

// TherapistStats is the aggregate the therapist row carries, recomputed
// from all reviews rather than patched incrementally so it cannot drift.
type TherapistStats struct {
	AverageRating float64
	TotalReviews  int
}

// Repository persists reviews and keeps the therapist aggregate in step.
type Repository interface {
	// CreateWithStats inserts the review and recomputes the therapist's
	// average_rating and total_reviews in the same transaction.
	// Returns ErrDuplicateReview when the appointment already has one.
	CreateWithStats(ctx context.Context, rev *Review) (*Review, *TherapistStats, error)

	ListByTherapist(ctx context.Context, therapistID uuid.UUID, limit, offset int) ([]Review, error)
}
