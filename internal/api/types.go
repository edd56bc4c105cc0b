package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/telehealth-booking/internal/appointment"
	"github.com/hackgods/telehealth-booking/internal/review"
)

type BookAppointmentRequest struct {
	TherapistID  string  `json:"therapist_id"`
	ScheduledAt  string  `json:"scheduled_at"` // RFC3339 UTC instant
	DurationMins int     `json:"duration_mins"`
	Timezone     string  `json:"timezone"`
	Type         string  `json:"type"` // scheduled | instant
	AmountCents  int64   `json:"amount_cents"`
	BookingNotes *string `json:"booking_notes,omitempty"`
}

type CancelRequest struct {
	Reason string `json:"reason"`
}

type CompleteRequest struct {
	SessionNotes *string `json:"session_notes,omitempty"`
}

type SubmitReviewRequest struct {
	Rating    int      `json:"rating"`
	Feedback  *string  `json:"feedback,omitempty"`
	Tags      []string `json:"tags,omitempty"`
	Anonymous bool     `json:"anonymous"`
}

type AppointmentResponse struct {
	ID                 uuid.UUID  `json:"id"`
	PatientID          uuid.UUID  `json:"patient_id"`
	TherapistID        uuid.UUID  `json:"therapist_id"`
	ScheduledAt        time.Time  `json:"scheduled_at"`
	Timezone           string     `json:"timezone"`
	DurationMins       int        `json:"duration_mins"`
	Type               string     `json:"type"`
	Status             string     `json:"status"`
	AmountCents        int64      `json:"amount_cents"`
	BookingNotes       *string    `json:"booking_notes,omitempty"`
	SessionNotes       *string    `json:"session_notes,omitempty"`
	CancellationReason *string    `json:"cancellation_reason,omitempty"`
	ConfirmedAt        *time.Time `json:"confirmed_at,omitempty"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

type CancelResponse struct {
	Appointment   AppointmentResponse `json:"appointment"`
	RefundPercent int                 `json:"refund_percent"`
	RefundCents   int64               `json:"refund_cents"`
	ManualReview  bool                `json:"manual_review"`
}

type TherapistResponse struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	Specialty     *string   `json:"specialty,omitempty"`
	Timezone      string    `json:"timezone"`
	AverageRating float64   `json:"average_rating"`
	TotalReviews  int       `json:"total_reviews"`
}

type ReviewResponse struct {
	ID            uuid.UUID  `json:"id"`
	AppointmentID uuid.UUID  `json:"appointment_id"`
	PatientID     *uuid.UUID `json:"patient_id,omitempty"` // withheld for anonymous reviews
	TherapistID   uuid.UUID  `json:"therapist_id"`
	Rating        int        `json:"rating"`
	Feedback      *string    `json:"feedback,omitempty"`
	Tags          []string   `json:"tags"`
	Anonymous     bool       `json:"anonymous"`
	CreatedAt     time.Time  `json:"created_at"`
}

type SubmitReviewResponse struct {
	Review        ReviewResponse `json:"review"`
	AverageRating float64        `json:"average_rating"`
	TotalReviews  int            `json:"total_reviews"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toAppointmentResponse(a *appointment.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:                 a.ID,
		PatientID:          a.PatientID,
		TherapistID:        a.TherapistID,
		ScheduledAt:        a.ScheduledAt,
		Timezone:           a.Timezone,
		DurationMins:       a.DurationMins,
		Type:               string(a.Type),
		Status:             string(a.Status),
		AmountCents:        a.AmountCents,
		BookingNotes:       a.BookingNotes,
		SessionNotes:       a.SessionNotes,
		CancellationReason: a.CancellationReason,
		ConfirmedAt:        a.ConfirmedAt,
		CompletedAt:        a.CompletedAt,
		CancelledAt:        a.CancelledAt,
		CreatedAt:          a.CreatedAt,
		UpdatedAt:          a.UpdatedAt,
	}
}

func toReviewResponse(r *review.Review) ReviewResponse {
	resp := ReviewResponse{
		ID:            r.ID,
		AppointmentID: r.AppointmentID,
		TherapistID:   r.TherapistID,
		Rating:        r.Rating,
		Feedback:      r.Feedback,
		Tags:          r.Tags,
		Anonymous:     r.Anonymous,
		CreatedAt:     r.CreatedAt,
	}
	if !r.Anonymous {
		patientID := r.PatientID
		resp.PatientID = &patientID
	}
	return resp
}
