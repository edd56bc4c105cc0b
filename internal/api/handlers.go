package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hackgods/telehealth-booking/internal/appointment"
	"github.com/hackgods/telehealth-booking/internal/identity"
	"github.com/hackgods/telehealth-booking/internal/review"
)

// SchedulingService is the slice of the appointment service the handlers use.
type SchedulingService interface {
	Book(ctx context.Context, req appointment.BookRequest) (*appointment.Appointment, error)
	Confirm(ctx context.Context, actor identity.Actor, id uuid.UUID) (*appointment.Appointment, error)
	Decline(ctx context.Context, actor identity.Actor, id uuid.UUID, reason string) (*appointment.Appointment, error)
	Cancel(ctx context.Context, actor identity.Actor, id uuid.UUID, reason string) (*appointment.Appointment, appointment.RefundQuote, error)
	Complete(ctx context.Context, actor identity.Actor, id uuid.UUID, sessionNotes *string) (*appointment.Appointment, error)
	Availability(ctx context.Context, therapistID uuid.UUID, date string) ([]appointment.Slot, error)
	Get(ctx context.Context, actor identity.Actor, id uuid.UUID) (*appointment.Appointment, error)
	List(ctx context.Context, actor identity.Actor, limit, offset int) ([]appointment.Appointment, error)
	GetTherapist(ctx context.Context, id uuid.UUID) (*appointment.Therapist, error)
}

type ReviewService interface {
	Submit(ctx context.Context, actor identity.Actor, appointmentID uuid.UUID, req review.SubmitRequest) (*review.Review, *review.TherapistStats, error)
	ListByTherapist(ctx context.Context, therapistID uuid.UUID, limit, offset int) ([]review.Review, error)
}

func bookAppointmentHandler(svc SchedulingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := identity.FromContext(r.Context())
		if !ok || actor.Role != identity.RolePatient {
			writeError(w, http.StatusForbidden, "forbidden", "only patients can book appointments")
			return
		}

		var req BookAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		therapistID, err := uuid.Parse(req.TherapistID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_therapist_id", "therapist_id must be a valid UUID")
			return
		}

		scheduledAt, err := time.Parse(time.RFC3339, req.ScheduledAt)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_scheduled_at", "scheduled_at must be an RFC3339 timestamp")
			return
		}

		apptType := appointment.Type(req.Type)
		if req.Type == "" {
			apptType = appointment.TypeScheduled
		}

		appt, err := svc.Book(r.Context(), appointment.BookRequest{
			PatientID:    actor.ID,
			TherapistID:  therapistID,
			ScheduledAt:  scheduledAt,
			DurationMins: req.DurationMins,
			Timezone:     req.Timezone,
			Type:         apptType,
			AmountCents:  req.AmountCents,
			BookingNotes: req.BookingNotes,
		})
		if err != nil {
			handleDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

func confirmAppointmentHandler(svc SchedulingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, id, ok := actorAndID(w, r)
		if !ok {
			return
		}

		appt, err := svc.Confirm(r.Context(), actor, id)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func declineAppointmentHandler(svc SchedulingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, id, ok := actorAndID(w, r)
		if !ok {
			return
		}

		var req CancelRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		appt, err := svc.Decline(r.Context(), actor, id, req.Reason)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func cancelAppointmentHandler(svc SchedulingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, id, ok := actorAndID(w, r)
		if !ok {
			return
		}

		var req CancelRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		appt, quote, err := svc.Cancel(r.Context(), actor, id, req.Reason)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, CancelResponse{
			Appointment:   toAppointmentResponse(appt),
			RefundPercent: quote.Percent,
			RefundCents:   quote.AmountCents,
			ManualReview:  quote.ManualReview,
		})
	}
}

func completeAppointmentHandler(svc SchedulingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, id, ok := actorAndID(w, r)
		if !ok {
			return
		}

		var req CompleteRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		appt, err := svc.Complete(r.Context(), actor, id, req.SessionNotes)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func getAppointmentHandler(svc SchedulingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, id, ok := actorAndID(w, r)
		if !ok {
			return
		}

		appt, err := svc.Get(r.Context(), actor, id)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func listAppointmentsHandler(svc SchedulingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := identity.FromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthenticated", "missing actor identity")
			return
		}

		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

		appts, err := svc.List(r.Context(), actor, limit, offset)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		resp := make([]AppointmentResponse, 0, len(appts))
		for i := range appts {
			resp = append(resp, toAppointmentResponse(&appts[i]))
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func getTherapistHandler(svc SchedulingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_therapist_id", "id must be a valid UUID")
			return
		}

		therapist, err := svc.GetTherapist(r.Context(), id)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, TherapistResponse{
			ID:            therapist.ID,
			Name:          therapist.Name,
			Specialty:     therapist.Specialty,
			Timezone:      therapist.Timezone,
			AverageRating: therapist.AverageRating,
			TotalReviews:  therapist.TotalReviews,
		})
	}
}

func availabilityHandler(svc SchedulingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_therapist_id", "id must be a valid UUID")
			return
		}

		date := r.URL.Query().Get("date")
		if date == "" {
			writeError(w, http.StatusBadRequest, "missing_date", "date query parameter is required (YYYY-MM-DD)")
			return
		}

		slots, err := svc.Availability(r.Context(), id, date)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, slots)
	}
}

func submitReviewHandler(svc ReviewService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, id, ok := actorAndID(w, r)
		if !ok {
			return
		}

		var req SubmitReviewRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		rev, stats, err := svc.Submit(r.Context(), actor, id, review.SubmitRequest{
			Rating:    req.Rating,
			Feedback:  req.Feedback,
			Tags:      req.Tags,
			Anonymous: req.Anonymous,
		})
		if err != nil {
			handleDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, SubmitReviewResponse{
			Review:        toReviewResponse(rev),
			AverageRating: stats.AverageRating,
			TotalReviews:  stats.TotalReviews,
		})
	}
}

func listReviewsHandler(svc ReviewService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_therapist_id", "id must be a valid UUID")
			return
		}

		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

		reviews, err := svc.ListByTherapist(r.Context(), id, limit, offset)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		resp := make([]ReviewResponse, 0, len(reviews))
		for i := range reviews {
			resp = append(resp, toReviewResponse(&reviews[i]))
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func actorAndID(w http.ResponseWriter, r *http.Request) (identity.Actor, uuid.UUID, bool) {
	actor, ok := identity.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "missing actor identity")
		return identity.Actor{}, uuid.Nil, false
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
		return identity.Actor{}, uuid.Nil, false
	}

	return actor, id, true
}

func handleDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, appointment.ErrPatientNotFound),
		errors.Is(err, appointment.ErrTherapistNotFound),
		errors.Is(err, appointment.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, appointment.ErrSlotTaken):
		writeError(w, http.StatusConflict, "slot_taken", err.Error())
	case errors.Is(err, appointment.ErrSlotBeingBooked):
		writeError(w, http.StatusConflict, "slot_being_booked", "slot is currently being booked, please retry shortly")
	case errors.Is(err, review.ErrDuplicateReview):
		writeError(w, http.StatusConflict, "duplicate_review", err.Error())
	case errors.Is(err, appointment.ErrInvalidTransition),
		errors.Is(err, review.ErrNotCompleted):
		writeError(w, http.StatusConflict, "invalid_state", err.Error())
	case errors.Is(err, appointment.ErrNotAllowed):
		writeError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, appointment.ErrValidation),
		errors.Is(err, review.ErrInvalidRating):
		writeError(w, http.StatusBadRequest, "validation_error", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
