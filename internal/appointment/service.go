package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/telehealth-booking/internal/config"
	"github.com/hackgods/telehealth-booking/internal/identity"
	"github.com/hackgods/telehealth-booking/internal/metrics"
	"github.com/hackgods/telehealth-booking/internal/notify"
	"github.com/hackgods/telehealth-booking/internal/payment"
	redisclient "github.com/hackgods/telehealth-booking/internal/redis"
)

const (
	EventBookingRequested     = "BOOKING_REQUESTED"
	EventAppointmentConfirmed = "APPOINTMENT_CONFIRMED"
	EventAppointmentDeclined  = "APPOINTMENT_DECLINED"
	EventAppointmentCancelled = "APPOINTMENT_CANCELLED"
	EventAppointmentCompleted = "APPOINTMENT_COMPLETED"
	EventAppointmentNoShow    = "APPOINTMENT_NO_SHOW"
)

var (
	ErrSlotTaken         = errors.New("slot already has a pending or confirmed appointment")
	ErrSlotBeingBooked   = errors.New("slot is currently being booked, please retry")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrNotAllowed        = errors.New("actor is not a party to this appointment")
	ErrValidation        = errors.New("invalid input")
)

type Service struct {
	repo     Repository
	locker   redisclient.Locker
	notifier *notify.Dispatcher
	payments payment.Processor
	log      *zap.Logger
	m        *metrics.Metrics
	cfg      config.Config

	now func() time.Time
}

func NewService(repo Repository, locker redisclient.Locker, notifier *notify.Dispatcher, payments payment.Processor, log *zap.Logger, m *metrics.Metrics, cfg config.Config) *Service {
	return &Service{
		repo:     repo,
		locker:   locker,
		notifier: notifier,
		payments: payments,
		log:      log,
		m:        m,
		cfg:      cfg,
		now:      time.Now,
	}
}

type BookRequest struct {
	PatientID    uuid.UUID
	TherapistID  uuid.UUID
	ScheduledAt  time.Time
	DurationMins int
	Timezone     string
	Type         Type
	AmountCents  int64
	BookingNotes *string
}

func (r BookRequest) validate() error {
	if r.ScheduledAt.IsZero() {
		return fmt.Errorf("%w: scheduled_at is required", ErrValidation)
	}
	if r.DurationMins <= 0 {
		return fmt.Errorf("%w: duration_mins must be positive", ErrValidation)
	}
	if r.AmountCents < 0 {
		return fmt.Errorf("%w: amount_cents must not be negative", ErrValidation)
	}
	if !r.Type.Valid() {
		return fmt.Errorf("%w: type must be scheduled or instant", ErrValidation)
	}
	if _, err := time.LoadLocation(r.Timezone); err != nil {
		return fmt.Errorf("%w: unknown timezone %q", ErrValidation, r.Timezone)
	}
	return nil
}

// Book creates a PENDING appointment for the requested therapist slot.
// A distributed lock keyed by therapist and start instant serializes
// concurrent requests for the same slot, and the repository re-checks for a
// non-terminal appointment at the exact same start inside its transaction.
func (s *Service) Book(ctx context.Context, req BookRequest) (*Appointment, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	patient, err := s.repo.GetPatientByID(ctx, req.PatientID)
	if err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load patient: %w", err)
	}

	if _, err := s.repo.GetTherapistByID(ctx, req.TherapistID); err != nil {
		if errors.Is(err, ErrTherapistNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load therapist: %w", err)
	}

	var created *Appointment

	err = s.locker.WithBookingLock(ctx, req.TherapistID, req.ScheduledAt, func(lockCtx context.Context) error {
		appt := &Appointment{
			ID:           uuid.New(),
			PatientID:    req.PatientID,
			TherapistID:  req.TherapistID,
			ScheduledAt:  req.ScheduledAt.UTC(),
			Timezone:     req.Timezone,
			DurationMins: req.DurationMins,
			Type:         req.Type,
			Status:       StatusPending,
			AmountCents:  req.AmountCents,
			BookingNotes: req.BookingNotes,
		}

		var createErr error
		created, createErr = s.repo.CreatePendingAppointment(lockCtx, appt)
		if createErr != nil {
			return createErr
		}

		s.logEvent(lockCtx, created.ID, EventBookingRequested, map[string]any{
			"patient_id":   req.PatientID.String(),
			"therapist_id": req.TherapistID.String(),
			"scheduled_at": created.ScheduledAt,
		})

		return nil
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			s.countBooking("contended")
			return nil, ErrSlotBeingBooked
		}
		if errors.Is(err, ErrSlotTaken) {
			s.countBooking("conflict")
			return nil, err
		}
		s.countBooking("error")
		return nil, err
	}

	s.countBooking("created")
	s.notifier.Notify(ctx, created.TherapistID, notify.KindBookingRequest, map[string]string{
		"appointment_id": created.ID.String(),
		"patient_name":   patient.Name,
		"scheduled_for":  created.LocalizedStart(),
	})

	return created, nil
}

// Confirm moves a pending appointment to confirmed. Only the therapist of
// record may confirm.
func (s *Service) Confirm(ctx context.Context, actor identity.Actor, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}

	if actor.Role != identity.RoleTherapist || actor.ID != appt.TherapistID {
		return nil, ErrNotAllowed
	}
	if appt.Status != StatusPending {
		return nil, ErrInvalidTransition
	}

	now := s.now().UTC()
	updated, err := s.repo.UpdateAppointmentStatus(ctx, appt.ID, StatusPending, StatusConfirmed, StatusChange{
		ConfirmedAt: &now,
	})
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			// Status changed under us between the read and the CAS.
			return nil, ErrInvalidTransition
		}
		return nil, fmt.Errorf("confirm appointment: %w", err)
	}

	s.countTransition(StatusConfirmed)
	s.logEvent(ctx, updated.ID, EventAppointmentConfirmed, map[string]any{})
	s.notifier.Notify(ctx, updated.PatientID, notify.KindBookingConfirmed, map[string]string{
		"appointment_id": updated.ID.String(),
		"scheduled_for":  updated.LocalizedStart(),
	})

	return updated, nil
}

// Decline is the therapist rejecting a booking request that is still
// pending. No refund quote is produced; payment was never captured for an
// unconfirmed booking.
func (s *Service) Decline(ctx context.Context, actor identity.Actor, id uuid.UUID, reason string) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}

	if actor.Role != identity.RoleTherapist || actor.ID != appt.TherapistID {
		return nil, ErrNotAllowed
	}
	if appt.Status != StatusPending {
		return nil, ErrInvalidTransition
	}

	now := s.now().UTC()
	updated, err := s.repo.UpdateAppointmentStatus(ctx, appt.ID, StatusPending, StatusCancelled, StatusChange{
		CancelledAt:        &now,
		CancellationReason: &reason,
	})
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, ErrInvalidTransition
		}
		return nil, fmt.Errorf("decline appointment: %w", err)
	}

	s.countTransition(StatusCancelled)
	s.logEvent(ctx, updated.ID, EventAppointmentDeclined, map[string]any{"reason": reason})
	s.notifier.Notify(ctx, updated.PatientID, notify.KindBookingDeclined, map[string]string{
		"appointment_id": updated.ID.String(),
		"scheduled_for":  updated.LocalizedStart(),
		"reason":         reason,
	})

	return updated, nil
}

// Cancel tears down a pending or confirmed appointment. Either party of
// record may cancel. The refund quote is computed from the time remaining
// before the scheduled start and handed to the payment collaborator; the
// quote is also returned to the caller.
func (s *Service) Cancel(ctx context.Context, actor identity.Actor, id uuid.UUID, reason string) (*Appointment, RefundQuote, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, RefundQuote{}, fmt.Errorf("load appointment: %w", err)
	}

	if !isParty(actor, appt) {
		return nil, RefundQuote{}, ErrNotAllowed
	}
	if appt.Status != StatusPending && appt.Status != StatusConfirmed {
		return nil, RefundQuote{}, ErrInvalidTransition
	}

	now := s.now().UTC()
	quote := QuoteRefund(appt, now)

	updated, err := s.repo.UpdateAppointmentStatus(ctx, appt.ID, appt.Status, StatusCancelled, StatusChange{
		CancelledAt:        &now,
		CancellationReason: &reason,
	})
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, RefundQuote{}, ErrInvalidTransition
		}
		return nil, RefundQuote{}, fmt.Errorf("cancel appointment: %w", err)
	}

	s.countTransition(StatusCancelled)
	s.logEvent(ctx, updated.ID, EventAppointmentCancelled, map[string]any{
		"reason":         reason,
		"cancelled_by":   string(actor.Role),
		"refund_percent": quote.Percent,
		"manual_review":  quote.ManualReview,
	})

	// The state change is already committed; a processor failure is an
	// operational problem for the payment side, not a reason to resurrect
	// the appointment.
	if err := s.payments.Refund(ctx, updated.ID, quote.AmountCents, quote.Percent); err != nil {
		s.log.Error("refund instruction failed",
			zap.String("appointment_id", updated.ID.String()),
			zap.Int("percent", quote.Percent),
			zap.Error(err),
		)
	}

	recipient := updated.PatientID
	if actor.Role == identity.RolePatient {
		recipient = updated.TherapistID
	}
	s.notifier.Notify(ctx, recipient, notify.KindAppointmentCancelled, map[string]string{
		"appointment_id": updated.ID.String(),
		"scheduled_for":  updated.LocalizedStart(),
		"reason":         reason,
	})

	return updated, quote, nil
}

// Complete closes out a confirmed session, optionally attaching the
// therapist's session notes.
func (s *Service) Complete(ctx context.Context, actor identity.Actor, id uuid.UUID, sessionNotes *string) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}

	if actor.Role != identity.RoleTherapist || actor.ID != appt.TherapistID {
		return nil, ErrNotAllowed
	}
	if appt.Status != StatusConfirmed {
		return nil, ErrInvalidTransition
	}

	now := s.now().UTC()
	updated, err := s.repo.UpdateAppointmentStatus(ctx, appt.ID, StatusConfirmed, StatusCompleted, StatusChange{
		CompletedAt:  &now,
		SessionNotes: sessionNotes,
	})
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, ErrInvalidTransition
		}
		return nil, fmt.Errorf("complete appointment: %w", err)
	}

	s.countTransition(StatusCompleted)
	s.logEvent(ctx, updated.ID, EventAppointmentCompleted, map[string]any{})

	return updated, nil
}

// MarkNoShows is called by the worker. Confirmed appointments whose
// scheduled end passed the grace period ago are moved to no_show.
func (s *Service) MarkNoShows(ctx context.Context) (int, error) {
	cutoff := s.now().UTC().Add(-s.cfg.NoShowGrace)

	overdue, err := s.repo.FindOverdueConfirmed(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("find overdue confirmed appointments: %w", err)
	}

	marked := 0
	for _, appt := range overdue {
		_, err := s.repo.UpdateAppointmentStatus(ctx, appt.ID, StatusConfirmed, StatusNoShow, StatusChange{})
		if err != nil {
			if errors.Is(err, ErrAppointmentNotFound) {
				continue // completed or cancelled since the scan
			}
			s.log.Error("failed to mark no-show",
				zap.String("appointment_id", appt.ID.String()),
				zap.Error(err),
			)
			continue
		}
		marked++
		s.countTransition(StatusNoShow)
		s.logEvent(ctx, appt.ID, EventAppointmentNoShow, map[string]any{"reason": "worker"})
	}

	return marked, nil
}

// Availability computes the free slots for a therapist on a calendar date,
// in the therapist's own timezone. Purely advisory: no locks, no writes.
func (s *Service) Availability(ctx context.Context, therapistID uuid.UUID, date string) ([]Slot, error) {
	therapist, err := s.repo.GetTherapistByID(ctx, therapistID)
	if err != nil {
		if errors.Is(err, ErrTherapistNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load therapist: %w", err)
	}

	loc, err := time.LoadLocation(therapist.Timezone)
	if err != nil {
		loc = time.UTC
	}

	day, err := time.ParseInLocation("2006-01-02", date, loc)
	if err != nil {
		return nil, fmt.Errorf("%w: date must be YYYY-MM-DD", ErrValidation)
	}

	windows, err := s.repo.ListActiveWindows(ctx, therapistID, int(day.Weekday()))
	if err != nil {
		return nil, fmt.Errorf("list availability windows: %w", err)
	}

	dayEnd := day.AddDate(0, 0, 1)

	blocked, err := s.repo.ListBlockedSlots(ctx, therapistID, day, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("list blocked slots: %w", err)
	}

	booked, err := s.repo.ListBookedAppointments(ctx, therapistID, day, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("list booked appointments: %w", err)
	}

	return FreeSlots(windows, blocked, booked, day, loc, s.cfg.SlotDuration), nil
}

// Get returns a single appointment, visible only to its parties.
func (s *Service) Get(ctx context.Context, actor identity.Actor, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}
	if !isParty(actor, appt) {
		return nil, ErrNotAllowed
	}
	return appt, nil
}

// List returns the actor's own appointments, newest first.
func (s *Service) List(ctx context.Context, actor identity.Actor, limit, offset int) ([]Appointment, error) {
	if limit <= 0 {
		limit = 20 // default
	}
	if limit > 100 {
		limit = 100 // max
	}
	if offset < 0 {
		offset = 0
	}

	if actor.Role == identity.RoleTherapist {
		return s.repo.ListAppointmentsByTherapist(ctx, actor.ID, limit, offset)
	}
	return s.repo.ListAppointmentsByPatient(ctx, actor.ID, limit, offset)
}

// GetTherapist returns the therapist profile with its aggregate review stats.
func (s *Service) GetTherapist(ctx context.Context, id uuid.UUID) (*Therapist, error) {
	return s.repo.GetTherapistByID(ctx, id)
}

func isParty(actor identity.Actor, appt *Appointment) bool {
	switch actor.Role {
	case identity.RolePatient:
		return actor.ID == appt.PatientID
	case identity.RoleTherapist:
		return actor.ID == appt.TherapistID
	}
	return false
}

func (s *Service) countBooking(result string) {
	if s.m != nil {
		s.m.BookingsTotal.WithLabelValues(result).Inc()
	}
}

func (s *Service) countTransition(to Status) {
	if s.m != nil {
		s.m.TransitionsTotal.WithLabelValues(string(to)).Inc()
	}
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Warn("failed to marshal event payload", zap.String("event", eventType), zap.Error(err))
		data = nil
	}

	apptID := appointmentID

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     s.now().UTC(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.log.Warn("failed to insert event log",
			zap.String("event", eventType),
			zap.String("appointment_id", appointmentID.String()),
			zap.Error(err),
		)
	}
}
