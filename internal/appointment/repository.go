package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrPatientNotFound     = errors.New("patient not found")
	ErrTherapistNotFound   = errors.New("therapist not found")
	ErrAppointmentNotFound = errors.New("appointment not found")
)

// StatusChange carries the fields a transition is allowed to set alongside
// the status itself. Nil fields are left untouched, which is how the "set
// exactly once, only by the matching transition" invariant is kept.
type StatusChange struct {
	ConfirmedAt        *time.Time
	CompletedAt        *time.Time
	CancelledAt        *time.Time
	CancellationReason *string
	SessionNotes       *string
}

// Repository contains all DB interactions needed by the scheduling service.
type Repository interface {
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetTherapistByID(ctx context.Context, id uuid.UUID) (*Therapist, error)

	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error)
	ListAppointmentsByTherapist(ctx context.Context, therapistID uuid.UUID, limit, offset int) ([]Appointment, error)

	// Availability inputs
	ListActiveWindows(ctx context.Context, therapistID uuid.UUID, dayOfWeek int) ([]AvailabilityWindow, error)
	ListBlockedSlots(ctx context.Context, therapistID uuid.UUID, from, to time.Time) ([]BlockedSlot, error)
	ListBookedAppointments(ctx context.Context, therapistID uuid.UUID, from, to time.Time) ([]Appointment, error)

	// CreatePendingAppointment re-checks for a conflicting non-terminal
	// appointment at the exact same start and inserts atomically.
	// Returns ErrSlotTaken on conflict.
	CreatePendingAppointment(ctx context.Context, appt *Appointment) (*Appointment, error)

	// UpdateAppointmentStatus applies a compare-and-swap transition: the
	// update only takes effect if the row's status still equals from.
	// Returns ErrAppointmentNotFound when the CAS misses.
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to Status, change StatusChange) (*Appointment, error)

	// FindOverdueConfirmed returns confirmed appointments whose scheduled
	// end (plus grace) is already in the past. Used by the no-show worker.
	FindOverdueConfirmed(ctx context.Context, cutoff time.Time) ([]Appointment, error)

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}
