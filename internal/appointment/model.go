package appointment

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusNoShow    Status = "no_show"
)

// Terminal reports whether no further transition is permitted from s.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

type Type string

const (
	TypeScheduled Type = "scheduled"
	TypeInstant   Type = "instant"
)

func (t Type) Valid() bool {
	return t == TypeScheduled || t == TypeInstant
}

type Patient struct {
	ID        uuid.UUID
	Name      string
	Email     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Therapist struct {
	ID            uuid.UUID
	Name          string
	Email         *string
	Specialty     *string
	Timezone      string
	AverageRating float64
	TotalReviews  int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// AvailabilityWindow is a therapist's recurring weekly open interval,
// expressed as minutes from local midnight on a given day of week (0=Sunday).
type AvailabilityWindow struct {
	ID          uuid.UUID
	TherapistID uuid.UUID
	DayOfWeek   int
	StartMinute int
	EndMinute   int
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// BlockedSlot removes availability for a concrete date/time range.
type BlockedSlot struct {
	ID          uuid.UUID
	TherapistID uuid.UUID
	StartsAt    time.Time
	EndsAt      time.Time
	Reason      *string
	CreatedAt   time.Time
}

type Appointment struct {
	ID                 uuid.UUID
	PatientID          uuid.UUID
	TherapistID        uuid.UUID
	ScheduledAt        time.Time // UTC instant
	Timezone           string    // originating IANA timezone, e.g. "America/New_York"
	DurationMins       int
	Type               Type
	Status             Status
	AmountCents        int64
	BookingNotes       *string
	SessionNotes       *string
	CancellationReason *string
	ConfirmedAt        *time.Time
	CompletedAt        *time.Time
	CancelledAt        *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// EndsAt is the scheduled end of the session.
func (a *Appointment) EndsAt() time.Time {
	return a.ScheduledAt.Add(time.Duration(a.DurationMins) * time.Minute)
}

// LocalizedStart renders the scheduled start in the appointment's own
// timezone, for notification payloads. Falls back to UTC when the stored
// timezone string does not resolve.
func (a *Appointment) LocalizedStart() string {
	loc, err := time.LoadLocation(a.Timezone)
	if err != nil {
		loc = time.UTC
	}
	return a.ScheduledAt.In(loc).Format("Mon, 02 Jan 2006 at 15:04 (MST)")
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}
