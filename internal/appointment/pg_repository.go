package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/hackgods/telehealth-booking/internal/notify"
)

// PgxPool is the subset of *pgxpool.Pool the repository needs. pgxmock
// implements it too, which is what the repository tests run against.
type PgxPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PgRepository struct {
	pool PgxPool
}

func NewPgRepository(pool PgxPool) *PgRepository {
	return &PgRepository{pool: pool}
}

const appointmentColumns = `
	id, patient_id, therapist_id, scheduled_at, timezone, duration_mins,
	type, status, amount_cents, booking_notes, session_notes,
	cancellation_reason, confirmed_at, completed_at, cancelled_at,
	created_at, updated_at`

// Helpers

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient

	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Email,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}

	return &p, nil
}

func scanTherapist(row pgx.Row) (*Therapist, error) {
	var t Therapist

	err := row.Scan(
		&t.ID,
		&t.Name,
		&t.Email,
		&t.Specialty,
		&t.Timezone,
		&t.AverageRating,
		&t.TotalReviews,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTherapistNotFound
		}
		return nil, err
	}

	return &t, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment

	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.TherapistID,
		&a.ScheduledAt,
		&a.Timezone,
		&a.DurationMins,
		&a.Type,
		&a.Status,
		&a.AmountCents,
		&a.BookingNotes,
		&a.SessionNotes,
		&a.CancellationReason,
		&a.ConfirmedAt,
		&a.CompletedAt,
		&a.CancelledAt,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	return &a, nil
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// Interface methods

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, email, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (r *PgRepository) GetTherapistByID(ctx context.Context, id uuid.UUID) (*Therapist, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, email, specialty, timezone, average_rating, total_reviews, created_at, updated_at
		FROM therapists
		WHERE id = $1
	`, id)
	return scanTherapist(row)
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE patient_id = $1
		ORDER BY scheduled_at DESC
		LIMIT $2 OFFSET $3
	`, patientID, limit, offset)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) ListAppointmentsByTherapist(ctx context.Context, therapistID uuid.UUID, limit, offset int) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE therapist_id = $1
		ORDER BY scheduled_at DESC
		LIMIT $2 OFFSET $3
	`, therapistID, limit, offset)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) ListActiveWindows(ctx context.Context, therapistID uuid.UUID, dayOfWeek int) ([]AvailabilityWindow, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, therapist_id, day_of_week, start_minute, end_minute, active, created_at, updated_at
		FROM availability_windows
		WHERE therapist_id = $1 AND day_of_week = $2 AND active
		ORDER BY start_minute
	`, therapistID, dayOfWeek)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []AvailabilityWindow
	for rows.Next() {
		var w AvailabilityWindow
		err := rows.Scan(&w.ID, &w.TherapistID, &w.DayOfWeek, &w.StartMinute, &w.EndMinute, &w.Active, &w.CreatedAt, &w.UpdatedAt)
		if err != nil {
			return nil, err
		}
		result = append(result, w)
	}

	return result, rows.Err()
}

func (r *PgRepository) ListBlockedSlots(ctx context.Context, therapistID uuid.UUID, from, to time.Time) ([]BlockedSlot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, therapist_id, starts_at, ends_at, reason, created_at
		FROM blocked_slots
		WHERE therapist_id = $1 AND starts_at < $3 AND ends_at > $2
		ORDER BY starts_at
	`, therapistID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []BlockedSlot
	for rows.Next() {
		var b BlockedSlot
		err := rows.Scan(&b.ID, &b.TherapistID, &b.StartsAt, &b.EndsAt, &b.Reason, &b.CreatedAt)
		if err != nil {
			return nil, err
		}
		result = append(result, b)
	}

	return result, rows.Err()
}

func (r *PgRepository) ListBookedAppointments(ctx context.Context, therapistID uuid.UUID, from, to time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE therapist_id = $1
		  AND scheduled_at >= $2 AND scheduled_at < $3
		  AND status IN ('pending', 'confirmed')
	`, therapistID, from, to)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

// CreatePendingAppointment re-checks for a non-terminal appointment at the
// exact same start inside a transaction before inserting. The partial
// unique index on (therapist_id, scheduled_at) is the storage-level
// backstop; a unique violation is reported as ErrSlotTaken too.
func (r *PgRepository) CreatePendingAppointment(ctx context.Context, appt *Appointment) (*Appointment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin booking tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var existing uuid.UUID
	err = tx.QueryRow(ctx, `
		SELECT id
		FROM appointments
		WHERE therapist_id = $1
		  AND scheduled_at = $2
		  AND status IN ('pending', 'confirmed')
		FOR UPDATE
	`, appt.TherapistID, appt.ScheduledAt).Scan(&existing)
	if err == nil {
		return nil, ErrSlotTaken
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("conflict check: %w", err)
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO appointments (
			id, patient_id, therapist_id, scheduled_at, timezone, duration_mins,
			type, status, amount_cents, booking_notes, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'pending', $8, $9, now(), now())
		RETURNING `+appointmentColumns+`
	`, appt.ID, appt.PatientID, appt.TherapistID, appt.ScheduledAt, appt.Timezone,
		appt.DurationMins, appt.Type, appt.AmountCents, appt.BookingNotes)

	created, err := scanAppointment(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrSlotTaken
		}
		return nil, fmt.Errorf("insert appointment: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit booking tx: %w", err)
	}

	return created, nil
}

func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to Status, change StatusChange) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    confirmed_at = COALESCE($4, confirmed_at),
		    completed_at = COALESCE($5, completed_at),
		    cancelled_at = COALESCE($6, cancelled_at),
		    cancellation_reason = COALESCE($7, cancellation_reason),
		    session_notes = COALESCE($8, session_notes),
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns+`
	`, id, to, from,
		change.ConfirmedAt, change.CompletedAt, change.CancelledAt,
		change.CancellationReason, change.SessionNotes)

	return scanAppointment(row)
}

func (r *PgRepository) FindOverdueConfirmed(ctx context.Context, cutoff time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status = 'confirmed'
		  AND scheduled_at + make_interval(mins => duration_mins) < $1
	`, cutoff)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

// ResolveContact looks a user up in patients first, then therapists, so the
// notification sender can address either party by the same id.
func (r *PgRepository) ResolveContact(ctx context.Context, userID uuid.UUID) (*notify.Contact, error) {
	var name string
	var email *string

	err := r.pool.QueryRow(ctx, `
		SELECT name, email FROM patients WHERE id = $1
	`, userID).Scan(&name, &email)
	if errors.Is(err, pgx.ErrNoRows) {
		err = r.pool.QueryRow(ctx, `
			SELECT name, email FROM therapists WHERE id = $1
		`, userID).Scan(&name, &email)
	}
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("no contact for user %s", userID)
		}
		return nil, err
	}

	contact := &notify.Contact{Name: name}
	if email != nil {
		contact.Email = *email
	}
	return contact, nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
