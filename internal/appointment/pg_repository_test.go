package appointment

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var apptTestColumns = []string{
	"id", "patient_id", "therapist_id", "scheduled_at", "timezone", "duration_mins",
	"type", "status", "amount_cents", "booking_notes", "session_notes",
	"cancellation_reason", "confirmed_at", "completed_at", "cancelled_at",
	"created_at", "updated_at",
}

func appointmentRow(a *Appointment) *pgxmock.Rows {
	return pgxmock.NewRows(apptTestColumns).AddRow(
		a.ID, a.PatientID, a.TherapistID, a.ScheduledAt, a.Timezone, a.DurationMins,
		a.Type, a.Status, a.AmountCents, a.BookingNotes, a.SessionNotes,
		a.CancellationReason, a.ConfirmedAt, a.CompletedAt, a.CancelledAt,
		a.CreatedAt, a.UpdatedAt,
	)
}

func testAppointment() *Appointment {
	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	return &Appointment{
		ID:           uuid.New(),
		PatientID:    uuid.New(),
		TherapistID:  uuid.New(),
		ScheduledAt:  time.Date(2024, 6, 3, 14, 0, 0, 0, time.UTC),
		Timezone:     "UTC",
		DurationMins: 60,
		Type:         TypeScheduled,
		Status:       StatusPending,
		AmountCents:  8000,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func newMockRepo(t *testing.T) (pgxmock.PgxPoolIface, *PgRepository) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, NewPgRepository(mock)
}

func TestGetAppointmentByID(t *testing.T) {
	mock, repo := newMockRepo(t)
	want := testAppointment()

	mock.ExpectQuery(`SELECT(.|\n)+FROM appointments`).
		WithArgs(want.ID).
		WillReturnRows(appointmentRow(want))

	got, err := repo.GetAppointmentByID(context.Background(), want.ID)
	require.NoError(t, err)
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, StatusPending, got.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetAppointmentByIDNotFound(t *testing.T) {
	mock, repo := newMockRepo(t)
	id := uuid.New()

	mock.ExpectQuery(`SELECT(.|\n)+FROM appointments`).
		WithArgs(id).
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetAppointmentByID(context.Background(), id)
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreatePendingAppointment(t *testing.T) {
	mock, repo := newMockRepo(t)
	appt := testAppointment()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id(.|\n)+FOR UPDATE`).
		WithArgs(appt.TherapistID, appt.ScheduledAt).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(`INSERT INTO appointments`).
		WithArgs(appt.ID, appt.PatientID, appt.TherapistID, appt.ScheduledAt,
			appt.Timezone, appt.DurationMins, appt.Type, appt.AmountCents, appt.BookingNotes).
		WillReturnRows(appointmentRow(appt))
	mock.ExpectCommit()
	mock.ExpectRollback() // the deferred rollback after commit is a no-op

	created, err := repo.CreatePendingAppointment(context.Background(), appt)
	require.NoError(t, err)
	assert.Equal(t, appt.ID, created.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreatePendingAppointmentSlotTaken(t *testing.T) {
	mock, repo := newMockRepo(t)
	appt := testAppointment()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id(.|\n)+FOR UPDATE`).
		WithArgs(appt.TherapistID, appt.ScheduledAt).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(uuid.New()))
	mock.ExpectRollback()

	_, err := repo.CreatePendingAppointment(context.Background(), appt)
	assert.ErrorIs(t, err, ErrSlotTaken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreatePendingAppointmentUniqueViolation(t *testing.T) {
	mock, repo := newMockRepo(t)
	appt := testAppointment()

	// The transactional pre-check can miss a row committed after it ran; the
	// partial unique index then rejects the insert.
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id(.|\n)+FOR UPDATE`).
		WithArgs(appt.TherapistID, appt.ScheduledAt).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(`INSERT INTO appointments`).
		WithArgs(appt.ID, appt.PatientID, appt.TherapistID, appt.ScheduledAt,
			appt.Timezone, appt.DurationMins, appt.Type, appt.AmountCents, appt.BookingNotes).
		WillReturnError(&pgconn.PgError{Code: "23505"})
	mock.ExpectRollback()

	_, err := repo.CreatePendingAppointment(context.Background(), appt)
	assert.ErrorIs(t, err, ErrSlotTaken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateAppointmentStatus(t *testing.T) {
	mock, repo := newMockRepo(t)
	appt := testAppointment()
	confirmedAt := time.Date(2024, 6, 2, 9, 0, 0, 0, time.UTC)

	updated := *appt
	updated.Status = StatusConfirmed
	updated.ConfirmedAt = &confirmedAt

	mock.ExpectQuery(`UPDATE appointments`).
		WithArgs(appt.ID, StatusConfirmed, StatusPending,
			&confirmedAt, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(appointmentRow(&updated))

	got, err := repo.UpdateAppointmentStatus(context.Background(), appt.ID, StatusPending, StatusConfirmed, StatusChange{
		ConfirmedAt: &confirmedAt,
	})
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, got.Status)
	require.NotNil(t, got.ConfirmedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateAppointmentStatusCompareAndSwapMiss(t *testing.T) {
	mock, repo := newMockRepo(t)
	id := uuid.New()

	// Row exists but its status is no longer the expected one, so the guarded
	// update matches nothing.
	mock.ExpectQuery(`UPDATE appointments`).
		WithArgs(id, StatusConfirmed, StatusPending,
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.UpdateAppointmentStatus(context.Background(), id, StatusPending, StatusConfirmed, StatusChange{})
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertEvent(t *testing.T) {
	mock, repo := newMockRepo(t)
	apptID := uuid.New()
	createdAt := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectExec(`INSERT INTO event_logs`).
		WithArgs("BOOKING_REQUESTED", &apptID, []byte(`{}`), &createdAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := repo.InsertEvent(context.Background(), EventLog{
		EventType:     "BOOKING_REQUESTED",
		AppointmentID: &apptID,
		Payload:       []byte(`{}`),
		CreatedAt:     createdAt,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveContactFallsBackToTherapists(t *testing.T) {
	mock, repo := newMockRepo(t)
	userID := uuid.New()
	email := "dr.house@example.com"

	mock.ExpectQuery(`SELECT name, email FROM patients`).
		WithArgs(userID).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(`SELECT name, email FROM therapists`).
		WithArgs(userID).
		WillReturnRows(pgxmock.NewRows([]string{"name", "email"}).AddRow("Dr. Gregory House", &email))

	contact, err := repo.ResolveContact(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, "Dr. Gregory House", contact.Name)
	assert.Equal(t, email, contact.Email)
	assert.NoError(t, mock.ExpectationsWereMet())
}
