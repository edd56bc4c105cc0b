package review

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type PgxPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PgRepository struct {
	pool PgxPool
}

func NewPgRepository(pool PgxPool) *PgRepository {
	return &PgRepository{pool: pool}
}

func (r *PgRepository) CreateWithStats(ctx context.Context, rev *Review) (*Review, *TherapistStats, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("begin review tx: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		INSERT INTO reviews (id, appointment_id, patient_id, therapist_id, rating, feedback, tags, anonymous, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
		RETURNING id, appointment_id, patient_id, therapist_id, rating, feedback, tags, anonymous, created_at
	`, rev.ID, rev.AppointmentID, rev.PatientID, rev.TherapistID, rev.Rating, rev.Feedback, rev.Tags, rev.Anonymous)

	created, err := scanReview(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, nil, ErrDuplicateReview
		}
		return nil, nil, fmt.Errorf("insert review: %w", err)
	}

	// Full recompute over all of the therapist's reviews, including the
	// one just inserted in this transaction.
	var stats TherapistStats
	err = tx.QueryRow(ctx, `
		SELECT COALESCE(AVG(rating), 0)::float8, COUNT(*)
		FROM reviews
		WHERE therapist_id = $1
	`, rev.TherapistID).Scan(&stats.AverageRating, &stats.TotalReviews)
	if err != nil {
		return nil, nil, fmt.Errorf("recompute therapist stats: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE therapists
		SET average_rating = $2,
		    total_reviews = $3,
		    updated_at = now()
		WHERE id = $1
	`, rev.TherapistID, stats.AverageRating, stats.TotalReviews)
	if err != nil {
		return nil, nil, fmt.Errorf("update therapist stats: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("commit review tx: %w", err)
	}

	return created, &stats, nil
}

func (r *PgRepository) ListByTherapist(ctx context.Context, therapistID uuid.UUID, limit, offset int) ([]Review, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, appointment_id, patient_id, therapist_id, rating, feedback, tags, anonymous, created_at
		FROM reviews
		WHERE therapist_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, therapistID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Review
	for rows.Next() {
		rev, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *rev)
	}

	return result, rows.Err()
}

func scanReview(row pgx.Row) (*Review, error) {
	var rev Review
	err := row.Scan(
		&rev.ID,
		&rev.AppointmentID,
		&rev.PatientID,
		&rev.TherapistID,
		&rev.Rating,
		&rev.Feedback,
		&rev.Tags,
		&rev.Anonymous,
		&rev.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rev, nil
}
