package enrollments

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/communityhub/backend/internal/models"
	"github.com/communityhub/backend/internal/payments"
	"github.com/communityhub/backend/pkg/database"
)

// Repository handles course enrollment persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an enrollments repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const enrollmentCols = `id, course_id, full_name, email, phone, note, status, payment_status, payment_method, transaction_id, amount, confirmed_at, created_at, updated_at`

type scanner interface{ Scan(...any) error }

func scanEnrollment(row scanner) (*models.CourseEnrollment, error) {
	var e models.CourseEnrollment
	if err := row.Scan(&e.ID, &e.CourseID, &e.FullName, &e.Email, &e.Phone, &e.Note, &e.Status, &e.PaymentStatus,
		&e.PaymentMethod, &e.TransactionID, &e.Amount, &e.ConfirmedAt, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, database.MapError(err)
	}
	return &e, nil
}

// Create inserts an enrollment.
func (r *Repository) Create(ctx context.Context, e *models.CourseEnrollment) error {
	const q = `INSERT INTO course_enrollments (course_id, full_name, email, phone, note, status, payment_status,
			payment_method, transaction_id, amount, confirmed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, e.CourseID, e.FullName, e.Email, e.Phone, e.Note, e.Status, e.PaymentStatus,
		e.PaymentMethod, e.TransactionID, e.Amount, e.ConfirmedAt).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
}

// GetByID returns one enrollment.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.CourseEnrollment, error) {
	return scanEnrollment(r.pool.QueryRow(ctx, `SELECT `+enrollmentCols+` FROM course_enrollments WHERE id = $1`, id))
}

// ListFilter narrows List.
type ListFilter struct {
	CourseID      *uuid.UUID
	Status        string
	PaymentStatus string
	Search        string
	Limit         int
	Offset        int
}

// List returns enrollments, newest first. Limit 0 returns everything.
func (r *Repository) List(ctx context.Context, f ListFilter) ([]*models.CourseEnrollment, error) {
	q := `SELECT ` + enrollmentCols + ` FROM course_enrollments
		WHERE ($1::uuid IS NULL OR course_id = $1)
		AND ($2 = '' OR status = $2)
		AND ($3 = '' OR payment_status = $3)
		AND ($4 = '' OR full_name ILIKE '%' || $4 || '%' OR email ILIKE '%' || $4 || '%' OR transaction_id ILIKE '%' || $4 || '%')
		ORDER BY created_at DESC`
	args := []any{f.CourseID, f.Status, f.PaymentStatus, strings.TrimSpace(f.Search)}
	if f.Limit > 0 {
		q += ` LIMIT $5 OFFSET $6`
		args = append(args, f.Limit, f.Offset)
	}
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	defer rows.Close()
	list := []*models.CourseEnrollment{}
	for rows.Next() {
		e, err := scanEnrollment(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, e)
	}
	return list, rows.Err()
}

// UpdateState stores a new status pair. confirmed_at is set on the first confirmation.
func (r *Repository) UpdateState(ctx context.Context, id uuid.UUID, st payments.State, confirmedAt *time.Time) error {
	tag, err := r.pool.Exec(ctx, `UPDATE course_enrollments SET status = $2, payment_status = $3,
		confirmed_at = COALESCE(confirmed_at, $4), updated_at = NOW() WHERE id = $1`,
		id, st.Status, st.PaymentStatus, confirmedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return database.ErrNotFound
	}
	return nil
}

// Delete removes an enrollment.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM course_enrollments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return database.ErrNotFound
	}
	return nil
}

// HasPaidEnrollment reports whether email holds a confirmed and paid enrollment in the course.
func (r *Repository) HasPaidEnrollment(ctx context.Context, courseID uuid.UUID, email string) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (
			SELECT 1 FROM course_enrollments
			WHERE course_id = $1 AND lower(email) = lower($2) AND status = 'confirmed' AND payment_status = 'paid'
		)`, courseID, strings.TrimSpace(email)).Scan(&ok)
	return ok, err
}
