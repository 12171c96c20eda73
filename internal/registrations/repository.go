package registrations

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

// Repository handles registration persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a registrations repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const regCols = `id, event_id, full_name, email, phone, organization, note, status, payment_status, payment_method, transaction_id, amount, confirmed_at, created_at, updated_at`

type scanner interface{ Scan(...any) error }

func scanRegistration(row scanner) (*models.Registration, error) {
	var r models.Registration
	if err := row.Scan(&r.ID, &r.EventID, &r.FullName, &r.Email, &r.Phone, &r.Organization, &r.Note, &r.Status,
		&r.PaymentStatus, &r.PaymentMethod, &r.TransactionID, &r.Amount, &r.ConfirmedAt, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, database.MapError(err)
	}
	return &r, nil
}

// Create inserts a registration.
func (r *Repository) Create(ctx context.Context, reg *models.Registration) error {
	const q = `INSERT INTO registrations (event_id, full_name, email, phone, organization, note, status, payment_status,
			payment_method, transaction_id, amount, confirmed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, reg.EventID, reg.FullName, reg.Email, reg.Phone, reg.Organization, reg.Note,
		reg.Status, reg.PaymentStatus, reg.PaymentMethod, reg.TransactionID, reg.Amount, reg.ConfirmedAt).
		Scan(&reg.ID, &reg.CreatedAt, &reg.UpdatedAt)
}

// GetByID returns one registration.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Registration, error) {
	return scanRegistration(r.pool.QueryRow(ctx, `SELECT `+regCols+` FROM registrations WHERE id = $1`, id))
}

// ListFilter narrows List.
type ListFilter struct {
	EventID       *uuid.UUID
	Status        string
	PaymentStatus string
	Search        string
	Limit         int
	Offset        int
}

// List returns registrations, newest first. Limit 0 returns everything (exports).
func (r *Repository) List(ctx context.Context, f ListFilter) ([]*models.Registration, error) {
	q := `SELECT ` + regCols + ` FROM registrations
		WHERE ($1::uuid IS NULL OR event_id = $1)
		AND ($2 = '' OR status = $2)
		AND ($3 = '' OR payment_status = $3)
		AND ($4 = '' OR full_name ILIKE '%' || $4 || '%' OR email ILIKE '%' || $4 || '%' OR transaction_id ILIKE '%' || $4 || '%')
		ORDER BY created_at DESC`
	args := []any{f.EventID, f.Status, f.PaymentStatus, strings.TrimSpace(f.Search)}
	if f.Limit > 0 {
		q += ` LIMIT $5 OFFSET $6`
		args = append(args, f.Limit, f.Offset)
	}
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	defer rows.Close()
	list := []*models.Registration{}
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, reg)
	}
	return list, rows.Err()
}

// UpdateState stores a new status pair. confirmed_at is set on the first confirmation.
func (r *Repository) UpdateState(ctx context.Context, id uuid.UUID, st payments.State, confirmedAt *time.Time) error {
	tag, err := r.pool.Exec(ctx, `UPDATE registrations SET status = $2, payment_status = $3,
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

// Delete removes a registration.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM registrations WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return database.ErrNotFound
	}
	return nil
}
