package users

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/communityhub/backend/internal/models"
	"github.com/communityhub/backend/pkg/database"
)

// Repository handles community member persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a users repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const memberCols = `id, full_name, email, phone, organization, position, bio, status, joined_at, created_at, updated_at`

type scanner interface{ Scan(...any) error }

func scanMember(row scanner) (*models.Member, error) {
	var m models.Member
	if err := row.Scan(&m.ID, &m.FullName, &m.Email, &m.Phone, &m.Organization, &m.Position, &m.Bio, &m.Status,
		&m.JoinedAt, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, database.MapError(err)
	}
	return &m, nil
}

// Create inserts a member. A taken email returns database.ErrDuplicate.
func (r *Repository) Create(ctx context.Context, m *models.Member) error {
	const q = `INSERT INTO users (full_name, email, phone, organization, position, bio, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, joined_at, created_at, updated_at`
	err := r.pool.QueryRow(ctx, q, m.FullName, m.Email, m.Phone, m.Organization, m.Position, m.Bio, m.Status).
		Scan(&m.ID, &m.JoinedAt, &m.CreatedAt, &m.UpdatedAt)
	return database.MapError(err)
}

// GetByID returns a member.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Member, error) {
	return scanMember(r.pool.QueryRow(ctx, `SELECT `+memberCols+` FROM users WHERE id = $1`, id))
}

// ListFilter narrows List.
type ListFilter struct {
	Status string
	Search string
	Limit  int
	Offset int
}

// List returns members, newest first. Limit 0 returns everything.
func (r *Repository) List(ctx context.Context, f ListFilter) ([]*models.Member, error) {
	q := `SELECT ` + memberCols + ` FROM users
		WHERE ($1 = '' OR status = $1)
		AND ($2 = '' OR full_name ILIKE '%' || $2 || '%' OR email ILIKE '%' || $2 || '%' OR organization ILIKE '%' || $2 || '%')
		ORDER BY created_at DESC`
	args := []any{f.Status, strings.TrimSpace(f.Search)}
	if f.Limit > 0 {
		q += ` LIMIT $3 OFFSET $4`
		args = append(args, f.Limit, f.Offset)
	}
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()
	list := []*models.Member{}
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, m)
	}
	return list, rows.Err()
}

// Update writes all editable fields.
func (r *Repository) Update(ctx context.Context, m *models.Member) error {
	const q = `UPDATE users SET full_name = $2, email = $3, phone = $4, organization = $5, position = $6, bio = $7,
			status = $8, updated_at = NOW()
		WHERE id = $1 RETURNING updated_at`
	err := r.pool.QueryRow(ctx, q, m.ID, m.FullName, m.Email, m.Phone, m.Organization, m.Position, m.Bio, m.Status).
		Scan(&m.UpdatedAt)
	return database.MapError(err)
}

// SetStatus changes only the status.
func (r *Repository) SetStatus(ctx context.Context, id uuid.UUID, status models.MemberStatus) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return database.ErrNotFound
	}
	return nil
}

// Delete removes a member.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return database.ErrNotFound
	}
	return nil
}
