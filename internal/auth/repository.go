package auth

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/communityhub/backend/internal/models"
	"github.com/communityhub/backend/pkg/database"
)

// Repository handles admin persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an auth repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const adminCols = `id, email, password_hash, full_name, role, last_login_at, created_at, updated_at`

func scanAdmin(row interface{ Scan(...any) error }) (*models.Admin, error) {
	var a models.Admin
	if err := row.Scan(&a.ID, &a.Email, &a.Password, &a.FullName, &a.Role, &a.LastLoginAt, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, database.MapError(err)
	}
	return &a, nil
}

// GetByID returns an admin by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Admin, error) {
	return scanAdmin(r.pool.QueryRow(ctx, `SELECT `+adminCols+` FROM admins WHERE id = $1`, id))
}

// GetByEmail returns an admin by email (case-insensitive).
func (r *Repository) GetByEmail(ctx context.Context, email string) (*models.Admin, error) {
	return scanAdmin(r.pool.QueryRow(ctx, `SELECT `+adminCols+` FROM admins WHERE lower(email) = lower($1)`, email))
}

// Count returns the number of admins.
func (r *Repository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM admins`).Scan(&n)
	return n, err
}

// Create inserts a new admin.
func (r *Repository) Create(ctx context.Context, email, passwordHash, fullName string, role models.Role) (*models.Admin, error) {
	const q = `INSERT INTO admins (email, password_hash, full_name, role) VALUES ($1, $2, $3, $4) RETURNING ` + adminCols
	return scanAdmin(r.pool.QueryRow(ctx, q, email, passwordHash, fullName, string(role)))
}

// UpdatePassword replaces the password hash.
func (r *Repository) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE admins SET password_hash = $2, updated_at = NOW() WHERE id = $1`, id, passwordHash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return database.ErrNotFound
	}
	return nil
}

// TouchLogin records a successful login.
func (r *Repository) TouchLogin(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `UPDATE admins SET last_login_at = NOW() WHERE id = $1`, id)
	return err
}
