package contacts

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/communityhub/backend/internal/models"
	"github.com/communityhub/backend/pkg/database"
)

// Repository handles contact persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a contacts repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const contactCols = `id, name, email, phone, company, subject, message, type, status, priority, notes, created_at, updated_at`

type scanner interface{ Scan(...any) error }

func scanContact(row scanner) (*models.Contact, error) {
	var c models.Contact
	if err := row.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Company, &c.Subject, &c.Message, &c.Type,
		&c.Status, &c.Priority, &c.Notes, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, database.MapError(err)
	}
	if c.Notes == nil {
		c.Notes = []models.ContactNote{}
	}
	return &c, nil
}

// Create inserts a contact.
func (r *Repository) Create(ctx context.Context, c *models.Contact) error {
	const q = `INSERT INTO contacts (name, email, phone, company, subject, message, type, status, priority)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, notes, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, c.Name, c.Email, c.Phone, c.Company, c.Subject, c.Message, c.Type, c.Status, c.Priority).
		Scan(&c.ID, &c.Notes, &c.CreatedAt, &c.UpdatedAt)
}

// GetByID returns a contact.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Contact, error) {
	return scanContact(r.pool.QueryRow(ctx, `SELECT `+contactCols+` FROM contacts WHERE id = $1`, id))
}

// ListFilter narrows List.
type ListFilter struct {
	Status   string
	Priority string
	Search   string
	Limit    int
	Offset   int
}

// List returns contacts, newest first. Limit 0 returns everything.
func (r *Repository) List(ctx context.Context, f ListFilter) ([]*models.Contact, error) {
	q := `SELECT ` + contactCols + ` FROM contacts
		WHERE ($1 = '' OR status = $1)
		AND ($2 = '' OR priority = $2)
		AND ($3 = '' OR name ILIKE '%' || $3 || '%' OR email ILIKE '%' || $3 || '%'
			OR company ILIKE '%' || $3 || '%' OR subject ILIKE '%' || $3 || '%')
		ORDER BY created_at DESC`
	args := []any{f.Status, f.Priority, strings.TrimSpace(f.Search)}
	if f.Limit > 0 {
		q += ` LIMIT $4 OFFSET $5`
		args = append(args, f.Limit, f.Offset)
	}
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	defer rows.Close()
	list := []*models.Contact{}
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, c)
	}
	return list, rows.Err()
}

// UpdateTriage sets status and priority.
func (r *Repository) UpdateTriage(ctx context.Context, id uuid.UUID, status models.ContactStatus, priority models.ContactPriority) error {
	tag, err := r.pool.Exec(ctx, `UPDATE contacts SET status = $2, priority = $3, updated_at = NOW() WHERE id = $1`,
		id, status, priority)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return database.ErrNotFound
	}
	return nil
}

// AppendNote adds a note to the end of the contact's notes and returns the full list.
func (r *Repository) AppendNote(ctx context.Context, id uuid.UUID, note models.ContactNote) ([]models.ContactNote, error) {
	var notes []models.ContactNote
	err := r.pool.QueryRow(ctx, `UPDATE contacts SET notes = notes || $2::jsonb, updated_at = NOW()
		WHERE id = $1 RETURNING notes`, id, []models.ContactNote{note}).Scan(&notes)
	return notes, database.MapError(err)
}

// Delete removes a contact.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM contacts WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return database.ErrNotFound
	}
	return nil
}
