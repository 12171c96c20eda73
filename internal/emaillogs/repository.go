package emaillogs

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/communityhub/backend/internal/models"
	"github.com/communityhub/backend/pkg/database"
)

// Repository handles email_logs persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an email logs repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const selectCols = `id, entity_kind, entity_id, email_type, recipient_email, subject, body_html, status, sent_at, error_message, created_at`

// Create inserts a log row and fills its id and created_at.
func (r *Repository) Create(ctx context.Context, l *models.EmailLog) error {
	const q = `INSERT INTO email_logs (entity_kind, entity_id, email_type, recipient_email, subject, body_html, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id, created_at`
	return r.pool.QueryRow(ctx, q, l.EntityKind, l.EntityID, l.EmailType, l.RecipientEmail, l.Subject, l.BodyHTML, l.Status).
		Scan(&l.ID, &l.CreatedAt)
}

// MarkResult records the outcome of a delivery attempt.
func (r *Repository) MarkResult(ctx context.Context, id uuid.UUID, status, errMsg string, sentAt *time.Time) error {
	_, err := r.pool.Exec(ctx, `UPDATE email_logs SET status = $2, error_message = $3, sent_at = COALESCE($4, sent_at) WHERE id = $1`,
		id, status, errMsg, sentAt)
	return err
}

// GetByID returns one log row.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.EmailLog, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+selectCols+` FROM email_logs WHERE id = $1`, id)
	var el models.EmailLog
	if err := row.Scan(&el.ID, &el.EntityKind, &el.EntityID, &el.EmailType, &el.RecipientEmail, &el.Subject, &el.BodyHTML,
		&el.Status, &el.SentAt, &el.ErrorMessage, &el.CreatedAt); err != nil {
		return nil, database.MapError(err)
	}
	return &el, nil
}

// ListFilter narrows List.
type ListFilter struct {
	Status   string
	EntityID *uuid.UUID
	Limit    int
}

// List returns email logs, newest first.
func (r *Repository) List(ctx context.Context, f ListFilter) ([]*models.EmailLog, error) {
	if f.Limit <= 0 || f.Limit > 500 {
		f.Limit = 100
	}
	q := `SELECT ` + selectCols + ` FROM email_logs
		WHERE ($1 = '' OR status = $1) AND ($2::uuid IS NULL OR entity_id = $2)
		ORDER BY created_at DESC LIMIT $3`
	rows, err := r.pool.Query(ctx, q, f.Status, f.EntityID, f.Limit)
	if err != nil {
		return nil, fmt.Errorf("list email logs: %w", err)
	}
	defer rows.Close()
	list := []*models.EmailLog{}
	for rows.Next() {
		var el models.EmailLog
		if err := rows.Scan(&el.ID, &el.EntityKind, &el.EntityID, &el.EmailType, &el.RecipientEmail, &el.Subject, &el.BodyHTML,
			&el.Status, &el.SentAt, &el.ErrorMessage, &el.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &el)
	}
	return list, rows.Err()
}
