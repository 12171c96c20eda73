package events

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/communityhub/backend/internal/models"
	"github.com/communityhub/backend/pkg/database"
)

// Repository handles event persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an event repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const eventCols = `id, title, slug, description, starts_at, ends_at, location, capacity, price, online_link, image_url, status, registrations_count, created_at, updated_at`

// effectiveStatusSQL mirrors models.Event.EffectiveStatus.
const effectiveStatusSQL = `CASE WHEN status = 'upcoming' AND COALESCE(ends_at, starts_at) < $1 THEN 'past' ELSE status END`

type scanner interface{ Scan(...any) error }

func scanEvent(row scanner) (*models.Event, error) {
	var e models.Event
	if err := row.Scan(&e.ID, &e.Title, &e.Slug, &e.Description, &e.StartsAt, &e.EndsAt, &e.Location, &e.Capacity,
		&e.Price, &e.OnlineLink, &e.ImageURL, &e.Status, &e.Registrations, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, database.MapError(err)
	}
	return &e, nil
}

// Create inserts a new event.
func (r *Repository) Create(ctx context.Context, e *models.Event) error {
	const q = `INSERT INTO events (title, slug, description, starts_at, ends_at, location, capacity, price, online_link, image_url, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, registrations_count, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, e.Title, e.Slug, e.Description, e.StartsAt, e.EndsAt, e.Location, e.Capacity,
		e.Price, e.OnlineLink, e.ImageURL, e.Status).Scan(&e.ID, &e.Registrations, &e.CreatedAt, &e.UpdatedAt)
}

// GetByID returns an event by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	return scanEvent(r.pool.QueryRow(ctx, `SELECT `+eventCols+` FROM events WHERE id = $1`, id))
}

// GetBySlug returns the most recent event with the slug.
func (r *Repository) GetBySlug(ctx context.Context, slug string) (*models.Event, error) {
	return scanEvent(r.pool.QueryRow(ctx, `SELECT `+eventCols+` FROM events WHERE slug = $1 ORDER BY created_at DESC LIMIT 1`, slug))
}

// ListFilter narrows List. Status matches the effective status.
type ListFilter struct {
	Status string
	Search string
	Limit  int
	Offset int
}

// List returns events ordered by start time, soonest first.
func (r *Repository) List(ctx context.Context, f ListFilter, now time.Time) ([]*models.Event, error) {
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 50
	}
	q := `SELECT ` + eventCols + ` FROM events
		WHERE ($2 = '' OR ` + effectiveStatusSQL + ` = $2)
		AND ($3 = '' OR title ILIKE '%' || $3 || '%' OR location ILIKE '%' || $3 || '%')
		ORDER BY starts_at ASC LIMIT $4 OFFSET $5`
	rows, err := r.pool.Query(ctx, q, now, f.Status, strings.TrimSpace(f.Search), f.Limit, f.Offset)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()
	list := []*models.Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, e)
	}
	return list, rows.Err()
}

// Update writes all editable fields.
func (r *Repository) Update(ctx context.Context, e *models.Event) error {
	const q = `UPDATE events SET title = $2, slug = $3, description = $4, starts_at = $5, ends_at = $6, location = $7,
		capacity = $8, price = $9, online_link = $10, image_url = $11, status = $12, updated_at = NOW()
		WHERE id = $1 RETURNING updated_at`
	err := r.pool.QueryRow(ctx, q, e.ID, e.Title, e.Slug, e.Description, e.StartsAt, e.EndsAt, e.Location,
		e.Capacity, e.Price, e.OnlineLink, e.ImageURL, e.Status).Scan(&e.UpdatedAt)
	return database.MapError(err)
}

// UpdateStatus sets the stored status.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.EventStatus) error {
	tag, err := r.pool.Exec(ctx, `UPDATE events SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return database.ErrNotFound
	}
	return nil
}

// Delete removes an event. Its registrations are kept.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return database.ErrNotFound
	}
	return nil
}

// TitlesByIDs returns the titles of the events that still exist.
func (r *Repository) TitlesByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	out := make(map[uuid.UUID]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT id, title FROM events WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id uuid.UUID
		var title string
		if err := rows.Scan(&id, &title); err != nil {
			return nil, err
		}
		out[id] = title
	}
	return out, rows.Err()
}

// RecountRegistrations recomputes the stored count from non-cancelled registrations.
func (r *Repository) RecountRegistrations(ctx context.Context, id uuid.UUID) (int, error) {
	const q = `UPDATE events SET registrations_count = (
			SELECT COUNT(*) FROM registrations WHERE event_id = $1 AND status <> 'cancelled'
		) WHERE id = $1 RETURNING registrations_count`
	var n int
	err := r.pool.QueryRow(ctx, q, id).Scan(&n)
	return n, database.MapError(err)
}

// MarkPast persists the past status of upcoming events that have finished.
func (r *Repository) MarkPast(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE events SET status = 'past', updated_at = NOW()
		WHERE status = 'upcoming' AND COALESCE(ends_at, starts_at) < $1`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
