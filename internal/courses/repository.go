package courses

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/communityhub/backend/internal/models"
	"github.com/communityhub/backend/pkg/database"
)

// Repository handles course persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a course repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const courseCols = `id, title, slug, summary, description, instructor, thumbnail_url, level, duration, price,
	discount_percentage, discount_amount, is_discount_active, discount_start_date, discount_end_date,
	curriculum, access_link, status, enrolled_count, created_at, updated_at`

type scanner interface{ Scan(...any) error }

func scanCourse(row scanner) (*models.Course, error) {
	var c models.Course
	if err := row.Scan(&c.ID, &c.Title, &c.Slug, &c.Summary, &c.Description, &c.Instructor, &c.ThumbnailURL,
		&c.Level, &c.Duration, &c.Price, &c.DiscountPercentage, &c.DiscountAmount, &c.IsDiscountActive,
		&c.DiscountStartDate, &c.DiscountEndDate, &c.Curriculum, &c.AccessLink, &c.Status, &c.EnrolledCount,
		&c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, database.MapError(err)
	}
	if c.Curriculum == nil {
		c.Curriculum = []models.Lesson{}
	}
	return &c, nil
}

func curriculum(c *models.Course) []models.Lesson {
	if c.Curriculum == nil {
		return []models.Lesson{}
	}
	return c.Curriculum
}

// Create inserts a course. A taken slug returns database.ErrDuplicate.
func (r *Repository) Create(ctx context.Context, c *models.Course) error {
	const q = `INSERT INTO courses (title, slug, summary, description, instructor, thumbnail_url, level, duration, price,
			discount_percentage, discount_amount, is_discount_active, discount_start_date, discount_end_date,
			curriculum, access_link, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING id, enrolled_count, created_at, updated_at`
	err := r.pool.QueryRow(ctx, q, c.Title, c.Slug, c.Summary, c.Description, c.Instructor, c.ThumbnailURL,
		c.Level, c.Duration, c.Price, c.DiscountPercentage, c.DiscountAmount, c.IsDiscountActive,
		c.DiscountStartDate, c.DiscountEndDate, curriculum(c), c.AccessLink, c.Status).
		Scan(&c.ID, &c.EnrolledCount, &c.CreatedAt, &c.UpdatedAt)
	return database.MapError(err)
}

// GetByID returns a course by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Course, error) {
	return scanCourse(r.pool.QueryRow(ctx, `SELECT `+courseCols+` FROM courses WHERE id = $1`, id))
}

// GetBySlug returns a course by slug.
func (r *Repository) GetBySlug(ctx context.Context, slug string) (*models.Course, error) {
	return scanCourse(r.pool.QueryRow(ctx, `SELECT `+courseCols+` FROM courses WHERE slug = $1`, slug))
}

// ListFilter narrows List.
type ListFilter struct {
	Status string
	Search string
	Limit  int
	Offset int
}

// List returns courses, newest first. Limit 0 returns everything.
func (r *Repository) List(ctx context.Context, f ListFilter) ([]*models.Course, error) {
	q := `SELECT ` + courseCols + ` FROM courses
		WHERE ($1 = '' OR status = $1)
		AND ($2 = '' OR title ILIKE '%' || $2 || '%' OR instructor ILIKE '%' || $2 || '%')
		ORDER BY created_at DESC`
	args := []any{f.Status, strings.TrimSpace(f.Search)}
	if f.Limit > 0 {
		q += ` LIMIT $3 OFFSET $4`
		args = append(args, f.Limit, f.Offset)
	}
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	defer rows.Close()
	list := []*models.Course{}
	for rows.Next() {
		c, err := scanCourse(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, c)
	}
	return list, rows.Err()
}

// Update writes all editable fields.
func (r *Repository) Update(ctx context.Context, c *models.Course) error {
	const q = `UPDATE courses SET title = $2, slug = $3, summary = $4, description = $5, instructor = $6,
			thumbnail_url = $7, level = $8, duration = $9, price = $10, discount_percentage = $11,
			discount_amount = $12, is_discount_active = $13, discount_start_date = $14, discount_end_date = $15,
			curriculum = $16, access_link = $17, status = $18, updated_at = NOW()
		WHERE id = $1 RETURNING updated_at`
	err := r.pool.QueryRow(ctx, q, c.ID, c.Title, c.Slug, c.Summary, c.Description, c.Instructor, c.ThumbnailURL,
		c.Level, c.Duration, c.Price, c.DiscountPercentage, c.DiscountAmount, c.IsDiscountActive,
		c.DiscountStartDate, c.DiscountEndDate, curriculum(c), c.AccessLink, c.Status).Scan(&c.UpdatedAt)
	return database.MapError(err)
}

// Delete removes a course and, by cascade, its videos. Enrollments are kept.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM courses WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return database.ErrNotFound
	}
	return nil
}

// TitlesByIDs returns the titles of the courses that still exist.
func (r *Repository) TitlesByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	out := make(map[uuid.UUID]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT id, title FROM courses WHERE id = ANY($1)`, ids)
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

// RecountEnrollments recomputes enrolled_count from non-cancelled enrollments.
func (r *Repository) RecountEnrollments(ctx context.Context, id uuid.UUID) (int, error) {
	const q = `UPDATE courses SET enrolled_count = (
			SELECT COUNT(*) FROM course_enrollments WHERE course_id = $1 AND status <> 'cancelled'
		) WHERE id = $1 RETURNING enrolled_count`
	var n int
	err := r.pool.QueryRow(ctx, q, id).Scan(&n)
	return n, database.MapError(err)
}
