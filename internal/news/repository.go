package news

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/communityhub/backend/internal/models"
	"github.com/communityhub/backend/pkg/database"
)

// Repository handles news persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a news repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const newsCols = `id, title, slug, summary, content, image_url, category, author, status, published_at, views, created_at, updated_at`

type scanner interface{ Scan(...any) error }

func scanNews(row scanner) (*models.News, error) {
	var n models.News
	if err := row.Scan(&n.ID, &n.Title, &n.Slug, &n.Summary, &n.Content, &n.ImageURL, &n.Category, &n.Author,
		&n.Status, &n.PublishedAt, &n.Views, &n.CreatedAt, &n.UpdatedAt); err != nil {
		return nil, database.MapError(err)
	}
	return &n, nil
}

// Create inserts an article. A taken slug returns database.ErrDuplicate.
func (r *Repository) Create(ctx context.Context, n *models.News) error {
	const q = `INSERT INTO news (title, slug, summary, content, image_url, category, author, status, published_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, views, created_at, updated_at`
	err := r.pool.QueryRow(ctx, q, n.Title, n.Slug, n.Summary, n.Content, n.ImageURL, n.Category, n.Author,
		n.Status, n.PublishedAt).Scan(&n.ID, &n.Views, &n.CreatedAt, &n.UpdatedAt)
	return database.MapError(err)
}

// GetByID returns an article.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.News, error) {
	return scanNews(r.pool.QueryRow(ctx, `SELECT `+newsCols+` FROM news WHERE id = $1`, id))
}

// GetBySlug returns an article by slug.
func (r *Repository) GetBySlug(ctx context.Context, slug string) (*models.News, error) {
	return scanNews(r.pool.QueryRow(ctx, `SELECT `+newsCols+` FROM news WHERE slug = $1`, slug))
}

// ListFilter narrows List.
type ListFilter struct {
	Status   string
	Category string
	Search   string
	Limit    int
	Offset   int
}

// List returns articles, most recently published first.
func (r *Repository) List(ctx context.Context, f ListFilter) ([]*models.News, error) {
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 20
	}
	const q = `SELECT ` + newsCols + ` FROM news
		WHERE ($1 = '' OR status = $1)
		AND ($2 = '' OR category = $2)
		AND ($3 = '' OR title ILIKE '%' || $3 || '%' OR summary ILIKE '%' || $3 || '%')
		ORDER BY COALESCE(published_at, created_at) DESC
		LIMIT $4 OFFSET $5`
	rows, err := r.pool.Query(ctx, q, f.Status, f.Category, strings.TrimSpace(f.Search), f.Limit, f.Offset)
	if err != nil {
		return nil, fmt.Errorf("list news: %w", err)
	}
	defer rows.Close()
	list := []*models.News{}
	for rows.Next() {
		n, err := scanNews(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, n)
	}
	return list, rows.Err()
}

// Update writes all editable fields.
func (r *Repository) Update(ctx context.Context, n *models.News) error {
	const q = `UPDATE news SET title = $2, slug = $3, summary = $4, content = $5, image_url = $6, category = $7,
			author = $8, status = $9, published_at = $10, updated_at = NOW()
		WHERE id = $1 RETURNING updated_at`
	err := r.pool.QueryRow(ctx, q, n.ID, n.Title, n.Slug, n.Summary, n.Content, n.ImageURL, n.Category, n.Author,
		n.Status, n.PublishedAt).Scan(&n.UpdatedAt)
	return database.MapError(err)
}

// IncrementViews adds one view and returns the new count.
func (r *Repository) IncrementViews(ctx context.Context, id uuid.UUID) (int64, error) {
	var views int64
	err := r.pool.QueryRow(ctx, `UPDATE news SET views = views + 1 WHERE id = $1 RETURNING views`, id).Scan(&views)
	return views, database.MapError(err)
}

// Delete removes an article.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM news WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return database.ErrNotFound
	}
	return nil
}
