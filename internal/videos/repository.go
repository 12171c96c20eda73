package videos

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/communityhub/backend/internal/models"
	"github.com/communityhub/backend/pkg/database"
)

// Repository handles course videos, access tokens and view logs.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a videos repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const videoCols = `id, course_id, title, description, youtube_id, duration_seconds, position, is_preview, created_at, updated_at`

type scanner interface{ Scan(...any) error }

func scanVideo(row scanner) (*models.CourseVideo, error) {
	var v models.CourseVideo
	if err := row.Scan(&v.ID, &v.CourseID, &v.Title, &v.Description, &v.YouTubeID, &v.DurationSeconds, &v.Position,
		&v.IsPreview, &v.CreatedAt, &v.UpdatedAt); err != nil {
		return nil, database.MapError(err)
	}
	return &v, nil
}

// Create inserts a video.
func (r *Repository) Create(ctx context.Context, v *models.CourseVideo) error {
	const q = `INSERT INTO course_videos (course_id, title, description, youtube_id, duration_seconds, position, is_preview)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`
	err := r.pool.QueryRow(ctx, q, v.CourseID, v.Title, v.Description, v.YouTubeID, v.DurationSeconds, v.Position, v.IsPreview).
		Scan(&v.ID, &v.CreatedAt, &v.UpdatedAt)
	return database.MapError(err)
}

// GetByID returns a video.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.CourseVideo, error) {
	return scanVideo(r.pool.QueryRow(ctx, `SELECT `+videoCols+` FROM course_videos WHERE id = $1`, id))
}

// ListByCourse returns the videos of a course in lesson order.
func (r *Repository) ListByCourse(ctx context.Context, courseID uuid.UUID) ([]*models.CourseVideo, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+videoCols+` FROM course_videos WHERE course_id = $1 ORDER BY position, created_at`, courseID)
	if err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}
	defer rows.Close()
	list := []*models.CourseVideo{}
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, v)
	}
	return list, rows.Err()
}

// CoursePublished reports whether the course exists and is visible on the public site.
func (r *Repository) CoursePublished(ctx context.Context, courseID uuid.UUID) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM courses WHERE id = $1 AND status = $2)`,
		courseID, models.CoursePublished).Scan(&ok)
	return ok, err
}

// Update writes all editable fields.
func (r *Repository) Update(ctx context.Context, v *models.CourseVideo) error {
	const q = `UPDATE course_videos SET title = $2, description = $3, youtube_id = $4, duration_seconds = $5,
			position = $6, is_preview = $7, updated_at = NOW()
		WHERE id = $1 RETURNING updated_at`
	err := r.pool.QueryRow(ctx, q, v.ID, v.Title, v.Description, v.YouTubeID, v.DurationSeconds, v.Position, v.IsPreview).
		Scan(&v.UpdatedAt)
	return database.MapError(err)
}

// Delete removes a video.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM course_videos WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return database.ErrNotFound
	}
	return nil
}

// CreateToken stores a minted token row.
func (r *Repository) CreateToken(ctx context.Context, t *models.VideoAccessToken) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO video_access_tokens
			(id, video_id, course_id, viewer_email, viewer_id, ip_address, max_views, current_views, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 0, $8, $9)`,
		t.ID, t.VideoID, t.CourseID, t.ViewerEmail, t.ViewerID, t.IPAddress, t.MaxViews, t.ExpiresAt, t.CreatedAt)
	return err
}

// GetToken returns a token row.
func (r *Repository) GetToken(ctx context.Context, id uuid.UUID) (*models.VideoAccessToken, error) {
	var t models.VideoAccessToken
	err := r.pool.QueryRow(ctx, `SELECT id, video_id, course_id, viewer_email, viewer_id, ip_address, max_views,
			current_views, expires_at, last_used_at, created_at
		FROM video_access_tokens WHERE id = $1`, id).
		Scan(&t.ID, &t.VideoID, &t.CourseID, &t.ViewerEmail, &t.ViewerID, &t.IPAddress, &t.MaxViews,
			&t.CurrentViews, &t.ExpiresAt, &t.LastUsedAt, &t.CreatedAt)
	if err != nil {
		return nil, database.MapError(err)
	}
	return &t, nil
}

// ConsumeView increments current_views unless the budget is spent or the token expired.
// It returns the new count, or ok=false when nothing was updated.
func (r *Repository) ConsumeView(ctx context.Context, id uuid.UUID, now time.Time) (views int, ok bool, err error) {
	err = r.pool.QueryRow(ctx, `UPDATE video_access_tokens
		SET current_views = current_views + 1, last_used_at = $2
		WHERE id = $1 AND current_views < max_views AND expires_at > $2
		RETURNING current_views`, id, now).Scan(&views)
	if err != nil {
		if errors.Is(database.MapError(err), database.ErrNotFound) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return views, true, nil
}

// PurgeExpiredTokens deletes tokens that expired before cutoff.
func (r *Repository) PurgeExpiredTokens(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM video_access_tokens WHERE expires_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// AddViewLog appends a playback report.
func (r *Repository) AddViewLog(ctx context.Context, l *models.VideoViewLog) error {
	return r.pool.QueryRow(ctx, `INSERT INTO video_view_logs
			(token_id, video_id, viewer_email, view_duration, completion_percentage, ip_address, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id, created_at`,
		l.TokenID, l.VideoID, l.ViewerEmail, l.ViewDuration, l.CompletionPercentage, l.IPAddress, l.UserAgent).
		Scan(&l.ID, &l.CreatedAt)
}

// ViewLogs returns the latest playback reports of a video.
func (r *Repository) ViewLogs(ctx context.Context, videoID uuid.UUID, limit int) ([]*models.VideoViewLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT id, token_id, video_id, viewer_email, view_duration, completion_percentage,
			ip_address, user_agent, created_at
		FROM video_view_logs WHERE video_id = $1 ORDER BY created_at DESC LIMIT $2`, videoID, limit)
	if err != nil {
		return nil, fmt.Errorf("list view logs: %w", err)
	}
	defer rows.Close()
	list := []*models.VideoViewLog{}
	for rows.Next() {
		var l models.VideoViewLog
		if err := rows.Scan(&l.ID, &l.TokenID, &l.VideoID, &l.ViewerEmail, &l.ViewDuration, &l.CompletionPercentage,
			&l.IPAddress, &l.UserAgent, &l.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &l)
	}
	return list, rows.Err()
}

// ViewStats aggregates all playback reports of a video.
func (r *Repository) ViewStats(ctx context.Context, videoID uuid.UUID) (*models.VideoViewStats, error) {
	var s models.VideoViewStats
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*), COUNT(DISTINCT lower(viewer_email)),
			COALESCE(SUM(view_duration), 0), COALESCE(AVG(completion_percentage), 0)
		FROM video_view_logs WHERE video_id = $1`, videoID).
		Scan(&s.TotalViews, &s.UniqueViewers, &s.TotalWatchSeconds, &s.AvgCompletion)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
