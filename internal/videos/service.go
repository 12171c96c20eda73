package videos

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/communityhub/backend/internal/models"
	"github.com/communityhub/backend/pkg/database"
	"github.com/communityhub/backend/pkg/utils"
	"github.com/communityhub/backend/pkg/youtube"
)

var (
	ErrVideoNotFound  = errors.New("video not found")
	ErrCourseNotFound = errors.New("course not found")
	ErrAccessDenied   = errors.New("a confirmed and paid enrollment is required for this video")
)

// Store persists videos, tokens and view logs.
type Store interface {
	Create(ctx context.Context, v *models.CourseVideo) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.CourseVideo, error)
	ListByCourse(ctx context.Context, courseID uuid.UUID) ([]*models.CourseVideo, error)
	Update(ctx context.Context, v *models.CourseVideo) error
	Delete(ctx context.Context, id uuid.UUID) error
	CreateToken(ctx context.Context, t *models.VideoAccessToken) error
	GetToken(ctx context.Context, id uuid.UUID) (*models.VideoAccessToken, error)
	ConsumeView(ctx context.Context, id uuid.UUID, now time.Time) (int, bool, error)
	AddViewLog(ctx context.Context, l *models.VideoViewLog) error
	ViewLogs(ctx context.Context, videoID uuid.UUID, limit int) ([]*models.VideoViewLog, error)
	CoursePublished(ctx context.Context, courseID uuid.UUID) (bool, error)
	ViewStats(ctx context.Context, videoID uuid.UUID) (*models.VideoViewStats, error)
}

// EnrollmentChecker answers whether a viewer paid for a course.
type EnrollmentChecker interface {
	HasPaidEnrollment(ctx context.Context, courseID uuid.UUID, email string) (bool, error)
}

// MetadataFetcher reads YouTube metadata. *youtube.Client implements it.
type MetadataFetcher interface {
	Fetch(ctx context.Context, videoID string) (*youtube.Metadata, error)
}

// Grant is a minted access token.
type Grant struct {
	Token     string    `json:"token"`
	EmbedURL  string    `json:"embed_url"`
	ExpiresAt time.Time `json:"expires_at"`
	MaxViews  int       `json:"max_views"`
}

// Access is the result of a token check.
type Access struct {
	Video          *models.CourseVideo `json:"video"`
	EmbedURL       string              `json:"embed_url"`
	ViewerEmail    string              `json:"viewer_email"`
	CurrentViews   int                 `json:"current_views"`
	MaxViews       int                 `json:"max_views"`
	RemainingViews int                 `json:"remaining_views"`
	ExpiresAt      time.Time           `json:"expires_at"`
}

// Service implements protected video access.
type Service struct {
	store       Store
	enrollments EnrollmentChecker
	issuer      *TokenIssuer
	meta        MetadataFetcher
	now         func() time.Time
	logger      *zap.Logger
}

// NewService creates a videos service. meta may be nil when no YouTube key is configured.
func NewService(store Store, enrollments EnrollmentChecker, issuer *TokenIssuer, meta MetadataFetcher, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, enrollments: enrollments, issuer: issuer, meta: meta, now: time.Now, logger: logger}
}

func (s *Service) video(ctx context.Context, id uuid.UUID) (*models.CourseVideo, error) {
	v, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrVideoNotFound
		}
		return nil, err
	}
	return v, nil
}

// GrantAccess mints a token for a viewer. Preview videos are open to anyone; other
// videos need a confirmed and paid enrollment for the course.
func (s *Service) GrantAccess(ctx context.Context, videoID uuid.UUID, email, viewerID, ip string) (*Grant, error) {
	v, err := s.video(ctx, videoID)
	if err != nil {
		return nil, err
	}
	published, err := s.store.CoursePublished(ctx, v.CourseID)
	if err != nil {
		return nil, fmt.Errorf("check course: %w", err)
	}
	if !published {
		return nil, ErrVideoNotFound
	}
	email = utils.NormalizeEmail(email)
	if !v.IsPreview {
		ok, err := s.enrollments.HasPaidEnrollment(ctx, v.CourseID, email)
		if err != nil {
			return nil, fmt.Errorf("check enrollment: %w", err)
		}
		if !ok {
			return nil, ErrAccessDenied
		}
	}
	rec := s.issuer.NewRecord(v, email, strings.TrimSpace(viewerID), ip, s.now())
	token, err := s.issuer.Sign(rec)
	if err != nil {
		return nil, fmt.Errorf("sign video token: %w", err)
	}
	if err := s.store.CreateToken(ctx, rec); err != nil {
		return nil, fmt.Errorf("store video token: %w", err)
	}
	s.logger.Info("video token issued",
		zap.String("video_id", v.ID.String()),
		zap.String("token_id", rec.ID.String()),
		zap.Bool("preview", v.IsPreview))
	return &Grant{
		Token:     token,
		EmbedURL:  youtube.EmbedURL(v.YouTubeID, token),
		ExpiresAt: rec.ExpiresAt,
		MaxViews:  rec.MaxViews,
	}, nil
}

func (s *Service) resolve(ctx context.Context, token, ip string, now time.Time) (*models.VideoAccessToken, *models.CourseVideo, error) {
	tokenID, videoID, err := s.issuer.Parse(token, now)
	if err != nil {
		return nil, nil, err
	}
	rec, err := s.store.GetToken(ctx, tokenID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, nil, ErrInvalidToken
		}
		return nil, nil, err
	}
	if rec.VideoID != videoID {
		return nil, nil, ErrInvalidToken
	}
	if err := CheckRecord(rec, ip, now); err != nil {
		return nil, nil, err
	}
	v, err := s.video(ctx, rec.VideoID)
	if err != nil {
		return nil, nil, err
	}
	return rec, v, nil
}

func access(rec *models.VideoAccessToken, v *models.CourseVideo, token string) *Access {
	return &Access{
		Video:          v,
		EmbedURL:       youtube.EmbedURL(v.YouTubeID, token),
		ViewerEmail:    rec.ViewerEmail,
		CurrentViews:   rec.CurrentViews,
		MaxViews:       rec.MaxViews,
		RemainingViews: rec.MaxViews - rec.CurrentViews,
		ExpiresAt:      rec.ExpiresAt,
	}
}

// Validate checks a token without consuming a view.
func (s *Service) Validate(ctx context.Context, token, ip string) (*Access, error) {
	rec, v, err := s.resolve(ctx, token, ip, s.now())
	if err != nil {
		return nil, err
	}
	return access(rec, v, token), nil
}

// TrackInput is a playback report.
type TrackInput struct {
	Token                string
	ViewDuration         int
	CompletionPercentage float64
	IP                   string
	UserAgent            string
}

// Track validates the token, consumes one view and appends a view log.
func (s *Service) Track(ctx context.Context, in TrackInput) (*Access, error) {
	now := s.now()
	rec, v, err := s.resolve(ctx, in.Token, in.IP, now)
	if err != nil {
		return nil, err
	}
	views, ok, err := s.store.ConsumeView(ctx, rec.ID, now)
	if err != nil {
		return nil, fmt.Errorf("consume view: %w", err)
	}
	if !ok {
		return nil, ErrViewLimitReached
	}
	rec.CurrentViews = views
	rec.LastUsedAt = &now

	completion := in.CompletionPercentage
	if completion < 0 {
		completion = 0
	}
	if completion > 100 {
		completion = 100
	}
	duration := in.ViewDuration
	if duration < 0 {
		duration = 0
	}
	entry := &models.VideoViewLog{
		TokenID:              rec.ID,
		VideoID:              rec.VideoID,
		ViewerEmail:          rec.ViewerEmail,
		ViewDuration:         duration,
		CompletionPercentage: completion,
		IPAddress:            in.IP,
		UserAgent:            in.UserAgent,
	}
	if err := s.store.AddViewLog(ctx, entry); err != nil {
		s.logger.Error("append view log", zap.String("token_id", rec.ID.String()), zap.Error(err))
	}
	return access(rec, v, in.Token), nil
}

// VideoInput is an admin create or update of a lesson video.
type VideoInput struct {
	CourseID        uuid.UUID
	Title           string
	Description     string
	YouTube         string
	DurationSeconds int
	Position        int
	IsPreview       bool
}

// Save creates or updates a video. The YouTube id is extracted from a URL or id; when
// metadata is available it fills a missing title, description and duration. A metadata
// failure is returned as a warning and never blocks the save.
func (s *Service) Save(ctx context.Context, existing *models.CourseVideo, in VideoInput) (*models.CourseVideo, string, error) {
	ytID, err := youtube.ExtractVideoID(in.YouTube)
	if err != nil {
		return nil, "", err
	}
	v := existing
	if v == nil {
		v = &models.CourseVideo{CourseID: in.CourseID}
	}
	v.Title = strings.TrimSpace(in.Title)
	v.Description = in.Description
	v.YouTubeID = ytID
	v.DurationSeconds = in.DurationSeconds
	v.Position = in.Position
	v.IsPreview = in.IsPreview

	var warning string
	if s.meta != nil {
		meta, err := s.meta.Fetch(ctx, ytID)
		switch {
		case err != nil:
			warning = "youtube metadata unavailable: " + err.Error()
			s.logger.Warn("youtube metadata", zap.String("youtube_id", ytID), zap.Error(err))
		case !meta.Embeddable:
			warning = "youtube video does not allow embedding"
		}
		if meta != nil {
			if v.Title == "" {
				v.Title = meta.Title
			}
			if v.Description == "" {
				v.Description = meta.Description
			}
			if v.DurationSeconds == 0 {
				v.DurationSeconds = meta.DurationSeconds
			}
		}
	}
	if v.Title == "" {
		v.Title = "Untitled lesson"
	}

	if existing == nil {
		err = s.store.Create(ctx, v)
	} else {
		err = s.store.Update(ctx, v)
	}
	if err != nil {
		return nil, "", err
	}
	return v, warning, nil
}

// ViewReport is the admin view analytics of a video.
type ViewReport struct {
	Stats *models.VideoViewStats `json:"stats"`
	Logs  []*models.VideoViewLog `json:"logs"`
}

// Views returns aggregate stats and the latest logs of a video.
func (s *Service) Views(ctx context.Context, videoID uuid.UUID, limit int) (*ViewReport, error) {
	if _, err := s.video(ctx, videoID); err != nil {
		return nil, err
	}
	stats, err := s.store.ViewStats(ctx, videoID)
	if err != nil {
		return nil, err
	}
	logs, err := s.store.ViewLogs(ctx, videoID, limit)
	if err != nil {
		return nil, err
	}
	return &ViewReport{Stats: stats, Logs: logs}, nil
}

// List returns the videos of a course. Unless full is set, the course must be
// published and YouTube ids of non-preview videos are removed.
func (s *Service) List(ctx context.Context, courseID uuid.UUID, full bool) ([]*models.CourseVideo, error) {
	if !full {
		published, err := s.store.CoursePublished(ctx, courseID)
		if err != nil {
			return nil, fmt.Errorf("check course: %w", err)
		}
		if !published {
			return nil, ErrCourseNotFound
		}
	}
	list, err := s.store.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if !full {
		for _, v := range list {
			if !v.IsPreview {
				v.YouTubeID = ""
			}
		}
	}
	return list, nil
}

// Get returns one video with its YouTube id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.CourseVideo, error) {
	return s.video(ctx, id)
}

// Delete removes a video. Issued tokens stop validating once the row is gone.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.store.Delete(ctx, id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return ErrVideoNotFound
		}
		return err
	}
	return nil
}
