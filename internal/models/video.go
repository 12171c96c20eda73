package models

import (
	"time"

	"github.com/google/uuid"
)

// CourseVideo is a YouTube-hosted lesson of a course.
type CourseVideo struct {
	ID              uuid.UUID `json:"id"`
	CourseID        uuid.UUID `json:"course_id"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	YouTubeID       string    `json:"youtube_id,omitempty"`
	DurationSeconds int       `json:"duration_seconds"`
	Position        int       `json:"position"`
	IsPreview       bool      `json:"is_preview"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// VideoAccessToken is the server-side record of a minted video token.
type VideoAccessToken struct {
	ID           uuid.UUID  `json:"id"`
	VideoID      uuid.UUID  `json:"video_id"`
	CourseID     uuid.UUID  `json:"course_id"`
	ViewerEmail  string     `json:"viewer_email"`
	ViewerID     string     `json:"viewer_id,omitempty"`
	IPAddress    string     `json:"ip_address,omitempty"`
	MaxViews     int        `json:"max_views"`
	CurrentViews int        `json:"current_views"`
	ExpiresAt    time.Time  `json:"expires_at"`
	LastUsedAt   *time.Time `json:"last_used_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// VideoViewLog is one playback report.
type VideoViewLog struct {
	ID                   uuid.UUID `json:"id"`
	TokenID              uuid.UUID `json:"token_id"`
	VideoID              uuid.UUID `json:"video_id"`
	ViewerEmail          string    `json:"viewer_email"`
	ViewDuration         int       `json:"view_duration"`
	CompletionPercentage float64   `json:"completion_percentage"`
	IPAddress            string    `json:"ip_address,omitempty"`
	UserAgent            string    `json:"user_agent,omitempty"`
	CreatedAt            time.Time `json:"created_at"`
}

// VideoViewStats aggregates view logs of one video.
type VideoViewStats struct {
	TotalViews        int     `json:"total_views"`
	UniqueViewers     int     `json:"unique_viewers"`
	TotalWatchSeconds int64   `json:"total_watch_seconds"`
	AvgCompletion     float64 `json:"avg_completion"`
}
