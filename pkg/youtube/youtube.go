// Package youtube reads public video metadata from the YouTube Data API v3 and
// builds embed URLs for protected lessons.
package youtube

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/sosodev/duration"
	"google.golang.org/api/option"
	yt "google.golang.org/api/youtube/v3"
)

var (
	// ErrInvalidVideoID is returned when a URL or id does not contain a YouTube video id.
	ErrInvalidVideoID = errors.New("invalid youtube video id")
	// ErrVideoNotFound is returned when the API has no such video.
	ErrVideoNotFound = errors.New("youtube video not found")
	// ErrNotConfigured is returned when no API key is set.
	ErrNotConfigured = errors.New("youtube api key not configured")
)

var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// Metadata is the subset of video fields used when creating a lesson.
type Metadata struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	Description     string `json:"description"`
	ChannelTitle    string `json:"channel_title"`
	ThumbnailURL    string `json:"thumbnail_url"`
	DurationSeconds int    `json:"duration_seconds"`
	Embeddable      bool   `json:"embeddable"`
	PrivacyStatus   string `json:"privacy_status"`
}

// Client fetches video metadata.
type Client struct {
	svc *yt.Service
}

// NewClient creates an API-key authenticated client. An empty key yields ErrNotConfigured.
func NewClient(ctx context.Context, apiKey string) (*Client, error) {
	if apiKey == "" {
		return nil, ErrNotConfigured
	}
	svc, err := yt.NewService(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("youtube service: %w", err)
	}
	return &Client{svc: svc}, nil
}

// Fetch returns metadata for a video id.
func (c *Client) Fetch(ctx context.Context, videoID string) (*Metadata, error) {
	if c == nil || c.svc == nil {
		return nil, ErrNotConfigured
	}
	resp, err := c.svc.Videos.List([]string{"snippet", "contentDetails", "status"}).Id(videoID).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("videos.list: %w", err)
	}
	if len(resp.Items) == 0 {
		return nil, ErrVideoNotFound
	}
	v := resp.Items[0]
	m := &Metadata{ID: v.Id}
	if v.Snippet != nil {
		m.Title = v.Snippet.Title
		m.Description = v.Snippet.Description
		m.ChannelTitle = v.Snippet.ChannelTitle
		if th := v.Snippet.Thumbnails; th != nil && th.High != nil {
			m.ThumbnailURL = th.High.Url
		}
	}
	if v.ContentDetails != nil {
		m.DurationSeconds, _ = ParseISODuration(v.ContentDetails.Duration)
	}
	if v.Status != nil {
		m.Embeddable = v.Status.Embeddable
		m.PrivacyStatus = v.Status.PrivacyStatus
	}
	return m, nil
}

// ExtractVideoID accepts a bare id or any common YouTube URL form and returns the 11-char id.
func ExtractVideoID(input string) (string, error) {
	s := strings.TrimSpace(input)
	if videoIDPattern.MatchString(s) {
		return s, nil
	}
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return "", ErrInvalidVideoID
	}
	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	host = strings.TrimPrefix(host, "m.")
	var id string
	switch host {
	case "youtu.be":
		id = strings.Trim(u.Path, "/")
	case "youtube.com", "youtube-nocookie.com", "music.youtube.com":
		if v := u.Query().Get("v"); v != "" {
			id = v
			break
		}
		parts := strings.Split(strings.Trim(u.Path, "/"), "/")
		if len(parts) == 2 {
			switch parts[0] {
			case "embed", "shorts", "live", "v":
				id = parts[1]
			}
		}
	}
	if !videoIDPattern.MatchString(id) {
		return "", ErrInvalidVideoID
	}
	return id, nil
}

// EmbedURL builds the iframe URL carrying the application access token.
// YouTube ignores the token parameter; the player page hands it back to the API.
func EmbedURL(videoID, token string) string {
	q := url.Values{}
	q.Set("enablejsapi", "1")
	q.Set("rel", "0")
	q.Set("modestbranding", "1")
	if token != "" {
		q.Set("token", token)
	}
	return "https://www.youtube.com/embed/" + videoID + "?" + q.Encode()
}

// ParseISODuration converts an ISO 8601 duration such as PT1H2M3S or P1DT5M into seconds.
func ParseISODuration(d string) (int, error) {
	if len(d) < 3 || d[0] != 'P' || !strings.ContainsAny(d[len(d)-1:], "WDHMS") {
		return 0, fmt.Errorf("invalid duration %q", d)
	}
	parsed, err := duration.Parse(d)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", d, err)
	}
	return int(parsed.ToTimeDuration() / time.Second), nil
}
