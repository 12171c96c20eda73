package models

import (
	"time"

	"github.com/google/uuid"
)

// NewsCategory separates announcements from blog posts.
type NewsCategory string

const (
	CategoryNews NewsCategory = "news"
	CategoryBlog NewsCategory = "blog"
)

func (c NewsCategory) Valid() bool {
	return c == CategoryNews || c == CategoryBlog
}

// PublishStatus is shared by news articles.
type PublishStatus string

const (
	PublishDraft     PublishStatus = "draft"
	PublishPublished PublishStatus = "published"
)

func (s PublishStatus) Valid() bool {
	return s == PublishDraft || s == PublishPublished
}

// News is a news article or blog post.
type News struct {
	ID          uuid.UUID     `json:"id"`
	Title       string        `json:"title"`
	Slug        string        `json:"slug"`
	Summary     string        `json:"summary"`
	Content     string        `json:"content,omitempty"`
	ImageURL    string        `json:"image_url,omitempty"`
	Category    NewsCategory  `json:"category"`
	Author      string        `json:"author"`
	Status      PublishStatus `json:"status"`
	PublishedAt *time.Time    `json:"published_at,omitempty"`
	Views       int64         `json:"views"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}
