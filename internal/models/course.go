package models

import (
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
)

// CourseStatus controls public visibility.
type CourseStatus string

const (
	CourseDraft     CourseStatus = "draft"
	CoursePublished CourseStatus = "published"
)

// Valid reports whether s is a known course status.
func (s CourseStatus) Valid() bool {
	return s == CourseDraft || s == CoursePublished
}

// Lesson is one entry of a course curriculum, kept in order.
type Lesson struct {
	Title       string     `json:"title"`
	Duration    string     `json:"duration,omitempty"`
	Description string     `json:"description,omitempty"`
	VideoID     *uuid.UUID `json:"video_id,omitempty"`
	IsFree      bool       `json:"is_free"`
}

// Course is a paid or free course in the catalog.
// At most one of DiscountPercentage and DiscountAmount is set.
type Course struct {
	ID                 uuid.UUID    `json:"id"`
	Title              string       `json:"title"`
	Slug               string       `json:"slug"`
	Summary            string       `json:"summary"`
	Description        string       `json:"description"`
	Instructor         string       `json:"instructor"`
	ThumbnailURL       string       `json:"thumbnail_url,omitempty"`
	Level              string       `json:"level,omitempty"`
	Duration           string       `json:"duration,omitempty"`
	Price              int64        `json:"price"`
	DiscountPercentage *float64     `json:"discount_percentage,omitempty"`
	DiscountAmount     *int64       `json:"discount_amount,omitempty"`
	IsDiscountActive   bool         `json:"is_discount_active"`
	DiscountStartDate  *time.Time   `json:"discount_start_date,omitempty"`
	DiscountEndDate    *time.Time   `json:"discount_end_date,omitempty"`
	Curriculum         []Lesson     `json:"curriculum"`
	AccessLink         string       `json:"access_link,omitempty"`
	Status             CourseStatus `json:"status"`
	EnrolledCount      int          `json:"enrolled_count"`
	EffectivePrice     int64        `json:"effective_price"`
	DiscountApplies    bool         `json:"discount_applies"`
	CreatedAt          time.Time    `json:"created_at"`
	UpdatedAt          time.Time    `json:"updated_at"`
}

// DiscountActive reports whether a discount applies at now. The window is only
// enforced when both dates are set.
func (c *Course) DiscountActive(now time.Time) bool {
	if !c.IsDiscountActive {
		return false
	}
	if c.DiscountPercentage == nil && c.DiscountAmount == nil {
		return false
	}
	if c.DiscountStartDate != nil && c.DiscountEndDate != nil {
		if now.Before(*c.DiscountStartDate) || now.After(*c.DiscountEndDate) {
			return false
		}
	}
	return true
}

// Discount returns the amount taken off the price at now, within [0, Price].
func (c *Course) Discount(now time.Time) int64 {
	if !c.DiscountActive(now) || c.Price <= 0 {
		return 0
	}
	var d int64
	switch {
	case c.DiscountPercentage != nil:
		d = int64(math.Round(float64(c.Price) * *c.DiscountPercentage / 100))
	case c.DiscountAmount != nil:
		d = *c.DiscountAmount
	}
	if d < 0 {
		return 0
	}
	if d > c.Price {
		return c.Price
	}
	return d
}

// PriceAt is the effective price: max(0, price - active discount).
func (c *Course) PriceAt(now time.Time) int64 {
	p := c.Price - c.Discount(now)
	if p < 0 {
		return 0
	}
	return p
}

// ApplyPricing fills the computed pricing fields for API output.
func (c *Course) ApplyPricing(now time.Time) {
	c.EffectivePrice = c.PriceAt(now)
	c.DiscountApplies = c.Discount(now) > 0
}

// ValidateDiscount checks the discount fields: at most one kind, a percentage in (0, 100],
// a non-negative amount and an ordered window.
func (c *Course) ValidateDiscount() error {
	if c.DiscountPercentage != nil && c.DiscountAmount != nil {
		return ErrDiscountBothKinds
	}
	if p := c.DiscountPercentage; p != nil && (*p <= 0 || *p > 100) {
		return ErrDiscountPercentage
	}
	if a := c.DiscountAmount; a != nil && *a < 0 {
		return ErrDiscountAmount
	}
	if c.DiscountStartDate != nil && c.DiscountEndDate != nil && c.DiscountEndDate.Before(*c.DiscountStartDate) {
		return ErrDiscountWindow
	}
	return nil
}

var (
	ErrDiscountBothKinds  = errors.New("set either discount_percentage or discount_amount, not both")
	ErrDiscountPercentage = errors.New("discount_percentage must be greater than 0 and at most 100")
	ErrDiscountAmount     = errors.New("discount_amount must not be negative")
	ErrDiscountWindow     = errors.New("discount_end_date must not be before discount_start_date")
)
