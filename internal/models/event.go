package models

import (
	"time"

	"github.com/google/uuid"
)

// EventStatus is the lifecycle status of an event.
type EventStatus string

const (
	EventUpcoming  EventStatus = "upcoming"
	EventPast      EventStatus = "past"
	EventCancelled EventStatus = "cancelled"
)

// Valid reports whether s is a known event status.
func (s EventStatus) Valid() bool {
	return s == EventUpcoming || s == EventPast || s == EventCancelled
}

// UnknownEventTitle is shown for registrations whose event was deleted.
const UnknownEventTitle = "(deleted event)"

// Event is a community event (meetup, workshop, webinar).
type Event struct {
	ID            uuid.UUID   `json:"id"`
	Title         string      `json:"title"`
	Slug          string      `json:"slug"`
	Description   string      `json:"description"`
	StartsAt      time.Time   `json:"starts_at"`
	EndsAt        *time.Time  `json:"ends_at,omitempty"`
	Location      string      `json:"location"`
	Capacity      int         `json:"capacity"` // 0 means unlimited
	Price         int64       `json:"price"`
	OnlineLink    string      `json:"online_link,omitempty"`
	ImageURL      string      `json:"image_url,omitempty"`
	Status        EventStatus `json:"status"`
	Registrations int         `json:"registrations"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// EffectiveStatus applies the date rule: an upcoming event that has finished reads as past.
// The finish time is EndsAt when set, otherwise StartsAt.
func (e *Event) EffectiveStatus(now time.Time) EventStatus {
	if e.Status != EventUpcoming {
		return e.Status
	}
	finish := e.StartsAt
	if e.EndsAt != nil {
		finish = *e.EndsAt
	}
	if finish.Before(now) {
		return EventPast
	}
	return EventUpcoming
}

// IsFull reports whether a capacity-limited event has no seats left.
func (e *Event) IsFull() bool {
	return e.Capacity > 0 && e.Registrations >= e.Capacity
}

// IsFree reports whether registration needs no payment.
func (e *Event) IsFree() bool {
	return e.Price <= 0
}
