package models

import (
	"time"

	"github.com/google/uuid"
)

// ContactStatus tracks handling of an inbound contact.
type ContactStatus string

const (
	ContactNew           ContactStatus = "new"
	ContactInProgress    ContactStatus = "in_progress"
	ContactInNegotiation ContactStatus = "in_negotiation"
	ContactResolved      ContactStatus = "resolved"
	ContactClosed        ContactStatus = "closed"
)

func (s ContactStatus) Valid() bool {
	switch s {
	case ContactNew, ContactInProgress, ContactInNegotiation, ContactResolved, ContactClosed:
		return true
	}
	return false
}

// ContactPriority is the triage priority.
type ContactPriority string

const (
	PriorityHigh   ContactPriority = "high"
	PriorityMedium ContactPriority = "medium"
	PriorityLow    ContactPriority = "low"
)

func (p ContactPriority) Valid() bool {
	return p == PriorityHigh || p == PriorityMedium || p == PriorityLow
}

// ContactNote is an admin note appended to a contact.
type ContactNote struct {
	Text      string    `json:"text"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"created_at"`
}

// Contact is a message sent through the public contact form.
type Contact struct {
	ID        uuid.UUID       `json:"id"`
	Name      string          `json:"name"`
	Email     string          `json:"email"`
	Phone     string          `json:"phone,omitempty"`
	Company   string          `json:"company,omitempty"`
	Subject   string          `json:"subject"`
	Message   string          `json:"message"`
	Type      string          `json:"type"`
	Status    ContactStatus   `json:"status"`
	Priority  ContactPriority `json:"priority"`
	Notes     []ContactNote   `json:"notes"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}
