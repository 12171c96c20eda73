package models

import (
	"time"

	"github.com/google/uuid"
)

// Email types.
const (
	EmailTypeRegistrationPending = "registration_pending"
	EmailTypeRegistrationConfirm = "registration_confirm"
	EmailTypeEnrollmentPending   = "enrollment_pending"
	EmailTypeEnrollmentConfirm   = "enrollment_confirm"
)

// Entity kinds an email can be about.
const (
	EntityRegistration = "registration"
	EntityEnrollment   = "enrollment"
)

// EmailLogStatus for delivery.
const (
	EmailLogStatusPending = "pending"
	EmailLogStatusSent    = "sent"
	EmailLogStatusFailed  = "failed"
)

// EmailLog records every attempted notification.
type EmailLog struct {
	ID             uuid.UUID  `json:"id"`
	EntityKind     string     `json:"entity_kind,omitempty"`
	EntityID       *uuid.UUID `json:"entity_id,omitempty"`
	EmailType      string     `json:"email_type"`
	RecipientEmail string     `json:"recipient_email"`
	Subject        string     `json:"subject,omitempty"`
	BodyHTML       string     `json:"-"`
	Status         string     `json:"status"`
	SentAt         *time.Time `json:"sent_at,omitempty"`
	ErrorMessage   string     `json:"error_message,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}
