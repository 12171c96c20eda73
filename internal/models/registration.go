package models

import (
	"time"

	"github.com/google/uuid"
)

// Registration binds an attendee to an Event. EventID is a weak reference:
// the event may have been deleted since.
type Registration struct {
	ID            uuid.UUID          `json:"id"`
	EventID       uuid.UUID          `json:"event_id"`
	EventTitle    string             `json:"event_title,omitempty"`
	FullName      string             `json:"full_name"`
	Email         string             `json:"email"`
	Phone         string             `json:"phone,omitempty"`
	Organization  string             `json:"organization,omitempty"`
	Note          string             `json:"note,omitempty"`
	Status        RegistrationStatus `json:"status"`
	PaymentStatus PaymentStatus      `json:"payment_status"`
	PaymentMethod string             `json:"payment_method,omitempty"`
	TransactionID string             `json:"transaction_id,omitempty"`
	Amount        int64              `json:"amount"`
	ConfirmedAt   *time.Time         `json:"confirmed_at,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

// CourseEnrollment binds a learner to a Course; it mirrors Registration.
type CourseEnrollment struct {
	ID            uuid.UUID          `json:"id"`
	CourseID      uuid.UUID          `json:"course_id"`
	CourseTitle   string             `json:"course_title,omitempty"`
	FullName      string             `json:"full_name"`
	Email         string             `json:"email"`
	Phone         string             `json:"phone,omitempty"`
	Note          string             `json:"note,omitempty"`
	Status        RegistrationStatus `json:"status"`
	PaymentStatus PaymentStatus      `json:"payment_status"`
	PaymentMethod string             `json:"payment_method,omitempty"`
	TransactionID string             `json:"transaction_id,omitempty"`
	Amount        int64              `json:"amount"`
	ConfirmedAt   *time.Time         `json:"confirmed_at,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

// UnknownCourseTitle is shown for enrollments whose course was deleted.
const UnknownCourseTitle = "(deleted course)"
