package models

import (
	"time"

	"github.com/google/uuid"
)

// Role is an admin dashboard role.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleEditor Role = "editor"
)

// Valid reports whether r is a known admin role.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleEditor
}

// Admin is a dashboard account.
type Admin struct {
	ID          uuid.UUID  `json:"id"`
	Email       string     `json:"email"`
	Password    string     `json:"-"`
	FullName    string     `json:"full_name"`
	Role        Role       `json:"role"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// AdminPublic is Admin without the password hash.
type AdminPublic struct {
	ID          uuid.UUID  `json:"id"`
	Email       string     `json:"email"`
	FullName    string     `json:"full_name"`
	Role        Role       `json:"role"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

// ToPublic converts Admin to AdminPublic.
func (a *Admin) ToPublic() AdminPublic {
	return AdminPublic{
		ID:          a.ID,
		Email:       a.Email,
		FullName:    a.FullName,
		Role:        a.Role,
		LastLoginAt: a.LastLoginAt,
	}
}

// MemberStatus is the status of a community member.
type MemberStatus string

const (
	MemberActive   MemberStatus = "active"
	MemberInactive MemberStatus = "inactive"
)

// Valid reports whether s is a known member status.
func (s MemberStatus) Valid() bool {
	return s == MemberActive || s == MemberInactive
}

// Member is a community user managed from the dashboard. Members never log in.
type Member struct {
	ID           uuid.UUID    `json:"id"`
	FullName     string       `json:"full_name"`
	Email        string       `json:"email"`
	Phone        string       `json:"phone,omitempty"`
	Organization string       `json:"organization,omitempty"`
	Position     string       `json:"position,omitempty"`
	Bio          string       `json:"bio,omitempty"`
	Status       MemberStatus `json:"status"`
	JoinedAt     time.Time    `json:"joined_at"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}
