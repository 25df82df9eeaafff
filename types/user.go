package types

import (
	"fmt"
	"time"
)

// Role is the authorization level of an account.
type Role string

// Supported roles. Registration always produces RoleUser; RoleAdmin accounts
// are created out of band (seed, migration, direct SQL).
const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// ParseRole converts a raw value into a Role, rejecting unknown values.
func ParseRole(raw string) (Role, error) {
	switch Role(raw) {
	case RoleAdmin:
		return RoleAdmin, nil
	case RoleUser:
		return RoleUser, nil
	default:
		return "", fmt.Errorf("unknown role %q", raw)
	}
}

// Status governs whether an account may authenticate.
type Status string

// Supported account statuses.
const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// ParseStatus converts a raw value into a Status, rejecting unknown values.
func ParseStatus(raw string) (Status, error) {
	switch Status(raw) {
	case StatusActive:
		return StatusActive, nil
	case StatusInactive:
		return StatusInactive, nil
	default:
		return "", fmt.Errorf("unknown status %q", raw)
	}
}

// User represents an account in the system.
// It contains identity, credentials, role, and session state.
type User struct {
	// ID is the unique identifier of the user.
	ID string `json:"id" db:"id"`

	// Name is the user's display or full name.
	Name string `json:"name" db:"name"`

	// Email is the unique login key of the user. Lookups are exact and
	// case-sensitive.
	Email string `json:"email" db:"email"`

	// Role indicates the user's authorization level.
	Role Role `json:"role" db:"role"`

	// Status indicates whether the account may authenticate.
	Status Status `json:"status" db:"status"`

	// TokenVersion is bumped every time the account is deactivated. A session
	// token is only accepted while its embedded version equals this value.
	TokenVersion int `json:"-" db:"token_version"`

	// PasswordHash stores the hashed representation of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"createdAt" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the user account.
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// IsActive reports whether the account may authenticate.
func (u User) IsActive() bool {
	return u.Status == StatusActive
}

// Public returns the representation of the user sent to clients.
func (u User) Public() PublicUser {
	return PublicUser{
		ID:     u.ID,
		Name:   u.Name,
		Email:  u.Email,
		Role:   u.Role,
		Status: u.Status,
	}
}

// PublicUser is the client-facing view of a user.
type PublicUser struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Role   Role   `json:"role"`
	Status Status `json:"status"`
}

// UserRef is the compact user reference embedded in tasks.
type UserRef struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}
