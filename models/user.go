package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents a registered member of the platform. The external
// identity provider subject is stored in ExternalSubject; nothing outside
// the identity resolver ever sees the raw subject string.
type User struct {
	ID              uuid.UUID `json:"id" db:"id"`
	ExternalSubject string    `json:"-" db:"external_subject"`
	DisplayName     string    `json:"display_name" db:"display_name"`
	Active          bool      `json:"active" db:"active"`
	SafetyMonitored bool      `json:"-" db:"safety_monitored"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for the User model
func (User) TableName() string {
	return "users"
}

// NewUser creates a new User instance
func NewUser(externalSubject, displayName string) *User {
	now := time.Now()
	return &User{
		ID:              uuid.New(),
		ExternalSubject: externalSubject,
		DisplayName:     displayName,
		Active:          true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// Deactivate marks the user as closed. Users are never hard-deleted while
// referenced; vital-interest records outlive deactivation.
func (u *User) Deactivate() {
	u.Active = false
	u.UpdatedAt = time.Now()
}
