package models

import (
	"time"

	"github.com/google/uuid"
)

// RelationshipType describes the declared relationship of a pairing
type RelationshipType string

const (
	RelationshipPartners  RelationshipType = "partners"
	RelationshipEngaged   RelationshipType = "engaged"
	RelationshipMarried   RelationshipType = "married"
	RelationshipCoParents RelationshipType = "co_parents"
)

// Pairing is the two-person tenant. Membership is symmetric: both members
// resolve to the same pairing, and all tenant-shared data hangs off it.
// A user belongs to at most one active pairing at a time; that uniqueness
// is enforced at write time, not filtered at read time.
type Pairing struct {
	ID               uuid.UUID        `json:"id" db:"id"`
	UserAID          uuid.UUID        `json:"user_a_id" db:"user_a_id"`
	UserBID          uuid.UUID        `json:"user_b_id" db:"user_b_id"`
	RelationshipType RelationshipType `json:"relationship_type" db:"relationship_type"`
	Active           bool             `json:"active" db:"active"`
	Version          int64            `json:"-" db:"version"`
	CreatedAt        time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for the Pairing model
func (Pairing) TableName() string {
	return "pairings"
}

// NewPairing creates a new active Pairing between two users
func NewPairing(userA, userB uuid.UUID, relType RelationshipType) *Pairing {
	now := time.Now()
	return &Pairing{
		ID:               uuid.New(),
		UserAID:          userA,
		UserBID:          userB,
		RelationshipType: relType,
		Active:           true,
		Version:          1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// Contains reports whether the given user is a member of this pairing
func (p *Pairing) Contains(userID uuid.UUID) bool {
	return p.UserAID == userID || p.UserBID == userID
}

// PartnerOf returns the other member of the pairing, or uuid.Nil when the
// given user is not a member.
func (p *Pairing) PartnerOf(userID uuid.UUID) uuid.UUID {
	switch userID {
	case p.UserAID:
		return p.UserBID
	case p.UserBID:
		return p.UserAID
	}
	return uuid.Nil
}
