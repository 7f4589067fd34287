package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// SensitivityClass determines the default visibility rules for a resource
// type. The mapping from type to class is static; only consent-shareable
// resources carry per-instance state that alters effective visibility.
type SensitivityClass string

const (
	// ClassPrivate resources are visible to their owner only. There is no
	// partner exception, ever.
	ClassPrivate SensitivityClass = "private"

	// ClassTenantShared resources belong to a pairing and are visible to
	// both current members of that pairing, to no one else.
	ClassTenantShared SensitivityClass = "tenant_shared"

	// ClassConsentShareable resources are visible to the owner always and
	// to the owner's current partner only while the instance consent flag
	// is true.
	ClassConsentShareable SensitivityClass = "consent_shareable"

	// ClassVitalInterest resources are owner-only, append-only, and can
	// never be deleted or have consent attached.
	ClassVitalInterest SensitivityClass = "vital_interest"
)

// ResourceType identifies a kind of stored record for classification
type ResourceType string

const (
	ResourceUser          ResourceType = "user"
	ResourcePreference    ResourceType = "preference_record"
	ResourceSafetyProfile ResourceType = "safety_profile"
	ResourceSafetySignal  ResourceType = "safety_signal"
	ResourceCommunication ResourceType = "communication_record"
	ResourceAssessment    ResourceType = "assessment_response"
)

// PreferenceRecord holds a user's personal preferences. 1:1 with User,
// class private.
type PreferenceRecord struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	OwnerUserID uuid.UUID       `json:"owner_user_id" db:"owner_user_id"`
	Settings    json.RawMessage `json:"settings" db:"settings"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for the PreferenceRecord model
func (PreferenceRecord) TableName() string {
	return "preference_records"
}

// SafetyProfile holds a user's safety planning data. 1:1 with User, class
// private: never visible to a partner under any circumstance.
type SafetyProfile struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	OwnerUserID uuid.UUID       `json:"owner_user_id" db:"owner_user_id"`
	Plan        json.RawMessage `json:"plan" db:"plan"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for the SafetyProfile model
func (SafetyProfile) TableName() string {
	return "safety_profiles"
}

// SafetySignal is a vital-interest record emitted by the crisis-detection
// pipeline (an opaque producer from this engine's point of view). Signals
// are append-only and immutable, survive account deactivation, and are
// visible only to their owner.
type SafetySignal struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	OwnerUserID uuid.UUID       `json:"owner_user_id" db:"owner_user_id"`
	Source      string          `json:"source" db:"source"`
	Payload     json.RawMessage `json:"payload" db:"payload"`
	RecordedAt  time.Time       `json:"recorded_at" db:"recorded_at"`
}

// TableName returns the table name for the SafetySignal model
func (SafetySignal) TableName() string {
	return "safety_signals"
}

// CommunicationRecord is a tenant-shared record owned by a pairing. The
// payload is an opaque ciphertext; this engine decides visibility, not
// content.
type CommunicationRecord struct {
	ID           uuid.UUID       `json:"id" db:"id"`
	PairingID    uuid.UUID       `json:"pairing_id" db:"pairing_id"`
	SenderUserID uuid.UUID       `json:"sender_user_id" db:"sender_user_id"`
	Payload      json.RawMessage `json:"payload" db:"payload"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
}

// TableName returns the table name for the CommunicationRecord model
func (CommunicationRecord) TableName() string {
	return "communication_records"
}

// AssessmentResponse is a consent-shareable record: the owner always sees
// it; the partner sees it only while ConsentGranted is true. Consent
// defaults to false at creation and is flipped only by the owner through
// the consent ledger, which bumps Version on every compare-and-set write.
type AssessmentResponse struct {
	ID             uuid.UUID       `json:"id" db:"id"`
	OwnerUserID    uuid.UUID       `json:"owner_user_id" db:"owner_user_id"`
	PairingID      uuid.UUID       `json:"pairing_id" db:"pairing_id"`
	AssessmentKey  string          `json:"assessment_key" db:"assessment_key"`
	Score          json.RawMessage `json:"score" db:"score"`
	ConsentGranted bool            `json:"consent_granted" db:"consent_granted"`
	Version        int64           `json:"-" db:"version"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for the AssessmentResponse model
func (AssessmentResponse) TableName() string {
	return "assessment_responses"
}
