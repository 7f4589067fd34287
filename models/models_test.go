package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestNewUser(t *testing.T) {
	user := NewUser("ext-sub-123", "Alice")

	assert.NotEqual(t, uuid.Nil, user.ID)
	assert.Equal(t, "ext-sub-123", user.ExternalSubject)
	assert.Equal(t, "Alice", user.DisplayName)
	assert.True(t, user.Active)
	assert.False(t, user.SafetyMonitored)
}

func TestUser_Deactivate(t *testing.T) {
	user := NewUser("ext-sub-123", "Alice")
	user.Deactivate()

	assert.False(t, user.Active)
}

func TestNewPairing(t *testing.T) {
	a := uuid.New()
	b := uuid.New()
	pairing := NewPairing(a, b, RelationshipPartners)

	assert.NotEqual(t, uuid.Nil, pairing.ID)
	assert.True(t, pairing.Active)
	assert.Equal(t, int64(1), pairing.Version)
	assert.Equal(t, RelationshipPartners, pairing.RelationshipType)
}

func TestPairing_Contains(t *testing.T) {
	a := uuid.New()
	b := uuid.New()
	pairing := NewPairing(a, b, RelationshipMarried)

	assert.True(t, pairing.Contains(a))
	assert.True(t, pairing.Contains(b))
	assert.False(t, pairing.Contains(uuid.New()))
}

func TestPairing_PartnerOf(t *testing.T) {
	a := uuid.New()
	b := uuid.New()
	pairing := NewPairing(a, b, RelationshipPartners)

	assert.Equal(t, b, pairing.PartnerOf(a))
	assert.Equal(t, a, pairing.PartnerOf(b))
	assert.Equal(t, uuid.Nil, pairing.PartnerOf(uuid.New()))
}

func TestNewAuditLog(t *testing.T) {
	subjectID := uuid.New()
	resourceID := uuid.New()

	log := NewAuditLog(&subjectID, "read", ResourceSafetyProfile, &resourceID, OutcomeDenied, "not owner")

	assert.NotEqual(t, uuid.Nil, log.ID)
	assert.Equal(t, &subjectID, log.SubjectID)
	assert.Equal(t, "read", log.Operation)
	assert.Equal(t, string(ResourceSafetyProfile), log.ResourceType)
	assert.Equal(t, OutcomeDenied, log.Outcome)
	assert.False(t, log.Timestamp.IsZero())
}

func TestTableNames(t *testing.T) {
	assert.Equal(t, "users", User{}.TableName())
	assert.Equal(t, "pairings", Pairing{}.TableName())
	assert.Equal(t, "preference_records", PreferenceRecord{}.TableName())
	assert.Equal(t, "safety_profiles", SafetyProfile{}.TableName())
	assert.Equal(t, "safety_signals", SafetySignal{}.TableName())
	assert.Equal(t, "communication_records", CommunicationRecord{}.TableName())
	assert.Equal(t, "assessment_responses", AssessmentResponse{}.TableName())
	assert.Equal(t, "audit_logs", AuditLog{}.TableName())
}
