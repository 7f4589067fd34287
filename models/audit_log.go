package models

import (
	"time"

	"github.com/google/uuid"
)

// AuditOutcome records how an authorization attempt resolved. External
// callers see denied and absent identically (no data); the audit trail
// keeps them distinct.
type AuditOutcome string

const (
	OutcomeAllowed              AuditOutcome = "allowed"
	OutcomeDenied               AuditOutcome = "denied"
	OutcomeAuthenticationAbsent AuditOutcome = "authentication_absent"
	OutcomeConfigurationError   AuditOutcome = "configuration_error"
)

// AuditLog represents one recorded authorization decision
type AuditLog struct {
	ID           uuid.UUID    `json:"id" db:"id"`
	SubjectID    *uuid.UUID   `json:"subject_id,omitempty" db:"subject_id"`
	Operation    string       `json:"operation" db:"operation"`
	ResourceType string       `json:"resource_type" db:"resource_type"`
	ResourceID   *uuid.UUID   `json:"resource_id,omitempty" db:"resource_id"`
	Outcome      AuditOutcome `json:"outcome" db:"outcome"`
	Reason       string       `json:"reason,omitempty" db:"reason"`
	RequestID    string       `json:"request_id,omitempty" db:"request_id"`
	Timestamp    time.Time    `json:"timestamp" db:"timestamp"`
}

// TableName returns the table name for the AuditLog model
func (AuditLog) TableName() string {
	return "audit_logs"
}

// NewAuditLog creates a new AuditLog entry with a generated ID and the
// current timestamp.
func NewAuditLog(subjectID *uuid.UUID, operation string, resourceType ResourceType, resourceID *uuid.UUID, outcome AuditOutcome, reason string) *AuditLog {
	return &AuditLog{
		ID:           uuid.New(),
		SubjectID:    subjectID,
		Operation:    operation,
		ResourceType: string(resourceType),
		ResourceID:   resourceID,
		Outcome:      outcome,
		Reason:       reason,
		Timestamp:    time.Now(),
	}
}
