package repositories

import (
	"context"

	"github.com/duetcare/access-engine/models"
	"github.com/google/uuid"
)

// TransactionManager manages database transactions
type TransactionManager interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) (Transaction, error)

	// InTransaction executes a function within a transaction
	// Automatically commits if function succeeds, rolls back on error
	InTransaction(ctx context.Context, fn func(ctx context.Context, tx Transaction) error) error
}

// Transaction represents a database transaction
type Transaction interface {
	// Commit commits the transaction
	Commit() error

	// Rollback rolls back the transaction
	Rollback() error

	// Context returns the transaction context
	Context() context.Context
}

// UserRepository handles user data operations
type UserRepository interface {
	// Create creates a new user
	Create(ctx context.Context, user *models.User) error

	// GetByID retrieves a user by ID
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)

	// GetByExternalSubject retrieves the user mapped to an external
	// identity-provider subject
	GetByExternalSubject(ctx context.Context, externalSubject string) (*models.User, error)

	// Update updates a user's mutable fields (display name, active,
	// safety-monitoring flag)
	Update(ctx context.Context, user *models.User) error

	// List retrieves users with pagination
	List(ctx context.Context, limit, offset int) ([]*models.User, error)
}

// PairingRepository handles pairing data operations. Active-pairing
// uniqueness per user is enforced by the store at write time; Create
// returns services.ErrPairingConflict when either member already has an
// active pairing.
type PairingRepository interface {
	// Create creates a new active pairing
	Create(ctx context.Context, pairing *models.Pairing) error

	// GetByID retrieves a pairing by ID
	GetByID(ctx context.Context, id uuid.UUID) (*models.Pairing, error)

	// GetActiveByUserID retrieves the single active pairing containing the
	// user, or nil when the user is unpaired
	GetActiveByUserID(ctx context.Context, userID uuid.UUID) (*models.Pairing, error)

	// Deactivate marks a pairing inactive using compare-and-swap on the
	// row version; returns services.ErrConcurrentUpdate on version mismatch
	Deactivate(ctx context.Context, id uuid.UUID, version int64) error
}

// PreferenceRepository handles preference record operations (1:1 per user)
type PreferenceRepository interface {
	// Upsert creates or replaces the user's preference record
	Upsert(ctx context.Context, record *models.PreferenceRecord) error

	// GetByOwner retrieves the preference record for a user
	GetByOwner(ctx context.Context, ownerUserID uuid.UUID) (*models.PreferenceRecord, error)
}

// SafetyProfileRepository handles safety profile operations (1:1 per user)
type SafetyProfileRepository interface {
	// Upsert creates or replaces the user's safety profile
	Upsert(ctx context.Context, profile *models.SafetyProfile) error

	// GetByOwner retrieves the safety profile for a user
	GetByOwner(ctx context.Context, ownerUserID uuid.UUID) (*models.SafetyProfile, error)
}

// SafetySignalRepository handles vital-interest safety signals. The
// interface deliberately has no update or delete: immutability is
// structural, not just policy.
type SafetySignalRepository interface {
	// Append stores a new signal
	Append(ctx context.Context, signal *models.SafetySignal) error

	// GetByID retrieves a signal by ID
	GetByID(ctx context.Context, id uuid.UUID) (*models.SafetySignal, error)

	// ListByOwner retrieves all signals for a user, newest first
	ListByOwner(ctx context.Context, ownerUserID uuid.UUID, limit, offset int) ([]*models.SafetySignal, error)
}

// CommunicationRepository handles tenant-shared communication records
type CommunicationRepository interface {
	// Create stores a new communication record
	Create(ctx context.Context, record *models.CommunicationRecord) error

	// GetByID retrieves a communication record by ID
	GetByID(ctx context.Context, id uuid.UUID) (*models.CommunicationRecord, error)

	// ListByPairing retrieves records for a pairing, newest first
	ListByPairing(ctx context.Context, pairingID uuid.UUID, limit, offset int) ([]*models.CommunicationRecord, error)
}

// AssessmentRepository handles consent-shareable assessment responses
type AssessmentRepository interface {
	// Create stores a new assessment response (consent defaults to false)
	Create(ctx context.Context, response *models.AssessmentResponse) error

	// GetByID retrieves an assessment response by ID
	GetByID(ctx context.Context, id uuid.UUID) (*models.AssessmentResponse, error)

	// ListByOwner retrieves all responses owned by a user
	ListByOwner(ctx context.Context, ownerUserID uuid.UUID) ([]*models.AssessmentResponse, error)

	// ListByPairing retrieves all responses attached to a pairing
	ListByPairing(ctx context.Context, pairingID uuid.UUID) ([]*models.AssessmentResponse, error)

	// SetConsent flips the consent flag using compare-and-swap on the row
	// version; returns services.ErrConcurrentUpdate on version mismatch
	SetConsent(ctx context.Context, id uuid.UUID, granted bool, version int64) error
}

// AuditRepository handles audit log data operations
type AuditRepository interface {
	// Insert inserts a new audit log entry
	Insert(ctx context.Context, log *models.AuditLog) error

	// ListBySubject retrieves audit logs for a subject with pagination
	ListBySubject(ctx context.Context, subjectID uuid.UUID, limit, offset int) ([]*models.AuditLog, error)

	// ListByOutcome retrieves audit logs by outcome with pagination
	ListByOutcome(ctx context.Context, outcome models.AuditOutcome, limit, offset int) ([]*models.AuditLog, error)
}

// Repositories aggregates all repository interfaces
type Repositories struct {
	Users          UserRepository
	Pairings       PairingRepository
	Preferences    PreferenceRepository
	SafetyProfiles SafetyProfileRepository
	SafetySignals  SafetySignalRepository
	Communications CommunicationRepository
	Assessments    AssessmentRepository
	AuditLogs      AuditRepository
}
