package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/duetcare/access-engine/models"
	"github.com/duetcare/access-engine/repositories"
	"github.com/duetcare/access-engine/services"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AssessmentRepository implements repositories.AssessmentRepository
type AssessmentRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewAssessmentRepository creates a new assessment repository
func NewAssessmentRepository(db *DB, logger *zap.Logger) repositories.AssessmentRepository {
	return &AssessmentRepository{db: db, logger: logger}
}

// Create stores a new assessment response. Consent always starts false
// regardless of what the caller put in the struct.
func (r *AssessmentRepository) Create(ctx context.Context, response *models.AssessmentResponse) error {
	query := `
		INSERT INTO assessment_responses (id, owner_user_id, pairing_id, assessment_key, score, consent_granted, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, false, 1, $6, $7)
	`

	executor := GetExecutor(ctx, r.db)
	_, err := executor.ExecContext(ctx, query,
		response.ID,
		response.OwnerUserID,
		response.PairingID,
		response.AssessmentKey,
		response.Score,
		response.CreatedAt,
		response.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create assessment response: %w", err)
	}

	response.ConsentGranted = false
	response.Version = 1

	r.logger.Debug("assessment response created", zap.String("id", response.ID.String()))
	return nil
}

// GetByID retrieves an assessment response by ID
func (r *AssessmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.AssessmentResponse, error) {
	query := `
		SELECT id, owner_user_id, pairing_id, assessment_key, score, consent_granted, version, created_at, updated_at
		FROM assessment_responses
		WHERE id = $1
	`

	executor := GetExecutor(ctx, r.db)
	response := &models.AssessmentResponse{}

	err := executor.QueryRowContext(ctx, query, id).Scan(
		&response.ID,
		&response.OwnerUserID,
		&response.PairingID,
		&response.AssessmentKey,
		&response.Score,
		&response.ConsentGranted,
		&response.Version,
		&response.CreatedAt,
		&response.UpdatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, services.ErrAssessmentNotFound
		}
		return nil, fmt.Errorf("failed to get assessment response: %w", err)
	}

	return response, nil
}

// ListByOwner retrieves all responses owned by a user
func (r *AssessmentRepository) ListByOwner(ctx context.Context, ownerUserID uuid.UUID) ([]*models.AssessmentResponse, error) {
	query := `
		SELECT id, owner_user_id, pairing_id, assessment_key, score, consent_granted, version, created_at, updated_at
		FROM assessment_responses
		WHERE owner_user_id = $1
		ORDER BY created_at DESC
	`

	return r.list(ctx, query, ownerUserID)
}

// ListByPairing retrieves all responses attached to a pairing
func (r *AssessmentRepository) ListByPairing(ctx context.Context, pairingID uuid.UUID) ([]*models.AssessmentResponse, error) {
	query := `
		SELECT id, owner_user_id, pairing_id, assessment_key, score, consent_granted, version, created_at, updated_at
		FROM assessment_responses
		WHERE pairing_id = $1
		ORDER BY created_at DESC
	`

	return r.list(ctx, query, pairingID)
}

// SetConsent flips the consent flag using compare-and-swap on version
func (r *AssessmentRepository) SetConsent(ctx context.Context, id uuid.UUID, granted bool, version int64) error {
	query := `
		UPDATE assessment_responses
		SET consent_granted = $3,
		    version = version + 1,
		    updated_at = $4
		WHERE id = $1 AND version = $2
	`

	executor := GetExecutor(ctx, r.db)
	result, err := executor.ExecContext(ctx, query, id, version, granted, time.Now())
	if err != nil {
		return fmt.Errorf("failed to set consent: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return services.ErrConcurrentUpdate
	}

	r.logger.Debug("consent updated",
		zap.String("id", id.String()),
		zap.Bool("granted", granted))
	return nil
}

func (r *AssessmentRepository) list(ctx context.Context, query string, arg interface{}) ([]*models.AssessmentResponse, error) {
	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to query assessment responses: %w", err)
	}
	defer rows.Close()

	var responses []*models.AssessmentResponse
	for rows.Next() {
		response := &models.AssessmentResponse{}
		err := rows.Scan(
			&response.ID,
			&response.OwnerUserID,
			&response.PairingID,
			&response.AssessmentKey,
			&response.Score,
			&response.ConsentGranted,
			&response.Version,
			&response.CreatedAt,
			&response.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan assessment response: %w", err)
		}
		responses = append(responses, response)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating assessment response rows: %w", err)
	}

	return responses, nil
}
