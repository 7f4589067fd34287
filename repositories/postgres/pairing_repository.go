package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/duetcare/access-engine/models"
	"github.com/duetcare/access-engine/repositories"
	"github.com/duetcare/access-engine/services"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

// uniqueViolation is the postgres error code raised when an insert hits
// the partial unique indexes on active pairings.
const uniqueViolation = "23505"

// PairingRepository implements the repositories.PairingRepository interface
type PairingRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewPairingRepository creates a new pairing repository
func NewPairingRepository(db *DB, logger *zap.Logger) repositories.PairingRepository {
	return &PairingRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new active pairing. The partial unique indexes reject a
// second active pairing for either member, which surfaces as
// services.ErrPairingConflict: the uniqueness invariant is enforced at
// write time, never filtered at read time.
func (r *PairingRepository) Create(ctx context.Context, pairing *models.Pairing) error {
	query := `
		INSERT INTO pairings (id, user_a_id, user_b_id, relationship_type, active, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	executor := GetExecutor(ctx, r.db)
	_, err := executor.ExecContext(ctx, query,
		pairing.ID,
		pairing.UserAID,
		pairing.UserBID,
		pairing.RelationshipType,
		pairing.Active,
		pairing.Version,
		pairing.CreatedAt,
		pairing.UpdatedAt,
	)

	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return services.ErrPairingConflict
		}
		return fmt.Errorf("failed to create pairing: %w", err)
	}

	r.logger.Debug("pairing created",
		zap.String("id", pairing.ID.String()),
		zap.String("user_a", pairing.UserAID.String()),
		zap.String("user_b", pairing.UserBID.String()))
	return nil
}

// GetByID retrieves a pairing by ID
func (r *PairingRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Pairing, error) {
	query := `
		SELECT id, user_a_id, user_b_id, relationship_type, active, version, created_at, updated_at
		FROM pairings
		WHERE id = $1
	`

	executor := GetExecutor(ctx, r.db)
	pairing := &models.Pairing{}

	err := executor.QueryRowContext(ctx, query, id).Scan(
		&pairing.ID,
		&pairing.UserAID,
		&pairing.UserBID,
		&pairing.RelationshipType,
		&pairing.Active,
		&pairing.Version,
		&pairing.CreatedAt,
		&pairing.UpdatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, services.ErrPairingNotFound
		}
		return nil, fmt.Errorf("failed to get pairing: %w", err)
	}

	return pairing, nil
}

// GetActiveByUserID retrieves the single active pairing containing the
// user. Returns (nil, nil) when the user is unpaired.
func (r *PairingRepository) GetActiveByUserID(ctx context.Context, userID uuid.UUID) (*models.Pairing, error) {
	query := `
		SELECT id, user_a_id, user_b_id, relationship_type, active, version, created_at, updated_at
		FROM pairings
		WHERE active AND (user_a_id = $1 OR user_b_id = $1)
	`

	executor := GetExecutor(ctx, r.db)
	pairing := &models.Pairing{}

	err := executor.QueryRowContext(ctx, query, userID).Scan(
		&pairing.ID,
		&pairing.UserAID,
		&pairing.UserBID,
		&pairing.RelationshipType,
		&pairing.Active,
		&pairing.Version,
		&pairing.CreatedAt,
		&pairing.UpdatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get active pairing: %w", err)
	}

	return pairing, nil
}

// Deactivate marks a pairing inactive using compare-and-swap on version
func (r *PairingRepository) Deactivate(ctx context.Context, id uuid.UUID, version int64) error {
	query := `
		UPDATE pairings
		SET active = false,
		    version = version + 1,
		    updated_at = $3
		WHERE id = $1 AND version = $2 AND active
	`

	executor := GetExecutor(ctx, r.db)
	result, err := executor.ExecContext(ctx, query, id, version, time.Now())
	if err != nil {
		return fmt.Errorf("failed to deactivate pairing: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return services.ErrConcurrentUpdate
	}

	r.logger.Debug("pairing deactivated", zap.String("id", id.String()))
	return nil
}
