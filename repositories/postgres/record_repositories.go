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

// PreferenceRepository implements repositories.PreferenceRepository
type PreferenceRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewPreferenceRepository creates a new preference repository
func NewPreferenceRepository(db *DB, logger *zap.Logger) repositories.PreferenceRepository {
	return &PreferenceRepository{db: db, logger: logger}
}

// Upsert creates or replaces the user's preference record
func (r *PreferenceRepository) Upsert(ctx context.Context, record *models.PreferenceRecord) error {
	query := `
		INSERT INTO preference_records (id, owner_user_id, settings, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (owner_user_id)
		DO UPDATE SET settings = EXCLUDED.settings, updated_at = EXCLUDED.updated_at
	`

	executor := GetExecutor(ctx, r.db)
	_, err := executor.ExecContext(ctx, query,
		record.ID,
		record.OwnerUserID,
		record.Settings,
		record.CreatedAt,
		time.Now(),
	)

	if err != nil {
		return fmt.Errorf("failed to upsert preference record: %w", err)
	}

	r.logger.Debug("preference record upserted", zap.String("owner", record.OwnerUserID.String()))
	return nil
}

// GetByOwner retrieves the preference record for a user
func (r *PreferenceRepository) GetByOwner(ctx context.Context, ownerUserID uuid.UUID) (*models.PreferenceRecord, error) {
	query := `
		SELECT id, owner_user_id, settings, created_at, updated_at
		FROM preference_records
		WHERE owner_user_id = $1
	`

	executor := GetExecutor(ctx, r.db)
	record := &models.PreferenceRecord{}

	err := executor.QueryRowContext(ctx, query, ownerUserID).Scan(
		&record.ID,
		&record.OwnerUserID,
		&record.Settings,
		&record.CreatedAt,
		&record.UpdatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, services.ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get preference record: %w", err)
	}

	return record, nil
}

// SafetyProfileRepository implements repositories.SafetyProfileRepository
type SafetyProfileRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewSafetyProfileRepository creates a new safety profile repository
func NewSafetyProfileRepository(db *DB, logger *zap.Logger) repositories.SafetyProfileRepository {
	return &SafetyProfileRepository{db: db, logger: logger}
}

// Upsert creates or replaces the user's safety profile
func (r *SafetyProfileRepository) Upsert(ctx context.Context, profile *models.SafetyProfile) error {
	query := `
		INSERT INTO safety_profiles (id, owner_user_id, plan, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (owner_user_id)
		DO UPDATE SET plan = EXCLUDED.plan, updated_at = EXCLUDED.updated_at
	`

	executor := GetExecutor(ctx, r.db)
	_, err := executor.ExecContext(ctx, query,
		profile.ID,
		profile.OwnerUserID,
		profile.Plan,
		profile.CreatedAt,
		time.Now(),
	)

	if err != nil {
		return fmt.Errorf("failed to upsert safety profile: %w", err)
	}

	r.logger.Debug("safety profile upserted", zap.String("owner", profile.OwnerUserID.String()))
	return nil
}

// GetByOwner retrieves the safety profile for a user
func (r *SafetyProfileRepository) GetByOwner(ctx context.Context, ownerUserID uuid.UUID) (*models.SafetyProfile, error) {
	query := `
		SELECT id, owner_user_id, plan, created_at, updated_at
		FROM safety_profiles
		WHERE owner_user_id = $1
	`

	executor := GetExecutor(ctx, r.db)
	profile := &models.SafetyProfile{}

	err := executor.QueryRowContext(ctx, query, ownerUserID).Scan(
		&profile.ID,
		&profile.OwnerUserID,
		&profile.Plan,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, services.ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get safety profile: %w", err)
	}

	return profile, nil
}

// SafetySignalRepository implements repositories.SafetySignalRepository.
// There is no UPDATE or DELETE statement anywhere in this file: safety
// signals are append-only at every layer.
type SafetySignalRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewSafetySignalRepository creates a new safety signal repository
func NewSafetySignalRepository(db *DB, logger *zap.Logger) repositories.SafetySignalRepository {
	return &SafetySignalRepository{db: db, logger: logger}
}

// Append stores a new signal
func (r *SafetySignalRepository) Append(ctx context.Context, signal *models.SafetySignal) error {
	query := `
		INSERT INTO safety_signals (id, owner_user_id, source, payload, recorded_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	executor := GetExecutor(ctx, r.db)
	_, err := executor.ExecContext(ctx, query,
		signal.ID,
		signal.OwnerUserID,
		signal.Source,
		signal.Payload,
		signal.RecordedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to append safety signal: %w", err)
	}

	r.logger.Debug("safety signal appended", zap.String("id", signal.ID.String()))
	return nil
}

// GetByID retrieves a signal by ID
func (r *SafetySignalRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.SafetySignal, error) {
	query := `
		SELECT id, owner_user_id, source, payload, recorded_at
		FROM safety_signals
		WHERE id = $1
	`

	executor := GetExecutor(ctx, r.db)
	signal := &models.SafetySignal{}

	err := executor.QueryRowContext(ctx, query, id).Scan(
		&signal.ID,
		&signal.OwnerUserID,
		&signal.Source,
		&signal.Payload,
		&signal.RecordedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, services.ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get safety signal: %w", err)
	}

	return signal, nil
}

// ListByOwner retrieves all signals for a user, newest first
func (r *SafetySignalRepository) ListByOwner(ctx context.Context, ownerUserID uuid.UUID, limit, offset int) ([]*models.SafetySignal, error) {
	query := `
		SELECT id, owner_user_id, source, payload, recorded_at
		FROM safety_signals
		WHERE owner_user_id = $1
		ORDER BY recorded_at DESC
		LIMIT $2 OFFSET $3
	`

	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query, ownerUserID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query safety signals: %w", err)
	}
	defer rows.Close()

	var signals []*models.SafetySignal
	for rows.Next() {
		signal := &models.SafetySignal{}
		err := rows.Scan(
			&signal.ID,
			&signal.OwnerUserID,
			&signal.Source,
			&signal.Payload,
			&signal.RecordedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan safety signal: %w", err)
		}
		signals = append(signals, signal)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating safety signal rows: %w", err)
	}

	return signals, nil
}
