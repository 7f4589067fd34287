package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/duetcare/access-engine/models"
	"github.com/duetcare/access-engine/repositories"
	"github.com/duetcare/access-engine/services"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CommunicationRepository implements repositories.CommunicationRepository
type CommunicationRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewCommunicationRepository creates a new communication repository
func NewCommunicationRepository(db *DB, logger *zap.Logger) repositories.CommunicationRepository {
	return &CommunicationRepository{db: db, logger: logger}
}

// Create stores a new communication record
func (r *CommunicationRepository) Create(ctx context.Context, record *models.CommunicationRecord) error {
	query := `
		INSERT INTO communication_records (id, pairing_id, sender_user_id, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	executor := GetExecutor(ctx, r.db)
	_, err := executor.ExecContext(ctx, query,
		record.ID,
		record.PairingID,
		record.SenderUserID,
		record.Payload,
		record.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create communication record: %w", err)
	}

	r.logger.Debug("communication record created",
		zap.String("id", record.ID.String()),
		zap.String("pairing_id", record.PairingID.String()))
	return nil
}

// GetByID retrieves a communication record by ID
func (r *CommunicationRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.CommunicationRecord, error) {
	query := `
		SELECT id, pairing_id, sender_user_id, payload, created_at
		FROM communication_records
		WHERE id = $1
	`

	executor := GetExecutor(ctx, r.db)
	record := &models.CommunicationRecord{}

	err := executor.QueryRowContext(ctx, query, id).Scan(
		&record.ID,
		&record.PairingID,
		&record.SenderUserID,
		&record.Payload,
		&record.CreatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, services.ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get communication record: %w", err)
	}

	return record, nil
}

// ListByPairing retrieves records for a pairing, newest first
func (r *CommunicationRepository) ListByPairing(ctx context.Context, pairingID uuid.UUID, limit, offset int) ([]*models.CommunicationRecord, error) {
	query := `
		SELECT id, pairing_id, sender_user_id, payload, created_at
		FROM communication_records
		WHERE pairing_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query, pairingID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query communication records: %w", err)
	}
	defer rows.Close()

	var records []*models.CommunicationRecord
	for rows.Next() {
		record := &models.CommunicationRecord{}
		err := rows.Scan(
			&record.ID,
			&record.PairingID,
			&record.SenderUserID,
			&record.Payload,
			&record.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan communication record: %w", err)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating communication record rows: %w", err)
	}

	return records, nil
}
