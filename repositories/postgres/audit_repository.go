package postgres

import (
	"context"
	"fmt"

	"github.com/duetcare/access-engine/models"
	"github.com/duetcare/access-engine/repositories"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AuditRepository implements repositories.AuditRepository
type AuditRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *DB, logger *zap.Logger) repositories.AuditRepository {
	return &AuditRepository{db: db, logger: logger}
}

// Insert inserts a new audit log entry
func (r *AuditRepository) Insert(ctx context.Context, log *models.AuditLog) error {
	query := `
		INSERT INTO audit_logs (id, subject_id, operation, resource_type, resource_id, outcome, reason, request_id, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	executor := GetExecutor(ctx, r.db)
	_, err := executor.ExecContext(ctx, query,
		log.ID,
		log.SubjectID,
		log.Operation,
		log.ResourceType,
		log.ResourceID,
		log.Outcome,
		log.Reason,
		log.RequestID,
		log.Timestamp,
	)

	if err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}

	return nil
}

// ListBySubject retrieves audit logs for a subject with pagination
func (r *AuditRepository) ListBySubject(ctx context.Context, subjectID uuid.UUID, limit, offset int) ([]*models.AuditLog, error) {
	query := `
		SELECT id, subject_id, operation, resource_type, resource_id, outcome, reason, request_id, timestamp
		FROM audit_logs
		WHERE subject_id = $1
		ORDER BY timestamp DESC
		LIMIT $2 OFFSET $3
	`

	return r.list(ctx, query, subjectID, limit, offset)
}

// ListByOutcome retrieves audit logs by outcome with pagination
func (r *AuditRepository) ListByOutcome(ctx context.Context, outcome models.AuditOutcome, limit, offset int) ([]*models.AuditLog, error) {
	query := `
		SELECT id, subject_id, operation, resource_type, resource_id, outcome, reason, request_id, timestamp
		FROM audit_logs
		WHERE outcome = $1
		ORDER BY timestamp DESC
		LIMIT $2 OFFSET $3
	`

	return r.list(ctx, query, outcome, limit, offset)
}

func (r *AuditRepository) list(ctx context.Context, query string, args ...interface{}) ([]*models.AuditLog, error) {
	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit logs: %w", err)
	}
	defer rows.Close()

	var logs []*models.AuditLog
	for rows.Next() {
		log := &models.AuditLog{}
		err := rows.Scan(
			&log.ID,
			&log.SubjectID,
			&log.Operation,
			&log.ResourceType,
			&log.ResourceID,
			&log.Outcome,
			&log.Reason,
			&log.RequestID,
			&log.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}
		logs = append(logs, log)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit log rows: %w", err)
	}

	return logs, nil
}
