package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/duetcare/access-engine/config"
	_ "github.com/lib/pq" // PostgreSQL driver
	"go.uber.org/zap"
)

// DB wraps the sql.DB connection pool
type DB struct {
	*sql.DB
	logger *zap.Logger
}

// NewDB creates a new database connection pool
func NewDB(cfg config.DatabaseConfig, logger *zap.Logger) (*DB, error) {
	dsn := cfg.DSN()

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("database connection established",
		zap.String("connection", cfg.LogString()))

	return &DB{
		DB:     db,
		logger: logger,
	}, nil
}

// Close closes the database connection pool
func (db *DB) Close() error {
	db.logger.Info("closing database connection")
	return db.DB.Close()
}

// HealthCheck performs a health check on the database
func (db *DB) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	var result int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("database query check failed: %w", err)
	}

	return nil
}

// Stats returns database connection pool statistics
func (db *DB) Stats() sql.DBStats {
	return db.DB.Stats()
}

// InitSchema initializes the database schema. The partial unique indexes
// on active pairings are what make the one-active-pairing-per-user rule a
// write-time constraint instead of a read-time filter.
func (db *DB) InitSchema(ctx context.Context) error {
	schema := `
		-- Users table
		CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY,
			external_subject VARCHAR(255) NOT NULL UNIQUE,
			display_name VARCHAR(255) NOT NULL,
			active BOOLEAN NOT NULL DEFAULT true,
			safety_monitored BOOLEAN NOT NULL DEFAULT false,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		-- Pairings table
		CREATE TABLE IF NOT EXISTS pairings (
			id UUID PRIMARY KEY,
			user_a_id UUID NOT NULL REFERENCES users(id),
			user_b_id UUID NOT NULL REFERENCES users(id),
			relationship_type VARCHAR(50) NOT NULL,
			active BOOLEAN NOT NULL DEFAULT true,
			version BIGINT NOT NULL DEFAULT 1,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			CHECK (user_a_id <> user_b_id)
		);

		-- At most one active pairing per user, on either side
		CREATE UNIQUE INDEX IF NOT EXISTS idx_pairings_active_user_a
			ON pairings(user_a_id) WHERE active;
		CREATE UNIQUE INDEX IF NOT EXISTS idx_pairings_active_user_b
			ON pairings(user_b_id) WHERE active;

		-- Preference records (1:1 per user, private)
		CREATE TABLE IF NOT EXISTS preference_records (
			id UUID PRIMARY KEY,
			owner_user_id UUID NOT NULL UNIQUE REFERENCES users(id),
			settings JSONB NOT NULL DEFAULT '{}',
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		-- Safety profiles (1:1 per user, private)
		CREATE TABLE IF NOT EXISTS safety_profiles (
			id UUID PRIMARY KEY,
			owner_user_id UUID NOT NULL UNIQUE REFERENCES users(id),
			plan JSONB NOT NULL DEFAULT '{}',
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		-- Safety signals (vital-interest, append-only; no updated_at on purpose)
		CREATE TABLE IF NOT EXISTS safety_signals (
			id UUID PRIMARY KEY,
			owner_user_id UUID NOT NULL REFERENCES users(id),
			source VARCHAR(100) NOT NULL,
			payload JSONB NOT NULL,
			recorded_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		-- Communication records (tenant-shared, opaque payload)
		CREATE TABLE IF NOT EXISTS communication_records (
			id UUID PRIMARY KEY,
			pairing_id UUID NOT NULL REFERENCES pairings(id),
			sender_user_id UUID NOT NULL REFERENCES users(id),
			payload JSONB NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		-- Assessment responses (consent-shareable, versioned for CAS)
		CREATE TABLE IF NOT EXISTS assessment_responses (
			id UUID PRIMARY KEY,
			owner_user_id UUID NOT NULL REFERENCES users(id),
			pairing_id UUID NOT NULL REFERENCES pairings(id),
			assessment_key VARCHAR(100) NOT NULL,
			score JSONB NOT NULL,
			consent_granted BOOLEAN NOT NULL DEFAULT false,
			version BIGINT NOT NULL DEFAULT 1,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		-- Audit logs table
		CREATE TABLE IF NOT EXISTS audit_logs (
			id UUID PRIMARY KEY,
			subject_id UUID,
			operation VARCHAR(50) NOT NULL,
			resource_type VARCHAR(100) NOT NULL,
			resource_id UUID,
			outcome VARCHAR(50) NOT NULL,
			reason TEXT,
			request_id VARCHAR(255),
			timestamp TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		-- Indexes for the hot-path point lookups
		CREATE INDEX IF NOT EXISTS idx_users_external_subject ON users(external_subject);
		CREATE INDEX IF NOT EXISTS idx_pairings_user_a ON pairings(user_a_id);
		CREATE INDEX IF NOT EXISTS idx_pairings_user_b ON pairings(user_b_id);
		CREATE INDEX IF NOT EXISTS idx_safety_signals_owner ON safety_signals(owner_user_id);
		CREATE INDEX IF NOT EXISTS idx_communication_records_pairing ON communication_records(pairing_id);
		CREATE INDEX IF NOT EXISTS idx_assessment_responses_owner ON assessment_responses(owner_user_id);
		CREATE INDEX IF NOT EXISTS idx_assessment_responses_pairing ON assessment_responses(pairing_id);
		CREATE INDEX IF NOT EXISTS idx_audit_logs_subject ON audit_logs(subject_id);
		CREATE INDEX IF NOT EXISTS idx_audit_logs_outcome ON audit_logs(outcome);
		CREATE INDEX IF NOT EXISTS idx_audit_logs_timestamp ON audit_logs(timestamp);
	`

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	db.logger.Info("database schema initialized successfully")
	return nil
}
