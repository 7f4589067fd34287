// Package app is the central wiring point for dependency injection.
package app

import (
	"context"
	"fmt"

	"github.com/duetcare/access-engine/config"
	"github.com/duetcare/access-engine/middleware"
	"github.com/duetcare/access-engine/repositories"
	"github.com/duetcare/access-engine/repositories/postgres"
	"github.com/duetcare/access-engine/services/access"
	"github.com/duetcare/access-engine/services/audit"
	"github.com/duetcare/access-engine/services/consent"
	"github.com/duetcare/access-engine/services/identity"
	"github.com/duetcare/access-engine/services/membership"
	"github.com/duetcare/access-engine/services/policy"
	"go.uber.org/zap"
)

// Dependencies holds all application dependencies
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	DB     *postgres.DB
	Logger *zap.Logger

	// Repositories
	Repos     *repositories.Repositories
	TxManager repositories.TransactionManager

	// Engine services
	Identity  *identity.Service
	Scopes    *membership.Service
	Evaluator *policy.Evaluator
	Access    *access.Service
	Ledger    *consent.Service
	Audit     *audit.Service

	// HTTP
	AuthMiddleware *middleware.AuthMiddleware

	scopeCacheStop chan struct{}
}

// NewDependencies creates and wires up all application dependencies
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initDatabase(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	deps.initRepositories()
	deps.initServices(cfg)

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// initDatabase opens the PostgreSQL connection and applies the schema
func (d *Dependencies) initDatabase(ctx context.Context, cfg *config.Config) error {
	db, err := postgres.NewDB(cfg.Database, d.Logger)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	d.DB = db

	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	if err := db.InitSchema(ctx); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	d.Logger.Info("database connection established",
		zap.String("connection", cfg.Database.LogString()))

	return nil
}

// initRepositories initializes all repository instances
func (d *Dependencies) initRepositories() {
	d.Repos = &repositories.Repositories{
		Users:          postgres.NewUserRepository(d.DB, d.Logger),
		Pairings:       postgres.NewPairingRepository(d.DB, d.Logger),
		Preferences:    postgres.NewPreferenceRepository(d.DB, d.Logger),
		SafetyProfiles: postgres.NewSafetyProfileRepository(d.DB, d.Logger),
		SafetySignals:  postgres.NewSafetySignalRepository(d.DB, d.Logger),
		Communications: postgres.NewCommunicationRepository(d.DB, d.Logger),
		Assessments:    postgres.NewAssessmentRepository(d.DB, d.Logger),
		AuditLogs:      postgres.NewAuditRepository(d.DB, d.Logger),
	}
	d.TxManager = postgres.NewTransactionManager(d.DB, d.Logger)

	d.Logger.Info("repositories initialized")
}

// initServices wires the engine services together
func (d *Dependencies) initServices(cfg *config.Config) {
	d.Identity = identity.NewService(d.Repos.Users,
		[]byte(cfg.Identity.SigningKey), cfg.Identity.Issuer, cfg.Identity.Audience, d.Logger)

	d.Audit = audit.NewService(d.Repos.AuditLogs, d.Logger, audit.Config{
		BufferSize:  cfg.Audit.BufferSize,
		WorkerCount: cfg.Audit.WorkerCount,
	})

	scopeCache := membership.NewScopeCache(cfg.Membership.ScopeCacheSize, cfg.Membership.ScopeCacheTTL)
	d.scopeCacheStop = make(chan struct{})
	go scopeCache.StartCleanupWorker(cfg.Membership.ScopeCacheTTL, d.scopeCacheStop)

	d.Scopes = membership.NewService(d.Repos.Users, d.Repos.Pairings, scopeCache,
		d.TxManager, d.Audit, d.Logger)

	d.Evaluator = policy.NewEvaluator(policy.NewClassifier(d.Logger), d.Scopes, d.Logger)

	d.Access = access.NewService(d.Repos, d.Evaluator, d.Scopes, d.Audit, d.Logger)
	d.Ledger = consent.NewService(d.Repos.Assessments, d.Logger)

	d.AuthMiddleware = middleware.NewAuthMiddleware(d.Identity, d.Logger)
}

// Close releases held resources
func (d *Dependencies) Close() error {
	if d.scopeCacheStop != nil {
		close(d.scopeCacheStop)
		d.scopeCacheStop = nil
	}
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}
