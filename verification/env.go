package verification

import (
	"context"
	"fmt"
	"time"

	"github.com/duetcare/access-engine/repositories"
	"github.com/duetcare/access-engine/repositories/memory"
	"github.com/duetcare/access-engine/services/access"
	"github.com/duetcare/access-engine/services/consent"
	"github.com/duetcare/access-engine/services/identity"
	"github.com/duetcare/access-engine/services/membership"
	"github.com/duetcare/access-engine/services/policy"
	"go.uber.org/zap"
)

// Env wires the full engine over an in-memory store loaded with the
// deterministic fixtures. Scenarios share one Env and therefore must run
// sequentially.
type Env struct {
	Repos     *repositories.Repositories
	Fixtures  *Fixtures
	Identity  *identity.Service
	Scopes    *membership.Service
	Evaluator *policy.Evaluator
	Access    *access.Service
	Ledger    *consent.Service
	Logger    *zap.Logger
}

// NewEnv builds the harness environment
func NewEnv(ctx context.Context, logger *zap.Logger) (*Env, error) {
	store := memory.NewStore()
	repos := store.Repositories()

	fixtures, err := BuildFixtures(ctx, repos)
	if err != nil {
		return nil, fmt.Errorf("failed to build fixtures: %w", err)
	}

	scopes := membership.NewService(repos.Users, repos.Pairings,
		membership.NewScopeCache(1000, 30*time.Second), store.TransactionManager(), nil, logger)
	evaluator := policy.NewEvaluator(policy.NewClassifier(logger), scopes, logger)

	return &Env{
		Repos:     repos,
		Fixtures:  fixtures,
		Identity:  identity.NewService(repos.Users, []byte("verification-harness-key"), "duetcare", "access-engine", logger),
		Scopes:    scopes,
		Evaluator: evaluator,
		Access:    access.NewService(repos, evaluator, scopes, nil, logger),
		Ledger:    consent.NewService(repos.Assessments, logger),
		Logger:    logger,
	}, nil
}
