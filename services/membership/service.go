// Package membership resolves a user's sharing scope from the pairing
// store and manages the pairing lifecycle. A scope names exactly who a
// user's data may be shared with: at most one partner, through at most
// one active pairing.
package membership

import (
	"context"

	"github.com/duetcare/access-engine/models"
	"github.com/duetcare/access-engine/repositories"
	"github.com/duetcare/access-engine/services"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Scope is a user's resolved sharing scope. Partner and PairingID are nil
// for unpaired users.
type Scope struct {
	Self             uuid.UUID
	Partner          *uuid.UUID
	PairingID        *uuid.UUID
	RelationshipType models.RelationshipType
}

// Paired reports whether the scope includes an active partner
func (s *Scope) Paired() bool {
	return s.Partner != nil
}

// SharesTenantWith reports whether the given user is inside this scope,
// either as self or as the active partner.
func (s *Scope) SharesTenantWith(userID uuid.UUID) bool {
	if s.Self == userID {
		return true
	}
	return s.Partner != nil && *s.Partner == userID
}

// PairingRecorder receives pairing lifecycle entries for the audit trail.
// Satisfied by the audit service; may be nil.
type PairingRecorder interface {
	RecordPairingChange(subjectID *uuid.UUID, operation string, pairingID uuid.UUID, outcome models.AuditOutcome, reason string) error
}

// Service resolves scopes and manages pairings
type Service struct {
	users    repositories.UserRepository
	pairings repositories.PairingRepository
	cache    *ScopeCache
	txm      repositories.TransactionManager
	recorder PairingRecorder
	logger   *zap.Logger
}

// NewService creates a new membership service
func NewService(users repositories.UserRepository, pairings repositories.PairingRepository, cache *ScopeCache, txm repositories.TransactionManager, recorder PairingRecorder, logger *zap.Logger) *Service {
	return &Service{
		users:    users,
		pairings: pairings,
		cache:    cache,
		txm:      txm,
		recorder: recorder,
		logger:   logger,
	}
}

// recordChange queues a pairing lifecycle entry, best effort
func (s *Service) recordChange(subjectID *uuid.UUID, operation string, pairingID uuid.UUID) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.RecordPairingChange(subjectID, operation, pairingID, models.OutcomeAllowed, ""); err != nil {
		s.logger.Debug("pairing audit record dropped", zap.String("operation", operation))
	}
}

// ScopeFor resolves the sharing scope for a user. An unpaired user gets a
// self-only scope; this is a normal result, not an error. Results are
// cached with a short TTL and invalidated on pairing writes.
func (s *Service) ScopeFor(ctx context.Context, userID uuid.UUID) (*Scope, error) {
	if cached := s.cache.Get(userID); cached != nil {
		return cached, nil
	}

	pairing, err := s.pairings.GetActiveByUserID(ctx, userID)
	if err != nil {
		return nil, services.WrapInternal("failed to resolve membership scope", err)
	}

	scope := &Scope{Self: userID}
	if pairing != nil {
		partner := pairing.PartnerOf(userID)
		pairingID := pairing.ID
		scope.Partner = &partner
		scope.PairingID = &pairingID
		scope.RelationshipType = pairing.RelationshipType
	}

	s.cache.Set(userID, scope)
	return scope, nil
}

// CreatePairing pairs two distinct active users. The store rejects the
// write with services.ErrPairingConflict when either member already has
// an active pairing; the conflict is surfaced loudly to the caller, never
// resolved by silently replacing an existing pairing.
func (s *Service) CreatePairing(ctx context.Context, userAID, userBID uuid.UUID, relationshipType models.RelationshipType) (*models.Pairing, error) {
	if userAID == userBID {
		return nil, services.ErrSelfPairing
	}

	for _, id := range []uuid.UUID{userAID, userBID} {
		user, err := s.users.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if !user.Active {
			return nil, services.NewDomainError(services.ErrorTypeValidation, "cannot pair a deactivated user", nil).
				WithDetail("user_id", id.String())
		}
	}

	pairing := models.NewPairing(userAID, userBID, relationshipType)
	if err := s.pairings.Create(ctx, pairing); err != nil {
		if services.IsConflictError(err) {
			s.logger.Warn("pairing rejected, member already paired",
				zap.String("user_a_id", userAID.String()),
				zap.String("user_b_id", userBID.String()))
		}
		return nil, err
	}

	s.cache.InvalidatePairing(userAID, userBID)
	s.recordChange(&userAID, "pairing_create", pairing.ID)

	s.logger.Info("pairing created",
		zap.String("pairing_id", pairing.ID.String()),
		zap.String("relationship_type", string(relationshipType)))

	return pairing, nil
}

// DeactivatePairing ends a pairing. Both members immediately revert to
// self-only scopes. Uses compare-and-swap on the pairing version;
// concurrent deactivations surface services.ErrConcurrentUpdate.
func (s *Service) DeactivatePairing(ctx context.Context, pairingID uuid.UUID, version int64) error {
	pairing, err := s.pairings.GetByID(ctx, pairingID)
	if err != nil {
		return err
	}

	if err := s.pairings.Deactivate(ctx, pairingID, version); err != nil {
		return err
	}

	s.cache.InvalidatePairing(pairing.UserAID, pairing.UserBID)
	s.recordChange(nil, "pairing_deactivate", pairingID)

	s.logger.Info("pairing deactivated",
		zap.String("pairing_id", pairingID.String()))

	return nil
}

// DeactivateUser closes a user's account and ends their active pairing in
// a single transaction: the partner must never observe a half-closed
// account where the user is gone but the pairing still grants scope.
// Vital-interest records are untouched and survive the closure. Already
// deactivated users are a no-op.
func (s *Service) DeactivateUser(ctx context.Context, userID uuid.UUID) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if !user.Active {
		return nil
	}

	pairing, err := s.pairings.GetActiveByUserID(ctx, userID)
	if err != nil {
		return services.WrapInternal("failed to resolve active pairing", err)
	}

	user.Deactivate()
	err = s.txm.InTransaction(ctx, func(txCtx context.Context, _ repositories.Transaction) error {
		if err := s.users.Update(txCtx, user); err != nil {
			return err
		}
		if pairing != nil {
			return s.pairings.Deactivate(txCtx, pairing.ID, pairing.Version)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.cache.Invalidate(userID)
	if pairing != nil {
		s.cache.InvalidatePairing(pairing.UserAID, pairing.UserBID)
		s.recordChange(&userID, "pairing_deactivate", pairing.ID)
	}

	s.logger.Info("user deactivated", zap.String("user_id", userID.String()))

	return nil
}

// GetPairing retrieves a pairing by ID
func (s *Service) GetPairing(ctx context.Context, pairingID uuid.UUID) (*models.Pairing, error) {
	return s.pairings.GetByID(ctx, pairingID)
}
