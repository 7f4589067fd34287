// Package consent manages the per-resource sharing flags that gate
// partner visibility of consent-shareable records. Only the owning user
// may change a flag; revocation takes effect on the next evaluation.
package consent

import (
	"context"
	"errors"

	"github.com/duetcare/access-engine/models"
	"github.com/duetcare/access-engine/repositories"
	"github.com/duetcare/access-engine/services"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// casRetries bounds the compare-and-swap retry loop. A conflict that
// survives this many fresh reads is surfaced to the caller.
const casRetries = 3

// ResourceRef names a stored record by type and ID
type ResourceRef struct {
	Type models.ResourceType
	ID   uuid.UUID
}

// Service is the consent ledger
type Service struct {
	assessments repositories.AssessmentRepository
	logger      *zap.Logger
}

// NewService creates a new consent ledger service
func NewService(assessments repositories.AssessmentRepository, logger *zap.Logger) *Service {
	return &Service{
		assessments: assessments,
		logger:      logger,
	}
}

// SetConsent flips the sharing flag on a consent-shareable record.
// Targeting a vital-interest record is a caller usage error, surfaced
// loudly, never a security decision. A non-owner caller gets
// services.ErrAuthorizationDenied, which the outer boundary collapses to
// "no data".
func (s *Service) SetConsent(ctx context.Context, subject *models.User, ref ResourceRef, granted bool) error {
	if subject == nil {
		return services.ErrAuthenticationAbsent
	}

	switch ref.Type {
	case models.ResourceAssessment:
		// The only consent-shareable type
	case models.ResourceSafetySignal:
		s.logger.Error("consent change attempted on a vital-interest record",
			zap.String("resource_id", ref.ID.String()))
		return services.ErrConsentOnVitalInterest
	default:
		return services.NewDomainError(services.ErrorTypeValidation,
			"resource type does not carry a consent flag", nil).
			WithDetail("resource_type", string(ref.Type))
	}

	for attempt := 0; attempt < casRetries; attempt++ {
		response, err := s.assessments.GetByID(ctx, ref.ID)
		if err != nil {
			return err
		}

		if response.OwnerUserID != subject.ID {
			return services.ErrAuthorizationDenied
		}

		if response.ConsentGranted == granted {
			return nil
		}

		err = s.assessments.SetConsent(ctx, ref.ID, granted, response.Version)
		if err == nil {
			s.logger.Info("consent updated",
				zap.String("resource_id", ref.ID.String()),
				zap.Bool("granted", granted))
			return nil
		}
		if !errors.Is(err, services.ErrConcurrentUpdate) {
			return err
		}
	}

	return services.ErrConcurrentUpdate
}

// GetConsent reports the current sharing flag of a consent-shareable
// record. Owner-only, like SetConsent.
func (s *Service) GetConsent(ctx context.Context, subject *models.User, ref ResourceRef) (bool, error) {
	if subject == nil {
		return false, services.ErrAuthenticationAbsent
	}

	if ref.Type != models.ResourceAssessment {
		return false, services.NewDomainError(services.ErrorTypeValidation,
			"resource type does not carry a consent flag", nil).
			WithDetail("resource_type", string(ref.Type))
	}

	response, err := s.assessments.GetByID(ctx, ref.ID)
	if err != nil {
		return false, err
	}

	if response.OwnerUserID != subject.ID {
		return false, services.ErrAuthorizationDenied
	}

	return response.ConsentGranted, nil
}
