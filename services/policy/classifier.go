// Package policy classifies resources by sensitivity and evaluates every
// access decision in the engine. The classifier answers "what kind of
// thing is this"; the evaluator answers "who may currently touch it".
package policy

import (
	"github.com/duetcare/access-engine/models"
	"github.com/duetcare/access-engine/services"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Classification describes a resource instance for authorization purposes.
// Exactly one of OwnerUserID and OwnerPairingID is set for user-owned and
// pairing-owned resources respectively; the other is uuid.Nil.
type Classification struct {
	ResourceType   models.ResourceType
	Class          models.SensitivityClass
	OwnerUserID    uuid.UUID
	OwnerPairingID uuid.UUID

	// ConsentGranted carries the instance consent flag for
	// consent-shareable resources. Always false for other classes.
	ConsentGranted bool
}

// Classifier maps resource instances to their classification. The type to
// class mapping is static; an instance of an unregistered type is a
// deployment defect, logged loudly and denied downstream.
type Classifier struct {
	logger *zap.Logger
}

// NewClassifier creates a new resource classifier
func NewClassifier(logger *zap.Logger) *Classifier {
	return &Classifier{logger: logger}
}

// Classify determines the ownership and sensitivity class of a resource
// instance. Returns services.ErrUnregisteredResourceType for any type
// outside the static registry.
func (c *Classifier) Classify(resource interface{}) (*Classification, error) {
	switch r := resource.(type) {
	case *models.User:
		return &Classification{
			ResourceType: models.ResourceUser,
			Class:        models.ClassPrivate,
			OwnerUserID:  r.ID,
		}, nil

	case *models.PreferenceRecord:
		return &Classification{
			ResourceType: models.ResourcePreference,
			Class:        models.ClassPrivate,
			OwnerUserID:  r.OwnerUserID,
		}, nil

	case *models.SafetyProfile:
		return &Classification{
			ResourceType: models.ResourceSafetyProfile,
			Class:        models.ClassPrivate,
			OwnerUserID:  r.OwnerUserID,
		}, nil

	case *models.SafetySignal:
		return &Classification{
			ResourceType: models.ResourceSafetySignal,
			Class:        models.ClassVitalInterest,
			OwnerUserID:  r.OwnerUserID,
		}, nil

	case *models.CommunicationRecord:
		return &Classification{
			ResourceType:   models.ResourceCommunication,
			Class:          models.ClassTenantShared,
			OwnerPairingID: r.PairingID,
		}, nil

	case *models.AssessmentResponse:
		return &Classification{
			ResourceType:   models.ResourceAssessment,
			Class:          models.ClassConsentShareable,
			OwnerUserID:    r.OwnerUserID,
			OwnerPairingID: r.PairingID,
			ConsentGranted: r.ConsentGranted,
		}, nil

	default:
		c.logger.Error("resource type is not registered with the classifier",
			zap.String("go_type", typeName(resource)))
		return nil, services.ErrUnregisteredResourceType
	}
}

func typeName(v interface{}) string {
	if v == nil {
		return "nil"
	}
	if named, ok := v.(interface{ TableName() string }); ok {
		return named.TableName()
	}
	return "unknown"
}
