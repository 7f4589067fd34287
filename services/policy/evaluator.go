package policy

import (
	"context"

	"github.com/duetcare/access-engine/models"
	"github.com/duetcare/access-engine/services/membership"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Operation is the kind of access being requested
type Operation string

const (
	OpRead   Operation = "read"
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpAppend Operation = "append"
	OpDelete Operation = "delete"
)

// knownOperations is the closed set of operations the evaluator accepts.
// Anything else is a caller defect and denies.
var knownOperations = map[Operation]bool{
	OpRead:   true,
	OpCreate: true,
	OpUpdate: true,
	OpAppend: true,
	OpDelete: true,
}

// Decision is the outcome of an authorization check. Reason is for audit
// logging only and must never reach an external caller; externally a
// denied read is indistinguishable from a record that does not exist.
type Decision struct {
	Allowed bool
	Outcome models.AuditOutcome
	Reason  string
}

func allow(reason string) Decision {
	return Decision{Allowed: true, Outcome: models.OutcomeAllowed, Reason: reason}
}

func deny(reason string) Decision {
	return Decision{Allowed: false, Outcome: models.OutcomeDenied, Reason: reason}
}

// ScopeResolver resolves a user's sharing scope. Satisfied by the
// membership service.
type ScopeResolver interface {
	ScopeFor(ctx context.Context, userID uuid.UUID) (*membership.Scope, error)
}

// Evaluator decides every access in the engine. Authorize is a pure
// function of its inputs and the resource state its classification
// carries: identical inputs always yield identical decisions, and no
// state accumulates between calls.
type Evaluator struct {
	classifier *Classifier
	scopes     ScopeResolver
	logger     *zap.Logger
}

// NewEvaluator creates a new policy evaluator
func NewEvaluator(classifier *Classifier, scopes ScopeResolver, logger *zap.Logger) *Evaluator {
	return &Evaluator{
		classifier: classifier,
		scopes:     scopes,
		logger:     logger,
	}
}

// Authorize decides whether subject may perform operation on resource.
// Every failure path denies: a nil subject, an unregistered resource
// type, an unknown operation, and a failed scope lookup all produce DENY
// rather than an error. The decision carries the internal outcome for
// audit logging.
func (e *Evaluator) Authorize(ctx context.Context, subject *models.User, operation Operation, resource interface{}) Decision {
	if subject == nil {
		return Decision{
			Allowed: false,
			Outcome: models.OutcomeAuthenticationAbsent,
			Reason:  "subject not resolved",
		}
	}

	classification, err := e.classifier.Classify(resource)
	if err != nil {
		return Decision{
			Allowed: false,
			Outcome: models.OutcomeConfigurationError,
			Reason:  "unregistered resource type",
		}
	}

	if !knownOperations[operation] {
		e.logger.Error("unknown operation passed to the evaluator",
			zap.String("operation", string(operation)))
		return Decision{
			Allowed: false,
			Outcome: models.OutcomeConfigurationError,
			Reason:  "unknown operation",
		}
	}

	switch classification.Class {
	case models.ClassPrivate:
		if subject.ID == classification.OwnerUserID {
			return allow("owner access to private resource")
		}
		return deny("private resource, subject is not the owner")

	case models.ClassVitalInterest:
		if subject.ID != classification.OwnerUserID {
			return deny("vital-interest resource, subject is not the owner")
		}
		if operation == OpRead || operation == OpAppend {
			return allow("owner access to vital-interest resource")
		}
		return deny("vital-interest resources are append-only")

	case models.ClassTenantShared:
		return e.authorizeTenantShared(ctx, subject, classification)

	case models.ClassConsentShareable:
		return e.authorizeConsentShareable(ctx, subject, classification)

	default:
		e.logger.Error("sensitivity class is not handled by the evaluator",
			zap.String("class", string(classification.Class)))
		return Decision{
			Allowed: false,
			Outcome: models.OutcomeConfigurationError,
			Reason:  "unhandled sensitivity class",
		}
	}
}

func (e *Evaluator) authorizeTenantShared(ctx context.Context, subject *models.User, classification *Classification) Decision {
	scope, err := e.scopes.ScopeFor(ctx, subject.ID)
	if err != nil {
		e.logger.Warn("scope lookup failed, denying",
			zap.String("subject_id", subject.ID.String()),
			zap.Error(err))
		return deny("scope lookup failed")
	}

	if scope.PairingID != nil && *scope.PairingID == classification.OwnerPairingID {
		return allow("subject is a current member of the owning pairing")
	}
	return deny("subject is not a current member of the owning pairing")
}

func (e *Evaluator) authorizeConsentShareable(ctx context.Context, subject *models.User, classification *Classification) Decision {
	if subject.ID == classification.OwnerUserID {
		return allow("owner access to consent-shareable resource")
	}

	scope, err := e.scopes.ScopeFor(ctx, subject.ID)
	if err != nil {
		e.logger.Warn("scope lookup failed, denying",
			zap.String("subject_id", subject.ID.String()),
			zap.Error(err))
		return deny("scope lookup failed")
	}

	inPairing := scope.PairingID != nil && *scope.PairingID == classification.OwnerPairingID
	if inPairing && classification.ConsentGranted {
		return allow("partner access with consent granted")
	}
	if inPairing {
		return deny("partner access without consent")
	}
	return deny("subject is outside the owning pairing")
}
