// Package access is the authorized data-access layer. Every read and
// write passes through the policy evaluator before touching a row, and
// multi-row fetches silently drop unauthorized rows rather than failing
// the query. Security denials stay silent; only usage and configuration
// errors are loud.
package access

import (
	"context"
	"encoding/json"
	"time"

	"github.com/duetcare/access-engine/models"
	"github.com/duetcare/access-engine/repositories"
	"github.com/duetcare/access-engine/services"
	"github.com/duetcare/access-engine/services/membership"
	"github.com/duetcare/access-engine/services/policy"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DecisionRecorder receives every authorization decision for the audit
// trail. Satisfied by the audit service.
type DecisionRecorder interface {
	RecordDecision(subjectID *uuid.UUID, operation string, resourceType models.ResourceType, resourceID *uuid.UUID, outcome models.AuditOutcome, reason string) error
}

// Service performs policy-checked reads and writes
type Service struct {
	repos     *repositories.Repositories
	evaluator *policy.Evaluator
	scopes    *membership.Service
	recorder  DecisionRecorder
	logger    *zap.Logger
}

// NewService creates a new access service. The recorder may be nil, in
// which case decisions are not written to the trail.
func NewService(repos *repositories.Repositories, evaluator *policy.Evaluator, scopes *membership.Service, recorder DecisionRecorder, logger *zap.Logger) *Service {
	return &Service{
		repos:     repos,
		evaluator: evaluator,
		scopes:    scopes,
		recorder:  recorder,
		logger:    logger,
	}
}

// decide runs the evaluator, records the outcome, and maps a denial to
// the matching internal error. Callers never learn more than "no data"
// at the boundary; the distinction lives in the trail.
func (s *Service) decide(ctx context.Context, subject *models.User, operation policy.Operation, resource interface{}, resourceType models.ResourceType, resourceID *uuid.UUID) error {
	decision := s.evaluator.Authorize(ctx, subject, operation, resource)

	if s.recorder != nil {
		var subjectID *uuid.UUID
		if subject != nil {
			id := subject.ID
			subjectID = &id
		}
		if err := s.recorder.RecordDecision(subjectID, string(operation), resourceType, resourceID, decision.Outcome, decision.Reason); err != nil {
			s.logger.Debug("audit record dropped", zap.Error(err))
		}
	}

	if decision.Allowed {
		return nil
	}

	switch decision.Outcome {
	case models.OutcomeAuthenticationAbsent:
		return services.ErrAuthenticationAbsent
	case models.OutcomeConfigurationError:
		return services.ErrUnregisteredResourceType
	default:
		return services.ErrAuthorizationDenied
	}
}

// authorized reports whether the subject may perform the operation,
// without recording a per-row trail entry. Used for row filtering inside
// multi-row fetches.
func (s *Service) authorized(ctx context.Context, subject *models.User, operation policy.Operation, resource interface{}) bool {
	return s.evaluator.Authorize(ctx, subject, operation, resource).Allowed
}

// GetUser fetches a user record, owner-only
func (s *Service) GetUser(ctx context.Context, subject *models.User, userID uuid.UUID) (*models.User, error) {
	user, err := s.repos.Users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.decide(ctx, subject, policy.OpRead, user, models.ResourceUser, &user.ID); err != nil {
		return nil, err
	}
	return user, nil
}

// GetPreference fetches a user's preference record, owner-only
func (s *Service) GetPreference(ctx context.Context, subject *models.User, ownerUserID uuid.UUID) (*models.PreferenceRecord, error) {
	record, err := s.repos.Preferences.GetByOwner(ctx, ownerUserID)
	if err != nil {
		return nil, err
	}
	if err := s.decide(ctx, subject, policy.OpRead, record, models.ResourcePreference, &record.ID); err != nil {
		return nil, err
	}
	return record, nil
}

// UpsertPreference writes the subject's own preference record
func (s *Service) UpsertPreference(ctx context.Context, subject *models.User, settings json.RawMessage) (*models.PreferenceRecord, error) {
	if subject == nil {
		return nil, services.ErrAuthenticationAbsent
	}

	record := &models.PreferenceRecord{
		ID:          uuid.New(),
		OwnerUserID: subject.ID,
		Settings:    settings,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	if err := s.decide(ctx, subject, policy.OpUpdate, record, models.ResourcePreference, &record.ID); err != nil {
		return nil, err
	}
	if err := s.repos.Preferences.Upsert(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

// GetSafetyProfile fetches a user's safety profile, owner-only
func (s *Service) GetSafetyProfile(ctx context.Context, subject *models.User, ownerUserID uuid.UUID) (*models.SafetyProfile, error) {
	profile, err := s.repos.SafetyProfiles.GetByOwner(ctx, ownerUserID)
	if err != nil {
		return nil, err
	}
	if err := s.decide(ctx, subject, policy.OpRead, profile, models.ResourceSafetyProfile, &profile.ID); err != nil {
		return nil, err
	}
	return profile, nil
}

// UpsertSafetyProfile writes the subject's own safety profile
func (s *Service) UpsertSafetyProfile(ctx context.Context, subject *models.User, plan json.RawMessage) (*models.SafetyProfile, error) {
	if subject == nil {
		return nil, services.ErrAuthenticationAbsent
	}

	profile := &models.SafetyProfile{
		ID:          uuid.New(),
		OwnerUserID: subject.ID,
		Plan:        plan,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	if err := s.decide(ctx, subject, policy.OpUpdate, profile, models.ResourceSafetyProfile, &profile.ID); err != nil {
		return nil, err
	}
	if err := s.repos.SafetyProfiles.Upsert(ctx, profile); err != nil {
		return nil, err
	}
	return profile, nil
}

// AppendSafetySignal appends a vital-interest signal to the subject's own
// stream. There is no corresponding update or delete anywhere in this
// service.
func (s *Service) AppendSafetySignal(ctx context.Context, subject *models.User, source string, payload json.RawMessage) (*models.SafetySignal, error) {
	if subject == nil {
		return nil, services.ErrAuthenticationAbsent
	}

	signal := &models.SafetySignal{
		ID:          uuid.New(),
		OwnerUserID: subject.ID,
		Source:      source,
		Payload:     payload,
		RecordedAt:  time.Now(),
	}
	if err := s.decide(ctx, subject, policy.OpAppend, signal, models.ResourceSafetySignal, &signal.ID); err != nil {
		return nil, err
	}
	if err := s.repos.SafetySignals.Append(ctx, signal); err != nil {
		return nil, err
	}
	return signal, nil
}

// ListSafetySignals fetches a user's safety signals. Unauthorized rows
// are dropped, never errored.
func (s *Service) ListSafetySignals(ctx context.Context, subject *models.User, ownerUserID uuid.UUID, limit, offset int) ([]*models.SafetySignal, error) {
	signals, err := s.repos.SafetySignals.ListByOwner(ctx, ownerUserID, limit, offset)
	if err != nil {
		return nil, err
	}

	result := s.filterSignals(ctx, subject, signals)
	return result.Collapse(), nil
}

func (s *Service) filterSignals(ctx context.Context, subject *models.User, signals []*models.SafetySignal) Result[*models.SafetySignal] {
	if subject == nil {
		return Forbidden[*models.SafetySignal]()
	}
	authorized := make([]*models.SafetySignal, 0, len(signals))
	for _, signal := range signals {
		if s.authorized(ctx, subject, policy.OpRead, signal) {
			authorized = append(authorized, signal)
		}
	}
	return Allowed(authorized)
}

// SendCommunication writes a tenant-shared record into the subject's own
// active pairing. An unpaired subject is denied.
func (s *Service) SendCommunication(ctx context.Context, subject *models.User, payload json.RawMessage) (*models.CommunicationRecord, error) {
	if subject == nil {
		return nil, services.ErrAuthenticationAbsent
	}

	scope, err := s.scopes.ScopeFor(ctx, subject.ID)
	if err != nil {
		return nil, err
	}
	if !scope.Paired() {
		return nil, services.ErrAuthorizationDenied
	}

	record := &models.CommunicationRecord{
		ID:           uuid.New(),
		PairingID:    *scope.PairingID,
		SenderUserID: subject.ID,
		Payload:      payload,
		CreatedAt:    time.Now(),
	}
	if err := s.decide(ctx, subject, policy.OpCreate, record, models.ResourceCommunication, &record.ID); err != nil {
		return nil, err
	}
	if err := s.repos.Communications.Create(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

// ListCommunications fetches a pairing's communication records with
// per-row authorization.
func (s *Service) ListCommunications(ctx context.Context, subject *models.User, pairingID uuid.UUID, limit, offset int) ([]*models.CommunicationRecord, error) {
	records, err := s.repos.Communications.ListByPairing(ctx, pairingID, limit, offset)
	if err != nil {
		return nil, err
	}

	if subject == nil {
		return Forbidden[*models.CommunicationRecord]().Collapse(), nil
	}

	authorized := make([]*models.CommunicationRecord, 0, len(records))
	for _, record := range records {
		if s.authorized(ctx, subject, policy.OpRead, record) {
			authorized = append(authorized, record)
		}
	}
	return Allowed(authorized).Collapse(), nil
}

// SubmitAssessment stores a new assessment response for the subject's
// active pairing. Consent always starts false regardless of input.
func (s *Service) SubmitAssessment(ctx context.Context, subject *models.User, assessmentKey string, score json.RawMessage) (*models.AssessmentResponse, error) {
	if subject == nil {
		return nil, services.ErrAuthenticationAbsent
	}

	scope, err := s.scopes.ScopeFor(ctx, subject.ID)
	if err != nil {
		return nil, err
	}
	if !scope.Paired() {
		return nil, services.ErrAuthorizationDenied
	}

	response := &models.AssessmentResponse{
		ID:            uuid.New(),
		OwnerUserID:   subject.ID,
		PairingID:     *scope.PairingID,
		AssessmentKey: assessmentKey,
		Score:         score,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
	if err := s.decide(ctx, subject, policy.OpCreate, response, models.ResourceAssessment, &response.ID); err != nil {
		return nil, err
	}
	if err := s.repos.Assessments.Create(ctx, response); err != nil {
		return nil, err
	}
	return response, nil
}

// GetAssessment fetches a single assessment response
func (s *Service) GetAssessment(ctx context.Context, subject *models.User, id uuid.UUID) (*models.AssessmentResponse, error) {
	response, err := s.repos.Assessments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.decide(ctx, subject, policy.OpRead, response, models.ResourceAssessment, &response.ID); err != nil {
		return nil, err
	}
	return response, nil
}

// ListAssessments fetches a pairing's assessment responses with per-row
// authorization: the subject sees their own rows always and the
// partner's rows only where consent is granted.
func (s *Service) ListAssessments(ctx context.Context, subject *models.User, pairingID uuid.UUID) ([]*models.AssessmentResponse, error) {
	responses, err := s.repos.Assessments.ListByPairing(ctx, pairingID)
	if err != nil {
		return nil, err
	}

	if subject == nil {
		return Forbidden[*models.AssessmentResponse]().Collapse(), nil
	}

	authorized := make([]*models.AssessmentResponse, 0, len(responses))
	for _, response := range responses {
		if s.authorized(ctx, subject, policy.OpRead, response) {
			authorized = append(authorized, response)
		}
	}
	return Allowed(authorized).Collapse(), nil
}

// OwnProfile is the joined view of a subject's own data
type OwnProfile struct {
	User          *models.User             `json:"user"`
	Preference    *models.PreferenceRecord `json:"preference,omitempty"`
	SafetyProfile *models.SafetyProfile    `json:"safety_profile,omitempty"`
	SafetySignals []*models.SafetySignal   `json:"safety_signals"`
}

// FetchOwnProfile performs the joined fetch of a subject's user record,
// preference record, safety profile, and safety signals. Each piece is
// authorized independently; rows outside the subject's scope never
// appear regardless of how large the surrounding dataset is.
func (s *Service) FetchOwnProfile(ctx context.Context, subject *models.User) (*OwnProfile, error) {
	if subject == nil {
		return nil, services.ErrAuthenticationAbsent
	}

	user, err := s.GetUser(ctx, subject, subject.ID)
	if err != nil {
		return nil, err
	}

	profile := &OwnProfile{User: user, SafetySignals: []*models.SafetySignal{}}

	preference, err := s.GetPreference(ctx, subject, subject.ID)
	if err == nil {
		profile.Preference = preference
	} else if !services.IsNotFoundError(err) {
		return nil, err
	}

	safetyProfile, err := s.GetSafetyProfile(ctx, subject, subject.ID)
	if err == nil {
		profile.SafetyProfile = safetyProfile
	} else if !services.IsNotFoundError(err) {
		return nil, err
	}

	signals, err := s.ListSafetySignals(ctx, subject, subject.ID, 100, 0)
	if err != nil {
		return nil, err
	}
	profile.SafetySignals = signals

	return profile, nil
}
