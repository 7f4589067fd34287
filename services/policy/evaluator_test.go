package policy

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/duetcare/access-engine/models"
	"github.com/duetcare/access-engine/repositories"
	"github.com/duetcare/access-engine/repositories/memory"
	"github.com/duetcare/access-engine/services/membership"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixture struct {
	evaluator *Evaluator
	repos     *repositories.Repositories

	alice   *models.User // paired with bob
	bob     *models.User
	charlie *models.User // paired with diana, a separate tenant
	diana   *models.User
	eve     *models.User // unpaired

	aliceBob     *models.Pairing
	charlieDiana *models.Pairing
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := memory.NewStore()
	repos := store.Repositories()
	ctx := context.Background()

	f := &fixture{repos: repos}
	f.alice = models.NewUser("sub-alice", "Alice")
	f.bob = models.NewUser("sub-bob", "Bob")
	f.charlie = models.NewUser("sub-charlie", "Charlie")
	f.diana = models.NewUser("sub-diana", "Diana")
	f.eve = models.NewUser("sub-eve", "Eve")
	for _, u := range []*models.User{f.alice, f.bob, f.charlie, f.diana, f.eve} {
		require.NoError(t, repos.Users.Create(ctx, u))
	}

	f.aliceBob = models.NewPairing(f.alice.ID, f.bob.ID, models.RelationshipPartners)
	f.charlieDiana = models.NewPairing(f.charlie.ID, f.diana.ID, models.RelationshipMarried)
	require.NoError(t, repos.Pairings.Create(ctx, f.aliceBob))
	require.NoError(t, repos.Pairings.Create(ctx, f.charlieDiana))

	scopes := membership.NewService(repos.Users, repos.Pairings,
		membership.NewScopeCache(100, time.Minute), store.TransactionManager(), nil, zap.NewNop())
	f.evaluator = NewEvaluator(NewClassifier(zap.NewNop()), scopes, zap.NewNop())
	return f
}

func preferenceOwnedBy(userID uuid.UUID) *models.PreferenceRecord {
	return &models.PreferenceRecord{
		ID:          uuid.New(),
		OwnerUserID: userID,
		Settings:    json.RawMessage(`{"theme": "dark"}`),
	}
}

func safetyProfileOwnedBy(userID uuid.UUID) *models.SafetyProfile {
	return &models.SafetyProfile{
		ID:          uuid.New(),
		OwnerUserID: userID,
		Plan:        json.RawMessage(`{"contacts": []}`),
	}
}

func signalOwnedBy(userID uuid.UUID) *models.SafetySignal {
	return &models.SafetySignal{
		ID:          uuid.New(),
		OwnerUserID: userID,
		Source:      "crisis-detector",
		Payload:     json.RawMessage(`{"level": 2}`),
		RecordedAt:  time.Now(),
	}
}

func communicationIn(pairingID, senderID uuid.UUID) *models.CommunicationRecord {
	return &models.CommunicationRecord{
		ID:           uuid.New(),
		PairingID:    pairingID,
		SenderUserID: senderID,
		Payload:      json.RawMessage(`"ciphertext"`),
	}
}

func assessmentBy(ownerID, pairingID uuid.UUID, consent bool) *models.AssessmentResponse {
	return &models.AssessmentResponse{
		ID:             uuid.New(),
		OwnerUserID:    ownerID,
		PairingID:      pairingID,
		AssessmentKey:  "check-in",
		Score:          json.RawMessage(`{"total": 7}`),
		ConsentGranted: consent,
	}
}

func TestEvaluator_PrivateResources(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	prefs := preferenceOwnedBy(f.alice.ID)
	profile := safetyProfileOwnedBy(f.alice.ID)

	tests := []struct {
		name     string
		subject  *models.User
		resource interface{}
		want     bool
	}{
		{"owner reads own preferences", f.alice, prefs, true},
		{"partner denied on preferences", f.bob, prefs, false},
		{"owner reads own safety profile", f.alice, profile, true},
		{"partner denied on safety profile", f.bob, profile, false},
		{"stranger denied on preferences", f.charlie, prefs, false},
		{"unpaired user denied on preferences", f.eve, prefs, false},
		{"owner reads own user record", f.alice, f.alice, true},
		{"partner denied on user record", f.bob, f.alice, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision := f.evaluator.Authorize(ctx, tt.subject, OpRead, tt.resource)
			assert.Equal(t, tt.want, decision.Allowed)
		})
	}
}

func TestEvaluator_VitalInterest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	signal := signalOwnedBy(f.alice.ID)

	tests := []struct {
		name      string
		subject   *models.User
		operation Operation
		want      bool
	}{
		{"owner reads own signal", f.alice, OpRead, true},
		{"owner appends", f.alice, OpAppend, true},
		{"owner cannot delete", f.alice, OpDelete, false},
		{"owner cannot update", f.alice, OpUpdate, false},
		{"partner denied read", f.bob, OpRead, false},
		{"partner denied delete", f.bob, OpDelete, false},
		{"stranger denied read", f.diana, OpRead, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision := f.evaluator.Authorize(ctx, tt.subject, tt.operation, signal)
			assert.Equal(t, tt.want, decision.Allowed)
		})
	}
}

func TestEvaluator_TenantShared(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	record := communicationIn(f.aliceBob.ID, f.alice.ID)

	tests := []struct {
		name    string
		subject *models.User
		want    bool
	}{
		{"sender reads", f.alice, true},
		{"partner reads", f.bob, true},
		{"other tenant denied", f.charlie, false},
		{"unpaired user denied", f.eve, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision := f.evaluator.Authorize(ctx, tt.subject, OpRead, record)
			assert.Equal(t, tt.want, decision.Allowed)
		})
	}
}

func TestEvaluator_TenantShared_FormerPartnerDenied(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	record := communicationIn(f.aliceBob.ID, f.alice.ID)
	require.NoError(t, f.repos.Pairings.Deactivate(ctx, f.aliceBob.ID, f.aliceBob.Version))

	// Once the pairing ends, neither former member reads its history
	assert.False(t, f.evaluator.Authorize(ctx, f.alice, OpRead, record).Allowed)
	assert.False(t, f.evaluator.Authorize(ctx, f.bob, OpRead, record).Allowed)
}

func TestEvaluator_ConsentShareable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	withoutConsent := assessmentBy(f.alice.ID, f.aliceBob.ID, false)
	withConsent := assessmentBy(f.alice.ID, f.aliceBob.ID, true)

	tests := []struct {
		name     string
		subject  *models.User
		resource interface{}
		want     bool
	}{
		{"owner reads without consent", f.alice, withoutConsent, true},
		{"partner denied without consent", f.bob, withoutConsent, false},
		{"partner reads with consent", f.bob, withConsent, true},
		{"other tenant denied despite consent", f.charlie, withConsent, false},
		{"unpaired user denied despite consent", f.eve, withConsent, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision := f.evaluator.Authorize(ctx, tt.subject, OpRead, tt.resource)
			assert.Equal(t, tt.want, decision.Allowed)
		})
	}
}

func TestEvaluator_AnonymousAlwaysDenied(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	resources := []interface{}{
		f.alice,
		preferenceOwnedBy(f.alice.ID),
		safetyProfileOwnedBy(f.alice.ID),
		signalOwnedBy(f.alice.ID),
		communicationIn(f.aliceBob.ID, f.alice.ID),
		assessmentBy(f.alice.ID, f.aliceBob.ID, true),
	}
	operations := []Operation{OpRead, OpCreate, OpUpdate, OpAppend, OpDelete}

	for _, resource := range resources {
		for _, operation := range operations {
			decision := f.evaluator.Authorize(ctx, nil, operation, resource)
			assert.False(t, decision.Allowed)
			assert.Equal(t, models.OutcomeAuthenticationAbsent, decision.Outcome)
		}
	}
}

func TestEvaluator_UnregisteredResourceType(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	type unknownRecord struct{ ID uuid.UUID }

	decision := f.evaluator.Authorize(ctx, f.alice, OpRead, &unknownRecord{ID: uuid.New()})

	assert.False(t, decision.Allowed)
	assert.Equal(t, models.OutcomeConfigurationError, decision.Outcome)
}

func TestEvaluator_UnknownOperation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	decision := f.evaluator.Authorize(ctx, f.alice, Operation("truncate"), preferenceOwnedBy(f.alice.ID))

	assert.False(t, decision.Allowed)
	assert.Equal(t, models.OutcomeConfigurationError, decision.Outcome)
}

func TestEvaluator_Deterministic(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	record := assessmentBy(f.alice.ID, f.aliceBob.ID, true)

	first := f.evaluator.Authorize(ctx, f.bob, OpRead, record)
	for i := 0; i < 100; i++ {
		assert.Equal(t, first, f.evaluator.Authorize(ctx, f.bob, OpRead, record))
	}
}
