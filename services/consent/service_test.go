package consent

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/duetcare/access-engine/models"
	"github.com/duetcare/access-engine/repositories"
	"github.com/duetcare/access-engine/repositories/memory"
	"github.com/duetcare/access-engine/services"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestLedger(t *testing.T) (*Service, *repositories.Repositories, *models.User, *models.AssessmentResponse) {
	t.Helper()

	repos := memory.NewStore().Repositories()
	ctx := context.Background()

	owner := models.NewUser("sub-alice", "Alice")
	require.NoError(t, repos.Users.Create(ctx, owner))

	response := &models.AssessmentResponse{
		ID:            uuid.New(),
		OwnerUserID:   owner.ID,
		PairingID:     uuid.New(),
		AssessmentKey: "check-in",
		Score:         json.RawMessage(`{"total": 7}`),
	}
	require.NoError(t, repos.Assessments.Create(ctx, response))

	return NewService(repos.Assessments, zap.NewNop()), repos, owner, response
}

func assessmentRef(id uuid.UUID) ResourceRef {
	return ResourceRef{Type: models.ResourceAssessment, ID: id}
}

func TestService_ConsentRoundTrip(t *testing.T) {
	ledger, _, owner, response := newTestLedger(t)
	ctx := context.Background()
	ref := assessmentRef(response.ID)

	granted, err := ledger.GetConsent(ctx, owner, ref)
	require.NoError(t, err)
	assert.False(t, granted)

	require.NoError(t, ledger.SetConsent(ctx, owner, ref, true))
	granted, err = ledger.GetConsent(ctx, owner, ref)
	require.NoError(t, err)
	assert.True(t, granted)

	require.NoError(t, ledger.SetConsent(ctx, owner, ref, false))
	granted, err = ledger.GetConsent(ctx, owner, ref)
	require.NoError(t, err)
	assert.False(t, granted)
}

func TestService_SetConsent_Idempotent(t *testing.T) {
	ledger, repos, owner, response := newTestLedger(t)
	ctx := context.Background()
	ref := assessmentRef(response.ID)

	require.NoError(t, ledger.SetConsent(ctx, owner, ref, true))
	require.NoError(t, ledger.SetConsent(ctx, owner, ref, true))

	stored, err := repos.Assessments.GetByID(ctx, response.ID)
	require.NoError(t, err)
	// A no-op grant does not bump the version
	assert.Equal(t, int64(2), stored.Version)
}

func TestService_SetConsent_NonOwnerDenied(t *testing.T) {
	ledger, repos, _, response := newTestLedger(t)
	ctx := context.Background()

	partner := models.NewUser("sub-bob", "Bob")
	require.NoError(t, repos.Users.Create(ctx, partner))

	err := ledger.SetConsent(ctx, partner, assessmentRef(response.ID), true)
	assert.True(t, services.IsAuthorizationDenied(err))

	_, err = ledger.GetConsent(ctx, partner, assessmentRef(response.ID))
	assert.True(t, services.IsAuthorizationDenied(err))
}

func TestService_SetConsent_AnonymousDenied(t *testing.T) {
	ledger, _, _, response := newTestLedger(t)

	err := ledger.SetConsent(context.Background(), nil, assessmentRef(response.ID), true)
	assert.True(t, services.IsAuthenticationAbsent(err))
}

func TestService_SetConsent_VitalInterestTarget(t *testing.T) {
	ledger, _, owner, _ := newTestLedger(t)

	ref := ResourceRef{Type: models.ResourceSafetySignal, ID: uuid.New()}
	err := ledger.SetConsent(context.Background(), owner, ref, true)

	assert.True(t, errors.Is(err, services.ErrConsentOnVitalInterest))
}

func TestService_SetConsent_UnflaggedType(t *testing.T) {
	ledger, _, owner, _ := newTestLedger(t)

	ref := ResourceRef{Type: models.ResourcePreference, ID: uuid.New()}
	err := ledger.SetConsent(context.Background(), owner, ref, true)

	assert.True(t, services.IsValidationError(err))
}

func TestService_SetConsent_MissingRecord(t *testing.T) {
	ledger, _, owner, _ := newTestLedger(t)

	err := ledger.SetConsent(context.Background(), owner, assessmentRef(uuid.New()), true)
	assert.True(t, errors.Is(err, services.ErrAssessmentNotFound))
}
