package membership

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/duetcare/access-engine/models"
	"github.com/duetcare/access-engine/repositories"
	"github.com/duetcare/access-engine/repositories/memory"
	"github.com/duetcare/access-engine/services"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestMembership(t *testing.T) (*Service, *repositories.Repositories) {
	t.Helper()

	store := memory.NewStore()
	repos := store.Repositories()
	cache := NewScopeCache(100, time.Minute)
	svc := NewService(repos.Users, repos.Pairings, cache, store.TransactionManager(), nil, zap.NewNop())
	return svc, repos
}

func createUser(t *testing.T, repos *repositories.Repositories, subject, name string) *models.User {
	t.Helper()

	user := models.NewUser(subject, name)
	require.NoError(t, repos.Users.Create(context.Background(), user))
	return user
}

func TestService_ScopeFor_Unpaired(t *testing.T) {
	svc, repos := newTestMembership(t)
	ctx := context.Background()

	alice := createUser(t, repos, "sub-alice", "Alice")

	scope, err := svc.ScopeFor(ctx, alice.ID)

	require.NoError(t, err)
	assert.Equal(t, alice.ID, scope.Self)
	assert.False(t, scope.Paired())
	assert.Nil(t, scope.Partner)
	assert.Nil(t, scope.PairingID)
}

func TestService_ScopeFor_Paired(t *testing.T) {
	svc, repos := newTestMembership(t)
	ctx := context.Background()

	alice := createUser(t, repos, "sub-alice", "Alice")
	bob := createUser(t, repos, "sub-bob", "Bob")

	pairing, err := svc.CreatePairing(ctx, alice.ID, bob.ID, models.RelationshipPartners)
	require.NoError(t, err)

	scope, err := svc.ScopeFor(ctx, alice.ID)
	require.NoError(t, err)
	assert.True(t, scope.Paired())
	assert.Equal(t, bob.ID, *scope.Partner)
	assert.Equal(t, pairing.ID, *scope.PairingID)

	// Symmetric from the other side
	scope, err = svc.ScopeFor(ctx, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, *scope.Partner)

	assert.True(t, scope.SharesTenantWith(alice.ID))
	assert.True(t, scope.SharesTenantWith(bob.ID))
	assert.False(t, scope.SharesTenantWith(uuid.New()))
}

func TestService_CreatePairing_SelfPairing(t *testing.T) {
	svc, repos := newTestMembership(t)
	ctx := context.Background()

	alice := createUser(t, repos, "sub-alice", "Alice")

	_, err := svc.CreatePairing(ctx, alice.ID, alice.ID, models.RelationshipPartners)

	assert.True(t, errors.Is(err, services.ErrSelfPairing))
}

func TestService_CreatePairing_MemberAlreadyPaired(t *testing.T) {
	svc, repos := newTestMembership(t)
	ctx := context.Background()

	alice := createUser(t, repos, "sub-alice", "Alice")
	bob := createUser(t, repos, "sub-bob", "Bob")
	carol := createUser(t, repos, "sub-carol", "Carol")

	_, err := svc.CreatePairing(ctx, alice.ID, bob.ID, models.RelationshipPartners)
	require.NoError(t, err)

	_, err = svc.CreatePairing(ctx, bob.ID, carol.ID, models.RelationshipPartners)
	assert.True(t, errors.Is(err, services.ErrPairingConflict))

	// Carol remains unpaired after the rejected write
	scope, err := svc.ScopeFor(ctx, carol.ID)
	require.NoError(t, err)
	assert.False(t, scope.Paired())
}

func TestService_CreatePairing_DeactivatedUser(t *testing.T) {
	svc, repos := newTestMembership(t)
	ctx := context.Background()

	alice := createUser(t, repos, "sub-alice", "Alice")

	closed := models.NewUser("sub-closed", "Closed")
	closed.Deactivate()
	require.NoError(t, repos.Users.Create(ctx, closed))

	_, err := svc.CreatePairing(ctx, alice.ID, closed.ID, models.RelationshipPartners)

	assert.True(t, services.IsValidationError(err))
}

func TestService_DeactivatePairing(t *testing.T) {
	svc, repos := newTestMembership(t)
	ctx := context.Background()

	alice := createUser(t, repos, "sub-alice", "Alice")
	bob := createUser(t, repos, "sub-bob", "Bob")

	pairing, err := svc.CreatePairing(ctx, alice.ID, bob.ID, models.RelationshipPartners)
	require.NoError(t, err)

	// Warm the cache before deactivating
	_, err = svc.ScopeFor(ctx, alice.ID)
	require.NoError(t, err)

	require.NoError(t, svc.DeactivatePairing(ctx, pairing.ID, pairing.Version))

	// Cache was invalidated; both members revert to self-only scopes
	scope, err := svc.ScopeFor(ctx, alice.ID)
	require.NoError(t, err)
	assert.False(t, scope.Paired())

	scope, err = svc.ScopeFor(ctx, bob.ID)
	require.NoError(t, err)
	assert.False(t, scope.Paired())

	// Both can now form new pairings
	carol := createUser(t, repos, "sub-carol", "Carol")
	_, err = svc.CreatePairing(ctx, bob.ID, carol.ID, models.RelationshipPartners)
	assert.NoError(t, err)
}

func TestService_DeactivatePairing_StaleVersion(t *testing.T) {
	svc, repos := newTestMembership(t)
	ctx := context.Background()

	alice := createUser(t, repos, "sub-alice", "Alice")
	bob := createUser(t, repos, "sub-bob", "Bob")

	pairing, err := svc.CreatePairing(ctx, alice.ID, bob.ID, models.RelationshipPartners)
	require.NoError(t, err)

	err = svc.DeactivatePairing(ctx, pairing.ID, pairing.Version+5)
	assert.True(t, errors.Is(err, services.ErrConcurrentUpdate))
}

func TestService_DeactivateUser_EndsPairing(t *testing.T) {
	svc, repos := newTestMembership(t)
	ctx := context.Background()

	alice := createUser(t, repos, "sub-alice", "Alice")
	bob := createUser(t, repos, "sub-bob", "Bob")

	pairing, err := svc.CreatePairing(ctx, alice.ID, bob.ID, models.RelationshipPartners)
	require.NoError(t, err)

	// Warm both cached scopes before closing the account
	_, err = svc.ScopeFor(ctx, alice.ID)
	require.NoError(t, err)
	_, err = svc.ScopeFor(ctx, bob.ID)
	require.NoError(t, err)

	require.NoError(t, svc.DeactivateUser(ctx, alice.ID))

	stored, err := repos.Users.GetByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.False(t, stored.Active)

	closed, err := repos.Pairings.GetByID(ctx, pairing.ID)
	require.NoError(t, err)
	assert.False(t, closed.Active)

	// The partner reverts to a self-only scope and can re-pair
	scope, err := svc.ScopeFor(ctx, bob.ID)
	require.NoError(t, err)
	assert.False(t, scope.Paired())

	carol := createUser(t, repos, "sub-carol", "Carol")
	_, err = svc.CreatePairing(ctx, bob.ID, carol.ID, models.RelationshipPartners)
	assert.NoError(t, err)
}

func TestService_DeactivateUser_Unpaired(t *testing.T) {
	svc, repos := newTestMembership(t)
	ctx := context.Background()

	alice := createUser(t, repos, "sub-alice", "Alice")

	require.NoError(t, svc.DeactivateUser(ctx, alice.ID))

	stored, err := repos.Users.GetByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.False(t, stored.Active)

	// Closing an already closed account is a no-op
	assert.NoError(t, svc.DeactivateUser(ctx, alice.ID))
}

// recordedChange captures pairing trail entries handed to the recorder
type recordedChange struct {
	subjectID *uuid.UUID
	operation string
	pairingID uuid.UUID
}

type stubRecorder struct {
	changes []recordedChange
}

func (r *stubRecorder) RecordPairingChange(subjectID *uuid.UUID, operation string, pairingID uuid.UUID, outcome models.AuditOutcome, reason string) error {
	r.changes = append(r.changes, recordedChange{subjectID: subjectID, operation: operation, pairingID: pairingID})
	return nil
}

func TestService_PairingLifecycleIsRecorded(t *testing.T) {
	store := memory.NewStore()
	repos := store.Repositories()
	recorder := &stubRecorder{}
	svc := NewService(repos.Users, repos.Pairings, NewScopeCache(100, time.Minute),
		store.TransactionManager(), recorder, zap.NewNop())
	ctx := context.Background()

	alice := createUser(t, repos, "sub-alice", "Alice")
	bob := createUser(t, repos, "sub-bob", "Bob")

	pairing, err := svc.CreatePairing(ctx, alice.ID, bob.ID, models.RelationshipPartners)
	require.NoError(t, err)
	require.NoError(t, svc.DeactivatePairing(ctx, pairing.ID, pairing.Version))

	require.Len(t, recorder.changes, 2)
	assert.Equal(t, "pairing_create", recorder.changes[0].operation)
	require.NotNil(t, recorder.changes[0].subjectID)
	assert.Equal(t, alice.ID, *recorder.changes[0].subjectID)
	assert.Equal(t, "pairing_deactivate", recorder.changes[1].operation)
	assert.Equal(t, pairing.ID, recorder.changes[1].pairingID)
}

func TestService_DeactivateUser_RecordsPairingEnd(t *testing.T) {
	store := memory.NewStore()
	repos := store.Repositories()
	recorder := &stubRecorder{}
	svc := NewService(repos.Users, repos.Pairings, NewScopeCache(100, time.Minute),
		store.TransactionManager(), recorder, zap.NewNop())
	ctx := context.Background()

	alice := createUser(t, repos, "sub-alice", "Alice")
	bob := createUser(t, repos, "sub-bob", "Bob")

	pairing, err := svc.CreatePairing(ctx, alice.ID, bob.ID, models.RelationshipPartners)
	require.NoError(t, err)
	require.NoError(t, svc.DeactivateUser(ctx, alice.ID))

	require.Len(t, recorder.changes, 2)
	assert.Equal(t, "pairing_deactivate", recorder.changes[1].operation)
	assert.Equal(t, pairing.ID, recorder.changes[1].pairingID)
	require.NotNil(t, recorder.changes[1].subjectID)
	assert.Equal(t, alice.ID, *recorder.changes[1].subjectID)
}

func TestScopeCache_LRUAndTTL(t *testing.T) {
	cache := NewScopeCache(2, 50*time.Millisecond)

	a, b, c := uuid.New(), uuid.New(), uuid.New()
	cache.Set(a, &Scope{Self: a})
	cache.Set(b, &Scope{Self: b})

	// Touch a so b becomes least recently used
	require.NotNil(t, cache.Get(a))

	cache.Set(c, &Scope{Self: c})
	assert.Nil(t, cache.Get(b))
	assert.NotNil(t, cache.Get(a))
	assert.NotNil(t, cache.Get(c))

	time.Sleep(60 * time.Millisecond)
	assert.Nil(t, cache.Get(a))

	stats := cache.Stats()
	assert.Greater(t, stats.Misses, uint64(0))
}

func TestScopeCache_CleanupWorker(t *testing.T) {
	cache := NewScopeCache(10, 20*time.Millisecond)

	a := uuid.New()
	cache.Set(a, &Scope{Self: a})
	require.Equal(t, 1, cache.Stats().Size)

	stop := make(chan struct{})
	go cache.StartCleanupWorker(10*time.Millisecond, stop)
	defer close(stop)

	// The worker evicts the expired entry without a Get touching it
	assert.Eventually(t, func() bool {
		return cache.Stats().Size == 0
	}, time.Second, 10*time.Millisecond)
}
