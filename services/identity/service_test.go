package identity

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/duetcare/access-engine/models"
	"github.com/duetcare/access-engine/repositories/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) (*Service, *models.User) {
	t.Helper()

	repos := memory.NewStore().Repositories()
	user := models.NewUser("ext-alice", "Alice")
	require.NoError(t, repos.Users.Create(context.Background(), user))

	svc := NewService(repos.Users, []byte("test-signing-key"), "duetcare", "access-engine", zap.NewNop())
	return svc, user
}

func TestService_Resolve(t *testing.T) {
	svc, user := newTestService(t)
	ctx := context.Background()

	resolved := svc.Resolve(ctx, "ext-alice")
	require.NotNil(t, resolved)
	assert.Equal(t, user.ID, resolved.ID)
}

func TestService_Resolve_FailsClosed(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		subject string
	}{
		{"empty", ""},
		{"whitespace", "   "},
		{"unmapped", "ext-nobody"},
		{"oversized", strings.Repeat("x", 300)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Nil(t, svc.Resolve(ctx, tt.subject))
		})
	}
}

func TestService_Resolve_DeactivatedUser(t *testing.T) {
	repos := memory.NewStore().Repositories()
	ctx := context.Background()

	user := models.NewUser("ext-closed", "Closed Account")
	user.Deactivate()
	require.NoError(t, repos.Users.Create(ctx, user))

	svc := NewService(repos.Users, []byte("test-signing-key"), "duetcare", "access-engine", zap.NewNop())

	assert.Nil(t, svc.Resolve(ctx, "ext-closed"))
}

func TestService_ResolveToken_RoundTrip(t *testing.T) {
	svc, user := newTestService(t)
	ctx := context.Background()

	token, err := svc.IssueToken("ext-alice", time.Minute)
	require.NoError(t, err)

	resolved := svc.ResolveToken(ctx, token)
	require.NotNil(t, resolved)
	assert.Equal(t, user.ID, resolved.ID)
}

func TestService_ResolveToken_FailsClosed(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	t.Run("empty token", func(t *testing.T) {
		assert.Nil(t, svc.ResolveToken(ctx, ""))
	})

	t.Run("garbage token", func(t *testing.T) {
		assert.Nil(t, svc.ResolveToken(ctx, "not.a.token"))
	})

	t.Run("expired token", func(t *testing.T) {
		token, err := svc.IssueToken("ext-alice", -time.Minute)
		require.NoError(t, err)
		assert.Nil(t, svc.ResolveToken(ctx, token))
	})

	t.Run("wrong signing key", func(t *testing.T) {
		repos := memory.NewStore().Repositories()
		other := NewService(repos.Users, []byte("different-key"), "duetcare", "access-engine", zap.NewNop())
		token, err := other.IssueToken("ext-alice", time.Minute)
		require.NoError(t, err)
		assert.Nil(t, svc.ResolveToken(ctx, token))
	})

	t.Run("wrong issuer", func(t *testing.T) {
		repos := memory.NewStore().Repositories()
		other := NewService(repos.Users, []byte("test-signing-key"), "someone-else", "access-engine", zap.NewNop())
		token, err := other.IssueToken("ext-alice", time.Minute)
		require.NoError(t, err)
		assert.Nil(t, svc.ResolveToken(ctx, token))
	})
}
