package audit

import (
	"context"
	"testing"
	"time"

	"github.com/duetcare/access-engine/models"
	"github.com/duetcare/access-engine/repositories/memory"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestService_RecordDecision(t *testing.T) {
	repos := memory.NewStore().Repositories()
	svc := NewService(repos.AuditLogs, zap.NewNop(), Config{BufferSize: 16, WorkerCount: 2})

	require.NoError(t, svc.Start())

	subjectID := uuid.New()
	resourceID := uuid.New()
	require.NoError(t, svc.RecordDecision(&subjectID, "read", models.ResourcePreference,
		&resourceID, models.OutcomeDenied, "private resource, subject is not the owner"))
	require.NoError(t, svc.RecordDecision(nil, "read", models.ResourcePreference,
		&resourceID, models.OutcomeAuthenticationAbsent, "subject not resolved"))

	// Stop drains the queue before returning
	require.NoError(t, svc.Stop(time.Second))

	denied, err := repos.AuditLogs.ListByOutcome(context.Background(), models.OutcomeDenied, 10, 0)
	require.NoError(t, err)
	require.Len(t, denied, 1)
	assert.Equal(t, subjectID, *denied[0].SubjectID)

	absent, err := repos.AuditLogs.ListByOutcome(context.Background(), models.OutcomeAuthenticationAbsent, 10, 0)
	require.NoError(t, err)
	require.Len(t, absent, 1)
	assert.Nil(t, absent[0].SubjectID)
}

func TestService_RecordBeforeStart(t *testing.T) {
	repos := memory.NewStore().Repositories()
	svc := NewService(repos.AuditLogs, zap.NewNop(), DefaultConfig())

	subjectID := uuid.New()
	err := svc.RecordConsentChange(subjectID, uuid.New(), true)

	assert.Error(t, err)
}

func TestService_DoubleStart(t *testing.T) {
	repos := memory.NewStore().Repositories()
	svc := NewService(repos.AuditLogs, zap.NewNop(), Config{BufferSize: 4, WorkerCount: 1})

	require.NoError(t, svc.Start())
	assert.Error(t, svc.Start())
	require.NoError(t, svc.Stop(time.Second))
}

func TestService_BufferFullDropsEvent(t *testing.T) {
	repos := memory.NewStore().Repositories()
	// No workers started draining means the single-slot buffer fills after
	// one event.
	svc := NewService(repos.AuditLogs, zap.NewNop(), Config{BufferSize: 1, WorkerCount: 1})
	svc.mu.Lock()
	svc.started = true
	svc.mu.Unlock()

	subjectID := uuid.New()
	require.NoError(t, svc.RecordConsentChange(subjectID, uuid.New(), true))
	assert.Error(t, svc.RecordConsentChange(subjectID, uuid.New(), false))
}
