package verification

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestFixtures_Deterministic(t *testing.T) {
	ctx := context.Background()

	first, err := NewEnv(ctx, zap.NewNop())
	require.NoError(t, err)
	second, err := NewEnv(ctx, zap.NewNop())
	require.NoError(t, err)

	require.Equal(t, len(first.Fixtures.Users), len(second.Fixtures.Users))
	for i := range first.Fixtures.Users {
		assert.Equal(t, first.Fixtures.Users[i].ID, second.Fixtures.Users[i].ID)
	}
	for i := range first.Fixtures.Pairings {
		assert.Equal(t, first.Fixtures.Pairings[i].ID, second.Fixtures.Pairings[i].ID)
	}
}

func TestFixtures_Shape(t *testing.T) {
	env, err := NewEnv(context.Background(), zap.NewNop())
	require.NoError(t, err)

	assert.GreaterOrEqual(t, len(env.Fixtures.Users), 50)
	assert.GreaterOrEqual(t, len(env.Fixtures.Pairings), 25)
	assert.NotEmpty(t, env.Fixtures.Unpaired)
	assert.NotNil(t, env.Fixtures.InactiveUser)
	assert.NotNil(t, env.Fixtures.FormerPairing)
	assert.False(t, env.Fixtures.FormerPairing.Active)
	assert.NotEmpty(t, env.Fixtures.MalformedSubjects)
}

func TestRunner_FullSuitePasses(t *testing.T) {
	env, err := NewEnv(context.Background(), zap.NewNop())
	require.NoError(t, err)

	report := NewRunner(env, zap.NewNop()).Run(context.Background())

	for _, group := range report.Groups {
		for _, result := range group.Results {
			assert.NoError(t, result.Err, "%s / %s", group.Name, result.Name)
		}
	}
	assert.True(t, report.Passed())
	assert.Zero(t, report.TotalFailures())
}

func TestRunner_ReportCounting(t *testing.T) {
	report := &Report{
		Groups: []GroupResult{
			{
				Name:     "critical-group",
				Critical: true,
				Results: []ScenarioResult{
					{Name: "ok"},
					{Name: "bad", Err: assert.AnError},
				},
			},
			{
				Name:     "advisory-group",
				Critical: false,
				Results: []ScenarioResult{
					{Name: "bad", Err: assert.AnError},
				},
			},
		},
	}

	assert.Equal(t, 1, report.CriticalFailures())
	assert.Equal(t, 2, report.TotalFailures())
	assert.False(t, report.Passed())

	var buf bytes.Buffer
	report.Write(&buf)
	assert.Contains(t, buf.String(), "FAIL")
	assert.Contains(t, buf.String(), "critical-group")
}
