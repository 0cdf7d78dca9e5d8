package learning

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReport_EmptyUser(t *testing.T) {
	env := newTestEnv(t)

	r, err := env.analytics.Report(context.Background(), "nobody")
	require.NoError(t, err)
	assert.False(t, r.HasBaseline)
	assert.Zero(t, r.Current.Interactions)
	assert.Zero(t, r.PersonalizedFraction)
	assert.Empty(t, r.TopPreferences)
}

func TestReport_ComparesWindows(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	req := securityRequest()

	// Baseline: two weeks ago, half the interactions fail.
	for i := 0; i < 4; i++ {
		id, _ := env.issue(t, req)
		_, err := env.feedback.Submit(ctx, Feedback{InteractionID: id, Success: i%2 == 0})
		require.NoError(t, err)
	}
	env.clock.Advance(14 * 24 * time.Hour)

	// Current: all succeed.
	for i := 0; i < 3; i++ {
		id, _ := env.issue(t, req)
		_, err := env.feedback.Submit(ctx, Feedback{InteractionID: id, Success: true})
		require.NoError(t, err)
	}
	_, _ = env.issue(t, req) // pending feedback

	r, err := env.analytics.Report(ctx, "user-1")
	require.NoError(t, err)

	assert.True(t, r.HasBaseline)
	assert.Equal(t, 4, r.Baseline.Interactions)
	assert.Equal(t, 4, r.Current.Interactions)
	assert.Equal(t, 3, r.Current.WithFeedback)
	assert.InDelta(t, 0.5, r.Baseline.SuccessRate, 1e-9)
	assert.InDelta(t, 1.0, r.Current.SuccessRate, 1e-9)
	assert.InDelta(t, 0.5, r.SuccessRateDelta, 1e-9)
	assert.InDelta(t, 0, r.PersonalizedFraction, 1e-9)
	require.NotEmpty(t, r.TopPreferences)
	assert.Equal(t, "persona-security", r.TopPreferences[0].Dimension)
}

func TestReport_DoesNotMutate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id, _ := env.issue(t, securityRequest())
	_, err := env.feedback.Submit(ctx, Feedback{InteractionID: id, Success: true})
	require.NoError(t, err)

	before, err := env.store.Stats(ctx)
	require.NoError(t, err)
	_, err = env.analytics.Report(ctx, "user-1")
	require.NoError(t, err)
	after, err := env.store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestNewAnalytics_RejectsBadWindows(t *testing.T) {
	_, err := NewAnalytics(failingStore{}, ReportConfig{CurrentWindow: time.Hour, BaselineWindow: time.Hour})
	assert.Error(t, err)
}
