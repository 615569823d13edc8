package runs

import (
	"context"
	"errors"
	"testing"

	"curate-pipeline/internal/entity"
	"curate-pipeline/internal/repository/memory"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunLifecycle(t *testing.T) {
	ctx := context.Background()
	tracker := NewTracker(memory.NewRunRepository())
	trigger := uuid.New()

	failedId, err := tracker.StartRun(ctx, entity.StageReview, trigger, 1, map[string]any{"url": "u"})
	require.NoError(t, err)
	require.NoError(t, tracker.FailRun(ctx, failedId, errors.New("timeout")))

	okId, err := tracker.StartRun(ctx, entity.StageReview, trigger, 2, map[string]any{"url": "u"})
	require.NoError(t, err)
	require.NoError(t, tracker.CompleteRun(ctx, okId, map[string]any{"score": 7}, &entity.Usage{InputTokens: 10, OutputTokens: 5}))

	list, err := tracker.ListByTrigger(ctx, trigger)
	require.NoError(t, err)
	require.Len(t, list, 2)

	assert.Equal(t, entity.RunStatusFailed, list[0].Status)
	require.NotNil(t, list[0].Error)
	assert.Equal(t, "timeout", *list[0].Error)
	assert.NotNil(t, list[0].CompletedAt)

	assert.Equal(t, entity.RunStatusCompleted, list[1].Status)
	assert.Equal(t, 2, list[1].Attempt)
	assert.JSONEq(t, `{"score":7}`, string(list[1].Output))
	require.NotNil(t, list[1].Usage)
	assert.Equal(t, 15, list[1].Usage.TotalTokens)
}

func TestFinishingTwiceFails(t *testing.T) {
	ctx := context.Background()
	tracker := NewTracker(memory.NewRunRepository())

	id, err := tracker.StartRun(ctx, entity.StageFetch, uuid.New(), 1, nil)
	require.NoError(t, err)
	require.NoError(t, tracker.CompleteRun(ctx, id, nil, nil))
	assert.Error(t, tracker.FailRun(ctx, id, errors.New("late")))
}

func TestFinishUnknownRun(t *testing.T) {
	tracker := NewTracker(memory.NewRunRepository())
	assert.Error(t, tracker.CompleteRun(context.Background(), uuid.New(), nil, nil))
}

func TestNormalizeUsage(t *testing.T) {
	tests := []struct {
		name string
		in   *entity.Usage
		want *entity.Usage
	}{
		{name: "nil stays nil", in: nil, want: nil},
		{name: "missing total is summed", in: &entity.Usage{InputTokens: 3, OutputTokens: 4}, want: &entity.Usage{InputTokens: 3, OutputTokens: 4, TotalTokens: 7}},
		{name: "reported total is kept", in: &entity.Usage{InputTokens: 3, OutputTokens: 4, TotalTokens: 9}, want: &entity.Usage{InputTokens: 3, OutputTokens: 4, TotalTokens: 9}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeUsage(tt.in))
		})
	}
}
