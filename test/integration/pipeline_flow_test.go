package integration

import (
	"context"
	"testing"
	"time"

	"curate-pipeline/internal/entity"
	"curate-pipeline/internal/events"
	"curate-pipeline/internal/feed"
	"curate-pipeline/internal/pipeline"
	"curate-pipeline/internal/pkg/logger"
	"curate-pipeline/internal/repository/memory"
	"curate-pipeline/internal/runs"
	"curate-pipeline/internal/stage"
	pkgEvents "curate-pipeline/pkg/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPipelineFlow drives items, feedback and a publish request from the
// change feed to their final statuses through the real reader, bus and
// orchestrator with the local stage agents.
func TestPipelineFlow(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := memory.NewDocumentStore()
	tracker := runs.NewTracker(memory.NewRunRepository())
	recorder := &events.Recorder{}

	dispatcher := stage.NewDispatcher(time.Second)
	for name, agent := range stage.LocalAgents() {
		dispatcher.Register(name, agent, 0)
	}

	orch := pipeline.NewOrchestrator(store, tracker, dispatcher, recorder, pipeline.Options{
		Workers:        4,
		MaxAttempts:    2,
		RetryBaseDelay: time.Millisecond,
		RetryMaxDelay:  5 * time.Millisecond,
	})
	bus := feed.NewBus(logger.NewNopLogger())
	require.NoError(t, bus.Consume(ctx, orch))

	reader := feed.NewReader(store, bus, feed.ReaderOptions{
		Name:         "flow",
		PollInterval: 5 * time.Millisecond,
		MinBackoff:   time.Millisecond,
		MaxBackoff:   5 * time.Millisecond,
	})
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		_ = reader.Start(ctx)
	}()

	edition := &entity.Edition{}
	require.NoError(t, store.CreateEdition(ctx, edition))
	good := &entity.Item{URL: "https://example.com/story", EditionId: edition.Id}
	bad := &entity.Item{URL: "no host here", EditionId: edition.Id}
	require.NoError(t, store.CreateItem(ctx, good))
	require.NoError(t, store.CreateItem(ctx, bad))

	require.Eventually(t, func() bool {
		g, _ := store.GetItem(ctx, good.Id)
		b, _ := store.GetItem(ctx, bad.Id)
		return g.Status == entity.ItemStatusDrafted && b.Status == entity.ItemStatusFailed
	}, 3*time.Second, 10*time.Millisecond)

	drafted, err := store.GetEdition(ctx, edition.Id)
	require.NoError(t, err)
	assert.Equal(t, entity.EditionStatusDrafting, drafted.Status)
	assert.True(t, drafted.HasItem(good.Id))
	assert.Contains(t, drafted.Content, "item:"+good.Id.String())

	fb := &entity.Feedback{EditionId: edition.Id, Section: "item:" + good.Id.String(), Comment: "shorter"}
	require.NoError(t, store.CreateFeedback(ctx, fb))
	require.Eventually(t, func() bool {
		f, _ := store.GetFeedback(ctx, fb.Id)
		return f.Resolved
	}, 3*time.Second, 10*time.Millisecond)

	current, err := store.GetEdition(ctx, edition.Id)
	require.NoError(t, err)
	current.PublishRequested = true
	require.NoError(t, store.Apply(ctx, &entity.ChangeSet{Edition: current}))
	require.Eventually(t, func() bool {
		e, _ := store.GetEdition(ctx, edition.Id)
		return e.Status == entity.EditionStatusPublished && !e.PublishRequested
	}, 3*time.Second, 10*time.Millisecond)

	runList, err := tracker.ListByTrigger(ctx, bad.Id)
	require.NoError(t, err)
	require.Len(t, runList, 2)
	for _, run := range runList {
		assert.Equal(t, entity.RunStatusFailed, run.Status)
	}
	assert.Len(t, recorder.OfKind(pkgEvents.KindStageFailed), 1)

	reader.Stop()
	<-readerDone
	require.NoError(t, orch.Shutdown(ctx))
	require.NoError(t, bus.Close())

	cp, err := store.LoadCheckpoint(ctx, "flow")
	require.NoError(t, err)
	assert.Equal(t, reader.Position(), cp)
}
