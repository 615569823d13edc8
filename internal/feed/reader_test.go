package feed

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"curate-pipeline/internal/entity"
	"curate-pipeline/internal/repository/memory"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu     sync.Mutex
	events []entity.ChangeEvent
	fails  atomic.Int32
}

func (s *recordingSink) Deliver(_ context.Context, ev entity.ChangeEvent) error {
	if s.fails.Load() > 0 {
		s.fails.Add(-1)
		return errors.New("orchestrator busy")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func (s *recordingSink) all() []entity.ChangeEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]entity.ChangeEvent(nil), s.events...)
}

// flakyFeed fails the first tailFailures calls to Tail.
type flakyFeed struct {
	*memory.DocumentStore
	tailFailures atomic.Int32
	tails        atomic.Int32
}

func (f *flakyFeed) Tail(ctx context.Context, after int64, limit int) ([]entity.ChangeRecord, error) {
	f.tails.Add(1)
	if f.tailFailures.Load() > 0 {
		f.tailFailures.Add(-1)
		return nil, errors.New("connection reset")
	}
	return f.DocumentStore.Tail(ctx, after, limit)
}

func testOptions() ReaderOptions {
	return ReaderOptions{
		Name:         "test",
		BatchSize:    2,
		PollInterval: 5 * time.Millisecond,
		MinBackoff:   time.Millisecond,
		MaxBackoff:   4 * time.Millisecond,
	}
}

func runReader(t *testing.T, r *Reader, start func(context.Context) error) func() {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- start(context.Background()) }()
	return func() {
		r.Stop()
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("reader did not stop")
		}
	}
}

func TestReader_ForwardsActionableChangesAndCommits(t *testing.T) {
	ctx := context.Background()
	store := memory.NewDocumentStore()

	item := &entity.Item{URL: "https://example.com/a"}
	require.NoError(t, store.CreateItem(ctx, item))
	edition := &entity.Edition{}
	require.NoError(t, store.CreateEdition(ctx, edition)) // created: nothing acts on it
	store.AppendRaw("item", uuid.NewString(), []byte("garbage"))
	fb := &entity.Feedback{EditionId: edition.Id, Section: "intro", Comment: "shorter"}
	require.NoError(t, store.CreateFeedback(ctx, fb))

	sink := &recordingSink{}
	r := NewReader(store, sink, testOptions())
	stop := runReader(t, r, r.Start)

	require.Eventually(t, func() bool { return len(sink.all()) == 2 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		cp, _ := store.LoadCheckpoint(ctx, "test")
		return cp == 4
	}, time.Second, 5*time.Millisecond)
	stop()

	got := sink.all()
	assert.Equal(t, item.Id, got[0].DocumentId)
	assert.Equal(t, string(entity.ItemStatusSubmitted), got[0].ObservedStatus)
	assert.Equal(t, fb.Id, got[1].DocumentId)
	assert.Equal(t, edition.Id, got[1].AggregateId)
	assert.Equal(t, int64(4), r.Position())
}

func TestReader_ResumesFromCheckpoint(t *testing.T) {
	ctx := context.Background()
	store := memory.NewDocumentStore()

	first := &entity.Item{URL: "https://example.com/1"}
	second := &entity.Item{URL: "https://example.com/2"}
	require.NoError(t, store.CreateItem(ctx, first))
	require.NoError(t, store.CreateItem(ctx, second))
	require.NoError(t, store.CommitCheckpoint(ctx, "test", 1))

	sink := &recordingSink{}
	r := NewReader(store, sink, testOptions())
	stop := runReader(t, r, r.Start)
	require.Eventually(t, func() bool { return len(sink.all()) == 1 }, time.Second, 5*time.Millisecond)
	stop()

	assert.Equal(t, second.Id, sink.all()[0].DocumentId)
}

func TestReader_StartFromIgnoresCheckpoint(t *testing.T) {
	ctx := context.Background()
	store := memory.NewDocumentStore()
	require.NoError(t, store.CreateItem(ctx, &entity.Item{URL: "https://example.com/1"}))
	require.NoError(t, store.CreateItem(ctx, &entity.Item{URL: "https://example.com/2"}))
	require.NoError(t, store.CommitCheckpoint(ctx, "test", 2))

	sink := &recordingSink{}
	r := NewReader(store, sink, testOptions())
	stop := runReader(t, r, func(ctx context.Context) error { return r.StartFrom(ctx, 0) })
	require.Eventually(t, func() bool { return len(sink.all()) == 2 }, time.Second, 5*time.Millisecond)
	stop()

	cp, err := store.LoadCheckpoint(ctx, "test")
	require.NoError(t, err)
	assert.Equal(t, int64(2), cp, "checkpoint never moves backwards")
}

func TestReader_BacksOffOnTailErrors(t *testing.T) {
	ctx := context.Background()
	store := memory.NewDocumentStore()
	require.NoError(t, store.CreateItem(ctx, &entity.Item{URL: "https://example.com/1"}))

	feed := &flakyFeed{DocumentStore: store}
	feed.tailFailures.Store(3)

	sink := &recordingSink{}
	r := NewReader(feed, sink, testOptions())
	stop := runReader(t, r, r.Start)
	require.Eventually(t, func() bool { return len(sink.all()) == 1 }, time.Second, 5*time.Millisecond)
	stop()

	assert.GreaterOrEqual(t, feed.tails.Load(), int32(4))
}

func TestReader_RetriesHandOffWithoutSkipping(t *testing.T) {
	ctx := context.Background()
	store := memory.NewDocumentStore()
	first := &entity.Item{URL: "https://example.com/1"}
	second := &entity.Item{URL: "https://example.com/2"}
	require.NoError(t, store.CreateItem(ctx, first))
	require.NoError(t, store.CreateItem(ctx, second))

	sink := &recordingSink{}
	sink.fails.Store(2)
	r := NewReader(store, sink, testOptions())
	stop := runReader(t, r, r.Start)
	require.Eventually(t, func() bool { return len(sink.all()) == 2 }, time.Second, 5*time.Millisecond)
	stop()

	got := sink.all()
	assert.Equal(t, first.Id, got[0].DocumentId)
	assert.Equal(t, second.Id, got[1].DocumentId)
}

func TestReader_StopWhileIdle(t *testing.T) {
	r := NewReader(memory.NewDocumentStore(), &recordingSink{}, testOptions())
	stop := runReader(t, r, r.Start)
	time.Sleep(20 * time.Millisecond)
	stop()
	assert.Equal(t, int64(0), r.Position())
}

func TestReader_MaxBackoffNeverBelowMin(t *testing.T) {
	store := memory.NewDocumentStore()

	r := NewReader(store, &recordingSink{}, ReaderOptions{MinBackoff: time.Minute})
	assert.Equal(t, time.Minute, r.opts.MaxBackoff)

	r = NewReader(store, &recordingSink{}, ReaderOptions{MinBackoff: time.Second})
	assert.Equal(t, 30*time.Second, r.opts.MaxBackoff)
}
