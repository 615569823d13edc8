package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"curate-pipeline/internal/entity"
	"curate-pipeline/internal/repository/contract"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyBumpsVersionAndAppendsChange(t *testing.T) {
	ctx := context.Background()
	store := NewDocumentStore()

	item := &entity.Item{URL: "https://example.com/a"}
	require.NoError(t, store.CreateItem(ctx, item))
	assert.Equal(t, int64(1), item.Version)
	assert.Equal(t, entity.ItemStatusSubmitted, item.Status)

	read, err := store.GetItem(ctx, item.Id)
	require.NoError(t, err)
	read.Status = entity.ItemStatusFetching
	require.NoError(t, store.Apply(ctx, &entity.ChangeSet{Item: read}))
	assert.Equal(t, int64(2), read.Version)

	records, err := store.Tail(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, int64(1), records[0].Position)
	assert.Equal(t, int64(2), records[1].Position)
	assert.Equal(t, item.Id.String(), records[1].DocumentId)
	assert.Contains(t, string(records[1].Payload), `"status":"fetching"`)
}

func TestApplyRejectsStaleVersion(t *testing.T) {
	ctx := context.Background()
	store := NewDocumentStore()

	item := &entity.Item{URL: "https://example.com/a"}
	require.NoError(t, store.CreateItem(ctx, item))

	first, _ := store.GetItem(ctx, item.Id)
	second, _ := store.GetItem(ctx, item.Id)

	first.Status = entity.ItemStatusFetching
	require.NoError(t, store.Apply(ctx, &entity.ChangeSet{Item: first}))

	second.Status = entity.ItemStatusFetching
	err := store.Apply(ctx, &entity.ChangeSet{Item: second})
	require.Error(t, err)
	assert.True(t, errors.Is(err, contract.ErrVersionConflict))

	var conflict *contract.ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, int64(1), conflict.ExpectedVersion)
	assert.Equal(t, int64(2), conflict.CurrentVersion)
	assert.Equal(t, int64(1), second.Version, "failed write must not bump the caller's copy")
}

func TestConcurrentWritersExactlyOneSucceeds(t *testing.T) {
	ctx := context.Background()
	store := NewDocumentStore()

	edition := &entity.Edition{}
	require.NoError(t, store.CreateEdition(ctx, edition))

	const writers = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded, conflicted := 0, 0

	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			e, err := store.GetEdition(ctx, edition.Id)
			if err != nil {
				return
			}
			// Every writer read the same version before anyone wrote.
			e.Version = 1
			e.Content["writer"] = n
			err = store.Apply(ctx, &entity.ChangeSet{Edition: e})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				succeeded++
			} else if errors.Is(err, contract.ErrVersionConflict) {
				conflicted++
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, writers-1, conflicted)

	final, _ := store.GetEdition(ctx, edition.Id)
	assert.Equal(t, int64(2), final.Version)
}

func TestApplyIsAtomicAcrossDocuments(t *testing.T) {
	ctx := context.Background()
	store := NewDocumentStore()

	edition := &entity.Edition{}
	require.NoError(t, store.CreateEdition(ctx, edition))
	fb := &entity.Feedback{EditionId: edition.Id, Section: "signals", Comment: "tighten"}
	require.NoError(t, store.CreateFeedback(ctx, fb))

	staleEdition, _ := store.GetEdition(ctx, edition.Id)
	staleEdition.Version = 0
	freshFeedback, _ := store.GetFeedback(ctx, fb.Id)
	freshFeedback.Resolved = true

	err := store.Apply(ctx, &entity.ChangeSet{Edition: staleEdition, Feedback: freshFeedback})
	require.ErrorIs(t, err, contract.ErrVersionConflict)

	stored, _ := store.GetFeedback(ctx, fb.Id)
	assert.False(t, stored.Resolved)
	assert.Equal(t, 0, store.Writes())
}

func TestApplyRejectsBackwardTransitions(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name string
		from entity.ItemStatus
		to   entity.ItemStatus
	}{
		{name: "reviewed back to fetching", from: entity.ItemStatusReviewed, to: entity.ItemStatusFetching},
		{name: "failed to fetching", from: entity.ItemStatusFailed, to: entity.ItemStatusFetching},
		{name: "drafted to failed", from: entity.ItemStatusDrafted, to: entity.ItemStatusFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewDocumentStore()
			item := &entity.Item{URL: "https://example.com", Status: tt.from}
			require.NoError(t, store.CreateItem(ctx, item))

			item.Status = tt.to
			err := store.Apply(ctx, &entity.ChangeSet{Item: item})

			var illegal *entity.IllegalTransitionError
			require.True(t, errors.As(err, &illegal), "got %v", err)
			assert.Equal(t, string(tt.from), illegal.From)
		})
	}
}

func TestResubmitOnlyLeavesFailed(t *testing.T) {
	ctx := context.Background()
	store := NewDocumentStore()

	failed := &entity.Item{URL: "https://example.com/f", Status: entity.ItemStatusFailed}
	require.NoError(t, store.CreateItem(ctx, failed))
	item, err := store.Resubmit(ctx, failed.Id)
	require.NoError(t, err)
	assert.Equal(t, entity.ItemStatusSubmitted, item.Status)
	assert.Equal(t, int64(2), item.Version)

	_, err = store.Resubmit(ctx, failed.Id)
	var illegal *entity.IllegalTransitionError
	assert.True(t, errors.As(err, &illegal))
}

func TestDeletedDocumentsReadAsMissing(t *testing.T) {
	ctx := context.Background()
	store := NewDocumentStore()

	item := &entity.Item{URL: "https://example.com"}
	require.NoError(t, store.CreateItem(ctx, item))
	store.Delete(entity.DocumentTypeItem, item.Id)

	got, err := store.GetItem(ctx, item.Id)
	require.NoError(t, err)
	assert.Nil(t, got)

	err = store.Apply(ctx, &entity.ChangeSet{Item: item})
	assert.ErrorIs(t, err, contract.ErrNotFound)
}

func TestCheckpointNeverMovesBackwards(t *testing.T) {
	ctx := context.Background()
	store := NewDocumentStore()

	require.NoError(t, store.CommitCheckpoint(ctx, "pipeline", 7))
	require.NoError(t, store.CommitCheckpoint(ctx, "pipeline", 3))

	pos, err := store.LoadCheckpoint(ctx, "pipeline")
	require.NoError(t, err)
	assert.Equal(t, int64(7), pos)

	other, _ := store.LoadCheckpoint(ctx, "other")
	assert.Zero(t, other)
}

func TestTailRespectsLimit(t *testing.T) {
	ctx := context.Background()
	store := NewDocumentStore()
	for i := 0; i < 5; i++ {
		store.AppendRaw("item", "x", []byte(`{}`))
	}

	page, err := store.Tail(ctx, 1, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, int64(2), page[0].Position)
	assert.Equal(t, int64(3), page[1].Position)

	rest, _ := store.Tail(ctx, 5, 10)
	assert.Empty(t, rest)
}

func TestFindActiveEditionSkipsPublished(t *testing.T) {
	ctx := context.Background()
	store := NewDocumentStore()

	published := &entity.Edition{Status: entity.EditionStatusPublished}
	require.NoError(t, store.CreateEdition(ctx, published))

	active, err := store.FindActiveEdition(ctx)
	require.NoError(t, err)
	assert.Nil(t, active)

	open := &entity.Edition{}
	require.NoError(t, store.CreateEdition(ctx, open))
	active, _ = store.FindActiveEdition(ctx)
	require.NotNil(t, active)
	assert.Equal(t, open.Id, active.Id)
}

func TestCreateFeedbackRequiresEdition(t *testing.T) {
	store := NewDocumentStore()
	err := store.CreateFeedback(context.Background(), &entity.Feedback{EditionId: uuid.New(), Section: "intro"})
	require.ErrorIs(t, err, contract.ErrNotFound)
}

func TestFeedbackReopensPublishedEdition(t *testing.T) {
	ctx := context.Background()
	store := NewDocumentStore()

	edition := &entity.Edition{Status: entity.EditionStatusPublished, Content: map[string]any{"intro": "hello"}}
	require.NoError(t, store.CreateEdition(ctx, edition))
	before, _ := store.Tail(ctx, 0, 0)

	fb := &entity.Feedback{EditionId: edition.Id, Section: "intro", Comment: "typo"}
	require.NoError(t, store.CreateFeedback(ctx, fb))

	reopened, _ := store.GetEdition(ctx, edition.Id)
	assert.Equal(t, entity.EditionStatusInReview, reopened.Status)
	assert.Nil(t, reopened.PublishedAt)
	assert.Equal(t, int64(2), reopened.Version)

	records, _ := store.Tail(ctx, int64(len(before)), 0)
	require.Len(t, records, 2)
	assert.Equal(t, string(entity.DocumentTypeEdition), records[0].DocumentType)
	assert.Equal(t, string(entity.DocumentTypeFeedback), records[1].DocumentType)
}

func TestApplyRecordsRevisions(t *testing.T) {
	ctx := context.Background()
	store := NewDocumentStore()

	edition := &entity.Edition{Status: entity.EditionStatusDrafting}
	require.NoError(t, store.CreateEdition(ctx, edition))

	trigger := uuid.New()
	for i, text := range []string{"first", "second"} {
		current, _ := store.GetEdition(ctx, edition.Id)
		current.Content["intro"] = text
		rev := &entity.Revision{Source: entity.RevisionSourceEdit, TriggerId: trigger}
		require.NoError(t, store.Apply(ctx, &entity.ChangeSet{Edition: current, Revision: rev}))
		assert.Equal(t, i+1, rev.Sequence)
	}

	revs, err := store.ListRevisions(ctx, edition.Id)
	require.NoError(t, err)
	require.Len(t, revs, 2)
	assert.Equal(t, "first", revs[0].Content["intro"])
	assert.Equal(t, "second", revs[1].Content["intro"])
	assert.Equal(t, edition.Id, revs[1].EditionId)

	got, err := store.GetRevision(ctx, edition.Id, revs[0].Id)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Sequence)

	missing, err := store.GetRevision(ctx, uuid.New(), revs[0].Id)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestFailedApplyRecordsNoRevision(t *testing.T) {
	ctx := context.Background()
	store := NewDocumentStore()

	edition := &entity.Edition{Status: entity.EditionStatusDrafting}
	require.NoError(t, store.CreateEdition(ctx, edition))
	stale, _ := store.GetEdition(ctx, edition.Id)
	stale.Version = 7

	err := store.Apply(ctx, &entity.ChangeSet{Edition: stale, Revision: &entity.Revision{Source: entity.RevisionSourceEdit}})
	require.ErrorIs(t, err, contract.ErrVersionConflict)

	revs, _ := store.ListRevisions(ctx, edition.Id)
	assert.Empty(t, revs)
}

func TestDeleteEdition(t *testing.T) {
	ctx := context.Background()
	store := NewDocumentStore()

	edition := &entity.Edition{}
	require.NoError(t, store.CreateEdition(ctx, edition))
	require.NoError(t, store.DeleteEdition(ctx, edition.Id))

	got, err := store.GetEdition(ctx, edition.Id)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.ErrorIs(t, store.DeleteEdition(ctx, edition.Id), contract.ErrNotFound)
}

func TestBacklogListsOutstandingWork(t *testing.T) {
	ctx := context.Background()
	store := NewDocumentStore()

	pending := &entity.Item{URL: "https://example.com/pending"}
	require.NoError(t, store.CreateItem(ctx, pending))
	done := &entity.Item{URL: "https://example.com/done", Status: entity.ItemStatusDrafted}
	require.NoError(t, store.CreateItem(ctx, done))

	edition := &entity.Edition{Status: entity.EditionStatusInReview, PublishRequested: true}
	require.NoError(t, store.CreateEdition(ctx, edition))
	open := &entity.Feedback{EditionId: edition.Id, Section: "intro"}
	require.NoError(t, store.CreateFeedback(ctx, open))
	closed := &entity.Feedback{EditionId: edition.Id, Section: "outro", Resolved: true}
	require.NoError(t, store.CreateFeedback(ctx, closed))

	b, err := store.Backlog(ctx, []entity.ItemStatus{entity.ItemStatusSubmitted})
	require.NoError(t, err)
	require.Len(t, b.Items, 1)
	assert.Equal(t, pending.Id, b.Items[0].Id)
	require.Len(t, b.Feedback, 1)
	assert.Equal(t, open.Id, b.Feedback[0].Id)
	require.Len(t, b.Editions, 1)
	assert.Equal(t, edition.Id, b.Editions[0].Id)
}
