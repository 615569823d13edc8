package service

import (
	"context"
	"testing"

	"curate-pipeline/internal/dto"
	"curate-pipeline/internal/entity"
	"curate-pipeline/internal/pkg/logger"
	"curate-pipeline/internal/repository/contract"
	"curate-pipeline/internal/repository/memory"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIngest(t *testing.T) (IIngestService, *memory.DocumentStore) {
	t.Helper()
	store := memory.NewDocumentStore()
	return NewIngestService(store, logger.NewNopLogger()), store
}

func TestSubmitItemJoinsActiveEdition(t *testing.T) {
	svc, store := newIngest(t)
	ctx := context.Background()

	edition, err := svc.CreateEdition(ctx)
	require.NoError(t, err)

	res, err := svc.SubmitItem(ctx, &dto.SubmitItemRequest{URL: "https://example.com/a"})
	require.NoError(t, err)
	assert.Equal(t, string(entity.ItemStatusSubmitted), res.Status)
	require.NotNil(t, res.EditionId)
	assert.Equal(t, edition.Id, *res.EditionId)

	records, err := store.Tail(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, res.Id.String(), records[1].DocumentId)
}

func TestSubmitItemWithoutOpenEdition(t *testing.T) {
	svc, store := newIngest(t)
	ctx := context.Background()

	published := &entity.Edition{Status: entity.EditionStatusPublished}
	require.NoError(t, store.CreateEdition(ctx, published))

	_, err := svc.SubmitItem(ctx, &dto.SubmitItemRequest{URL: "https://example.com/a"})
	assert.ErrorIs(t, err, entity.ErrNoOpenEdition)
	assert.Empty(t, store.Items())
}

func TestSubmitItemIntoPublishedEdition(t *testing.T) {
	svc, store := newIngest(t)
	ctx := context.Background()

	published := &entity.Edition{Status: entity.EditionStatusPublished}
	require.NoError(t, store.CreateEdition(ctx, published))

	_, err := svc.SubmitItem(ctx, &dto.SubmitItemRequest{URL: "https://example.com/a", EditionId: &published.Id})
	assert.ErrorIs(t, err, entity.ErrEditionPublished)
	assert.Empty(t, store.Items())
}

func TestSubmitItemIntoUnknownEdition(t *testing.T) {
	svc, _ := newIngest(t)
	missing := uuid.New()

	_, err := svc.SubmitItem(context.Background(), &dto.SubmitItemRequest{URL: "https://example.com/a", EditionId: &missing})
	assert.ErrorIs(t, err, contract.ErrNotFound)
}

func TestRequestPublish(t *testing.T) {
	svc, store := newIngest(t)
	ctx := context.Background()

	edition, err := svc.CreateEdition(ctx)
	require.NoError(t, err)

	res, err := svc.RequestPublish(ctx, edition.Id)
	require.NoError(t, err)
	assert.True(t, res.PublishRequested)
	assert.Equal(t, entity.EditionStatusPublishRequested, res.PipelineStatus)

	writes := store.Writes()
	_, err = svc.RequestPublish(ctx, edition.Id)
	require.NoError(t, err)
	assert.Equal(t, writes, store.Writes(), "a repeated request writes nothing")
}

func TestRequestPublishOnPublishedEdition(t *testing.T) {
	svc, store := newIngest(t)
	ctx := context.Background()

	edition := &entity.Edition{Status: entity.EditionStatusPublished}
	require.NoError(t, store.CreateEdition(ctx, edition))

	_, err := svc.RequestPublish(ctx, edition.Id)
	assert.ErrorIs(t, err, entity.ErrIllegalTransition)
}

func TestSubmitFeedback(t *testing.T) {
	svc, _ := newIngest(t)
	ctx := context.Background()

	edition, err := svc.CreateEdition(ctx)
	require.NoError(t, err)

	res, err := svc.SubmitFeedback(ctx, &dto.SubmitFeedbackRequest{
		EditionId: edition.Id,
		Section:   "intro",
		Comment:   "Tighten this",
	})
	require.NoError(t, err)
	assert.Equal(t, entity.FeedbackStatusUnresolved, res.Status)

	_, err = svc.SubmitFeedback(ctx, &dto.SubmitFeedbackRequest{EditionId: uuid.New(), Section: "intro", Comment: "x"})
	assert.ErrorIs(t, err, contract.ErrNotFound)
}

func TestFeedbackReopensPublishedEdition(t *testing.T) {
	svc, store := newIngest(t)
	ctx := context.Background()

	published := &entity.Edition{Status: entity.EditionStatusPublished, Content: map[string]any{"intro": "live"}}
	require.NoError(t, store.CreateEdition(ctx, published))

	_, err := svc.SubmitFeedback(ctx, &dto.SubmitFeedbackRequest{EditionId: published.Id, Section: "intro", Comment: "typo"})
	require.NoError(t, err)

	res, err := svc.ShowEdition(ctx, published.Id)
	require.NoError(t, err)
	assert.Equal(t, string(entity.EditionStatusInReview), res.Status)
	assert.Nil(t, res.PublishedAt)
}

func TestRevisionsAndRevert(t *testing.T) {
	svc, store := newIngest(t)
	ctx := context.Background()

	edition := &entity.Edition{Status: entity.EditionStatusDrafting}
	require.NoError(t, store.CreateEdition(ctx, edition))
	write := func(content map[string]any, source entity.RevisionSource) {
		current, err := store.GetEdition(ctx, edition.Id)
		require.NoError(t, err)
		current.Content = content
		require.NoError(t, store.Apply(ctx, &entity.ChangeSet{Edition: current, Revision: &entity.Revision{Source: source}}))
	}
	write(map[string]any{"intro": "one", "signals": ""}, entity.RevisionSourceDraft)
	write(map[string]any{"intro": "two", "outro": "bye"}, entity.RevisionSourceEdit)

	list, err := svc.ListRevisions(ctx, edition.Id)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, map[string]string{"intro": entity.SectionAdded}, list[0].Sections)
	assert.Equal(t, map[string]string{
		"intro":   entity.SectionChanged,
		"outro":   entity.SectionAdded,
		"signals": entity.SectionRemoved,
	}, list[1].Sections)

	reverted, err := svc.RevertEdition(ctx, edition.Id, list[0].Id)
	require.NoError(t, err)
	assert.Equal(t, 3, reverted.Sequence)
	assert.Equal(t, string(entity.RevisionSourceRevert), reverted.Source)
	assert.Equal(t, list[0].Id, reverted.TriggerId)
	assert.Equal(t, "Reverted to revision #1", reverted.Summary)

	current, err := svc.ShowEdition(ctx, edition.Id)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"intro": "one", "signals": ""}, current.Content)

	_, err = svc.RevertEdition(ctx, edition.Id, uuid.New())
	assert.ErrorIs(t, err, contract.ErrNotFound)
	_, err = svc.ListRevisions(ctx, uuid.New())
	assert.ErrorIs(t, err, contract.ErrNotFound)
}

func TestRevertPublishedEdition(t *testing.T) {
	svc, store := newIngest(t)
	ctx := context.Background()

	edition := &entity.Edition{Status: entity.EditionStatusInReview}
	require.NoError(t, store.CreateEdition(ctx, edition))
	current, _ := store.GetEdition(ctx, edition.Id)
	current.Content["intro"] = "one"
	rev := &entity.Revision{Source: entity.RevisionSourceEdit}
	require.NoError(t, store.Apply(ctx, &entity.ChangeSet{Edition: current, Revision: rev}))
	current.Status = entity.EditionStatusPublished
	require.NoError(t, store.Apply(ctx, &entity.ChangeSet{Edition: current}))

	_, err := svc.RevertEdition(ctx, edition.Id, rev.Id)
	assert.ErrorIs(t, err, entity.ErrEditionPublished)
}

func TestDeleteEdition(t *testing.T) {
	svc, _ := newIngest(t)
	ctx := context.Background()

	edition, err := svc.CreateEdition(ctx)
	require.NoError(t, err)
	require.NoError(t, svc.DeleteEdition(ctx, edition.Id))

	_, err = svc.ShowEdition(ctx, edition.Id)
	assert.ErrorIs(t, err, contract.ErrNotFound)
	assert.ErrorIs(t, svc.DeleteEdition(ctx, edition.Id), contract.ErrNotFound)
}

func TestResubmitOnlyFailedItems(t *testing.T) {
	svc, store := newIngest(t)
	ctx := context.Background()

	item := &entity.Item{URL: "https://example.com/a"}
	require.NoError(t, store.CreateItem(ctx, item))

	_, err := svc.ResubmitItem(ctx, item.Id)
	assert.ErrorIs(t, err, entity.ErrIllegalTransition)

	item.Status = entity.ItemStatusFailed
	require.NoError(t, store.Apply(ctx, &entity.ChangeSet{Item: item}))

	res, err := svc.ResubmitItem(ctx, item.Id)
	require.NoError(t, err)
	assert.Equal(t, string(entity.ItemStatusSubmitted), res.Status)
}
