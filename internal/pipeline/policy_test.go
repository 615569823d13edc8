package pipeline

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

type failingFinder struct{}

func (failingFinder) FindActiveEdition(context.Context) (*entity.Edition, error) {
	return nil, errors.New("db down")
}

func TestOwnedPolicy(t *testing.T) {
	ctx := context.Background()
	doc, agg := uuid.New(), uuid.New()
	p := OwnedAggregatePolicy{}

	got, err := p.Resolve(ctx, entity.ChangeEvent{DocumentType: entity.DocumentTypeItem, DocumentId: doc, AggregateId: agg})
	require.NoError(t, err)
	assert.Equal(t, agg, got)

	got, _ = p.Resolve(ctx, entity.ChangeEvent{DocumentType: entity.DocumentTypeItem, DocumentId: doc})
	assert.Equal(t, doc, got)

	got, _ = p.Resolve(ctx, entity.ChangeEvent{DocumentType: entity.DocumentTypeEdition, DocumentId: doc, AggregateId: agg})
	assert.Equal(t, doc, got)
}

func TestActiveEditionPolicy(t *testing.T) {
	ctx := context.Background()
	store := memory.NewDocumentStore()
	p := ActiveEditionPolicy{Store: store}
	doc := uuid.New()

	got, err := p.Resolve(ctx, entity.ChangeEvent{DocumentType: entity.DocumentTypeItem, DocumentId: doc})
	require.NoError(t, err)
	assert.Equal(t, doc, got, "no open edition")

	active := &entity.Edition{}
	require.NoError(t, store.CreateEdition(ctx, active))
	got, _ = p.Resolve(ctx, entity.ChangeEvent{DocumentType: entity.DocumentTypeItem, DocumentId: doc})
	assert.Equal(t, active.Id, got)

	_, err = ActiveEditionPolicy{Store: failingFinder{}}.Resolve(ctx, entity.ChangeEvent{DocumentType: entity.DocumentTypeItem, DocumentId: doc})
	assert.Error(t, err)
}

func TestNewAggregatePolicy(t *testing.T) {
	p, err := NewAggregatePolicy("owned", nil)
	require.NoError(t, err)
	assert.IsType(t, OwnedAggregatePolicy{}, p)

	p, err = NewAggregatePolicy("active", memory.NewDocumentStore())
	require.NoError(t, err)
	assert.IsType(t, ActiveEditionPolicy{}, p)

	_, err = NewAggregatePolicy("round-robin", nil)
	assert.Error(t, err)
}
