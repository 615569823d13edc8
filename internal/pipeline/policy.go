package pipeline

import (
	"context"
	"fmt"

	"curate-pipeline/internal/entity"

	"github.com/google/uuid"
)

// AggregatePolicy decides which aggregate an event is serialized under.
type AggregatePolicy interface {
	Resolve(ctx context.Context, ev entity.ChangeEvent) (uuid.UUID, error)
}

// OwnedAggregatePolicy uses the edition a document already belongs to. A
// document with no edition is serialized on its own id.
type OwnedAggregatePolicy struct{}

func (OwnedAggregatePolicy) Resolve(_ context.Context, ev entity.ChangeEvent) (uuid.UUID, error) {
	if ev.DocumentType == entity.DocumentTypeEdition {
		return ev.DocumentId, nil
	}
	if ev.AggregateId != uuid.Nil {
		return ev.AggregateId, nil
	}
	return ev.DocumentId, nil
}

// ActiveEditionFinder is the store read the active policy needs.
type ActiveEditionFinder interface {
	FindActiveEdition(ctx context.Context) (*entity.Edition, error)
}

// ActiveEditionPolicy sends documents without an edition to the single open
// edition, so they are drafted into it.
type ActiveEditionPolicy struct {
	Store ActiveEditionFinder
}

func (p ActiveEditionPolicy) Resolve(ctx context.Context, ev entity.ChangeEvent) (uuid.UUID, error) {
	if ev.DocumentType == entity.DocumentTypeEdition {
		return ev.DocumentId, nil
	}
	if ev.AggregateId != uuid.Nil {
		return ev.AggregateId, nil
	}
	active, err := p.Store.FindActiveEdition(ctx)
	if err != nil {
		return uuid.Nil, fmt.Errorf("find active edition: %w", err)
	}
	if active == nil {
		return ev.DocumentId, nil
	}
	return active.Id, nil
}

// NewAggregatePolicy maps the PIPELINE_AGGREGATE_POLICY setting to a policy.
func NewAggregatePolicy(name string, store ActiveEditionFinder) (AggregatePolicy, error) {
	switch name {
	case "", "owned":
		return OwnedAggregatePolicy{}, nil
	case "active":
		return ActiveEditionPolicy{Store: store}, nil
	}
	return nil, fmt.Errorf("unknown aggregate policy %q", name)
}
