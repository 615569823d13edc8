package contract

import (
	"context"

	"curate-pipeline/internal/entity"

	"github.com/google/uuid"
)

// DocumentStore is the versioned document storage the pipeline reads and
// conditionally writes. Missing or soft-deleted documents read as nil, nil.
type DocumentStore interface {
	GetItem(ctx context.Context, id uuid.UUID) (*entity.Item, error)
	GetEdition(ctx context.Context, id uuid.UUID) (*entity.Edition, error)
	GetFeedback(ctx context.Context, id uuid.UUID) (*entity.Feedback, error)
	FindActiveEdition(ctx context.Context) (*entity.Edition, error)

	// Apply writes every document in the set atomically, provided each one is
	// still at the version it carries. On success the versions are bumped in
	// place. A stale document fails the whole set with *ConflictError.
	Apply(ctx context.Context, cs *entity.ChangeSet) error

	CreateItem(ctx context.Context, item *entity.Item) error
	CreateEdition(ctx context.Context, edition *entity.Edition) error
	// CreateFeedback needs a live edition (ErrNotFound otherwise) and reopens
	// it in the same write when it is published.
	CreateFeedback(ctx context.Context, feedback *entity.Feedback) error

	// Resubmit moves a failed item back to submitted. It is the only write
	// allowed to leave the failed status.
	Resubmit(ctx context.Context, itemId uuid.UUID) (*entity.Item, error)

	DeleteEdition(ctx context.Context, id uuid.UUID) error

	// ListRevisions returns an edition's revisions in sequence order.
	ListRevisions(ctx context.Context, editionId uuid.UUID) ([]*entity.Revision, error)
	GetRevision(ctx context.Context, editionId, revisionId uuid.UUID) (*entity.Revision, error)

	// Backlog lists the live documents the pipeline may still owe work:
	// items in one of itemStatuses, unresolved feedback and editions with a
	// pending publish request.
	Backlog(ctx context.Context, itemStatuses []entity.ItemStatus) (*Backlog, error)
}

type Backlog struct {
	Items    []*entity.Item
	Feedback []*entity.Feedback
	Editions []*entity.Edition
}
