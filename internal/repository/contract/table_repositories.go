package contract

import (
	"context"

	"curate-pipeline/internal/entity"
	"curate-pipeline/internal/model"
	"curate-pipeline/internal/repository/specification"

	"github.com/google/uuid"
)

// The table repositories below back the Postgres document store. Each
// conditional update matches on the entity's current Version and bumps it.

type ItemRepository interface {
	Create(ctx context.Context, item *entity.Item) error
	UpdateIfVersion(ctx context.Context, item *entity.Item) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Item, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Item, error)
}

type EditionRepository interface {
	Create(ctx context.Context, edition *entity.Edition) error
	UpdateIfVersion(ctx context.Context, edition *entity.Edition) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Edition, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Edition, error)
	SoftDelete(ctx context.Context, id uuid.UUID) error
}

type FeedbackRepository interface {
	Create(ctx context.Context, feedback *entity.Feedback) error
	UpdateIfVersion(ctx context.Context, feedback *entity.Feedback) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Feedback, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Feedback, error)
}

type RevisionRepository interface {
	Create(ctx context.Context, rev *entity.Revision) error
	ListByEdition(ctx context.Context, editionId uuid.UUID) ([]*entity.Revision, error)
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Revision, error)
}

type ChangeRecordRepository interface {
	Lock(ctx context.Context) error
	Append(ctx context.Context, record *model.ChangeRecord) error
	Tail(ctx context.Context, after int64, limit int) ([]entity.ChangeRecord, error)
}

type CheckpointRepository interface {
	Load(ctx context.Context, feed string) (int64, error)
	Advance(ctx context.Context, feed string, position int64) error
}
