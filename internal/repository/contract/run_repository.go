package contract

import (
	"context"

	"curate-pipeline/internal/entity"

	"github.com/google/uuid"
)

type RunRepository interface {
	Create(ctx context.Context, run *entity.Run) error
	Update(ctx context.Context, run *entity.Run) error
	FindById(ctx context.Context, id uuid.UUID) (*entity.Run, error)
	// FindByTrigger returns runs for a document oldest first.
	FindByTrigger(ctx context.Context, triggerId uuid.UUID) ([]*entity.Run, error)
	FindRecent(ctx context.Context, limit int) ([]*entity.Run, error)
}
