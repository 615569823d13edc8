package contract

import (
	"context"

	"curate-pipeline/internal/entity"
)

// ChangeFeed exposes the ordered, append-only log of document mutations.
type ChangeFeed interface {
	// Tail returns up to limit records with position > after, in order.
	Tail(ctx context.Context, after int64, limit int) ([]entity.ChangeRecord, error)
	LoadCheckpoint(ctx context.Context, feed string) (int64, error)
	// CommitCheckpoint never moves a checkpoint backwards.
	CommitCheckpoint(ctx context.Context, feed string, position int64) error
}
