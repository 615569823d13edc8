package unitofwork

import (
	"context"

	"curate-pipeline/internal/repository/contract"
)

type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	ItemRepository() contract.ItemRepository
	EditionRepository() contract.EditionRepository
	FeedbackRepository() contract.FeedbackRepository
	RevisionRepository() contract.RevisionRepository
	ChangeRecordRepository() contract.ChangeRecordRepository
	CheckpointRepository() contract.CheckpointRepository
	RunRepository() contract.RunRepository
}
