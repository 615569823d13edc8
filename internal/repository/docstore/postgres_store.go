package docstore

import (
	"context"
	"errors"

	"curate-pipeline/internal/entity"
	"curate-pipeline/internal/mapper"
	"curate-pipeline/internal/model"
	"curate-pipeline/internal/repository/contract"
	"curate-pipeline/internal/repository/specification"
	"curate-pipeline/internal/repository/unitofwork"

	"github.com/google/uuid"
)

// PostgresStore implements the document store and its change feed on top of
// GORM. Every mutation appends its change records inside the same
// transaction, so the feed never shows a write that was rolled back.
type PostgresStore struct {
	factory unitofwork.RepositoryFactory
}

var (
	_ contract.DocumentStore = (*PostgresStore)(nil)
	_ contract.ChangeFeed    = (*PostgresStore)(nil)
)

func NewPostgresStore(factory unitofwork.RepositoryFactory) *PostgresStore {
	return &PostgresStore{factory: factory}
}

func (s *PostgresStore) GetItem(ctx context.Context, id uuid.UUID) (*entity.Item, error) {
	return s.factory.NewUnitOfWork(ctx).ItemRepository().FindOne(ctx, specification.ByID{ID: id})
}

func (s *PostgresStore) GetEdition(ctx context.Context, id uuid.UUID) (*entity.Edition, error) {
	return s.factory.NewUnitOfWork(ctx).EditionRepository().FindOne(ctx, specification.ByID{ID: id})
}

func (s *PostgresStore) GetFeedback(ctx context.Context, id uuid.UUID) (*entity.Feedback, error) {
	return s.factory.NewUnitOfWork(ctx).FeedbackRepository().FindOne(ctx, specification.ByID{ID: id})
}

func (s *PostgresStore) FindActiveEdition(ctx context.Context) (*entity.Edition, error) {
	return s.factory.NewUnitOfWork(ctx).EditionRepository().FindOne(ctx, specification.ActiveEdition{})
}

func (s *PostgresStore) Apply(ctx context.Context, cs *entity.ChangeSet) (err error) {
	if cs.Empty() {
		return nil
	}
	if cs.Revision != nil && cs.Edition == nil {
		return errors.New("revision without an edition write")
	}

	// Versions are bumped in place by the repositories; put them back if the
	// transaction does not commit.
	restore := SnapshotVersions(cs)
	committed := false
	defer func() {
		if !committed {
			restore()
		}
	}()

	err = s.write(ctx, func(uow unitofwork.UnitOfWork) ([]*model.ChangeRecord, error) {
		var records []*model.ChangeRecord

		if cs.Item != nil {
			current, err := uow.ItemRepository().FindOne(ctx, specification.ByID{ID: cs.Item.Id})
			if err != nil {
				return nil, err
			}
			if err := CheckItem(current, cs.Item); err != nil {
				return nil, err
			}
			if err := uow.ItemRepository().UpdateIfVersion(ctx, cs.Item); err != nil {
				return nil, err
			}
			rec, err := mapper.ToChangeRecord(entity.DocumentTypeItem, mapper.ItemSnapshot(cs.Item))
			if err != nil {
				return nil, err
			}
			records = append(records, rec)
		}

		if cs.Edition != nil {
			current, err := uow.EditionRepository().FindOne(ctx, specification.ByID{ID: cs.Edition.Id})
			if err != nil {
				return nil, err
			}
			if err := CheckEdition(current, cs.Edition); err != nil {
				return nil, err
			}
			if err := uow.EditionRepository().UpdateIfVersion(ctx, cs.Edition); err != nil {
				return nil, err
			}
			rec, err := mapper.ToChangeRecord(entity.DocumentTypeEdition, mapper.EditionSnapshot(cs.Edition))
			if err != nil {
				return nil, err
			}
			records = append(records, rec)
		}

		if cs.Feedback != nil {
			current, err := uow.FeedbackRepository().FindOne(ctx, specification.ByID{ID: cs.Feedback.Id})
			if err != nil {
				return nil, err
			}
			if err := CheckFeedback(current, cs.Feedback); err != nil {
				return nil, err
			}
			if err := uow.FeedbackRepository().UpdateIfVersion(ctx, cs.Feedback); err != nil {
				return nil, err
			}
			rec, err := mapper.ToChangeRecord(entity.DocumentTypeFeedback, mapper.FeedbackSnapshot(cs.Feedback))
			if err != nil {
				return nil, err
			}
			records = append(records, rec)
		}

		if cs.Revision != nil {
			PrepareRevision(cs)
			if err := uow.RevisionRepository().Create(ctx, cs.Revision); err != nil {
				return nil, err
			}
		}
		return records, nil
	})
	if err != nil {
		return err
	}
	committed = true
	return nil
}

func (s *PostgresStore) CreateItem(ctx context.Context, item *entity.Item) error {
	if item.Status == "" {
		item.Status = entity.ItemStatusSubmitted
	}
	return s.write(ctx, func(uow unitofwork.UnitOfWork) ([]*model.ChangeRecord, error) {
		if err := uow.ItemRepository().Create(ctx, item); err != nil {
			return nil, err
		}
		return one(mapper.ToChangeRecord(entity.DocumentTypeItem, mapper.ItemSnapshot(item)))
	})
}

func (s *PostgresStore) CreateEdition(ctx context.Context, edition *entity.Edition) error {
	if edition.Status == "" {
		edition.Status = entity.EditionStatusCreated
	}
	return s.write(ctx, func(uow unitofwork.UnitOfWork) ([]*model.ChangeRecord, error) {
		if err := uow.EditionRepository().Create(ctx, edition); err != nil {
			return nil, err
		}
		return one(mapper.ToChangeRecord(entity.DocumentTypeEdition, mapper.EditionSnapshot(edition)))
	})
}

// CreateFeedback stores the feedback and, when its edition is already
// published, reopens the edition in the same transaction.
func (s *PostgresStore) CreateFeedback(ctx context.Context, feedback *entity.Feedback) error {
	return s.write(ctx, func(uow unitofwork.UnitOfWork) ([]*model.ChangeRecord, error) {
		edition, err := uow.EditionRepository().FindOne(ctx, specification.ByID{ID: feedback.EditionId})
		if err != nil {
			return nil, err
		}
		if edition == nil {
			return nil, contract.ErrNotFound
		}

		var records []*model.ChangeRecord
		if edition.Reopen() {
			if err := uow.EditionRepository().UpdateIfVersion(ctx, edition); err != nil {
				return nil, err
			}
			rec, err := mapper.ToChangeRecord(entity.DocumentTypeEdition, mapper.EditionSnapshot(edition))
			if err != nil {
				return nil, err
			}
			records = append(records, rec)
		}

		if err := uow.FeedbackRepository().Create(ctx, feedback); err != nil {
			return nil, err
		}
		rec, err := mapper.ToChangeRecord(entity.DocumentTypeFeedback, mapper.FeedbackSnapshot(feedback))
		if err != nil {
			return nil, err
		}
		return append(records, rec), nil
	})
}

func (s *PostgresStore) Resubmit(ctx context.Context, itemId uuid.UUID) (*entity.Item, error) {
	var item *entity.Item
	err := s.write(ctx, func(uow unitofwork.UnitOfWork) ([]*model.ChangeRecord, error) {
		current, err := uow.ItemRepository().FindOne(ctx, specification.ByID{ID: itemId})
		if err != nil {
			return nil, err
		}
		if current == nil {
			return nil, contract.ErrNotFound
		}
		if current.Status != entity.ItemStatusFailed {
			return nil, &entity.IllegalTransitionError{
				DocumentType: entity.DocumentTypeItem,
				From:         string(current.Status),
				To:           string(entity.ItemStatusSubmitted),
			}
		}
		current.Status = entity.ItemStatusSubmitted
		if err := uow.ItemRepository().UpdateIfVersion(ctx, current); err != nil {
			return nil, err
		}
		item = current
		return one(mapper.ToChangeRecord(entity.DocumentTypeItem, mapper.ItemSnapshot(current)))
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// DeleteEdition soft-deletes an edition. Jobs still queued for it read it
// as missing and are discarded.
func (s *PostgresStore) DeleteEdition(ctx context.Context, id uuid.UUID) error {
	return s.write(ctx, func(uow unitofwork.UnitOfWork) ([]*model.ChangeRecord, error) {
		return nil, uow.EditionRepository().SoftDelete(ctx, id)
	})
}

func (s *PostgresStore) ListRevisions(ctx context.Context, editionId uuid.UUID) ([]*entity.Revision, error) {
	return s.factory.NewUnitOfWork(ctx).RevisionRepository().ListByEdition(ctx, editionId)
}

func (s *PostgresStore) GetRevision(ctx context.Context, editionId, revisionId uuid.UUID) (*entity.Revision, error) {
	return s.factory.NewUnitOfWork(ctx).RevisionRepository().FindOne(ctx,
		specification.ByID{ID: revisionId},
		specification.ByEdition{EditionID: editionId},
	)
}

func (s *PostgresStore) Backlog(ctx context.Context, itemStatuses []entity.ItemStatus) (*contract.Backlog, error) {
	uow := s.factory.NewUnitOfWork(ctx)
	b := &contract.Backlog{}
	var err error
	if len(itemStatuses) > 0 {
		b.Items, err = uow.ItemRepository().FindAll(ctx,
			specification.ItemStatusIn{Statuses: itemStatuses},
			specification.OrderBy{Field: "created_at"},
		)
		if err != nil {
			return nil, err
		}
	}
	if b.Feedback, err = uow.FeedbackRepository().FindAll(ctx, specification.Unresolved{}, specification.OrderBy{Field: "created_at"}); err != nil {
		return nil, err
	}
	if b.Editions, err = uow.EditionRepository().FindAll(ctx, specification.PublishPending{}, specification.OrderBy{Field: "created_at"}); err != nil {
		return nil, err
	}
	return b, nil
}

// write runs fn in a transaction holding the change feed lock and appends
// the change records it returns.
func (s *PostgresStore) write(ctx context.Context, fn func(uow unitofwork.UnitOfWork) ([]*model.ChangeRecord, error)) error {
	uow := s.factory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = uow.Rollback()
		}
	}()

	if err := uow.ChangeRecordRepository().Lock(ctx); err != nil {
		return err
	}
	records, err := fn(uow)
	if err != nil {
		return err
	}
	for _, rec := range records {
		if err := uow.ChangeRecordRepository().Append(ctx, rec); err != nil {
			return err
		}
	}
	if err := uow.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

func one(rec *model.ChangeRecord, err error) ([]*model.ChangeRecord, error) {
	if err != nil {
		return nil, err
	}
	return []*model.ChangeRecord{rec}, nil
}

func (s *PostgresStore) Tail(ctx context.Context, after int64, limit int) ([]entity.ChangeRecord, error) {
	return s.factory.NewUnitOfWork(ctx).ChangeRecordRepository().Tail(ctx, after, limit)
}

func (s *PostgresStore) LoadCheckpoint(ctx context.Context, feed string) (int64, error) {
	return s.factory.NewUnitOfWork(ctx).CheckpointRepository().Load(ctx, feed)
}

func (s *PostgresStore) CommitCheckpoint(ctx context.Context, feed string, position int64) error {
	return s.factory.NewUnitOfWork(ctx).CheckpointRepository().Advance(ctx, feed, position)
}
