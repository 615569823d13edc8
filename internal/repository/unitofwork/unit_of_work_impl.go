package unitofwork

import (
	"context"
	"fmt"

	"curate-pipeline/internal/repository/contract"
	"curate-pipeline/internal/repository/implementation"

	"gorm.io/gorm"
)

type UnitOfWorkImpl struct {
	db *gorm.DB
	tx *gorm.DB
}

func NewUnitOfWork(db *gorm.DB) UnitOfWork {
	return &UnitOfWorkImpl{
		db: db,
	}
}

func (u *UnitOfWorkImpl) getDB() *gorm.DB {
	if u.tx != nil {
		return u.tx
	}
	return u.db
}

func (u *UnitOfWorkImpl) Begin(ctx context.Context) error {
	if u.tx != nil {
		return fmt.Errorf("transaction already started")
	}
	u.tx = u.db.WithContext(ctx).Begin()
	return u.tx.Error
}

func (u *UnitOfWorkImpl) Commit() error {
	if u.tx == nil {
		return fmt.Errorf("no transaction to commit")
	}
	err := u.tx.Commit().Error
	u.tx = nil
	return err
}

func (u *UnitOfWorkImpl) Rollback() error {
	if u.tx == nil {
		return fmt.Errorf("no transaction to rollback")
	}
	err := u.tx.Rollback().Error
	u.tx = nil
	return err
}

// Repository Accessors

func (u *UnitOfWorkImpl) ItemRepository() contract.ItemRepository {
	return implementation.NewItemRepository(u.getDB())
}

func (u *UnitOfWorkImpl) EditionRepository() contract.EditionRepository {
	return implementation.NewEditionRepository(u.getDB())
}

func (u *UnitOfWorkImpl) FeedbackRepository() contract.FeedbackRepository {
	return implementation.NewFeedbackRepository(u.getDB())
}

func (u *UnitOfWorkImpl) RevisionRepository() contract.RevisionRepository {
	return implementation.NewRevisionRepository(u.getDB())
}

func (u *UnitOfWorkImpl) ChangeRecordRepository() contract.ChangeRecordRepository {
	return implementation.NewChangeRecordRepository(u.getDB())
}

func (u *UnitOfWorkImpl) CheckpointRepository() contract.CheckpointRepository {
	return implementation.NewCheckpointRepository(u.getDB())
}

func (u *UnitOfWorkImpl) RunRepository() contract.RunRepository {
	return implementation.NewRunRepository(u.getDB())
}
