package implementation

import (
	"context"
	"errors"

	"curate-pipeline/internal/entity"
	"curate-pipeline/internal/mapper"
	"curate-pipeline/internal/model"
	"curate-pipeline/internal/repository/contract"
	"curate-pipeline/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RevisionRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.RevisionMapper
}

func NewRevisionRepository(db *gorm.DB) contract.RevisionRepository {
	return &RevisionRepositoryImpl{
		db:     db,
		mapper: mapper.NewRevisionMapper(),
	}
}

// Create numbers the revision after the edition's latest one. Callers hold
// the change feed lock, so sequences do not race.
func (r *RevisionRepositoryImpl) Create(ctx context.Context, rev *entity.Revision) error {
	var last struct{ Sequence int }
	err := r.db.WithContext(ctx).
		Model(&model.EditionRevision{}).
		Select("COALESCE(MAX(sequence), 0) AS sequence").
		Where("edition_id = ?", rev.EditionId).
		Take(&last).Error
	if err != nil {
		return err
	}
	rev.Sequence = last.Sequence + 1

	m, err := r.mapper.ToModel(rev)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	rev.Id = m.Id
	rev.CreatedAt = m.CreatedAt
	return nil
}

func (r *RevisionRepositoryImpl) ListByEdition(ctx context.Context, editionId uuid.UUID) ([]*entity.Revision, error) {
	var rows []*model.EditionRevision
	query := applySpecifications(r.db.WithContext(ctx),
		specification.ByEdition{EditionID: editionId},
		specification.OrderBy{Field: "sequence"},
	)
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*entity.Revision, len(rows))
	for i, row := range rows {
		rev, err := r.mapper.ToEntity(row)
		if err != nil {
			return nil, err
		}
		out[i] = rev
	}
	return out, nil
}

func (r *RevisionRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Revision, error) {
	var m model.EditionRevision
	if err := applySpecifications(r.db.WithContext(ctx), specs...).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m)
}
