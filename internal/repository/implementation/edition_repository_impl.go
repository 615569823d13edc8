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

type EditionRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.EditionMapper
}

func NewEditionRepository(db *gorm.DB) contract.EditionRepository {
	return &EditionRepositoryImpl{
		db:     db,
		mapper: mapper.NewEditionMapper(),
	}
}

func (r *EditionRepositoryImpl) Create(ctx context.Context, edition *entity.Edition) error {
	m, err := r.mapper.ToModel(edition)
	if err != nil {
		return err
	}
	m.Version = 1
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	created, err := r.mapper.ToEntity(m)
	if err != nil {
		return err
	}
	*edition = *created
	return nil
}

func (r *EditionRepositoryImpl) UpdateIfVersion(ctx context.Context, edition *entity.Edition) error {
	expected := edition.Version
	m, err := r.mapper.ToModel(edition)
	if err != nil {
		return err
	}
	m.Version = expected + 1

	query := applySpecifications(r.db.WithContext(ctx).Model(m), specification.AtVersion{Version: expected})
	result := query.Select("*").Omit("id", "created_at", "deleted_at").Updates(m)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return conflictFor(ctx, r.db, m.TableName(), entity.DocumentTypeEdition, edition.Id, expected)
	}
	edition.Version = m.Version
	return nil
}

func (r *EditionRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Edition, error) {
	var m model.Edition
	query := r.db.WithContext(ctx)
	for _, spec := range specs {
		query = spec.Apply(query)
	}
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m)
}

func (r *EditionRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Edition, error) {
	var rows []*model.Edition
	if err := applySpecifications(r.db.WithContext(ctx), specs...).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*entity.Edition, len(rows))
	for i, row := range rows {
		e, err := r.mapper.ToEntity(row)
		if err != nil {
			return nil, err
		}
		out[i] = e
	}
	return out, nil
}

// SoftDelete stamps deleted_at; later reads skip the row.
func (r *EditionRepositoryImpl) SoftDelete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&model.Edition{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return contract.ErrNotFound
	}
	return nil
}
