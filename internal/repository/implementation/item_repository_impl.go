package implementation

import (
	"context"
	"errors"

	"curate-pipeline/internal/entity"
	"curate-pipeline/internal/mapper"
	"curate-pipeline/internal/model"
	"curate-pipeline/internal/repository/contract"
	"curate-pipeline/internal/repository/specification"

	"gorm.io/gorm"
)

type ItemRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.ItemMapper
}

func NewItemRepository(db *gorm.DB) contract.ItemRepository {
	return &ItemRepositoryImpl{
		db:     db,
		mapper: mapper.NewItemMapper(),
	}
}

func (r *ItemRepositoryImpl) Create(ctx context.Context, item *entity.Item) error {
	m := r.mapper.ToModel(item)
	m.Version = 1
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*item = *r.mapper.ToEntity(m)
	return nil
}

func (r *ItemRepositoryImpl) UpdateIfVersion(ctx context.Context, item *entity.Item) error {
	expected := item.Version
	m := r.mapper.ToModel(item)
	m.Version = expected + 1

	query := applySpecifications(r.db.WithContext(ctx).Model(m), specification.AtVersion{Version: expected})
	result := query.Select("*").Omit("id", "created_at", "deleted_at").Updates(m)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return conflictFor(ctx, r.db, m.TableName(), entity.DocumentTypeItem, item.Id, expected)
	}
	item.Version = m.Version
	return nil
}

func (r *ItemRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Item, error) {
	var m model.Item
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
	return r.mapper.ToEntity(&m), nil
}

func (r *ItemRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Item, error) {
	var rows []*model.Item
	if err := applySpecifications(r.db.WithContext(ctx), specs...).Find(&rows).Error; err != nil {
		return nil, err
	}
	items := make([]*entity.Item, len(rows))
	for i, row := range rows {
		items[i] = r.mapper.ToEntity(row)
	}
	return items, nil
}
