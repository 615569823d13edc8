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

type FeedbackRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.FeedbackMapper
}

func NewFeedbackRepository(db *gorm.DB) contract.FeedbackRepository {
	return &FeedbackRepositoryImpl{
		db:     db,
		mapper: mapper.NewFeedbackMapper(),
	}
}

func (r *FeedbackRepositoryImpl) Create(ctx context.Context, feedback *entity.Feedback) error {
	m := r.mapper.ToModel(feedback)
	m.Version = 1
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*feedback = *r.mapper.ToEntity(m)
	return nil
}

func (r *FeedbackRepositoryImpl) UpdateIfVersion(ctx context.Context, feedback *entity.Feedback) error {
	expected := feedback.Version
	m := r.mapper.ToModel(feedback)
	m.Version = expected + 1

	query := applySpecifications(r.db.WithContext(ctx).Model(m), specification.AtVersion{Version: expected})
	result := query.Select("*").Omit("id", "created_at").Updates(m)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return conflictFor(ctx, r.db, m.TableName(), entity.DocumentTypeFeedback, feedback.Id, expected)
	}
	feedback.Version = m.Version
	return nil
}

func (r *FeedbackRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Feedback, error) {
	var m model.Feedback
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

func (r *FeedbackRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Feedback, error) {
	var rows []*model.Feedback
	if err := applySpecifications(r.db.WithContext(ctx), specs...).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*entity.Feedback, len(rows))
	for i, row := range rows {
		out[i] = r.mapper.ToEntity(row)
	}
	return out, nil
}
