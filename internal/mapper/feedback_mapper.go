package mapper

import (
	"time"

	"curate-pipeline/internal/entity"
	"curate-pipeline/internal/model"
)

type FeedbackMapper struct{}

func NewFeedbackMapper() *FeedbackMapper {
	return &FeedbackMapper{}
}

func (m *FeedbackMapper) ToEntity(f *model.Feedback) *entity.Feedback {
	if f == nil {
		return nil
	}

	var updatedAt *time.Time
	if !f.UpdatedAt.IsZero() {
		t := f.UpdatedAt
		updatedAt = &t
	}

	return &entity.Feedback{
		Id:                f.Id,
		EditionId:         f.EditionId,
		Section:           f.Section,
		Comment:           f.Comment,
		Resolved:          f.Resolved,
		LearnFromFeedback: f.LearnFromFeedback,
		CreatedAt:         f.CreatedAt,
		UpdatedAt:         updatedAt,
		Version:           f.Version,
	}
}

func (m *FeedbackMapper) ToModel(f *entity.Feedback) *model.Feedback {
	if f == nil {
		return nil
	}

	var updatedAt time.Time
	if f.UpdatedAt != nil {
		updatedAt = *f.UpdatedAt
	}

	return &model.Feedback{
		Id:                f.Id,
		EditionId:         f.EditionId,
		Section:           f.Section,
		Comment:           f.Comment,
		Resolved:          f.Resolved,
		LearnFromFeedback: f.LearnFromFeedback,
		Version:           f.Version,
		CreatedAt:         f.CreatedAt,
		UpdatedAt:         updatedAt,
	}
}
