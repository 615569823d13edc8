package mapper

import (
	"encoding/json"

	"curate-pipeline/internal/entity"
	"curate-pipeline/internal/model"

	"gorm.io/datatypes"
)

type RevisionMapper struct{}

func NewRevisionMapper() *RevisionMapper {
	return &RevisionMapper{}
}

func (m *RevisionMapper) ToEntity(r *model.EditionRevision) (*entity.Revision, error) {
	if r == nil {
		return nil, nil
	}
	content := map[string]any{}
	if len(r.Content) > 0 {
		if err := json.Unmarshal(r.Content, &content); err != nil {
			return nil, err
		}
	}
	return &entity.Revision{
		Id:        r.Id,
		EditionId: r.EditionId,
		Sequence:  r.Sequence,
		Source:    entity.RevisionSource(r.Source),
		TriggerId: r.TriggerId,
		Content:   content,
		Summary:   r.Summary,
		CreatedAt: r.CreatedAt,
	}, nil
}

func (m *RevisionMapper) ToModel(r *entity.Revision) (*model.EditionRevision, error) {
	content := r.Content
	if content == nil {
		content = map[string]any{}
	}
	raw, err := json.Marshal(content)
	if err != nil {
		return nil, err
	}
	return &model.EditionRevision{
		Id:        r.Id,
		EditionId: r.EditionId,
		Sequence:  r.Sequence,
		Source:    string(r.Source),
		TriggerId: r.TriggerId,
		Content:   datatypes.JSON(raw),
		Summary:   r.Summary,
		CreatedAt: r.CreatedAt,
	}, nil
}
