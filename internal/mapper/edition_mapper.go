package mapper

import (
	"encoding/json"
	"time"

	"curate-pipeline/internal/entity"
	"curate-pipeline/internal/model"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type EditionMapper struct{}

func NewEditionMapper() *EditionMapper {
	return &EditionMapper{}
}

func (m *EditionMapper) ToEntity(e *model.Edition) (*entity.Edition, error) {
	if e == nil {
		return nil, nil
	}

	content := map[string]any{}
	if len(e.Content) > 0 {
		if err := json.Unmarshal(e.Content, &content); err != nil {
			return nil, err
		}
	}

	var itemIds []uuid.UUID
	if len(e.ItemIds) > 0 {
		if err := json.Unmarshal(e.ItemIds, &itemIds); err != nil {
			return nil, err
		}
	}

	var deletedAt *time.Time
	if e.DeletedAt.Valid {
		t := e.DeletedAt.Time
		deletedAt = &t
	}

	var updatedAt *time.Time
	if !e.UpdatedAt.IsZero() {
		t := e.UpdatedAt
		updatedAt = &t
	}

	return &entity.Edition{
		Id:               e.Id,
		Status:           entity.EditionStatus(e.Status),
		PublishRequested: e.PublishRequested,
		Content:          content,
		ItemIds:          itemIds,
		CreatedAt:        e.CreatedAt,
		UpdatedAt:        updatedAt,
		PublishedAt:      e.PublishedAt,
		DeletedAt:        deletedAt,
		IsDeleted:        e.DeletedAt.Valid,
		Version:          e.Version,
	}, nil
}

func (m *EditionMapper) ToModel(e *entity.Edition) (*model.Edition, error) {
	if e == nil {
		return nil, nil
	}

	content := e.Content
	if content == nil {
		content = map[string]any{}
	}
	contentJSON, err := json.Marshal(content)
	if err != nil {
		return nil, err
	}

	itemIds := e.ItemIds
	if itemIds == nil {
		itemIds = []uuid.UUID{}
	}
	itemIdsJSON, err := json.Marshal(itemIds)
	if err != nil {
		return nil, err
	}

	var deletedAt gorm.DeletedAt
	if e.DeletedAt != nil {
		deletedAt = gorm.DeletedAt{Time: *e.DeletedAt, Valid: true}
	}

	var updatedAt time.Time
	if e.UpdatedAt != nil {
		updatedAt = *e.UpdatedAt
	}

	return &model.Edition{
		Id:               e.Id,
		Status:           string(e.Status),
		PublishRequested: e.PublishRequested,
		Content:          datatypes.JSON(contentJSON),
		ItemIds:          datatypes.JSON(itemIdsJSON),
		Version:          e.Version,
		PublishedAt:      e.PublishedAt,
		CreatedAt:        e.CreatedAt,
		UpdatedAt:        updatedAt,
		DeletedAt:        deletedAt,
	}, nil
}
