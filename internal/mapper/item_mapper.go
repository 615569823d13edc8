package mapper

import (
	"time"

	"curate-pipeline/internal/entity"
	"curate-pipeline/internal/model"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ItemMapper struct{}

func NewItemMapper() *ItemMapper {
	return &ItemMapper{}
}

func (m *ItemMapper) ToEntity(i *model.Item) *entity.Item {
	if i == nil {
		return nil
	}

	var deletedAt *time.Time
	if i.DeletedAt.Valid {
		t := i.DeletedAt.Time
		deletedAt = &t
	}

	var updatedAt *time.Time
	if !i.UpdatedAt.IsZero() {
		t := i.UpdatedAt
		updatedAt = &t
	}

	return &entity.Item{
		Id:        i.Id,
		URL:       i.URL,
		Title:     i.Title,
		Content:   i.Content,
		Review:    []byte(i.Review),
		Status:    entity.ItemStatus(i.Status),
		EditionId: i.EditionId,
		CreatedAt: i.CreatedAt,
		UpdatedAt: updatedAt,
		DeletedAt: deletedAt,
		IsDeleted: i.DeletedAt.Valid,
		Version:   i.Version,
	}
}

func (m *ItemMapper) ToModel(i *entity.Item) *model.Item {
	if i == nil {
		return nil
	}

	var deletedAt gorm.DeletedAt
	if i.DeletedAt != nil {
		deletedAt = gorm.DeletedAt{Time: *i.DeletedAt, Valid: true}
	} else if i.IsDeleted {
		deletedAt = gorm.DeletedAt{Time: time.Now(), Valid: true}
	}

	var updatedAt time.Time
	if i.UpdatedAt != nil {
		updatedAt = *i.UpdatedAt
	}

	var review datatypes.JSON
	if len(i.Review) > 0 {
		review = datatypes.JSON(i.Review)
	}

	return &model.Item{
		Id:        i.Id,
		URL:       i.URL,
		Title:     i.Title,
		Content:   i.Content,
		Review:    review,
		Status:    string(i.Status),
		EditionId: i.EditionId,
		Version:   i.Version,
		CreatedAt: i.CreatedAt,
		UpdatedAt: updatedAt,
		DeletedAt: deletedAt,
	}
}
