package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Item is one ingested URL moving through fetch, review and draft.
type Item struct {
	Id        uuid.UUID
	URL       string
	Title     *string
	Content   *string
	Review    json.RawMessage
	Status    ItemStatus
	EditionId uuid.UUID
	CreatedAt time.Time
	UpdatedAt *time.Time
	DeletedAt *time.Time
	IsDeleted bool
	Version   int64
}

func (i *Item) PipelineStatus() string {
	return string(i.Status)
}
