package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type EditionRevision struct {
	Id        uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	EditionId uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_revision_edition_sequence"`
	Sequence  int            `gorm:"not null;uniqueIndex:idx_revision_edition_sequence"`
	Source    string         `gorm:"type:varchar(20);not null"`
	TriggerId uuid.UUID      `gorm:"type:uuid"`
	Content   datatypes.JSON `gorm:"type:jsonb;not null"`
	Summary   string         `gorm:"type:varchar(500)"`
	CreatedAt time.Time      `gorm:"autoCreateTime"`
}

func (EditionRevision) TableName() string {
	return "edition_revisions"
}
