package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Item struct {
	Id        uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	URL       string         `gorm:"column:url;type:text;not null"`
	Title     *string        `gorm:"type:varchar(500)"`
	Content   *string        `gorm:"type:text"`
	Review    datatypes.JSON `gorm:"type:jsonb"`
	Status    string         `gorm:"type:varchar(20);not null;index"`
	EditionId uuid.UUID      `gorm:"type:uuid;not null;index"`
	Version   int64          `gorm:"not null;default:1"`
	CreatedAt time.Time      `gorm:"autoCreateTime"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

func (Item) TableName() string {
	return "items"
}
