package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Edition struct {
	Id               uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Status           string         `gorm:"type:varchar(20);not null;index"`
	PublishRequested bool           `gorm:"not null;default:false"`
	Content          datatypes.JSON `gorm:"type:jsonb"`
	ItemIds          datatypes.JSON `gorm:"type:jsonb"`
	Version          int64          `gorm:"not null;default:1"`
	PublishedAt      *time.Time
	CreatedAt        time.Time      `gorm:"autoCreateTime;index"`
	UpdatedAt        time.Time      `gorm:"autoUpdateTime"`
	DeletedAt        gorm.DeletedAt `gorm:"index"`
}

func (Edition) TableName() string {
	return "editions"
}
