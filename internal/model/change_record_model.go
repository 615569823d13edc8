package model

import (
	"time"

	"gorm.io/datatypes"
)

type ChangeRecord struct {
	Position     int64          `gorm:"primaryKey;autoIncrement"`
	DocumentType string         `gorm:"type:varchar(20);not null;index"`
	DocumentId   string         `gorm:"type:varchar(64);not null"`
	Payload      datatypes.JSON `gorm:"type:jsonb;not null"`
	CreatedAt    time.Time      `gorm:"autoCreateTime"`
}

func (ChangeRecord) TableName() string {
	return "change_records"
}

type FeedCheckpoint struct {
	Feed      string    `gorm:"type:varchar(100);primaryKey"`
	Position  int64     `gorm:"not null;default:0"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (FeedCheckpoint) TableName() string {
	return "feed_checkpoints"
}
