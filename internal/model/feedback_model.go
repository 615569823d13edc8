package model

import (
	"time"

	"github.com/google/uuid"
)

type Feedback struct {
	Id                uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	EditionId         uuid.UUID `gorm:"type:uuid;not null;index"`
	Section           string    `gorm:"type:varchar(100);not null"`
	Comment           string    `gorm:"type:text;not null"`
	Resolved          bool      `gorm:"not null;default:false;index"`
	LearnFromFeedback bool      `gorm:"not null;default:true"`
	Version           int64     `gorm:"not null;default:1"`
	CreatedAt         time.Time `gorm:"autoCreateTime"`
	UpdatedAt         time.Time `gorm:"autoUpdateTime"`
}

func (Feedback) TableName() string {
	return "feedback"
}
