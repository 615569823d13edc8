package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// AgentRun is append-only; rows are only ever updated to close them.
type AgentRun struct {
	Id          uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Stage       string         `gorm:"type:varchar(20);not null;index"`
	TriggerId   uuid.UUID      `gorm:"type:uuid;not null;index"`
	Attempt     int            `gorm:"not null;default:1"`
	Status      string         `gorm:"type:varchar(20);not null;index"`
	Input       datatypes.JSON `gorm:"type:jsonb"`
	Output      datatypes.JSON `gorm:"type:jsonb"`
	Error       *string        `gorm:"type:text"`
	Usage       datatypes.JSON `gorm:"type:jsonb"`
	StartedAt   time.Time      `gorm:"not null;index"`
	CompletedAt *time.Time
}

func (AgentRun) TableName() string {
	return "agent_runs"
}
