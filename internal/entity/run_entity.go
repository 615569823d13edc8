package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Usage holds token accounting reported by a stage agent.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Run is the audit record of one stage invocation attempt.
type Run struct {
	Id          uuid.UUID
	Stage       StageName
	TriggerId   uuid.UUID
	Attempt     int
	Status      RunStatus
	Input       json.RawMessage
	Output      json.RawMessage
	Error       *string
	Usage       *Usage
	StartedAt   time.Time
	CompletedAt *time.Time
}
