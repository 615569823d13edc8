package entity

import (
	"time"

	"github.com/google/uuid"
)

// Feedback is an editor comment on one section of an edition.
type Feedback struct {
	Id                uuid.UUID
	EditionId         uuid.UUID
	Section           string
	Comment           string
	Resolved          bool
	LearnFromFeedback bool
	CreatedAt         time.Time
	UpdatedAt         *time.Time
	Version           int64
}

func (f *Feedback) PipelineStatus() string {
	if f.Resolved {
		return FeedbackStatusResolved
	}
	return FeedbackStatusUnresolved
}
