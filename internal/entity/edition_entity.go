package entity

import (
	"time"

	"github.com/google/uuid"
)

// Edition is the shared document that stages populate section by section.
type Edition struct {
	Id               uuid.UUID
	Status           EditionStatus
	PublishRequested bool
	Content          map[string]any
	ItemIds          []uuid.UUID
	CreatedAt        time.Time
	UpdatedAt        *time.Time
	PublishedAt      *time.Time
	DeletedAt        *time.Time
	IsDeleted        bool
	Version          int64
}

// PipelineStatus folds the publish marker into the status seen by the feed.
func (e *Edition) PipelineStatus() string {
	if e.PublishRequested && e.Status != EditionStatusPublished {
		return EditionStatusPublishRequested
	}
	return string(e.Status)
}

func (e *Edition) HasItem(id uuid.UUID) bool {
	for _, existing := range e.ItemIds {
		if existing == id {
			return true
		}
	}
	return false
}

// Reopen takes a published edition back to in_review so it can be edited
// again. It is the one move against the lifecycle order and only the store
// makes it, when feedback arrives for a published edition.
func (e *Edition) Reopen() bool {
	if e.Status != EditionStatusPublished {
		return false
	}
	e.Status = EditionStatusInReview
	e.PublishRequested = false
	e.PublishedAt = nil
	return true
}

// Clone returns a copy whose content map and item list can be mutated freely.
func (e *Edition) Clone() *Edition {
	if e == nil {
		return nil
	}
	c := *e
	c.Content = make(map[string]any, len(e.Content))
	for k, v := range e.Content {
		c.Content[k] = v
	}
	c.ItemIds = append([]uuid.UUID(nil), e.ItemIds...)
	return &c
}
