package entity

import (
	"time"

	"github.com/google/uuid"
)

// ChangeRecord is one raw row of the document change feed.
type ChangeRecord struct {
	Position     int64
	DocumentType string
	DocumentId   string
	Payload      []byte
	CreatedAt    time.Time
}

// ChangeEvent is a decoded change the orchestrator may act on.
type ChangeEvent struct {
	DocumentType   DocumentType `json:"document_type"`
	DocumentId     uuid.UUID    `json:"document_id"`
	AggregateId    uuid.UUID    `json:"aggregate_id"`
	ObservedStatus string       `json:"observed_status"`
	ChangeVersion  int64        `json:"change_version"`
}

// Key identifies the (document, status) pair an event asks to progress.
func (e ChangeEvent) Key() string {
	return string(e.DocumentType) + ":" + e.DocumentId.String() + ":" + e.ObservedStatus
}

// ChangeSet is a conditional write over any subset of the three document
// kinds. Each non-nil document carries the version it was read at.
type ChangeSet struct {
	Item     *Item
	Edition  *Edition
	Feedback *Feedback
	// Revision, when set, records the edition's new content in the same
	// write. The store fills in its id, edition, sequence, content and time.
	Revision *Revision
}

func (cs *ChangeSet) Empty() bool {
	return cs == nil || (cs.Item == nil && cs.Edition == nil && cs.Feedback == nil)
}
