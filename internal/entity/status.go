package entity

import (
	"errors"
	"fmt"
)

// DocumentType identifies which document collection a change belongs to.
type DocumentType string

const (
	DocumentTypeItem     DocumentType = "item"
	DocumentTypeEdition  DocumentType = "edition"
	DocumentTypeFeedback DocumentType = "feedback"
)

func (t DocumentType) Valid() bool {
	switch t {
	case DocumentTypeItem, DocumentTypeEdition, DocumentTypeFeedback:
		return true
	}
	return false
}

// ItemStatus is the processing status of an ingested item.
type ItemStatus string

const (
	ItemStatusSubmitted ItemStatus = "submitted"
	ItemStatusFetching  ItemStatus = "fetching"
	ItemStatusReviewed  ItemStatus = "reviewed"
	ItemStatusDrafted   ItemStatus = "drafted"
	ItemStatusFailed    ItemStatus = "failed"
)

var itemStatusOrder = map[ItemStatus]int{
	ItemStatusSubmitted: 0,
	ItemStatusFetching:  1,
	ItemStatusReviewed:  2,
	ItemStatusDrafted:   3,
}

func (s ItemStatus) Valid() bool {
	if s == ItemStatusFailed {
		return true
	}
	_, ok := itemStatusOrder[s]
	return ok
}

// CanAdvanceTo reports whether moving from s to next keeps the item moving
// forward. Any non-terminal status may jump to failed; failed and drafted are
// terminal.
func (s ItemStatus) CanAdvanceTo(next ItemStatus) bool {
	if !s.Valid() || !next.Valid() {
		return false
	}
	if s == ItemStatusFailed || s == ItemStatusDrafted {
		return false
	}
	if next == ItemStatusFailed {
		return true
	}
	return itemStatusOrder[next] > itemStatusOrder[s]
}

// EditionStatus is the lifecycle status of an edition (the aggregate).
type EditionStatus string

const (
	EditionStatusCreated   EditionStatus = "created"
	EditionStatusDrafting  EditionStatus = "drafting"
	EditionStatusInReview  EditionStatus = "in_review"
	EditionStatusPublished EditionStatus = "published"
)

var editionStatusOrder = map[EditionStatus]int{
	EditionStatusCreated:   0,
	EditionStatusDrafting:  1,
	EditionStatusInReview:  2,
	EditionStatusPublished: 3,
}

func (s EditionStatus) Valid() bool {
	_, ok := editionStatusOrder[s]
	return ok
}

// CanAdvanceTo allows staying put or moving forward, never backwards.
func (s EditionStatus) CanAdvanceTo(next EditionStatus) bool {
	if !s.Valid() || !next.Valid() {
		return false
	}
	return editionStatusOrder[next] >= editionStatusOrder[s]
}

// Pipeline statuses that exist only as derived markers, not stored columns.
const (
	FeedbackStatusUnresolved      = "unresolved"
	FeedbackStatusResolved        = "resolved"
	EditionStatusPublishRequested = "publish_requested"
)

// StageName names one processing step.
type StageName string

const (
	StageFetch   StageName = "fetch"
	StageReview  StageName = "review"
	StageDraft   StageName = "draft"
	StageEdit    StageName = "edit"
	StagePublish StageName = "publish"
)

func (s StageName) Valid() bool {
	switch s {
	case StageFetch, StageReview, StageDraft, StageEdit, StagePublish:
		return true
	}
	return false
}

// AllStages lists stages in pipeline order.
func AllStages() []StageName {
	return []StageName{StageFetch, StageReview, StageDraft, StageEdit, StagePublish}
}

// RunStatus is the outcome of one stage invocation attempt.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

var (
	ErrIllegalTransition = errors.New("illegal status transition")
	// ErrNoOpenEdition means there is no unpublished edition to put work in.
	ErrNoOpenEdition    = errors.New("no open edition")
	ErrEditionPublished = errors.New("edition is already published")
)

// IllegalTransitionError is returned when a write would move a document
// backwards through its lifecycle.
type IllegalTransitionError struct {
	DocumentType DocumentType
	From         string
	To           string
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal %s transition: %s -> %s", e.DocumentType, e.From, e.To)
}

func (e *IllegalTransitionError) Is(target error) bool {
	return target == ErrIllegalTransition
}
