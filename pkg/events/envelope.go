package events

import (
	"strings"
	"time"
)

// Kind is the lifecycle event type carried by an Envelope.
type Kind string

const (
	KindStageStarted   Kind = "stage-started"
	KindStageCompleted Kind = "stage-completed"
	KindStageFailed    Kind = "stage-failed"
	KindStatusChanged  Kind = "status-changed"
)

func (k Kind) Valid() bool {
	switch k {
	case KindStageStarted, KindStageCompleted, KindStageFailed, KindStatusChanged:
		return true
	}
	return false
}

// SubjectPrefix is the root of every pipeline event subject.
const SubjectPrefix = "pipeline.events"

// Envelope is the wire form of a pipeline lifecycle event.
type Envelope struct {
	Kind         Kind      `json:"kind"`
	DocumentType string    `json:"document_type"`
	DocumentId   string    `json:"document_id"`
	AggregateId  string    `json:"aggregate_id,omitempty"`
	Status       string    `json:"status"`
	Stage        string    `json:"stage,omitempty"`
	RunId        string    `json:"run_id,omitempty"`
	Attempt      int       `json:"attempt,omitempty"`
	Error        string    `json:"error,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// Subject is the topic the envelope is published on.
func (e Envelope) Subject() string {
	return SubjectPrefix + "." + string(e.Kind)
}

// DedupKey identifies one logical event. Redeliveries of the same event
// share it; a later run for the same document and status does not.
func (e Envelope) DedupKey() string {
	return strings.Join([]string{string(e.Kind), e.DocumentId, e.Status, e.RunId}, "|")
}
