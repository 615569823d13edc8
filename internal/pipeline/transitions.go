package pipeline

import "curate-pipeline/internal/entity"

// Transition is one row of the pipeline state machine: a document observed
// in From runs Stage and, on success, moves to To.
type Transition struct {
	DocumentType entity.DocumentType
	From         string
	Stage        entity.StageName
	To           string
}

type transitionKey struct {
	docType entity.DocumentType
	status  string
}

var transitions = map[transitionKey]Transition{}

func init() {
	for _, t := range []Transition{
		{entity.DocumentTypeItem, string(entity.ItemStatusSubmitted), entity.StageFetch, string(entity.ItemStatusFetching)},
		{entity.DocumentTypeItem, string(entity.ItemStatusFetching), entity.StageReview, string(entity.ItemStatusReviewed)},
		{entity.DocumentTypeItem, string(entity.ItemStatusReviewed), entity.StageDraft, string(entity.ItemStatusDrafted)},
		{entity.DocumentTypeFeedback, entity.FeedbackStatusUnresolved, entity.StageEdit, entity.FeedbackStatusResolved},
		{entity.DocumentTypeEdition, entity.EditionStatusPublishRequested, entity.StagePublish, string(entity.EditionStatusPublished)},
	} {
		transitions[transitionKey{t.DocumentType, t.From}] = t
	}
}

// Lookup returns the transition for a document observed in status.
func Lookup(docType entity.DocumentType, status string) (Transition, bool) {
	t, ok := transitions[transitionKey{docType, status}]
	return t, ok
}

// Acts reports whether the orchestrator does anything for the pair. The
// change feed reader drops everything else.
func Acts(docType entity.DocumentType, status string) bool {
	_, ok := Lookup(docType, status)
	return ok
}

// Transitions lists every row, in pipeline order.
func Transitions() []Transition {
	out := make([]Transition, 0, len(transitions))
	for _, stage := range entity.AllStages() {
		for _, t := range transitions {
			if t.Stage == stage {
				out = append(out, t)
			}
		}
	}
	return out
}

// pendingItemStatuses lists the item statuses some stage still acts on.
func pendingItemStatuses() []entity.ItemStatus {
	var out []entity.ItemStatus
	for _, t := range Transitions() {
		if t.DocumentType == entity.DocumentTypeItem {
			out = append(out, entity.ItemStatus(t.From))
		}
	}
	return out
}
