package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"curate-pipeline/internal/entity"
	"curate-pipeline/internal/repository/contract"

	"github.com/google/uuid"
)

var (
	// ErrInvalidOutput marks stage output the orchestrator cannot apply. It
	// is a stage failure, subject to retry.
	ErrInvalidOutput = errors.New("invalid stage output")
	// ErrPrecondition marks document state the stage can never act on, such
	// as a draft with no edition. Retrying cannot help, so the job fails on
	// the spot.
	ErrPrecondition = errors.New("stage precondition not met")
)

// docState is one read of everything a transition touches. Each attempt
// reads a fresh state and mutates its own copies.
type docState struct {
	item     *entity.Item
	edition  *entity.Edition
	feedback *entity.Feedback
}

// status is the pipeline status of the triggering document, or "" when it is
// gone.
func (s *docState) status(docType entity.DocumentType) string {
	switch docType {
	case entity.DocumentTypeItem:
		if s.item != nil {
			return s.item.PipelineStatus()
		}
	case entity.DocumentTypeFeedback:
		if s.feedback != nil {
			return s.feedback.PipelineStatus()
		}
	case entity.DocumentTypeEdition:
		if s.edition != nil {
			return s.edition.PipelineStatus()
		}
	}
	return ""
}

func (o *Orchestrator) load(ctx context.Context, j *job) (*docState, error) {
	st := &docState{}
	var err error
	id := j.event.DocumentId

	switch j.event.DocumentType {
	case entity.DocumentTypeItem:
		if st.item, err = o.store.GetItem(ctx, id); err != nil || st.item == nil {
			return st, err
		}
		if j.transition.Stage == entity.StageDraft {
			st.edition, err = o.store.GetEdition(ctx, draftTarget(st.item, j.aggregate))
		}
	case entity.DocumentTypeFeedback:
		if st.feedback, err = o.store.GetFeedback(ctx, id); err != nil || st.feedback == nil {
			return st, err
		}
		st.edition, err = o.store.GetEdition(ctx, st.feedback.EditionId)
	case entity.DocumentTypeEdition:
		st.edition, err = o.store.GetEdition(ctx, id)
	default:
		err = fmt.Errorf("unsupported document type %q", j.event.DocumentType)
	}
	return st, err
}

// draftTarget is the edition an item is drafted into: its own, or the one the
// aggregate policy put it under.
func draftTarget(item *entity.Item, aggregate uuid.UUID) uuid.UUID {
	if item.EditionId != uuid.Nil {
		return item.EditionId
	}
	return aggregate
}

func stageInput(t Transition, st *docState) map[string]any {
	switch t.Stage {
	case entity.StageFetch:
		return map[string]any{
			"item_id": st.item.Id,
			"url":     st.item.URL,
		}
	case entity.StageReview:
		return map[string]any{
			"item_id": st.item.Id,
			"url":     st.item.URL,
			"title":   deref(st.item.Title),
			"content": deref(st.item.Content),
		}
	case entity.StageDraft:
		in := map[string]any{
			"item_id": st.item.Id,
			"url":     st.item.URL,
			"title":   deref(st.item.Title),
			"content": deref(st.item.Content),
			"review":  st.item.Review,
		}
		if st.edition != nil {
			in["edition_id"] = st.edition.Id
			in["edition_content"] = st.edition.Content
		}
		return in
	case entity.StageEdit:
		in := map[string]any{
			"feedback_id":         st.feedback.Id,
			"section":             st.feedback.Section,
			"comment":             st.feedback.Comment,
			"learn_from_feedback": st.feedback.LearnFromFeedback,
		}
		if st.edition != nil {
			in["edition_id"] = st.edition.Id
			in["current"] = st.edition.Content[st.feedback.Section]
		}
		return in
	case entity.StagePublish:
		return map[string]any{
			"edition_id": st.edition.Id,
			"content":    st.edition.Content,
			"item_ids":   st.edition.ItemIds,
		}
	}
	return map[string]any{}
}

// precondition checks what a stage needs from the documents around the
// trigger, before the stage is invoked and again when its result is applied.
func precondition(t Transition, st *docState) error {
	switch t.Stage {
	case entity.StageDraft:
		if st.edition == nil {
			return fmt.Errorf("%w: item %s has no edition to draft into", ErrPrecondition, st.item.Id)
		}
		if st.edition.Status == entity.EditionStatusPublished {
			return fmt.Errorf("%w: edition %s is already published", ErrPrecondition, st.edition.Id)
		}
	case entity.StageEdit:
		if st.edition == nil {
			return fmt.Errorf("%w: feedback %s targets a missing edition", ErrPrecondition, st.feedback.Id)
		}
		if st.edition.Status == entity.EditionStatusPublished {
			return fmt.Errorf("%w: edition %s is published", ErrPrecondition, st.edition.Id)
		}
	}
	return nil
}

// changeSet applies a stage's output to the state read for this attempt and
// returns the conditional write that records it.
func changeSet(t Transition, st *docState, fields map[string]any, now time.Time) (*entity.ChangeSet, error) {
	switch t.Stage {
	case entity.StageFetch:
		title, err := optionalString(fields, "title")
		if err != nil {
			return nil, err
		}
		content, err := optionalString(fields, "content")
		if err != nil {
			return nil, err
		}
		if title != nil {
			st.item.Title = title
		}
		if content != nil {
			st.item.Content = content
		}
		st.item.Status = entity.ItemStatusFetching
		return &entity.ChangeSet{Item: st.item}, nil

	case entity.StageReview:
		review, err := json.Marshal(fields)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidOutput, err)
		}
		st.item.Review = review
		st.item.Status = entity.ItemStatusReviewed
		return &entity.ChangeSet{Item: st.item}, nil

	case entity.StageDraft:
		if err := precondition(t, st); err != nil {
			return nil, err
		}
		if len(fields) == 0 {
			return nil, fmt.Errorf("%w: draft produced no sections", ErrInvalidOutput)
		}
		if st.edition.Content == nil {
			st.edition.Content = map[string]any{}
		}
		for section, value := range fields {
			st.edition.Content[section] = value
		}
		if !st.edition.HasItem(st.item.Id) {
			st.edition.ItemIds = append(st.edition.ItemIds, st.item.Id)
		}
		if st.edition.Status == entity.EditionStatusCreated {
			st.edition.Status = entity.EditionStatusDrafting
		}
		st.item.EditionId = st.edition.Id
		st.item.Status = entity.ItemStatusDrafted
		return &entity.ChangeSet{
			Item:    st.item,
			Edition: st.edition,
			Revision: &entity.Revision{
				Source:    entity.RevisionSourceDraft,
				TriggerId: st.item.Id,
				Summary:   "Drafted " + st.item.URL,
			},
		}, nil

	case entity.StageEdit:
		if err := precondition(t, st); err != nil {
			return nil, err
		}
		value, ok := fields["content"]
		if !ok {
			return nil, fmt.Errorf("%w: edit output has no content", ErrInvalidOutput)
		}
		if st.edition.Content == nil {
			st.edition.Content = map[string]any{}
		}
		st.edition.Content[st.feedback.Section] = value
		st.feedback.Resolved = true
		return &entity.ChangeSet{
			Edition:  st.edition,
			Feedback: st.feedback,
			Revision: &entity.Revision{
				Source:    entity.RevisionSourceEdit,
				TriggerId: st.feedback.Id,
				Summary:   "Edited section " + st.feedback.Section,
			},
		}, nil

	case entity.StagePublish:
		if st.edition.Content == nil {
			st.edition.Content = map[string]any{}
		}
		if len(fields) > 0 {
			st.edition.Content["publication"] = fields
		}
		st.edition.Status = entity.EditionStatusPublished
		st.edition.PublishRequested = false
		st.edition.PublishedAt = &now
		return &entity.ChangeSet{Edition: st.edition}, nil
	}
	return nil, fmt.Errorf("no change set for stage %q", t.Stage)
}

// failureChangeSet is the terminal write after the last attempt fails. A nil
// set means the document is left as it is.
func failureChangeSet(t Transition, st *docState) *entity.ChangeSet {
	switch t.DocumentType {
	case entity.DocumentTypeItem:
		st.item.Status = entity.ItemStatusFailed
		return &entity.ChangeSet{Item: st.item}
	case entity.DocumentTypeEdition:
		st.edition.PublishRequested = false
		return &entity.ChangeSet{Edition: st.edition}
	}
	return nil
}

func optionalString(fields map[string]any, key string) (*string, error) {
	v, ok := fields[key]
	if !ok || v == nil {
		return nil, nil
	}
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("%w: %s must be a string, got %T", ErrInvalidOutput, key, v)
	}
	return &s, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func isConflict(err error) bool {
	return errors.Is(err, contract.ErrVersionConflict)
}
