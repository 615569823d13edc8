package feed

import (
	"encoding/json"
	"errors"
	"fmt"

	"curate-pipeline/internal/entity"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// ErrMalformedRecord marks a change record that cannot be decoded. The
// reader logs and skips it.
var ErrMalformedRecord = errors.New("malformed change record")

// changePayload is the document snapshot carried by a change record.
type changePayload struct {
	Id               uuid.UUID  `json:"id" validate:"required"`
	EditionId        *uuid.UUID `json:"edition_id"`
	Status           string     `json:"status"`
	Resolved         *bool      `json:"resolved" validate:"required_if=Kind feedback"`
	PublishRequested *bool      `json:"publish_requested"`
	Version          int64      `json:"version" validate:"gte=0"`

	Kind entity.DocumentType `json:"-" validate:"required,oneof=item edition feedback"`
}

type decoder struct {
	validate *validator.Validate
}

func newDecoder() *decoder {
	return &decoder{validate: validator.New()}
}

// decode turns a raw record into the event the orchestrator routes on.
func (d *decoder) decode(rec entity.ChangeRecord) (entity.ChangeEvent, error) {
	var p changePayload
	if err := json.Unmarshal(rec.Payload, &p); err != nil {
		return entity.ChangeEvent{}, fmt.Errorf("%w: position %d: %v", ErrMalformedRecord, rec.Position, err)
	}
	p.Kind = entity.DocumentType(rec.DocumentType)
	if err := d.validate.Struct(p); err != nil {
		return entity.ChangeEvent{}, fmt.Errorf("%w: position %d: %v", ErrMalformedRecord, rec.Position, err)
	}
	if rec.DocumentId != "" && rec.DocumentId != p.Id.String() {
		return entity.ChangeEvent{}, fmt.Errorf("%w: position %d: record id %s does not match payload id %s",
			ErrMalformedRecord, rec.Position, rec.DocumentId, p.Id)
	}

	ev := entity.ChangeEvent{
		DocumentType:  p.Kind,
		DocumentId:    p.Id,
		ChangeVersion: p.Version,
	}
	if p.EditionId != nil {
		ev.AggregateId = *p.EditionId
	}

	switch p.Kind {
	case entity.DocumentTypeItem:
		status := entity.ItemStatus(p.Status)
		if !status.Valid() {
			return entity.ChangeEvent{}, fmt.Errorf("%w: position %d: unknown item status %q", ErrMalformedRecord, rec.Position, p.Status)
		}
		ev.ObservedStatus = string(status)
	case entity.DocumentTypeFeedback:
		ev.ObservedStatus = entity.FeedbackStatusUnresolved
		if *p.Resolved {
			ev.ObservedStatus = entity.FeedbackStatusResolved
		}
	case entity.DocumentTypeEdition:
		status := entity.EditionStatus(p.Status)
		if !status.Valid() {
			return entity.ChangeEvent{}, fmt.Errorf("%w: position %d: unknown edition status %q", ErrMalformedRecord, rec.Position, p.Status)
		}
		edition := entity.Edition{Status: status, PublishRequested: p.PublishRequested != nil && *p.PublishRequested}
		ev.ObservedStatus = edition.PipelineStatus()
		ev.AggregateId = p.Id
	}
	return ev, nil
}
