package mapper

import (
	"encoding/json"
	"time"

	"curate-pipeline/internal/entity"
	"curate-pipeline/internal/model"

	"github.com/google/uuid"
)

// DocumentSnapshot is the JSON payload written to the change feed for every
// document mutation. Only the fields the pipeline routes on are included.
type DocumentSnapshot struct {
	Id               uuid.UUID  `json:"id"`
	EditionId        *uuid.UUID `json:"edition_id,omitempty"`
	Status           string     `json:"status,omitempty"`
	Resolved         *bool      `json:"resolved,omitempty"`
	PublishRequested *bool      `json:"publish_requested,omitempty"`
	Version          int64      `json:"version"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

func ItemSnapshot(i *entity.Item) DocumentSnapshot {
	editionId := i.EditionId
	return DocumentSnapshot{
		Id:        i.Id,
		EditionId: &editionId,
		Status:    string(i.Status),
		Version:   i.Version,
		UpdatedAt: time.Now().UTC(),
	}
}

func EditionSnapshot(e *entity.Edition) DocumentSnapshot {
	requested := e.PublishRequested
	return DocumentSnapshot{
		Id:               e.Id,
		Status:           string(e.Status),
		PublishRequested: &requested,
		Version:          e.Version,
		UpdatedAt:        time.Now().UTC(),
	}
}

func FeedbackSnapshot(f *entity.Feedback) DocumentSnapshot {
	editionId := f.EditionId
	resolved := f.Resolved
	return DocumentSnapshot{
		Id:        f.Id,
		EditionId: &editionId,
		Resolved:  &resolved,
		Version:   f.Version,
		UpdatedAt: time.Now().UTC(),
	}
}

// ToChangeRecord wraps a snapshot as a change feed row awaiting its position.
func ToChangeRecord(docType entity.DocumentType, snap DocumentSnapshot) (*model.ChangeRecord, error) {
	payload, err := json.Marshal(snap)
	if err != nil {
		return nil, err
	}
	return &model.ChangeRecord{
		DocumentType: string(docType),
		DocumentId:   snap.Id.String(),
		Payload:      payload,
	}, nil
}

func ChangeRecordToEntity(r *model.ChangeRecord) entity.ChangeRecord {
	return entity.ChangeRecord{
		Position:     r.Position,
		DocumentType: r.DocumentType,
		DocumentId:   r.DocumentId,
		Payload:      []byte(r.Payload),
		CreatedAt:    r.CreatedAt,
	}
}
