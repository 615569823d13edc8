package docstore

import (
	"curate-pipeline/internal/entity"
	"curate-pipeline/internal/repository/contract"

	"github.com/google/uuid"
)

// CheckItem verifies a pending item write against the stored copy.
func CheckItem(current, next *entity.Item) error {
	if current == nil {
		return contract.ErrNotFound
	}
	if current.Version != next.Version {
		return &contract.ConflictError{
			DocumentType:    entity.DocumentTypeItem,
			DocumentId:      next.Id,
			ExpectedVersion: next.Version,
			CurrentVersion:  current.Version,
		}
	}
	return entity.ValidateItemChange(current, next)
}

func CheckEdition(current, next *entity.Edition) error {
	if current == nil {
		return contract.ErrNotFound
	}
	if current.Version != next.Version {
		return &contract.ConflictError{
			DocumentType:    entity.DocumentTypeEdition,
			DocumentId:      next.Id,
			ExpectedVersion: next.Version,
			CurrentVersion:  current.Version,
		}
	}
	return entity.ValidateEditionChange(current, next)
}

func CheckFeedback(current, next *entity.Feedback) error {
	if current == nil {
		return contract.ErrNotFound
	}
	if current.Version != next.Version {
		return &contract.ConflictError{
			DocumentType:    entity.DocumentTypeFeedback,
			DocumentId:      next.Id,
			ExpectedVersion: next.Version,
			CurrentVersion:  current.Version,
		}
	}
	return entity.ValidateFeedbackChange(current, next)
}

// SnapshotVersions returns a func that puts the set's versions back.
func SnapshotVersions(cs *entity.ChangeSet) func() {
	var itemV, editionV, feedbackV int64
	if cs.Item != nil {
		itemV = cs.Item.Version
	}
	if cs.Edition != nil {
		editionV = cs.Edition.Version
	}
	if cs.Feedback != nil {
		feedbackV = cs.Feedback.Version
	}
	return func() {
		if cs.Item != nil {
			cs.Item.Version = itemV
		}
		if cs.Edition != nil {
			cs.Edition.Version = editionV
		}
		if cs.Feedback != nil {
			cs.Feedback.Version = feedbackV
		}
	}
}

// PrepareRevision fills in the revision carried by cs from the edition it
// writes. The sequence is left to the store.
func PrepareRevision(cs *entity.ChangeSet) {
	rev := cs.Revision
	if rev.Id == uuid.Nil {
		rev.Id = uuid.New()
	}
	rev.EditionId = cs.Edition.Id
	rev.Content = entity.CloneContent(cs.Edition.Content)
}
