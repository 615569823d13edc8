package service

import (
	"context"
	"fmt"

	"curate-pipeline/internal/dto"
	"curate-pipeline/internal/entity"
	"curate-pipeline/internal/pkg/logger"
	"curate-pipeline/internal/repository/contract"

	"github.com/google/uuid"
)

// IIngestService covers the human-triggered writes that start pipeline work:
// submitting items and feedback, creating editions and requesting publish.
// The pipeline itself picks these up from the change feed.
type IIngestService interface {
	SubmitItem(ctx context.Context, req *dto.SubmitItemRequest) (*dto.ItemResponse, error)
	ShowItem(ctx context.Context, id uuid.UUID) (*dto.ItemResponse, error)
	ResubmitItem(ctx context.Context, id uuid.UUID) (*dto.ItemResponse, error)
	CreateEdition(ctx context.Context) (*dto.EditionResponse, error)
	ShowEdition(ctx context.Context, id uuid.UUID) (*dto.EditionResponse, error)
	RequestPublish(ctx context.Context, id uuid.UUID) (*dto.EditionResponse, error)
	SubmitFeedback(ctx context.Context, req *dto.SubmitFeedbackRequest) (*dto.FeedbackResponse, error)
	DeleteEdition(ctx context.Context, id uuid.UUID) error
	ListRevisions(ctx context.Context, editionId uuid.UUID) ([]*dto.RevisionResponse, error)
	RevertEdition(ctx context.Context, editionId, revisionId uuid.UUID) (*dto.RevisionResponse, error)
}

type ingestService struct {
	store  contract.DocumentStore
	logger logger.ILogger
}

func NewIngestService(store contract.DocumentStore, logger logger.ILogger) IIngestService {
	return &ingestService{store: store, logger: logger}
}

// SubmitItem files a link under the requested edition, or under the active
// one when none is given. Published editions take no new items.
func (s *ingestService) SubmitItem(ctx context.Context, req *dto.SubmitItemRequest) (*dto.ItemResponse, error) {
	var edition *entity.Edition
	var err error
	if req.EditionId != nil {
		edition, err = s.store.GetEdition(ctx, *req.EditionId)
		if err != nil {
			return nil, err
		}
		if edition == nil {
			return nil, fmt.Errorf("edition %s: %w", req.EditionId, contract.ErrNotFound)
		}
		if edition.Status == entity.EditionStatusPublished {
			return nil, fmt.Errorf("edition %s: %w", edition.Id, entity.ErrEditionPublished)
		}
	} else {
		edition, err = s.store.FindActiveEdition(ctx)
		if err != nil {
			return nil, err
		}
		if edition == nil {
			return nil, entity.ErrNoOpenEdition
		}
	}

	item := &entity.Item{URL: req.URL, EditionId: edition.Id}

	if err := s.store.CreateItem(ctx, item); err != nil {
		return nil, err
	}
	s.logger.Info("INGEST", "Item submitted", map[string]interface{}{
		"item_id":    item.Id,
		"edition_id": item.EditionId,
	})
	return dto.ToItemResponse(item), nil
}

func (s *ingestService) ShowItem(ctx context.Context, id uuid.UUID) (*dto.ItemResponse, error) {
	item, err := s.store.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("item %s: %w", id, contract.ErrNotFound)
	}
	return dto.ToItemResponse(item), nil
}

// ResubmitItem moves a failed item back to submitted so the pipeline runs it
// again from the start.
func (s *ingestService) ResubmitItem(ctx context.Context, id uuid.UUID) (*dto.ItemResponse, error) {
	item, err := s.store.Resubmit(ctx, id)
	if err != nil {
		return nil, err
	}
	s.logger.Info("INGEST", "Item resubmitted", map[string]interface{}{"item_id": id})
	return dto.ToItemResponse(item), nil
}

func (s *ingestService) CreateEdition(ctx context.Context) (*dto.EditionResponse, error) {
	edition := &entity.Edition{}
	if err := s.store.CreateEdition(ctx, edition); err != nil {
		return nil, err
	}
	s.logger.Info("INGEST", "Edition created", map[string]interface{}{"edition_id": edition.Id})
	return dto.ToEditionResponse(edition), nil
}

func (s *ingestService) ShowEdition(ctx context.Context, id uuid.UUID) (*dto.EditionResponse, error) {
	edition, err := s.store.GetEdition(ctx, id)
	if err != nil {
		return nil, err
	}
	if edition == nil {
		return nil, fmt.Errorf("edition %s: %w", id, contract.ErrNotFound)
	}
	return dto.ToEditionResponse(edition), nil
}

// RequestPublish sets the publish marker. Asking twice is harmless; asking
// for an already published edition is a conflict.
func (s *ingestService) RequestPublish(ctx context.Context, id uuid.UUID) (*dto.EditionResponse, error) {
	edition, err := s.store.GetEdition(ctx, id)
	if err != nil {
		return nil, err
	}
	if edition == nil {
		return nil, fmt.Errorf("edition %s: %w", id, contract.ErrNotFound)
	}
	if edition.Status == entity.EditionStatusPublished {
		return nil, &entity.IllegalTransitionError{
			DocumentType: entity.DocumentTypeEdition,
			From:         string(edition.Status),
			To:           entity.EditionStatusPublishRequested,
		}
	}
	if edition.PublishRequested {
		return dto.ToEditionResponse(edition), nil
	}

	edition.PublishRequested = true
	if err := s.store.Apply(ctx, &entity.ChangeSet{Edition: edition}); err != nil {
		return nil, err
	}
	s.logger.Info("INGEST", "Publish requested", map[string]interface{}{"edition_id": id})
	return dto.ToEditionResponse(edition), nil
}

func (s *ingestService) SubmitFeedback(ctx context.Context, req *dto.SubmitFeedbackRequest) (*dto.FeedbackResponse, error) {
	edition, err := s.store.GetEdition(ctx, req.EditionId)
	if err != nil {
		return nil, err
	}
	if edition == nil {
		return nil, fmt.Errorf("edition %s: %w", req.EditionId, contract.ErrNotFound)
	}

	feedback := &entity.Feedback{
		EditionId:         edition.Id,
		Section:           req.Section,
		Comment:           req.Comment,
		LearnFromFeedback: req.LearnFromFeedback,
	}
	// The store reopens a published edition in the same write.
	if err := s.store.CreateFeedback(ctx, feedback); err != nil {
		return nil, err
	}
	s.logger.Info("INGEST", "Feedback submitted", map[string]interface{}{
		"feedback_id": feedback.Id,
		"edition_id":  edition.Id,
		"section":     req.Section,
		"reopened":    edition.Status == entity.EditionStatusPublished,
	})
	return dto.ToFeedbackResponse(feedback), nil
}

func (s *ingestService) DeleteEdition(ctx context.Context, id uuid.UUID) error {
	if err := s.store.DeleteEdition(ctx, id); err != nil {
		return fmt.Errorf("edition %s: %w", id, err)
	}
	s.logger.Info("INGEST", "Edition deleted", map[string]interface{}{"edition_id": id})
	return nil
}

// ListRevisions returns the edition's revisions oldest first, each with the
// section changes against the one before it.
func (s *ingestService) ListRevisions(ctx context.Context, editionId uuid.UUID) ([]*dto.RevisionResponse, error) {
	if _, err := s.ShowEdition(ctx, editionId); err != nil {
		return nil, err
	}
	revs, err := s.store.ListRevisions(ctx, editionId)
	if err != nil {
		return nil, err
	}
	diffs := entity.DiffRevisions(revs)
	out := make([]*dto.RevisionResponse, len(revs))
	for i, rev := range revs {
		out[i] = dto.ToRevisionResponse(rev, diffs[i].Sections)
	}
	return out, nil
}

// RevertEdition puts an earlier revision's content back and records the
// revert as a new revision, so history only grows.
func (s *ingestService) RevertEdition(ctx context.Context, editionId, revisionId uuid.UUID) (*dto.RevisionResponse, error) {
	edition, err := s.store.GetEdition(ctx, editionId)
	if err != nil {
		return nil, err
	}
	if edition == nil {
		return nil, fmt.Errorf("edition %s: %w", editionId, contract.ErrNotFound)
	}
	if edition.Status == entity.EditionStatusPublished {
		return nil, fmt.Errorf("edition %s: %w", editionId, entity.ErrEditionPublished)
	}
	target, err := s.store.GetRevision(ctx, editionId, revisionId)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, fmt.Errorf("revision %s: %w", revisionId, contract.ErrNotFound)
	}

	edition.Content = entity.CloneContent(target.Content)
	rev := &entity.Revision{
		Source:    entity.RevisionSourceRevert,
		TriggerId: target.Id,
		Summary:   fmt.Sprintf("Reverted to revision #%d", target.Sequence),
	}
	if err := s.store.Apply(ctx, &entity.ChangeSet{Edition: edition, Revision: rev}); err != nil {
		return nil, err
	}
	s.logger.Info("INGEST", "Edition reverted", map[string]interface{}{
		"edition_id":  editionId,
		"revision_id": revisionId,
		"sequence":    rev.Sequence,
	})
	return dto.ToRevisionResponse(rev, nil), nil
}
