package memory

import (
	"context"
	"errors"
	"slices"
	"sort"
	"sync"
	"time"

	"curate-pipeline/internal/entity"
	"curate-pipeline/internal/mapper"
	"curate-pipeline/internal/repository/contract"
	"curate-pipeline/internal/repository/docstore"

	"github.com/google/uuid"
)

// DocumentStore is an in-process document store with the same version and
// transition rules as the Postgres one. It backs STORE_DRIVER=memory and the
// tests.
type DocumentStore struct {
	mu          sync.Mutex
	items       map[uuid.UUID]*entity.Item
	editions    map[uuid.UUID]*entity.Edition
	feedback    map[uuid.UUID]*entity.Feedback
	revisions   map[uuid.UUID][]*entity.Revision
	log         []entity.ChangeRecord
	checkpoints map[string]int64
	writes      int
}

var (
	_ contract.DocumentStore = (*DocumentStore)(nil)
	_ contract.ChangeFeed    = (*DocumentStore)(nil)
)

func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		items:       make(map[uuid.UUID]*entity.Item),
		editions:    make(map[uuid.UUID]*entity.Edition),
		feedback:    make(map[uuid.UUID]*entity.Feedback),
		revisions:   make(map[uuid.UUID][]*entity.Revision),
		checkpoints: make(map[string]int64),
	}
}

func (s *DocumentStore) GetItem(ctx context.Context, id uuid.UUID) (*entity.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok || item.IsDeleted {
		return nil, nil
	}
	return cloneItem(item), nil
}

func (s *DocumentStore) GetEdition(ctx context.Context, id uuid.UUID) (*entity.Edition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	edition, ok := s.editions[id]
	if !ok || edition.IsDeleted {
		return nil, nil
	}
	return edition.Clone(), nil
}

func (s *DocumentStore) GetFeedback(ctx context.Context, id uuid.UUID) (*entity.Feedback, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fb, ok := s.feedback[id]
	if !ok {
		return nil, nil
	}
	c := *fb
	return &c, nil
}

func (s *DocumentStore) FindActiveEdition(ctx context.Context) (*entity.Edition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var active *entity.Edition
	for _, e := range s.editions {
		if e.IsDeleted || e.Status == entity.EditionStatusPublished {
			continue
		}
		if active == nil || e.CreatedAt.After(active.CreatedAt) {
			active = e
		}
	}
	if active == nil {
		return nil, nil
	}
	return active.Clone(), nil
}

func (s *DocumentStore) Apply(ctx context.Context, cs *entity.ChangeSet) error {
	if cs.Empty() {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if cs.Revision != nil && cs.Edition == nil {
		return errors.New("revision without an edition write")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Check everything before touching anything so the set stays atomic.
	if cs.Item != nil {
		if err := docstore.CheckItem(s.liveItem(cs.Item.Id), cs.Item); err != nil {
			return err
		}
	}
	if cs.Edition != nil {
		if err := docstore.CheckEdition(s.liveEdition(cs.Edition.Id), cs.Edition); err != nil {
			return err
		}
	}
	if cs.Feedback != nil {
		if err := docstore.CheckFeedback(s.feedback[cs.Feedback.Id], cs.Feedback); err != nil {
			return err
		}
	}

	now := time.Now().UTC()
	if cs.Item != nil {
		cs.Item.Version++
		cs.Item.UpdatedAt = &now
		s.items[cs.Item.Id] = cloneItem(cs.Item)
		s.appendLocked(entity.DocumentTypeItem, mapper.ItemSnapshot(cs.Item))
	}
	if cs.Edition != nil {
		cs.Edition.Version++
		cs.Edition.UpdatedAt = &now
		s.editions[cs.Edition.Id] = cs.Edition.Clone()
		s.appendLocked(entity.DocumentTypeEdition, mapper.EditionSnapshot(cs.Edition))
	}
	if cs.Feedback != nil {
		cs.Feedback.Version++
		cs.Feedback.UpdatedAt = &now
		c := *cs.Feedback
		s.feedback[cs.Feedback.Id] = &c
		s.appendLocked(entity.DocumentTypeFeedback, mapper.FeedbackSnapshot(cs.Feedback))
	}
	if cs.Revision != nil {
		docstore.PrepareRevision(cs)
		revs := s.revisions[cs.Edition.Id]
		cs.Revision.Sequence = len(revs) + 1
		cs.Revision.CreatedAt = now
		s.revisions[cs.Edition.Id] = append(revs, cloneRevision(cs.Revision))
	}
	s.writes++
	return nil
}

func (s *DocumentStore) CreateItem(ctx context.Context, item *entity.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if item.Id == uuid.Nil {
		item.Id = uuid.New()
	}
	if item.Status == "" {
		item.Status = entity.ItemStatusSubmitted
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	item.Version = 1
	s.items[item.Id] = cloneItem(item)
	s.appendLocked(entity.DocumentTypeItem, mapper.ItemSnapshot(item))
	return nil
}

func (s *DocumentStore) CreateEdition(ctx context.Context, edition *entity.Edition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if edition.Id == uuid.Nil {
		edition.Id = uuid.New()
	}
	if edition.Status == "" {
		edition.Status = entity.EditionStatusCreated
	}
	if edition.Content == nil {
		edition.Content = map[string]any{}
	}
	if edition.CreatedAt.IsZero() {
		edition.CreatedAt = time.Now().UTC()
	}
	edition.Version = 1
	s.editions[edition.Id] = edition.Clone()
	s.appendLocked(entity.DocumentTypeEdition, mapper.EditionSnapshot(edition))
	return nil
}

func (s *DocumentStore) CreateFeedback(ctx context.Context, feedback *entity.Feedback) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	edition := s.liveEdition(feedback.EditionId)
	if edition == nil {
		return contract.ErrNotFound
	}
	if edition.Reopen() {
		now := time.Now().UTC()
		edition.Version++
		edition.UpdatedAt = &now
		s.appendLocked(entity.DocumentTypeEdition, mapper.EditionSnapshot(edition))
	}

	if feedback.Id == uuid.Nil {
		feedback.Id = uuid.New()
	}
	if feedback.CreatedAt.IsZero() {
		feedback.CreatedAt = time.Now().UTC()
	}
	feedback.Version = 1
	c := *feedback
	s.feedback[feedback.Id] = &c
	s.appendLocked(entity.DocumentTypeFeedback, mapper.FeedbackSnapshot(feedback))
	return nil
}

func (s *DocumentStore) Resubmit(ctx context.Context, itemId uuid.UUID) (*entity.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current := s.liveItem(itemId)
	if current == nil {
		return nil, contract.ErrNotFound
	}
	if current.Status != entity.ItemStatusFailed {
		return nil, &entity.IllegalTransitionError{
			DocumentType: entity.DocumentTypeItem,
			From:         string(current.Status),
			To:           string(entity.ItemStatusSubmitted),
		}
	}
	now := time.Now().UTC()
	current.Status = entity.ItemStatusSubmitted
	current.Version++
	current.UpdatedAt = &now
	s.appendLocked(entity.DocumentTypeItem, mapper.ItemSnapshot(current))
	s.writes++
	return cloneItem(current), nil
}

func (s *DocumentStore) DeleteEdition(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	edition := s.liveEdition(id)
	if edition == nil {
		return contract.ErrNotFound
	}
	edition.IsDeleted = true
	return nil
}

func (s *DocumentStore) ListRevisions(ctx context.Context, editionId uuid.UUID) ([]*entity.Revision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	revs := s.revisions[editionId]
	out := make([]*entity.Revision, len(revs))
	for i, rev := range revs {
		out[i] = cloneRevision(rev)
	}
	return out, nil
}

func (s *DocumentStore) GetRevision(ctx context.Context, editionId, revisionId uuid.UUID) (*entity.Revision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rev := range s.revisions[editionId] {
		if rev.Id == revisionId {
			return cloneRevision(rev), nil
		}
	}
	return nil, nil
}

func (s *DocumentStore) Backlog(ctx context.Context, itemStatuses []entity.ItemStatus) (*contract.Backlog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := &contract.Backlog{}
	for _, item := range s.items {
		if !item.IsDeleted && slices.Contains(itemStatuses, item.Status) {
			b.Items = append(b.Items, cloneItem(item))
		}
	}
	for _, fb := range s.feedback {
		if !fb.Resolved {
			c := *fb
			b.Feedback = append(b.Feedback, &c)
		}
	}
	for _, e := range s.editions {
		if !e.IsDeleted && e.PublishRequested && e.Status != entity.EditionStatusPublished {
			b.Editions = append(b.Editions, e.Clone())
		}
	}
	sort.Slice(b.Items, func(i, j int) bool { return b.Items[i].CreatedAt.Before(b.Items[j].CreatedAt) })
	sort.Slice(b.Feedback, func(i, j int) bool { return b.Feedback[i].CreatedAt.Before(b.Feedback[j].CreatedAt) })
	sort.Slice(b.Editions, func(i, j int) bool { return b.Editions[i].CreatedAt.Before(b.Editions[j].CreatedAt) })
	return b, nil
}

// Delete soft-deletes an item or edition. The pipeline then reads it as
// missing.
func (s *DocumentStore) Delete(docType entity.DocumentType, id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch docType {
	case entity.DocumentTypeItem:
		if item, ok := s.items[id]; ok {
			item.IsDeleted = true
		}
	case entity.DocumentTypeEdition:
		if edition, ok := s.editions[id]; ok {
			edition.IsDeleted = true
		}
	case entity.DocumentTypeFeedback:
		delete(s.feedback, id)
	}
}

// Writes counts successful conditional writes, creates excluded.
func (s *DocumentStore) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

func (s *DocumentStore) Tail(ctx context.Context, after int64, limit int) ([]entity.ChangeRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Positions are 1-based and dense, so the record at position p sits at
	// index p-1.
	start := int(after)
	if start < 0 {
		start = 0
	}
	if start >= len(s.log) {
		return nil, nil
	}
	end := len(s.log)
	if limit > 0 && start+limit < end {
		end = start + limit
	}
	out := make([]entity.ChangeRecord, end-start)
	copy(out, s.log[start:end])
	return out, nil
}

func (s *DocumentStore) LoadCheckpoint(ctx context.Context, feed string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.checkpoints[feed], nil
}

func (s *DocumentStore) CommitCheckpoint(ctx context.Context, feed string, position int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if position > s.checkpoints[feed] {
		s.checkpoints[feed] = position
	}
	return nil
}

// AppendRaw adds an arbitrary record to the feed, for exercising readers
// with payloads the store itself would never write.
func (s *DocumentStore) AppendRaw(docType, docId string, payload []byte) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendRecordLocked(docType, docId, payload)
}

// Items returns every live item ordered by creation time.
func (s *DocumentStore) Items() []*entity.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*entity.Item, 0, len(s.items))
	for _, item := range s.items {
		if !item.IsDeleted {
			out = append(out, cloneItem(item))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (s *DocumentStore) liveItem(id uuid.UUID) *entity.Item {
	item, ok := s.items[id]
	if !ok || item.IsDeleted {
		return nil
	}
	return item
}

func (s *DocumentStore) liveEdition(id uuid.UUID) *entity.Edition {
	edition, ok := s.editions[id]
	if !ok || edition.IsDeleted {
		return nil
	}
	return edition
}

func (s *DocumentStore) appendLocked(docType entity.DocumentType, snap mapper.DocumentSnapshot) {
	rec, err := mapper.ToChangeRecord(docType, snap)
	if err != nil {
		// A snapshot is plain data and always marshals.
		panic(err)
	}
	s.appendRecordLocked(rec.DocumentType, rec.DocumentId, rec.Payload)
}

func (s *DocumentStore) appendRecordLocked(docType, docId string, payload []byte) int64 {
	pos := int64(len(s.log) + 1)
	s.log = append(s.log, entity.ChangeRecord{
		Position:     pos,
		DocumentType: docType,
		DocumentId:   docId,
		Payload:      append([]byte(nil), payload...),
		CreatedAt:    time.Now().UTC(),
	})
	return pos
}

func cloneRevision(r *entity.Revision) *entity.Revision {
	c := *r
	c.Content = entity.CloneContent(r.Content)
	return &c
}

func cloneItem(i *entity.Item) *entity.Item {
	c := *i
	if i.Title != nil {
		t := *i.Title
		c.Title = &t
	}
	if i.Content != nil {
		t := *i.Content
		c.Content = &t
	}
	c.Review = append([]byte(nil), i.Review...)
	if i.Review == nil {
		c.Review = nil
	}
	return &c
}
