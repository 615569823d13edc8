package memory

import (
	"context"
	"sort"
	"sync"

	"curate-pipeline/internal/entity"
	"curate-pipeline/internal/repository/contract"

	"github.com/google/uuid"
)

type RunRepository struct {
	mu   sync.RWMutex
	runs map[uuid.UUID]*entity.Run
	seq  map[uuid.UUID]int
	next int
}

var _ contract.RunRepository = (*RunRepository)(nil)

func NewRunRepository() *RunRepository {
	return &RunRepository{
		runs: make(map[uuid.UUID]*entity.Run),
		seq:  make(map[uuid.UUID]int),
	}
}

func (r *RunRepository) Create(ctx context.Context, run *entity.Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if run.Id == uuid.Nil {
		run.Id = uuid.New()
	}
	c := *run
	r.runs[run.Id] = &c
	r.next++
	r.seq[run.Id] = r.next
	return nil
}

func (r *RunRepository) Update(ctx context.Context, run *entity.Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.runs[run.Id]; !ok {
		return contract.ErrNotFound
	}
	c := *run
	r.runs[run.Id] = &c
	return nil
}

func (r *RunRepository) FindById(ctx context.Context, id uuid.UUID) (*entity.Run, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	run, ok := r.runs[id]
	if !ok {
		return nil, nil
	}
	c := *run
	return &c, nil
}

func (r *RunRepository) FindByTrigger(ctx context.Context, triggerId uuid.UUID) ([]*entity.Run, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*entity.Run
	for _, run := range r.runs {
		if run.TriggerId == triggerId {
			c := *run
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return r.seq[out[i].Id] < r.seq[out[j].Id] })
	return out, nil
}

func (r *RunRepository) FindRecent(ctx context.Context, limit int) ([]*entity.Run, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*entity.Run, 0, len(r.runs))
	for _, run := range r.runs {
		c := *run
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return r.seq[out[i].Id] > r.seq[out[j].Id] })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
