package runs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"curate-pipeline/internal/entity"
	"curate-pipeline/internal/repository/contract"

	"github.com/google/uuid"
)

// Tracker records one Run per stage invocation attempt. It holds no business
// logic; the orchestrator decides what to record.
type Tracker struct {
	repo contract.RunRepository
	now  func() time.Time
}

func NewTracker(repo contract.RunRepository) *Tracker {
	return &Tracker{
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (t *Tracker) StartRun(ctx context.Context, stage entity.StageName, triggerId uuid.UUID, attempt int, input any) (uuid.UUID, error) {
	raw, err := marshal(input)
	if err != nil {
		return uuid.Nil, fmt.Errorf("encode run input: %w", err)
	}
	run := &entity.Run{
		Id:        uuid.New(),
		Stage:     stage,
		TriggerId: triggerId,
		Attempt:   attempt,
		Status:    entity.RunStatusRunning,
		Input:     raw,
		StartedAt: t.now(),
	}
	if err := t.repo.Create(ctx, run); err != nil {
		return uuid.Nil, err
	}
	return run.Id, nil
}

func (t *Tracker) CompleteRun(ctx context.Context, runId uuid.UUID, output any, usage *entity.Usage) error {
	raw, err := marshal(output)
	if err != nil {
		return fmt.Errorf("encode run output: %w", err)
	}
	return t.finish(ctx, runId, func(run *entity.Run) {
		run.Status = entity.RunStatusCompleted
		run.Output = raw
		run.Usage = NormalizeUsage(usage)
	})
}

func (t *Tracker) FailRun(ctx context.Context, runId uuid.UUID, cause error) error {
	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}
	return t.finish(ctx, runId, func(run *entity.Run) {
		run.Status = entity.RunStatusFailed
		run.Error = &msg
	})
}

func (t *Tracker) ListByTrigger(ctx context.Context, triggerId uuid.UUID) ([]*entity.Run, error) {
	return t.repo.FindByTrigger(ctx, triggerId)
}

func (t *Tracker) Recent(ctx context.Context, limit int) ([]*entity.Run, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	return t.repo.FindRecent(ctx, limit)
}

func (t *Tracker) finish(ctx context.Context, runId uuid.UUID, apply func(*entity.Run)) error {
	run, err := t.repo.FindById(ctx, runId)
	if err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("run %s: %w", runId, contract.ErrNotFound)
	}
	if run.Status != entity.RunStatusRunning {
		return fmt.Errorf("run %s already %s", runId, run.Status)
	}
	apply(run)
	completed := t.now()
	run.CompletedAt = &completed
	return t.repo.Update(ctx, run)
}

// NormalizeUsage fills in the total when an agent reports only the parts.
func NormalizeUsage(u *entity.Usage) *entity.Usage {
	if u == nil {
		return nil
	}
	c := *u
	if c.TotalTokens == 0 {
		c.TotalTokens = c.InputTokens + c.OutputTokens
	}
	return &c
}

func marshal(v any) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	if raw, ok := v.(json.RawMessage); ok {
		return raw, nil
	}
	return json.Marshal(v)
}
