package stage

import (
	"context"

	"curate-pipeline/internal/entity"

	"github.com/google/uuid"
)

// Input is what a stage agent receives: the triggering document's relevant
// fields plus enough context to make retries idempotent.
type Input struct {
	Stage     entity.StageName `json:"stage"`
	TriggerId uuid.UUID        `json:"trigger_id"`
	Attempt   int              `json:"attempt"`
	Payload   map[string]any   `json:"payload"`
}

// Output is the structured slice of the target document a stage produced.
type Output struct {
	Fields map[string]any `json:"fields"`
	Usage  *entity.Usage  `json:"usage,omitempty"`
}

// Agent is one opaque stage capability.
type Agent interface {
	Invoke(ctx context.Context, in Input) (Output, error)
}

// AgentFunc adapts a plain function to Agent.
type AgentFunc func(ctx context.Context, in Input) (Output, error)

func (f AgentFunc) Invoke(ctx context.Context, in Input) (Output, error) {
	return f(ctx, in)
}
