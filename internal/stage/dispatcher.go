package stage

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"curate-pipeline/internal/entity"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	ErrStageTimeout = errors.New("stage timed out")
	ErrUnknownStage = errors.New("unknown stage")
	ErrStagePanic   = errors.New("stage panicked")
)

// Result is the normalized outcome of one invocation. Err is nil on success.
type Result struct {
	Output   Output
	Err      error
	Duration time.Duration
}

type registration struct {
	agent   Agent
	timeout time.Duration
}

// Dispatcher is the only caller of stage agents. It is safe for concurrent
// use once registration is done.
type Dispatcher struct {
	mu             sync.RWMutex
	agents         map[entity.StageName]registration
	defaultTimeout time.Duration
	tracer         trace.Tracer
}

func NewDispatcher(defaultTimeout time.Duration) *Dispatcher {
	if defaultTimeout <= 0 {
		defaultTimeout = 60 * time.Second
	}
	return &Dispatcher{
		agents:         make(map[entity.StageName]registration),
		defaultTimeout: defaultTimeout,
		tracer:         otel.Tracer("curate-pipeline/stage"),
	}
}

// Register binds an agent to a stage. A zero timeout uses the default.
func (d *Dispatcher) Register(name entity.StageName, agent Agent, timeout time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.agents[name] = registration{agent: agent, timeout: timeout}
}

func (d *Dispatcher) lookup(name entity.StageName) (registration, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	reg, ok := d.agents[name]
	if ok && reg.timeout <= 0 {
		reg.timeout = d.defaultTimeout
	}
	return reg, ok
}

// Invoke calls the stage agent under its deadline. The agent runs on its own
// goroutine; if it ignores cancellation it is abandoned once the deadline
// passes and its late result is discarded.
func (d *Dispatcher) Invoke(ctx context.Context, name entity.StageName, in Input) Result {
	start := time.Now()
	ctx, span := d.tracer.Start(ctx, "stage."+string(name), trace.WithAttributes(
		attribute.String("stage.name", string(name)),
		attribute.String("stage.trigger_id", in.TriggerId.String()),
		attribute.Int("stage.attempt", in.Attempt),
	))
	defer span.End()

	res := d.invoke(ctx, name, in)
	res.Duration = time.Since(start)

	if res.Err != nil {
		span.RecordError(res.Err)
		span.SetStatus(codes.Error, res.Err.Error())
	}
	return res
}

func (d *Dispatcher) invoke(ctx context.Context, name entity.StageName, in Input) Result {
	reg, ok := d.lookup(name)
	if !ok {
		return Result{Err: fmt.Errorf("%w: %s", ErrUnknownStage, name)}
	}
	in.Stage = name

	callCtx, cancel := context.WithTimeout(ctx, reg.timeout)
	defer cancel()

	done := make(chan Result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- Result{Err: fmt.Errorf("%w: %s: %v\n%s", ErrStagePanic, name, r, debug.Stack())}
			}
		}()
		out, err := reg.agent.Invoke(callCtx, in)
		done <- Result{Output: out, Err: err}
	}()

	select {
	case res := <-done:
		if res.Err != nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return Result{Err: fmt.Errorf("%w: %s after %s: %v", ErrStageTimeout, name, reg.timeout, res.Err)}
		}
		return res
	case <-callCtx.Done():
		if err := ctx.Err(); err != nil {
			return Result{Err: err}
		}
		return Result{Err: fmt.Errorf("%w: %s after %s", ErrStageTimeout, name, reg.timeout)}
	}
}
