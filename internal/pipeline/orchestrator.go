package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"curate-pipeline/internal/entity"
	"curate-pipeline/internal/events"
	"curate-pipeline/internal/pkg/logger"
	"curate-pipeline/internal/repository/contract"
	"curate-pipeline/internal/stage"
	pkgEvents "curate-pipeline/pkg/events"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
)

const module = "PIPELINE"

var ErrShuttingDown = errors.New("orchestrator is shutting down")

var (
	errSuperseded = errors.New("superseded by a concurrent change")
	errAbandoned  = errors.New("abandoned on shutdown")
)

// RunTracker is the audit log the orchestrator writes one Run per attempt to.
type RunTracker interface {
	StartRun(ctx context.Context, stage entity.StageName, triggerId uuid.UUID, attempt int, input any) (uuid.UUID, error)
	CompleteRun(ctx context.Context, runId uuid.UUID, output any, usage *entity.Usage) error
	FailRun(ctx context.Context, runId uuid.UUID, cause error) error
}

type StageInvoker interface {
	Invoke(ctx context.Context, name entity.StageName, in stage.Input) stage.Result
}

// Failure describes a document that exhausted its attempts.
type Failure struct {
	DocumentType entity.DocumentType
	DocumentId   uuid.UUID
	AggregateId  uuid.UUID
	Stage        entity.StageName
	Attempts     int
	Error        string
}

// Alerter is told about terminal failures.
type Alerter interface {
	NotifyFailure(ctx context.Context, f Failure)
}

type Options struct {
	Workers        int
	MaxAttempts    int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	Policy         AggregatePolicy
	Alerter        Alerter
	Logger         logger.ILogger
}

type job struct {
	event      entity.ChangeEvent
	transition Transition
	aggregate  uuid.UUID
	attempt    int
	// held is a stage result whose write failed on the store. The retry
	// applies it again instead of invoking the stage a second time.
	held *heldResult
}

type heldResult struct {
	runId uuid.UUID
	res   stage.Result
}

type resultKind int

const (
	resultDone resultKind = iota
	resultDiscarded
	resultFailed
	resultRejected
	resultInfra
)

type outcome struct {
	kind resultKind
	err  error
	held *heldResult
}

// Orchestrator drives documents through the transition table. Work for one
// aggregate runs strictly one job at a time in arrival order; different
// aggregates run concurrently up to the worker limit.
type Orchestrator struct {
	store     contract.DocumentStore
	runs      RunTracker
	stages    StageInvoker
	publisher events.Publisher
	policy    AggregatePolicy
	alerter   Alerter
	logger    logger.ILogger

	maxAttempts int
	retryBase   time.Duration
	retryMax    time.Duration

	sem   chan struct{}
	slots *slots

	mu       sync.Mutex
	inflight map[string]struct{}
	timers   map[*job]*time.Timer
	closing  bool

	runCtx context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	now    func() time.Time
}

func NewOrchestrator(store contract.DocumentStore, runs RunTracker, stages StageInvoker, publisher events.Publisher, opts Options) *Orchestrator {
	if opts.Workers <= 0 {
		opts.Workers = 25
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.RetryBaseDelay <= 0 {
		opts.RetryBaseDelay = 2 * time.Second
	}
	if opts.RetryMaxDelay < opts.RetryBaseDelay {
		opts.RetryMaxDelay = opts.RetryBaseDelay
	}
	if opts.Policy == nil {
		opts.Policy = OwnedAggregatePolicy{}
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNopLogger()
	}
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		store:       store,
		runs:        runs,
		stages:      stages,
		publisher:   publisher,
		policy:      opts.Policy,
		alerter:     opts.Alerter,
		logger:      opts.Logger,
		maxAttempts: opts.MaxAttempts,
		retryBase:   opts.RetryBaseDelay,
		retryMax:    opts.RetryMaxDelay,
		sem:         make(chan struct{}, opts.Workers),
		slots:       newSlots(),
		inflight:    make(map[string]struct{}),
		timers:      make(map[*job]*time.Timer),
		runCtx:      ctx,
		cancel:      cancel,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Handle accepts one change event. It returns as soon as the event is queued
// for its aggregate; stage work happens on the orchestrator's goroutines.
func (o *Orchestrator) Handle(ctx context.Context, ev entity.ChangeEvent) error {
	t, ok := Lookup(ev.DocumentType, ev.ObservedStatus)
	if !ok {
		return nil
	}

	agg, err := o.policy.Resolve(ctx, ev)
	if err != nil {
		return err
	}

	key := ev.Key()
	o.mu.Lock()
	if o.closing {
		o.mu.Unlock()
		return ErrShuttingDown
	}
	if _, dup := o.inflight[key]; dup {
		o.mu.Unlock()
		o.logger.Debug(module, "Dropping duplicate event already in flight", map[string]interface{}{
			"key": key,
		})
		return nil
	}
	o.inflight[key] = struct{}{}
	o.mu.Unlock()

	o.enqueue(&job{event: ev, transition: t, aggregate: agg, attempt: 1})
	return nil
}

// Resume queues every document the store says still has a stage owed. The
// reader commits its checkpoint once an event is queued, so work cut off by
// a shutdown is picked up here on the next start. Events already in flight
// are dropped as duplicates by Handle.
func (o *Orchestrator) Resume(ctx context.Context) (int, error) {
	b, err := o.store.Backlog(ctx, pendingItemStatuses())
	if err != nil {
		return 0, fmt.Errorf("load backlog: %w", err)
	}

	var evs []entity.ChangeEvent
	for _, item := range b.Items {
		evs = append(evs, entity.ChangeEvent{
			DocumentType:   entity.DocumentTypeItem,
			DocumentId:     item.Id,
			AggregateId:    item.EditionId,
			ObservedStatus: item.PipelineStatus(),
			ChangeVersion:  item.Version,
		})
	}
	for _, fb := range b.Feedback {
		evs = append(evs, entity.ChangeEvent{
			DocumentType:   entity.DocumentTypeFeedback,
			DocumentId:     fb.Id,
			AggregateId:    fb.EditionId,
			ObservedStatus: fb.PipelineStatus(),
			ChangeVersion:  fb.Version,
		})
	}
	for _, e := range b.Editions {
		evs = append(evs, entity.ChangeEvent{
			DocumentType:   entity.DocumentTypeEdition,
			DocumentId:     e.Id,
			AggregateId:    e.Id,
			ObservedStatus: e.PipelineStatus(),
			ChangeVersion:  e.Version,
		})
	}

	queued := 0
	for _, ev := range evs {
		if !Acts(ev.DocumentType, ev.ObservedStatus) {
			continue
		}
		if err := o.Handle(ctx, ev); err != nil {
			return queued, err
		}
		queued++
	}
	o.logger.Info(module, "Resumed outstanding work", map[string]interface{}{
		"items":    len(b.Items),
		"feedback": len(b.Feedback),
		"editions": len(b.Editions),
		"queued":   queued,
	})
	return queued, nil
}

// Pending counts queued, running and retry-waiting jobs.
func (o *Orchestrator) Pending() int {
	o.mu.Lock()
	waiting := len(o.timers)
	o.mu.Unlock()
	return o.slots.depth() + waiting
}

// Shutdown stops accepting events, runs pending retries right away and waits
// for queued work. When ctx expires first, in-flight stages are cancelled and
// their documents are left at the status they were observed in, for Resume
// to pick up on the next start.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	o.closing = true
	var fire []*job
	for j, tm := range o.timers {
		if tm.Stop() {
			delete(o.timers, j)
			fire = append(fire, j)
		}
	}
	o.mu.Unlock()

	for _, j := range fire {
		o.enqueue(j)
		o.wg.Done()
	}

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		o.cancel()
		return nil
	case <-ctx.Done():
		o.cancel()
		return ctx.Err()
	}
}

func (o *Orchestrator) enqueue(j *job) {
	if o.slots.push(j.aggregate, j) {
		o.wg.Add(1)
		go o.drain(j.aggregate)
	}
}

func (o *Orchestrator) drain(agg uuid.UUID) {
	defer o.wg.Done()
	for {
		j, ok := o.slots.peek(agg)
		if !ok {
			return
		}
		o.sem <- struct{}{}
		o.process(j)
		<-o.sem
		if !o.slots.done(agg) {
			return
		}
	}
}

func (o *Orchestrator) process(j *job) {
	ctx := o.runCtx
	if ctx.Err() != nil {
		o.abandon(j, j.held, ctx.Err())
		return
	}

	out := o.attempt(ctx, j)
	if out.kind != resultDone && out.kind != resultDiscarded && ctx.Err() != nil {
		o.abandon(j, out.held, out.err)
		return
	}

	switch out.kind {
	case resultDone, resultDiscarded:
		o.finish(j)
	case resultInfra:
		o.logger.Warn(module, "Store unavailable, retrying", map[string]interface{}{
			"document_id": j.event.DocumentId,
			"stage":       j.transition.Stage,
			"error":       out.err.Error(),
		})
		o.retry(j, j.attempt, out.held)
	case resultRejected:
		o.failTerminal(ctx, j, out.err)
		o.finish(j)
	case resultFailed:
		if j.attempt < o.maxAttempts {
			o.logger.Warn(module, "Stage attempt failed, scheduling retry", map[string]interface{}{
				"document_id": j.event.DocumentId,
				"stage":       j.transition.Stage,
				"attempt":     j.attempt,
				"error":       out.err.Error(),
			})
			o.retry(j, j.attempt+1, nil)
			return
		}
		o.failTerminal(ctx, j, out.err)
		o.finish(j)
	}
}

// attempt runs one stage invocation for j and applies its result.
func (o *Orchestrator) attempt(ctx context.Context, j *job) outcome {
	t := j.transition
	docId := j.event.DocumentId

	st, err := o.load(ctx, j)
	if err != nil {
		return outcome{kind: resultInfra, err: err, held: j.held}
	}
	if current := st.status(j.event.DocumentType); current != j.event.ObservedStatus {
		o.logger.Debug(module, "Discarding superseded event", map[string]interface{}{
			"document_id": docId,
			"observed":    j.event.ObservedStatus,
			"current":     current,
		})
		if j.held != nil {
			o.failRun(ctx, j.held.runId, errSuperseded)
		}
		return outcome{kind: resultDiscarded}
	}

	held := j.held
	if held == nil {
		if err := precondition(t, st); err != nil {
			return outcome{kind: resultRejected, err: err}
		}

		input := stageInput(t, st)
		runId, err := o.runs.StartRun(ctx, t.Stage, docId, j.attempt, input)
		if err != nil {
			return outcome{kind: resultInfra, err: fmt.Errorf("start run: %w", err)}
		}
		o.emit(ctx, j, pkgEvents.KindStageStarted, docId, j.event.DocumentType, j.event.ObservedStatus, runId, "")

		res := o.stages.Invoke(ctx, t.Stage, stage.Input{
			TriggerId: docId,
			Attempt:   j.attempt,
			Payload:   input,
		})
		if res.Err != nil {
			o.failRun(ctx, runId, res.Err)
			return outcome{kind: resultFailed, err: res.Err}
		}
		held = &heldResult{runId: runId, res: res}
	}
	runId, res := held.runId, held.res

	editionBefore := editionStatus(st)
	cs, superseded, err := o.applyWithRetry(ctx, j, st, res.Output.Fields)
	switch {
	case superseded:
		o.failRun(ctx, runId, errSuperseded)
		return outcome{kind: resultDiscarded}
	case errors.Is(err, entity.ErrIllegalTransition) || errors.Is(err, contract.ErrNotFound):
		o.failRun(ctx, runId, err)
		o.logger.Warn(module, "Document moved on before the stage result could be written", map[string]interface{}{
			"document_id": docId,
			"stage":       t.Stage,
			"error":       err.Error(),
		})
		return outcome{kind: resultDiscarded}
	case errors.Is(err, ErrPrecondition):
		o.failRun(ctx, runId, err)
		return outcome{kind: resultRejected, err: err}
	case errors.Is(err, ErrInvalidOutput) || isConflict(err):
		o.failRun(ctx, runId, err)
		return outcome{kind: resultFailed, err: err}
	case err != nil:
		// The stage succeeded; only the write failed. Keep the run open and
		// the result held for the retry.
		return outcome{kind: resultInfra, err: err, held: held}
	}

	if err := o.runs.CompleteRun(ctx, runId, res.Output.Fields, res.Output.Usage); err != nil {
		o.logger.Error(module, "Failed to complete run", map[string]interface{}{
			"run_id": runId,
			"error":  err.Error(),
		})
	}

	o.logger.Info(module, "Stage completed", map[string]interface{}{
		"document_type": j.event.DocumentType,
		"document_id":   docId,
		"stage":         t.Stage,
		"status":        t.To,
		"attempt":       j.attempt,
		"duration_ms":   res.Duration.Milliseconds(),
	})
	o.emit(ctx, j, pkgEvents.KindStageCompleted, docId, j.event.DocumentType, t.To, runId, "")
	o.emit(ctx, j, pkgEvents.KindStatusChanged, docId, j.event.DocumentType, t.To, runId, "")
	if cs.Edition != nil && j.event.DocumentType != entity.DocumentTypeEdition && cs.Edition.Status != editionBefore {
		o.emit(ctx, j, pkgEvents.KindStatusChanged, cs.Edition.Id, entity.DocumentTypeEdition, string(cs.Edition.Status), runId, "")
	}
	return outcome{kind: resultDone}
}

// applyWithRetry writes the stage result. A version conflict gets one fresh
// read and one more try; a second conflict is returned as an error.
func (o *Orchestrator) applyWithRetry(ctx context.Context, j *job, st *docState, fields map[string]any) (*entity.ChangeSet, bool, error) {
	cs, err := changeSet(j.transition, st, fields, o.now())
	if err != nil {
		return nil, false, err
	}
	err = o.store.Apply(ctx, cs)
	if err == nil || !isConflict(err) {
		return cs, false, err
	}

	o.logger.Info(module, "Version conflict, re-reading", map[string]interface{}{
		"document_id": j.event.DocumentId,
		"stage":       j.transition.Stage,
		"error":       err.Error(),
	})
	st, err = o.load(ctx, j)
	if err != nil {
		return nil, false, err
	}
	if st.status(j.event.DocumentType) != j.event.ObservedStatus {
		return nil, true, nil
	}
	cs, err = changeSet(j.transition, st, fields, o.now())
	if err != nil {
		return nil, false, err
	}
	if err := o.store.Apply(ctx, cs); err != nil {
		return nil, false, err
	}
	return cs, false, nil
}

// failTerminal records the failure state once the last attempt has failed.
func (o *Orchestrator) failTerminal(ctx context.Context, j *job, cause error) {
	docId := j.event.DocumentId
	status := j.event.ObservedStatus
	changed := false

	for try := 0; try < 2; try++ {
		st, err := o.load(ctx, j)
		if err != nil {
			o.logger.Error(module, "Failed to read document for failure write", map[string]interface{}{
				"document_id": docId,
				"error":       err.Error(),
			})
			break
		}
		if st.status(j.event.DocumentType) != j.event.ObservedStatus {
			return
		}
		cs := failureChangeSet(j.transition, st)
		if cs == nil {
			break
		}
		err = o.store.Apply(ctx, cs)
		if err == nil {
			status = st.status(j.event.DocumentType)
			changed = true
			break
		}
		if !isConflict(err) {
			o.logger.Error(module, "Failed to write failure status", map[string]interface{}{
				"document_id": docId,
				"error":       err.Error(),
			})
			break
		}
	}

	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	o.logger.Error(module, "Stage failed permanently", map[string]interface{}{
		"document_type": j.event.DocumentType,
		"document_id":   docId,
		"stage":         j.transition.Stage,
		"attempts":      j.attempt,
		"error":         msg,
	})
	o.emit(ctx, j, pkgEvents.KindStageFailed, docId, j.event.DocumentType, status, uuid.Nil, msg)
	if changed {
		o.emit(ctx, j, pkgEvents.KindStatusChanged, docId, j.event.DocumentType, status, uuid.Nil, "")
	}

	if o.alerter != nil {
		o.alerter.NotifyFailure(ctx, Failure{
			DocumentType: j.event.DocumentType,
			DocumentId:   docId,
			AggregateId:  j.aggregate,
			Stage:        j.transition.Stage,
			Attempts:     j.attempt,
			Error:        msg,
		})
	}
}

// retry re-queues j at the tail of its aggregate after the backoff delay for
// the attempt that just ran. Once shutdown has begun, stage retries are
// queued at once; store retries keep their delay.
func (o *Orchestrator) retry(j *job, nextAttempt int, held *heldResult) {
	next := &job{event: j.event, transition: j.transition, aggregate: j.aggregate, attempt: nextAttempt, held: held}
	delay := o.retryDelay(j.attempt)

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closing && nextAttempt > j.attempt {
		o.enqueue(next)
		return
	}
	o.wg.Add(1)
	o.timers[next] = time.AfterFunc(delay, func() {
		// Queue before forgetting the timer so Pending never dips to zero.
		o.enqueue(next)
		o.mu.Lock()
		delete(o.timers, next)
		o.mu.Unlock()
		o.wg.Done()
	})
}

// retryDelay grows exponentially from the base delay and is capped.
func (o *Orchestrator) retryDelay(attempt int) time.Duration {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     o.retryBase,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         o.retryMax,
	}
	b.Reset()
	delay := b.NextBackOff()
	for i := 1; i < attempt; i++ {
		delay = b.NextBackOff()
	}
	return delay
}

func (o *Orchestrator) finish(j *job) {
	o.mu.Lock()
	delete(o.inflight, j.event.Key())
	o.mu.Unlock()
}

// abandon drops j on shutdown. The document keeps the status it was observed
// in and Resume queues it again on the next start.
func (o *Orchestrator) abandon(j *job, held *heldResult, cause error) {
	details := map[string]interface{}{
		"document_id": j.event.DocumentId,
		"stage":       j.transition.Stage,
		"attempt":     j.attempt,
	}
	if cause != nil {
		details["error"] = cause.Error()
	}
	o.logger.Warn(module, "Abandoning job on shutdown", details)
	if held != nil {
		o.failRun(o.runCtx, held.runId, errAbandoned)
	}
	o.finish(j)
}

// failRun closes a run as failed. It still writes once the orchestrator's
// context is cancelled so no run is left running.
func (o *Orchestrator) failRun(ctx context.Context, runId uuid.UUID, cause error) {
	if err := o.runs.FailRun(context.WithoutCancel(ctx), runId, cause); err != nil {
		o.logger.Error(module, "Failed to record run failure", map[string]interface{}{
			"run_id": runId,
			"error":  err.Error(),
		})
	}
}

func (o *Orchestrator) emit(ctx context.Context, j *job, kind pkgEvents.Kind, docId uuid.UUID, docType entity.DocumentType, status string, runId uuid.UUID, errMsg string) {
	env := pkgEvents.Envelope{
		Kind:         kind,
		DocumentType: string(docType),
		DocumentId:   docId.String(),
		AggregateId:  j.aggregate.String(),
		Status:       status,
		Stage:        string(j.transition.Stage),
		Attempt:      j.attempt,
		Error:        errMsg,
		Timestamp:    o.now(),
	}
	if runId != uuid.Nil {
		env.RunId = runId.String()
	}
	o.publisher.Publish(ctx, env)
}

func editionStatus(st *docState) entity.EditionStatus {
	if st.edition == nil {
		return ""
	}
	return st.edition.Status
}
