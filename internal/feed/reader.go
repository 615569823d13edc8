package feed

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"curate-pipeline/internal/entity"
	"curate-pipeline/internal/pipeline"
	"curate-pipeline/internal/pkg/logger"
	"curate-pipeline/internal/repository/contract"

	"github.com/cenkalti/backoff/v5"
)

const module = "FEED"

// Sink receives change events. Deliver returns once the event has been
// handed off, not once it has been processed.
type Sink interface {
	Deliver(ctx context.Context, ev entity.ChangeEvent) error
}

type ReaderOptions struct {
	Name         string
	BatchSize    int
	PollInterval time.Duration
	// Backoff for failed reads, hand-offs and commits starts at MinBackoff and
	// doubles up to MaxBackoff.
	MinBackoff time.Duration
	MaxBackoff time.Duration
	Logger     logger.ILogger
}

// Reader tails the change feed from its checkpoint and forwards the events
// the pipeline acts on. The checkpoint is committed after each batch has been
// handed off, so a crash may replay part of a batch.
type Reader struct {
	feed contract.ChangeFeed
	sink Sink
	opts ReaderOptions
	dec  *decoder

	position atomic.Int64
	stopOnce sync.Once
	stop     chan struct{}
}

func NewReader(feed contract.ChangeFeed, sink Sink, opts ReaderOptions) *Reader {
	if opts.Name == "" {
		opts.Name = "pipeline"
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	if opts.MinBackoff <= 0 {
		opts.MinBackoff = time.Second
	}
	if opts.MaxBackoff < opts.MinBackoff {
		opts.MaxBackoff = max(opts.MinBackoff, 30*time.Second)
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNopLogger()
	}
	return &Reader{
		feed: feed,
		sink: sink,
		opts: opts,
		dec:  newDecoder(),
		stop: make(chan struct{}),
	}
}

// Start loads the durable checkpoint and consumes until ctx is done or Stop
// is called.
func (r *Reader) Start(ctx context.Context) error {
	ctx, cancel := r.withStop(ctx)
	defer cancel()

	var from int64
	err := r.retry(ctx, "load checkpoint", func() error {
		var err error
		from, err = r.feed.LoadCheckpoint(ctx, r.opts.Name)
		return err
	})
	if err != nil {
		return nil
	}
	return r.run(ctx, from)
}

// StartFrom consumes from an explicit position, ignoring the stored
// checkpoint. Later commits still move the checkpoint forward only.
func (r *Reader) StartFrom(ctx context.Context, from int64) error {
	ctx, cancel := r.withStop(ctx)
	defer cancel()
	return r.run(ctx, from)
}

func (r *Reader) Stop() {
	r.stopOnce.Do(func() { close(r.stop) })
}

// Position is the last position handed off.
func (r *Reader) Position() int64 {
	return r.position.Load()
}

func (r *Reader) withStop(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	go func() {
		select {
		case <-r.stop:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

func (r *Reader) run(ctx context.Context, from int64) error {
	r.position.Store(from)
	r.opts.Logger.Info(module, "Change feed reader started", map[string]interface{}{
		"feed": r.opts.Name,
		"from": from,
	})

	for {
		if ctx.Err() != nil {
			return nil
		}

		var records []entity.ChangeRecord
		err := r.retry(ctx, "tail change feed", func() error {
			var err error
			records, err = r.feed.Tail(ctx, r.position.Load(), r.opts.BatchSize)
			return err
		})
		if err != nil {
			return nil
		}

		if len(records) == 0 {
			if !sleep(ctx, r.opts.PollInterval) {
				return nil
			}
			continue
		}

		if err := r.handBatch(ctx, records); err != nil {
			return nil
		}

		last := records[len(records)-1].Position
		err = r.retry(ctx, "commit checkpoint", func() error {
			return r.feed.CommitCheckpoint(ctx, r.opts.Name, last)
		})
		if err != nil {
			return nil
		}
		r.position.Store(last)
	}
}

// handBatch decodes and forwards one batch. Only cancellation stops it.
func (r *Reader) handBatch(ctx context.Context, records []entity.ChangeRecord) error {
	for _, rec := range records {
		ev, err := r.dec.decode(rec)
		if err != nil {
			r.opts.Logger.Warn(module, "Skipping malformed change record", map[string]interface{}{
				"position":      rec.Position,
				"document_type": rec.DocumentType,
				"error":         err.Error(),
			})
			continue
		}
		if !pipeline.Acts(ev.DocumentType, ev.ObservedStatus) {
			continue
		}
		err = r.retry(ctx, "deliver change event", func() error {
			return r.sink.Deliver(ctx, ev)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// retry runs op until it succeeds or ctx ends, backing off exponentially up
// to MaxBackoff. It only returns an error when ctx is done.
func (r *Reader) retry(ctx context.Context, what string, op func() error) error {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     r.opts.MinBackoff,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         r.opts.MaxBackoff,
	}
	b.Reset()
	for attempt := 1; ; attempt++ {
		err := op()
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		delay := b.NextBackOff()
		r.opts.Logger.Warn(module, "Change feed operation failed, backing off", map[string]interface{}{
			"operation": what,
			"attempt":   attempt,
			"delay_ms":  delay.Milliseconds(),
			"error":     err.Error(),
		})
		if !sleep(ctx, delay) {
			return ctx.Err()
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
