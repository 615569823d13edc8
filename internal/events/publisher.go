package events

import (
	"context"
	"sync"
	"time"

	"curate-pipeline/internal/pkg/logger"
	pkgEvents "curate-pipeline/pkg/events"
)

// Publisher emits lifecycle events. Publishing is best effort: failures are
// logged and never reach the caller.
type Publisher interface {
	Publish(ctx context.Context, env pkgEvents.Envelope)
}

// EnvelopeSender is the transport a NatsPublisher writes to.
type EnvelopeSender interface {
	Publish(ctx context.Context, env pkgEvents.Envelope) error
}

type NatsPublisher struct {
	sender  EnvelopeSender
	logger  logger.ILogger
	timeout time.Duration
}

func NewNatsPublisher(sender EnvelopeSender, logger logger.ILogger) *NatsPublisher {
	return &NatsPublisher{
		sender:  sender,
		logger:  logger,
		timeout: 5 * time.Second,
	}
}

func (p *NatsPublisher) Publish(ctx context.Context, env pkgEvents.Envelope) {
	if p.sender == nil {
		return
	}
	if env.Timestamp.IsZero() {
		env.Timestamp = time.Now().UTC()
	}

	// The orchestrator may be mid-shutdown; the event should still go out.
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()

	if err := p.sender.Publish(pubCtx, env); err != nil {
		p.logger.Error("EVENTS", "Failed to publish event", map[string]interface{}{
			"kind":        env.Kind,
			"document_id": env.DocumentId,
			"status":      env.Status,
			"error":       err.Error(),
		})
	}
}

// NoopPublisher is used when no event channel is configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, pkgEvents.Envelope) {}

// Recorder keeps published envelopes in memory.
type Recorder struct {
	mu        sync.Mutex
	envelopes []pkgEvents.Envelope
}

func (r *Recorder) Publish(_ context.Context, env pkgEvents.Envelope) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.envelopes = append(r.envelopes, env)
}

func (r *Recorder) Envelopes() []pkgEvents.Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]pkgEvents.Envelope(nil), r.envelopes...)
}

// OfKind filters recorded envelopes by kind.
func (r *Recorder) OfKind(kind pkgEvents.Kind) []pkgEvents.Envelope {
	var out []pkgEvents.Envelope
	for _, env := range r.Envelopes() {
		if env.Kind == kind {
			out = append(out, env)
		}
	}
	return out
}
