package bridge

import (
	"context"
	"fmt"

	"curate-pipeline/internal/pkg/logger"
	"curate-pipeline/pkg/events"
	pktNats "curate-pipeline/pkg/nats"

	"github.com/nats-io/nats.go/jetstream"
)

const module = "BRIDGE"

// Delivery pushes an envelope to live subscribers.
type Delivery interface {
	Broadcast(env events.Envelope) error
}

// Seen tracks delivered envelope keys for a bounded time.
type Seen interface {
	MarkIfNew(key string) bool
	Forget(key string)
}

// Subscription is the durable event stream the bridge reads.
type Subscription interface {
	Subscribe(ctx context.Context, subject, durable string, handler pktNats.EnvelopeHandler) (jetstream.ConsumeContext, error)
}

// Consumer relays pipeline events to live subscribers, dropping envelopes it
// has already delivered. Redeliveries happen after bridge restarts and after
// publisher retries.
type Consumer struct {
	delivery Delivery
	seen     Seen
	logger   logger.ILogger
}

func NewConsumer(delivery Delivery, seen Seen, l logger.ILogger) *Consumer {
	if l == nil {
		l = logger.NewNopLogger()
	}
	return &Consumer{delivery: delivery, seen: seen, logger: l}
}

// Handle delivers env unless its key was delivered recently. A failed
// delivery forgets the key so the redelivered message goes through.
func (c *Consumer) Handle(ctx context.Context, env events.Envelope) error {
	key := env.DedupKey()
	if !c.seen.MarkIfNew(key) {
		c.logger.Debug(module, "Dropping duplicate event", map[string]interface{}{
			"key": key,
		})
		return nil
	}

	if err := c.delivery.Broadcast(env); err != nil {
		c.seen.Forget(key)
		c.logger.Warn(module, "Failed to deliver event", map[string]interface{}{
			"kind":        env.Kind,
			"document_id": env.DocumentId,
			"error":       err.Error(),
		})
		return fmt.Errorf("deliver %s: %w", key, err)
	}
	return nil
}

// Run attaches the consumer to every pipeline event subject. Stop the
// returned context to detach.
func (c *Consumer) Run(ctx context.Context, sub Subscription, durable string) (jetstream.ConsumeContext, error) {
	cc, err := sub.Subscribe(ctx, events.SubjectPrefix+".>", durable, c.Handle)
	if err != nil {
		return nil, err
	}
	c.logger.Info(module, "Bridge consuming pipeline events", map[string]interface{}{
		"durable": durable,
	})
	return cc, nil
}
