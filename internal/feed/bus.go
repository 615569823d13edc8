package feed

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"time"

	"curate-pipeline/internal/entity"
	"curate-pipeline/internal/pkg/logger"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

const topicChanges = "pipeline.changes"

var ErrNoConsumer = errors.New("change bus has no consumer")

// Handler is what the bus hands events to; the orchestrator satisfies it.
type Handler interface {
	Handle(ctx context.Context, ev entity.ChangeEvent) error
}

// Bus carries change events from the reader to the orchestrator over an
// in-process watermill topic. Publishing blocks until the consumer acks, so
// events reach the orchestrator in feed order.
type Bus struct {
	pubSub     *gochannel.GoChannel
	logger     logger.ILogger
	subscribed atomic.Bool
	nackDelay  time.Duration
}

func NewBus(l logger.ILogger) *Bus {
	return &Bus{
		pubSub: gochannel.NewGoChannel(
			gochannel.Config{BlockPublishUntilSubscriberAck: true},
			watermill.NewStdLogger(false, false),
		),
		logger:    l,
		nackDelay: 500 * time.Millisecond,
	}
}

// Deliver publishes ev and returns once the consumer has accepted it.
func (b *Bus) Deliver(ctx context.Context, ev entity.ChangeEvent) error {
	if !b.subscribed.Load() {
		return ErrNoConsumer
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)
	return b.pubSub.Publish(topicChanges, msg)
}

// Consume subscribes handler to the topic. Events the handler rejects are
// redelivered after a short pause.
func (b *Bus) Consume(ctx context.Context, handler Handler) error {
	messages, err := b.pubSub.Subscribe(ctx, topicChanges)
	if err != nil {
		return err
	}
	b.subscribed.Store(true)

	go func() {
		for msg := range messages {
			b.process(ctx, handler, msg)
		}
		b.subscribed.Store(false)
	}()
	return nil
}

func (b *Bus) process(ctx context.Context, handler Handler, msg *message.Message) {
	var ev entity.ChangeEvent
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		b.logger.Error(module, "Failed to unmarshal change event", map[string]interface{}{
			"error": err.Error(),
		})
		msg.Ack()
		return
	}

	if err := handler.Handle(ctx, ev); err != nil {
		b.logger.Warn(module, "Orchestrator rejected change event", map[string]interface{}{
			"document_id": ev.DocumentId,
			"status":      ev.ObservedStatus,
			"error":       err.Error(),
		})
		select {
		case <-time.After(b.nackDelay):
		case <-ctx.Done():
		}
		msg.Nack()
		return
	}
	msg.Ack()
}

// Close unblocks any pending Deliver and stops the consumer.
func (b *Bus) Close() error {
	return b.pubSub.Close()
}
