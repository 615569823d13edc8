package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"curate-pipeline/pkg/events"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// EnvelopeHandler processes one decoded envelope. Returning an error asks for
// redelivery.
type EnvelopeHandler func(ctx context.Context, env events.Envelope) error

// Subscriber consumes the pipeline event stream through durable consumers.
type Subscriber struct {
	nc *nats.Conn
	js jetstream.JetStream
}

func NewSubscriber(nc *nats.Conn) (*Subscriber, error) {
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}
	return &Subscriber{nc: nc, js: js}, nil
}

// Subscribe attaches handler to a durable consumer filtered by subject. The
// returned context stops consumption.
func (s *Subscriber) Subscribe(ctx context.Context, subject, durableName string, handler EnvelopeHandler) (jetstream.ConsumeContext, error) {
	if err := EnsureStream(ctx, s.js); err != nil {
		log.Printf("Warn: Failed to ensure stream '%s': %v", StreamName, err)
	}

	consumer, err := s.js.CreateOrUpdateConsumer(ctx, StreamName, jetstream.ConsumerConfig{
		Durable:       durableName,
		FilterSubject: subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		DeliverPolicy: jetstream.DeliverNewPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer: %w", err)
	}

	cc, err := consumer.Consume(func(msg jetstream.Msg) {
		var env events.Envelope
		if err := json.Unmarshal(msg.Data(), &env); err != nil || !env.Kind.Valid() {
			// Undecodable messages are never going to succeed.
			log.Printf("Dropping malformed event on %s: %v", msg.Subject(), err)
			_ = msg.Term()
			return
		}

		if err := handler(ctx, env); err != nil {
			log.Printf("Handler failed for event %s: %v", msg.Subject(), err)
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start consuming: %w", err)
	}

	log.Printf("Subscribed to %s with durable %s", subject, durableName)
	return cc, nil
}

func (s *Subscriber) Close() {
	if s.nc != nil {
		s.nc.Close()
	}
}
