package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"curate-pipeline/pkg/events"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// StreamName is the JetStream stream holding pipeline events.
const StreamName = "PIPELINE_EVENTS"

// Publisher sends envelopes to the pipeline event stream.
type Publisher struct {
	nc *nats.Conn
	js jetstream.JetStream
}

// NewPublisher wraps an open connection and makes sure the stream exists.
func NewPublisher(nc *nats.Conn) (*Publisher, error) {
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := EnsureStream(ctx, js); err != nil {
		// The stream may already exist with compatible settings.
		log.Printf("Warn: Failed to ensure stream '%s': %v", StreamName, err)
	}

	return &Publisher{nc: nc, js: js}, nil
}

// EnsureStream creates or updates the event stream. Limits retention lets
// several independent consumers read the same events.
func EnsureStream(ctx context.Context, js jetstream.JetStream) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:       StreamName,
		Subjects:   []string{events.SubjectPrefix + ".>"},
		Storage:    jetstream.FileStorage,
		Retention:  jetstream.LimitsPolicy,
		MaxAge:     24 * time.Hour,
		Duplicates: 2 * time.Minute,
	})
	return err
}

// Publish sends one envelope. The dedup key doubles as the JetStream message
// id, so retried publishes inside the duplicate window are stored once.
func (p *Publisher) Publish(ctx context.Context, env events.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}

	subject := env.Subject()
	if _, err := p.js.Publish(ctx, subject, data, jetstream.WithMsgID(env.DedupKey())); err != nil {
		return fmt.Errorf("failed to publish event to subject %s: %w", subject, err)
	}
	return nil
}

func (p *Publisher) Close() {
	if p.nc != nil {
		p.nc.Close()
	}
}
