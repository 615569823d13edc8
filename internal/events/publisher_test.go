package events

import (
	"context"
	"errors"
	"testing"

	"curate-pipeline/internal/pkg/logger"
	pkgEvents "curate-pipeline/pkg/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	err  error
	sent []pkgEvents.Envelope
	// ctxErrs holds ctx.Err() as seen while each Publish call was running.
	ctxErrs []error
}

func (f *fakeSender) Publish(ctx context.Context, env pkgEvents.Envelope) error {
	f.ctxErrs = append(f.ctxErrs, ctx.Err())
	f.sent = append(f.sent, env)
	return f.err
}

func TestNatsPublisherStampsTimestamp(t *testing.T) {
	sender := &fakeSender{}
	p := NewNatsPublisher(sender, logger.NewNopLogger())

	p.Publish(context.Background(), pkgEvents.Envelope{Kind: pkgEvents.KindStatusChanged, DocumentId: "d1"})

	require.Len(t, sender.sent, 1)
	assert.False(t, sender.sent[0].Timestamp.IsZero())
}

func TestNatsPublisherSwallowsErrors(t *testing.T) {
	sender := &fakeSender{err: errors.New("nats down")}
	p := NewNatsPublisher(sender, logger.NewNopLogger())

	assert.NotPanics(t, func() {
		p.Publish(context.Background(), pkgEvents.Envelope{Kind: pkgEvents.KindStageFailed})
	})
	assert.Len(t, sender.sent, 1)
}

func TestNatsPublisherOutlivesCancelledContext(t *testing.T) {
	sender := &fakeSender{}
	p := NewNatsPublisher(sender, logger.NewNopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p.Publish(ctx, pkgEvents.Envelope{Kind: pkgEvents.KindStageCompleted})

	require.Len(t, sender.ctxErrs, 1)
	assert.NoError(t, sender.ctxErrs[0])
}

func TestNilSenderIsNoop(t *testing.T) {
	p := NewNatsPublisher(nil, logger.NewNopLogger())
	assert.NotPanics(t, func() {
		p.Publish(context.Background(), pkgEvents.Envelope{})
	})
}

func TestRecorderOfKind(t *testing.T) {
	r := &Recorder{}
	r.Publish(context.Background(), pkgEvents.Envelope{Kind: pkgEvents.KindStageStarted})
	r.Publish(context.Background(), pkgEvents.Envelope{Kind: pkgEvents.KindStatusChanged})
	r.Publish(context.Background(), pkgEvents.Envelope{Kind: pkgEvents.KindStatusChanged})

	assert.Len(t, r.OfKind(pkgEvents.KindStatusChanged), 2)
	assert.Len(t, r.Envelopes(), 3)
}
