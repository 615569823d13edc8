package feed

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"curate-pipeline/internal/entity"
	"curate-pipeline/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type handlerFunc func(ctx context.Context, ev entity.ChangeEvent) error

func (f handlerFunc) Handle(ctx context.Context, ev entity.ChangeEvent) error { return f(ctx, ev) }

func TestBus_DeliverWithoutConsumer(t *testing.T) {
	bus := NewBus(logger.NewNopLogger())
	defer bus.Close()

	err := bus.Deliver(context.Background(), entity.ChangeEvent{DocumentId: uuid.New()})
	assert.ErrorIs(t, err, ErrNoConsumer)
}

func TestBus_DeliversInOrder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bus := NewBus(logger.NewNopLogger())
	defer bus.Close()

	var mu sync.Mutex
	var got []uuid.UUID
	require.NoError(t, bus.Consume(ctx, handlerFunc(func(_ context.Context, ev entity.ChangeEvent) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, ev.DocumentId)
		return nil
	})))

	want := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	for _, id := range want {
		require.NoError(t, bus.Deliver(ctx, entity.ChangeEvent{
			DocumentType:   entity.DocumentTypeItem,
			DocumentId:     id,
			ObservedStatus: "submitted",
		}))
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, want, got)
}

func TestBus_RedeliversRejectedEvent(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bus := NewBus(logger.NewNopLogger())
	bus.nackDelay = time.Millisecond
	defer bus.Close()

	var mu sync.Mutex
	calls := 0
	require.NoError(t, bus.Consume(ctx, handlerFunc(func(_ context.Context, ev entity.ChangeEvent) error {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls < 3 {
			return errors.New("not now")
		}
		return nil
	})))

	require.NoError(t, bus.Deliver(ctx, entity.ChangeEvent{DocumentId: uuid.New()}))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 3, calls)
}
