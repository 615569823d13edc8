package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"curate-pipeline/internal/pkg/logger"
	"curate-pipeline/pkg/events"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ClusterChannel is the Redis channel bridge instances mirror events on.
const ClusterChannel = "pipeline_bridge_events"

type clusterMessage struct {
	Origin   string          `json:"origin"`
	Envelope json.RawMessage `json:"envelope"`
}

// Hub holds the live websocket subscribers of one bridge instance. Events a
// bridge consumes are mirrored through Redis so subscribers connected to
// other instances receive them too.
type Hub struct {
	clients map[*Client]struct{}
	mu      sync.RWMutex

	// Redis connection for cross-instance fan-out. Nil on a single instance.
	rdb      *redis.Client
	instance string

	logger logger.ILogger
}

func NewHub(rdb *redis.Client, log logger.ILogger) *Hub {
	return &Hub{
		clients:  make(map[*Client]struct{}),
		rdb:      rdb,
		instance: uuid.NewString(),
		logger:   log,
	}
}

// Run relays events mirrored by other instances until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	if h.rdb == nil {
		<-ctx.Done()
		return
	}

	pubsub := h.rdb.Subscribe(ctx, ClusterChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			h.handleCluster([]byte(msg.Payload))
		}
	}
}

func (h *Hub) handleCluster(raw []byte) {
	var payload clusterMessage
	if err := json.Unmarshal(raw, &payload); err != nil {
		h.logger.Warn("Hub", "Malformed cluster message", map[string]interface{}{"error": err.Error()})
		return
	}
	if payload.Origin == h.instance {
		return
	}
	var env events.Envelope
	if err := json.Unmarshal(payload.Envelope, &env); err != nil {
		h.logger.Warn("Hub", "Malformed envelope in cluster message", map[string]interface{}{"error": err.Error()})
		return
	}
	h.sendLocal(env, payload.Envelope)
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()
	h.logger.Info("Hub", "Client registered", map[string]interface{}{
		"subscriber_id": c.SubscriberId,
		"aggregate_id":  c.AggregateId,
		"clients":       count,
	})
}

// Unregister removes c and closes its send channel. Safe to call twice.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
		close(c.Send)
	}
	h.mu.Unlock()
	if ok {
		h.logger.Info("Hub", "Client unregistered", map[string]interface{}{"subscriber_id": c.SubscriberId})
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends env to every interested local client and mirrors it to the
// other bridge instances.
func (h *Hub) Broadcast(env events.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	h.sendLocal(env, data)

	if h.rdb == nil {
		return nil
	}
	payload, err := json.Marshal(clusterMessage{Origin: h.instance, Envelope: data})
	if err != nil {
		return err
	}
	if err := h.rdb.Publish(context.Background(), ClusterChannel, payload).Err(); err != nil {
		return fmt.Errorf("mirror event to cluster: %w", err)
	}
	return nil
}

func (h *Hub) sendLocal(env events.Envelope, data []byte) {
	var slow []*Client

	h.mu.RLock()
	for client := range h.clients {
		if !client.wants(env) {
			continue
		}
		select {
		case client.Send <- data:
		default:
			slow = append(slow, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range slow {
		h.logger.Warn("Hub", "Client send buffer full, disconnecting", map[string]interface{}{
			"subscriber_id": client.SubscriberId,
		})
		h.Unregister(client)
	}
}
