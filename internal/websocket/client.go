package websocket

import (
	"time"

	"curate-pipeline/pkg/events"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 256
)

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	Hub  *Hub
	Conn *websocket.Conn

	// SubscriberId comes from the handshake token, or is random when the
	// bridge runs without authentication.
	SubscriberId string

	// AggregateId narrows the stream to one edition. uuid.Nil means all.
	AggregateId uuid.UUID

	// Buffered channel of outbound messages.
	Send chan []byte
}

func NewClient(hub *Hub, conn *websocket.Conn, subscriberId string, aggregateId uuid.UUID) *Client {
	return &Client{
		Hub:          hub,
		Conn:         conn,
		SubscriberId: subscriberId,
		AggregateId:  aggregateId,
		Send:         make(chan []byte, sendBuffer),
	}
}

func (c *Client) wants(env events.Envelope) bool {
	return c.AggregateId == uuid.Nil || env.AggregateId == c.AggregateId.String()
}

// readPump only watches for the peer going away; subscribers never send.
func (c *Client) readPump() {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.logger.Warn("Client", "Unexpected websocket close", map[string]interface{}{
					"subscriber_id": c.SubscriberId,
					"error":         err.Error(),
				})
			}
			return
		}
	}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			// One event per frame so clients can parse each as JSON.
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
