package websocket

import (
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

// ServeWs attaches a websocket connection to the hub and blocks until the
// peer disconnects.
func ServeWs(hub *Hub, conn *websocket.Conn, subscriberId string, aggregateId uuid.UUID) {
	client := NewClient(hub, conn, subscriberId, aggregateId)
	hub.Register(client)

	go client.writePump()
	client.readPump()
}
