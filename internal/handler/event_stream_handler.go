package handler

import (
	"curate-pipeline/internal/pkg/logger"
	"curate-pipeline/internal/pkg/serverutils"
	internalWS "curate-pipeline/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

// EventStreamHandler upgrades subscribers to a websocket that receives
// pipeline events as they are consumed by the bridge.
type EventStreamHandler struct {
	hub       *internalWS.Hub
	jwtSecret string
	logger    logger.ILogger
}

func NewEventStreamHandler(hub *internalWS.Hub, jwtSecret string, log logger.ILogger) *EventStreamHandler {
	return &EventStreamHandler{hub: hub, jwtSecret: jwtSecret, logger: log}
}

// ServeWs authenticates the handshake when a secret is configured and
// narrows the stream with ?aggregate_id=.
func (h *EventStreamHandler) ServeWs(c *fiber.Ctx) error {
	subscriberId := uuid.NewString()
	if h.jwtSecret != "" {
		subject, err := serverutils.ParseSubject(serverutils.BearerToken(c), h.jwtSecret)
		if err != nil {
			h.logger.Warn("EventStreamHandler", "Rejected websocket handshake", map[string]interface{}{"error": err.Error()})
			return c.Status(fiber.StatusUnauthorized).JSON(serverutils.ErrorResponse("Invalid token"))
		}
		subscriberId = subject
	}

	aggregateId := uuid.Nil
	if raw := c.Query("aggregate_id"); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse("aggregate_id must be a UUID"))
		}
		aggregateId = parsed
	}

	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	return websocket.New(func(conn *websocket.Conn) {
		h.logger.Info("EventStreamHandler", "Starting websocket session", map[string]interface{}{
			"subscriber_id": subscriberId,
			"aggregate_id":  aggregateId,
		})
		internalWS.ServeWs(h.hub, conn, subscriberId, aggregateId)
		h.logger.Info("EventStreamHandler", "Websocket session ended", map[string]interface{}{"subscriber_id": subscriberId})
	})(c)
}

func (h *EventStreamHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/ws/events", h.ServeWs)
}
