package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"curate-pipeline/internal/bridge"
	"curate-pipeline/internal/config"
	"curate-pipeline/internal/controller"
	"curate-pipeline/internal/dto"
	"curate-pipeline/internal/handler"
	"curate-pipeline/internal/pkg/logger"
	"curate-pipeline/internal/repository/memory"
	"curate-pipeline/internal/websocket"
	pktNats "curate-pipeline/pkg/nats"

	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/redis/go-redis/v9"
)

// BridgeContainer wires the event bridge: durable JetStream consumer,
// redelivery filter and websocket hub.
type BridgeContainer struct {
	cfg    *config.Config
	Logger *logger.ZapLogger

	Hub              *websocket.Hub
	Consumer         *bridge.Consumer
	StreamHandler    *handler.EventStreamHandler
	SystemController controller.ISystemController

	nc         *nats.Conn
	subscriber *pktNats.Subscriber
	rdb        *redis.Client
	consume    jetstream.ConsumeContext
	stopHub    context.CancelFunc
}

func NewBridgeContainer(cfg *config.Config) (*BridgeContainer, error) {
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.IsProduction())
	wsLogger := logger.NewIsolatedLogger("logs/bridge.log")

	nc := connectNats(cfg.App.NatsURL)
	if nc == nil {
		return nil, errors.New("the bridge needs a reachable NATS_URL")
	}
	subscriber, err := pktNats.NewSubscriber(nc)
	if err != nil {
		return nil, err
	}

	rdb := connectRedis(cfg.App.RedisURL)
	hub := websocket.NewHub(rdb, wsLogger)
	delivered := memory.NewDeliveryCache(cfg.Bridge.DedupTTL)
	consumer := bridge.NewConsumer(hub, delivered, sysLogger)

	health := func() dto.HealthResponse {
		return dto.HealthResponse{
			Status:      "ok",
			Environment: cfg.App.Environment,
			Clients:     hub.ClientCount(),
			DedupKeys:   delivered.Len(),
		}
	}

	return &BridgeContainer{
		cfg:              cfg,
		Logger:           sysLogger,
		Hub:              hub,
		Consumer:         consumer,
		StreamHandler:    handler.NewEventStreamHandler(hub, cfg.Bridge.JWTSecret, wsLogger),
		SystemController: controller.NewSystemController(health, nil),
		nc:               nc,
		subscriber:       subscriber,
		rdb:              rdb,
	}, nil
}

func (c *BridgeContainer) RegisterRoutes(app *fiber.App) {
	c.SystemController.RegisterRoutes(app.Group("/api"), nil)
	c.StreamHandler.RegisterRoutes(app)
}

func (c *BridgeContainer) Start(ctx context.Context) error {
	hubCtx, cancel := context.WithCancel(ctx)
	c.stopHub = cancel
	go c.Hub.Run(hubCtx)

	cc, err := c.Consumer.Run(ctx, c.subscriber, c.cfg.Bridge.Durable)
	if err != nil {
		return fmt.Errorf("start bridge consumer: %w", err)
	}
	c.consume = cc
	return nil
}

func (c *BridgeContainer) Shutdown(ctx context.Context) error {
	if c.consume != nil {
		c.consume.Stop()
	}
	if c.stopHub != nil {
		c.stopHub()
	}
	if c.rdb != nil {
		_ = c.rdb.Close()
	}
	_ = c.nc.Drain()
	_ = c.Logger.Sync()
	return nil
}
