package bootstrap

import (
	"context"
	"fmt"
	"log"

	"curate-pipeline/internal/config"
	"curate-pipeline/internal/controller"
	"curate-pipeline/internal/dto"
	"curate-pipeline/internal/entity"
	"curate-pipeline/internal/events"
	"curate-pipeline/internal/feed"
	"curate-pipeline/internal/pipeline"
	"curate-pipeline/internal/pkg/logger"
	"curate-pipeline/internal/pkg/mailer"
	"curate-pipeline/internal/pkg/serverutils"
	"curate-pipeline/internal/runs"
	"curate-pipeline/internal/service"
	"curate-pipeline/internal/stage"
	pktNats "curate-pipeline/pkg/nats"

	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
)

// WorkerContainer wires the pipeline process: change feed reader, change
// bus, orchestrator and its collaborators, plus the HTTP surface.
type WorkerContainer struct {
	cfg    *config.Config
	Logger *logger.ZapLogger

	Orchestrator *pipeline.Orchestrator
	Reader       *feed.Reader
	Bus          *feed.Bus
	Tracker      *runs.Tracker
	Dispatcher   *stage.Dispatcher

	IngestController controller.IIngestController
	RunController    controller.IRunController
	SystemController controller.ISystemController

	alerts     *mailer.AlertService
	nc         *nats.Conn
	readerDone chan struct{}
}

func NewWorkerContainer(cfg *config.Config) (*WorkerContainer, error) {
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.IsProduction())

	st, err := openStorage(cfg)
	if err != nil {
		return nil, err
	}
	tracker := runs.NewTracker(st.runs)

	stages, err := config.LoadStages(cfg.Stage.File)
	if err != nil {
		return nil, err
	}

	nc := connectNats(cfg.App.NatsURL)

	dispatcher := stage.NewDispatcher(cfg.Stage.DefaultTimeout)
	if err := registerAgents(dispatcher, cfg, stages, nc); err != nil {
		return nil, err
	}

	var publisher events.Publisher = events.NoopPublisher{}
	if nc != nil {
		natsPub, err := pktNats.NewPublisher(nc)
		if err != nil {
			log.Printf("[WARN] Failed to create JetStream publisher: %v", err)
		} else {
			publisher = events.NewNatsPublisher(natsPub, sysLogger)
		}
	}

	policy, err := pipeline.NewAggregatePolicy(cfg.Pipeline.AggregatePolicy, st.store)
	if err != nil {
		return nil, err
	}

	opts := pipeline.Options{
		Workers:        cfg.Pipeline.Workers,
		MaxAttempts:    cfg.Pipeline.MaxAttempts,
		RetryBaseDelay: cfg.Pipeline.RetryBaseDelay,
		RetryMaxDelay:  cfg.Pipeline.RetryMaxDelay,
		Policy:         policy,
		Logger:         sysLogger,
	}
	alerts := mailer.NewAlertService(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Email, cfg.SMTP.Password, cfg.SMTP.SenderName, cfg.SMTP.AlertTo, sysLogger)
	if alerts != nil {
		opts.Alerter = alerts
	}
	orchestrator := pipeline.NewOrchestrator(st.store, tracker, dispatcher, publisher, opts)

	bus := feed.NewBus(sysLogger)
	reader := feed.NewReader(st.feed, bus, feed.ReaderOptions{
		Name:         cfg.Feed.Name,
		BatchSize:    cfg.Feed.BatchSize,
		PollInterval: cfg.Feed.PollInterval,
		MaxBackoff:   cfg.Feed.MaxBackoff,
		Logger:       sysLogger,
	})

	health := func() dto.HealthResponse {
		return dto.HealthResponse{
			Status:      "ok",
			Environment: cfg.App.Environment,
			Pending:     orchestrator.Pending(),
			Position:    reader.Position(),
		}
	}

	return &WorkerContainer{
		cfg:              cfg,
		Logger:           sysLogger,
		Orchestrator:     orchestrator,
		Reader:           reader,
		Bus:              bus,
		Tracker:          tracker,
		Dispatcher:       dispatcher,
		IngestController: controller.NewIngestController(service.NewIngestService(st.store, sysLogger)),
		RunController:    controller.NewRunController(service.NewRunService(tracker)),
		SystemController: controller.NewSystemController(health, sysLogger),
		alerts:           alerts,
		nc:               nc,
	}, nil
}

func registerAgents(d *stage.Dispatcher, cfg *config.Config, stages *config.StagesFile, nc *nats.Conn) error {
	switch cfg.Stage.Mode {
	case "local":
		for name, agent := range stage.LocalAgents() {
			d.Register(name, agent, stages.Timeout(name, 0))
		}
		log.Println("[INFO] Stage agents: local")
	case "nats":
		if nc == nil {
			return fmt.Errorf("STAGE_MODE=nats needs a reachable NATS_URL")
		}
		for _, name := range entity.AllStages() {
			d.Register(name, stage.NewNatsAgent(nc, stages.Subject(name)), stages.Timeout(name, 0))
		}
		log.Println("[INFO] Stage agents: NATS request/reply")
	default:
		return fmt.Errorf("unknown stage mode %q", cfg.Stage.Mode)
	}
	return nil
}

func (c *WorkerContainer) RegisterRoutes(app *fiber.App) {
	api := app.Group("/api")
	guard := serverutils.JwtMiddleware(c.cfg.App.JWTSecret)

	c.SystemController.RegisterRoutes(api, guard)
	c.IngestController.RegisterRoutes(api, guard)
	c.RunController.RegisterRoutes(api, guard)
}

// Start attaches the orchestrator to the change bus, re-queues work left
// over from the last run and starts tailing the feed. The bus must have its
// consumer before the reader delivers.
func (c *WorkerContainer) Start(ctx context.Context) error {
	if err := c.Bus.Consume(ctx, c.Orchestrator); err != nil {
		return fmt.Errorf("consume change bus: %w", err)
	}
	if _, err := c.Orchestrator.Resume(ctx); err != nil {
		return fmt.Errorf("resume pipeline: %w", err)
	}

	c.readerDone = make(chan struct{})
	go func() {
		defer close(c.readerDone)
		if err := c.Reader.Start(ctx); err != nil {
			c.Logger.Error("WORKER", "Change feed reader stopped", map[string]interface{}{"error": err.Error()})
		}
	}()
	return nil
}

// Shutdown stops intake first, then lets in-flight stage work finish within
// ctx.
func (c *WorkerContainer) Shutdown(ctx context.Context) error {
	c.Reader.Stop()
	_ = c.Bus.Close()
	if c.readerDone != nil {
		select {
		case <-c.readerDone:
		case <-ctx.Done():
		}
	}

	err := c.Orchestrator.Shutdown(ctx)
	if c.alerts != nil {
		c.alerts.Wait()
	}
	if c.nc != nil {
		_ = c.nc.Drain()
	}
	_ = c.Logger.Sync()
	return err
}
