package server

import (
	"context"
	"log"

	"curate-pipeline/internal/pkg/serverutils"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

// Routes is implemented by each process container.
type Routes interface {
	RegisterRoutes(app *fiber.App)
}

type Server struct {
	app  *fiber.App
	name string
	port string
}

func New(name, port, corsOrigins string, routes Routes) *Server {
	app := fiber.New(fiber.Config{
		AppName:               name,
		BodyLimit:             1 * 1024 * 1024,
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:  corsOrigins,
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization",
		AllowMethods:  "GET, POST, OPTIONS",
		ExposeHeaders: "Content-Length, Content-Type",
	}))

	// OpenTelemetry tracing middleware (traces all HTTP requests)
	app.Use(otelfiber.Middleware())

	app.Use(serverutils.ErrorHandlerMiddleware())

	routes.RegisterRoutes(app)

	return &Server{app: app, name: name, port: port}
}

func (s *Server) GetApp() *fiber.App {
	return s.app
}

func (s *Server) Run() error {
	log.Printf("%s listening on http://localhost:%s", s.name, s.port)
	return s.app.Listen(":" + s.port)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
