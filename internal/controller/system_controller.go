package controller

import (
	"curate-pipeline/internal/dto"
	"curate-pipeline/internal/pkg/logger"
	"curate-pipeline/internal/pkg/serverutils"

	"github.com/gofiber/fiber/v2"
)

// HealthFunc reports live process state for the health endpoint.
type HealthFunc func() dto.HealthResponse

type LogSource interface {
	RecentLogs(level, module string, limit int) ([]logger.LogEntry, error)
}

type ISystemController interface {
	RegisterRoutes(r fiber.Router, guard fiber.Handler)
	Health(ctx *fiber.Ctx) error
	Logs(ctx *fiber.Ctx) error
}

type systemController struct {
	health HealthFunc
	logs   LogSource
}

// NewSystemController serves health and, when logs is non-nil, the recent
// log tail.
func NewSystemController(health HealthFunc, logs LogSource) ISystemController {
	return &systemController{health: health, logs: logs}
}

func (c *systemController) RegisterRoutes(r fiber.Router, guard fiber.Handler) {
	r.Get("/health", c.Health)
	if c.logs != nil {
		r.Get("/logs", guard, c.Logs)
	}
}

func (c *systemController) Health(ctx *fiber.Ctx) error {
	return ctx.JSON(c.health())
}

func (c *systemController) Logs(ctx *fiber.Ctx) error {
	limit := ctx.QueryInt("limit", 100)
	if limit <= 0 || limit > 1000 {
		return fiber.NewError(fiber.StatusBadRequest, "limit must be between 1 and 1000")
	}
	entries, err := c.logs.RecentLogs(ctx.Query("level"), ctx.Query("module"), limit)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success read logs", entries))
}
