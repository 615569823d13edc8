package controller

import (
	"curate-pipeline/internal/pkg/serverutils"
	"curate-pipeline/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type IRunController interface {
	RegisterRoutes(r fiber.Router, guard fiber.Handler)
	List(ctx *fiber.Ctx) error
	Recent(ctx *fiber.Ctx) error
}

type runController struct {
	service service.IRunService
}

func NewRunController(service service.IRunService) IRunController {
	return &runController{service: service}
}

func (c *runController) RegisterRoutes(r fiber.Router, guard fiber.Handler) {
	h := r.Group("/runs", guard)
	h.Get("", c.List)
	h.Get("/recent", c.Recent)
}

// List returns every run for ?trigger_id= in attempt order.
func (c *runController) List(ctx *fiber.Ctx) error {
	triggerId, err := uuid.Parse(ctx.Query("trigger_id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "trigger_id must be a UUID")
	}
	res, err := c.service.ByTrigger(ctx.UserContext(), triggerId)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success list runs", res))
}

func (c *runController) Recent(ctx *fiber.Ctx) error {
	limit := ctx.QueryInt("limit", 50)
	if limit <= 0 || limit > 500 {
		return fiber.NewError(fiber.StatusBadRequest, "limit must be between 1 and 500")
	}
	res, err := c.service.Recent(ctx.UserContext(), limit)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success list recent runs", res))
}
