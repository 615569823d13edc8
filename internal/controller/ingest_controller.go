package controller

import (
	"curate-pipeline/internal/dto"
	"curate-pipeline/internal/pkg/serverutils"
	"curate-pipeline/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type IIngestController interface {
	RegisterRoutes(r fiber.Router, guard fiber.Handler)
	SubmitItem(ctx *fiber.Ctx) error
	ShowItem(ctx *fiber.Ctx) error
	ResubmitItem(ctx *fiber.Ctx) error
	CreateEdition(ctx *fiber.Ctx) error
	ShowEdition(ctx *fiber.Ctx) error
	RequestPublish(ctx *fiber.Ctx) error
	SubmitFeedback(ctx *fiber.Ctx) error
	DeleteEdition(ctx *fiber.Ctx) error
	ListRevisions(ctx *fiber.Ctx) error
	RevertEdition(ctx *fiber.Ctx) error
}

type ingestController struct {
	service service.IIngestService
}

func NewIngestController(service service.IIngestService) IIngestController {
	return &ingestController{service: service}
}

func (c *ingestController) RegisterRoutes(r fiber.Router, guard fiber.Handler) {
	items := r.Group("/items", guard)
	items.Post("", c.SubmitItem)
	items.Get(":id", c.ShowItem)
	items.Post(":id/resubmit", c.ResubmitItem)

	editions := r.Group("/editions", guard)
	editions.Post("", c.CreateEdition)
	editions.Get(":id", c.ShowEdition)
	editions.Post(":id/publish", c.RequestPublish)
	editions.Delete(":id", c.DeleteEdition)
	editions.Get(":id/revisions", c.ListRevisions)
	editions.Post(":id/revert/:revisionId", c.RevertEdition)

	r.Post("/feedback", guard, c.SubmitFeedback)
}

func (c *ingestController) SubmitItem(ctx *fiber.Ctx) error {
	var req dto.SubmitItemRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.SubmitItem(ctx.UserContext(), &req)
	if err != nil {
		return err
	}
	return ctx.Status(fiber.StatusCreated).JSON(serverutils.SuccessResponse("Item submitted", res))
}

func (c *ingestController) ShowItem(ctx *fiber.Ctx) error {
	id, err := idParam(ctx)
	if err != nil {
		return err
	}
	res, err := c.service.ShowItem(ctx.UserContext(), id)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success show item", res))
}

func (c *ingestController) ResubmitItem(ctx *fiber.Ctx) error {
	id, err := idParam(ctx)
	if err != nil {
		return err
	}
	res, err := c.service.ResubmitItem(ctx.UserContext(), id)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Item resubmitted", res))
}

func (c *ingestController) CreateEdition(ctx *fiber.Ctx) error {
	res, err := c.service.CreateEdition(ctx.UserContext())
	if err != nil {
		return err
	}
	return ctx.Status(fiber.StatusCreated).JSON(serverutils.SuccessResponse("Edition created", res))
}

func (c *ingestController) ShowEdition(ctx *fiber.Ctx) error {
	id, err := idParam(ctx)
	if err != nil {
		return err
	}
	res, err := c.service.ShowEdition(ctx.UserContext(), id)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success show edition", res))
}

func (c *ingestController) RequestPublish(ctx *fiber.Ctx) error {
	id, err := idParam(ctx)
	if err != nil {
		return err
	}
	res, err := c.service.RequestPublish(ctx.UserContext(), id)
	if err != nil {
		return err
	}
	return ctx.Status(fiber.StatusAccepted).JSON(serverutils.SuccessResponse("Publish requested", res))
}

func (c *ingestController) SubmitFeedback(ctx *fiber.Ctx) error {
	var req dto.SubmitFeedbackRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.SubmitFeedback(ctx.UserContext(), &req)
	if err != nil {
		return err
	}
	return ctx.Status(fiber.StatusCreated).JSON(serverutils.SuccessResponse("Feedback submitted", res))
}

func (c *ingestController) DeleteEdition(ctx *fiber.Ctx) error {
	id, err := idParam(ctx)
	if err != nil {
		return err
	}
	if err := c.service.DeleteEdition(ctx.UserContext(), id); err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse[any]("Edition deleted", nil))
}

func (c *ingestController) ListRevisions(ctx *fiber.Ctx) error {
	id, err := idParam(ctx)
	if err != nil {
		return err
	}
	res, err := c.service.ListRevisions(ctx.UserContext(), id)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success list revisions", res))
}

func (c *ingestController) RevertEdition(ctx *fiber.Ctx) error {
	id, err := idParam(ctx)
	if err != nil {
		return err
	}
	revisionId, err := uuid.Parse(ctx.Params("revisionId"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid revision ID")
	}
	res, err := c.service.RevertEdition(ctx.UserContext(), id, revisionId)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Edition reverted", res))
}

func idParam(ctx *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return uuid.Nil, fiber.NewError(fiber.StatusBadRequest, "Invalid ID")
	}
	return id, nil
}
