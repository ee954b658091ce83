package controller

import (
	"testcase-workflow-be/internal/dto"
	"testcase-workflow-be/internal/pkg/serverutils"
	"testcase-workflow-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type ISessionController interface {
	RegisterRoutes(r fiber.Router)
	Create(ctx *fiber.Ctx) error
	GetAll(ctx *fiber.Ctx) error
	GetActive(ctx *fiber.Ctx) error
	Show(ctx *fiber.Ctx) error
	Workflow(ctx *fiber.Ctx) error
	Close(ctx *fiber.Ctx) error
}

type sessionController struct {
	service service.ISessionService
}

func NewSessionController(service service.ISessionService) ISessionController {
	return &sessionController{service: service}
}

func (c *sessionController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/sessions")
	h.Post("", c.Create)
	h.Get("", c.GetAll)
	h.Get("/active", c.GetActive)
	h.Get("/:id", c.Show)
	h.Delete("/:id", c.Close)
	h.Get("/:id/workflow", c.Workflow)
}

func (c *sessionController) Create(ctx *fiber.Ctx) error {
	var req dto.CreateSessionRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.Create(ctx.UserContext(), serverutils.UserId(ctx), &req)
	if err != nil {
		return err
	}

	return ctx.Status(fiber.StatusCreated).JSON(serverutils.SuccessResponse("Session created", res))
}

func (c *sessionController) GetAll(ctx *fiber.Ctx) error {
	res, err := c.service.ListUserSessions(ctx.UserContext())
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get all sessions", res))
}

func (c *sessionController) GetActive(ctx *fiber.Ctx) error {
	res, err := c.service.ListActiveSessions(ctx.UserContext())
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get active sessions", res))
}

func (c *sessionController) Show(ctx *fiber.Ctx) error {
	res, err := c.service.Details(ctx.UserContext(), serverutils.UserId(ctx), ctx.Params("id"))
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get session details", res))
}

func (c *sessionController) Workflow(ctx *fiber.Ctx) error {
	res, err := c.service.Workflow(ctx.UserContext(), serverutils.UserId(ctx), ctx.Params("id"))
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get workflow", res))
}

// Close only forgets the local view; the backend session is untouched.
func (c *sessionController) Close(ctx *fiber.Ctx) error {
	c.service.Close(ctx.Params("id"))
	return ctx.JSON(serverutils.SuccessResponse("Workflow session closed", nil))
}
