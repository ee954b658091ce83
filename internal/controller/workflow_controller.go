package controller

import (
	"testcase-workflow-be/internal/dto"
	"testcase-workflow-be/internal/pkg/serverutils"
	"testcase-workflow-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IWorkflowController interface {
	RegisterRoutes(r fiber.Router)
	FetchContext(ctx *fiber.Ctx) error
	StartAnalysis(ctx *fiber.Ctx) error
	Analyze(ctx *fiber.Ctx) error
	SaveAnalysis(ctx *fiber.Ctx) error
	GenerateTestCases(ctx *fiber.Ctx) error
	Refresh(ctx *fiber.Ctx) error
}

type workflowController struct {
	service service.IWorkflowService
}

func NewWorkflowController(service service.IWorkflowService) IWorkflowController {
	return &workflowController{service: service}
}

func (c *workflowController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/sessions/:id/workflow")
	h.Post("/context", c.FetchContext)
	h.Post("/start-analysis", c.StartAnalysis)
	h.Post("/analyze", c.Analyze)
	h.Put("/analysis", c.SaveAnalysis)
	h.Post("/test-cases", c.GenerateTestCases)
	h.Post("/refresh", c.Refresh)
}

func (c *workflowController) FetchContext(ctx *fiber.Ctx) error {
	var req dto.FetchContextRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.FetchContext(ctx.UserContext(), serverutils.UserId(ctx), ctx.Params("id"), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Context fetched", res))
}

func (c *workflowController) StartAnalysis(ctx *fiber.Ctx) error {
	res, err := c.service.StartAnalysis(ctx.UserContext(), serverutils.UserId(ctx), ctx.Params("id"))
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Analysis started", res))
}

func (c *workflowController) Analyze(ctx *fiber.Ctx) error {
	var req dto.AnalyzeRequest
	if len(ctx.Body()) > 0 {
		if err := ctx.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
	}

	res, err := c.service.Analyze(ctx.UserContext(), serverutils.UserId(ctx), ctx.Params("id"), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Requirements analyzed", res))
}

func (c *workflowController) SaveAnalysis(ctx *fiber.Ctx) error {
	var req dto.SaveAnalysisRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.SaveAnalysis(ctx.UserContext(), serverutils.UserId(ctx), ctx.Params("id"), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Analysis saved", res))
}

func (c *workflowController) GenerateTestCases(ctx *fiber.Ctx) error {
	var req dto.GenerateTestCasesRequest
	if len(ctx.Body()) > 0 {
		if err := ctx.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
	}

	res, err := c.service.GenerateTestCases(ctx.UserContext(), serverutils.UserId(ctx), ctx.Params("id"), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Test cases generated", res))
}

func (c *workflowController) Refresh(ctx *fiber.Ctx) error {
	res, err := c.service.Refresh(ctx.UserContext(), serverutils.UserId(ctx), ctx.Params("id"))
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Workflow refreshed", res))
}
