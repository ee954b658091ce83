package controller

import (
	"testcase-workflow-be/internal/dto"
	"testcase-workflow-be/internal/pkg/serverutils"
	"testcase-workflow-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IChatController interface {
	RegisterRoutes(r fiber.Router)
	GetChats(ctx *fiber.Ctx) error
	GetMessages(ctx *fiber.Ctx) error
	SendMessage(ctx *fiber.Ctx) error
}

type chatController struct {
	service service.IChatService
}

func NewChatController(service service.IChatService) IChatController {
	return &chatController{service: service}
}

func (c *chatController) RegisterRoutes(r fiber.Router) {
	r.Get("/sessions/:id/chats", c.GetChats)

	h := r.Group("/chats")
	h.Get("/:chatId/messages", c.GetMessages)
	h.Post("/:chatId/messages", c.SendMessage)
}

func (c *chatController) GetChats(ctx *fiber.Ctx) error {
	res, err := c.service.ListChats(ctx.UserContext(), ctx.Params("id"))
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get chats", res))
}

func (c *chatController) GetMessages(ctx *fiber.Ctx) error {
	res, err := c.service.ListMessages(ctx.UserContext(), ctx.Params("chatId"))
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get messages", res))
}

func (c *chatController) SendMessage(ctx *fiber.Ctx) error {
	var req dto.SendMessageRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.SendMessage(ctx.UserContext(), ctx.Params("chatId"), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Message sent", res))
}
