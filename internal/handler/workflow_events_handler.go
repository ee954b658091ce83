package handler

import (
	"testcase-workflow-be/internal/pkg/logger"
	"testcase-workflow-be/internal/pkg/serverutils"
	"testcase-workflow-be/internal/service"
	internalWS "testcase-workflow-be/internal/websocket"
	"testcase-workflow-be/pkg/events"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// WorkflowEventsHandler streams a session's workflow events over websocket.
type WorkflowEventsHandler struct {
	sessions service.ISessionService
	hub      *internalWS.Hub
	logger   logger.ILogger
}

func NewWorkflowEventsHandler(sessions service.ISessionService, hub *internalWS.Hub, log logger.ILogger) *WorkflowEventsHandler {
	return &WorkflowEventsHandler{
		sessions: sessions,
		hub:      hub,
		logger:   log,
	}
}

// RegisterRoutes expects r to carry the JWT middleware.
func (h *WorkflowEventsHandler) RegisterRoutes(r fiber.Router) {
	r.Get("/sessions/:id/events", h.ServeWs)
}

// ServeWs sends the current workflow view, then every event published for
// the session until the peer disconnects.
func (h *WorkflowEventsHandler) ServeWs(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	userId := serverutils.UserId(c)
	sessionId := c.Params("id")

	// Unknown sessions fail here with a problem response instead of an
	// upgraded connection that never receives anything.
	view, err := h.sessions.Workflow(c.UserContext(), userId, sessionId)
	if err != nil {
		return err
	}

	greeting, err := events.Marshal(events.New(events.TypeWorkflowSnapshot, sessionId, map[string]interface{}{
		"workflow": view,
	}))
	if err != nil {
		return err
	}

	return websocket.New(func(conn *websocket.Conn) {
		h.logger.Info("WS", "Starting websocket session", map[string]interface{}{
			"session_id": sessionId,
			"user_id":    userId,
		})
		internalWS.ServeWs(h.hub, conn, sessionId, greeting)
		h.logger.Info("WS", "Websocket session ended", map[string]interface{}{"session_id": sessionId})
	})(c)
}
