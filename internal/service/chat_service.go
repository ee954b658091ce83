package service

import (
	"context"
	"net/http"
	"strings"
	"time"

	"testcase-workflow-be/internal/dto"
	"testcase-workflow-be/internal/pkg/logger"
	"testcase-workflow-be/internal/repository/memory"
	"testcase-workflow-be/pkg/backend"
	"testcase-workflow-be/pkg/store"

	"github.com/google/uuid"
)

type IChatService interface {
	ListChats(ctx context.Context, sessionId string) ([]backend.Chat, error)
	ListMessages(ctx context.Context, chatId string) ([]backend.ChatMessage, error)
	SendMessage(ctx context.Context, chatId string, req *dto.SendMessageRequest) (*dto.SendMessageResponse, error)
}

type chatService struct {
	*sessionResolver
}

func NewChatService(
	repo *memory.SessionRepository,
	source backend.DataSource,
	publisherService IPublisherService,
	metrics *WorkflowMetrics,
	logger logger.ILogger,
) IChatService {
	return &chatService{
		sessionResolver: &sessionResolver{
			repo:      repo,
			source:    source,
			publisher: publisherService,
			metrics:   metrics,
			logger:    logger,
		},
	}
}

// ListChats serves the chats a live session has opened, newest first, and
// falls back to the data source otherwise.
func (c *chatService) ListChats(ctx context.Context, sessionId string) ([]backend.Chat, error) {
	if sess, ok := c.repo.Get(sessionId); ok {
		if snap := sess.Snapshot(); len(snap.Chats) > 0 {
			return snap.Chats, nil
		}
	}

	chats, err := c.source.GetChats(ctx, sessionId)
	if err != nil {
		c.backendFailed(ctx, sessionId, "get_chats", err)
		return nil, opError("list chats", err)
	}
	return chats, nil
}

func (c *chatService) ListMessages(ctx context.Context, chatId string) ([]backend.ChatMessage, error) {
	if sess := c.owner(chatId); sess != nil {
		return sess.MessagesForChat(chatId), nil
	}

	messages, err := c.source.GetMessages(ctx, chatId)
	if err != nil {
		if apiErr, ok := backend.AsAPIError(err); ok && apiErr.Status == http.StatusNotFound {
			return nil, opError("list messages", ErrChatNotFound)
		}
		c.backendFailed(ctx, "", "get_messages", err)
		return nil, opError("list messages", err)
	}
	return messages, nil
}

// SendMessage posts text to a chat. When a live session owns the chat, both
// the sent message and the reply are appended to its transcript.
func (c *chatService) SendMessage(ctx context.Context, chatId string, req *dto.SendMessageRequest) (*dto.SendMessageResponse, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, opError("send message", ErrEmptyPrompt)
	}

	sent := backend.ChatMessage{
		Id:        store.PrefixMessage + uuid.NewString(),
		Role:      backend.RoleUser,
		Text:      text,
		CreatedAt: time.Now(),
		ChatId:    chatId,
	}

	reply, err := c.source.SendMessage(ctx, chatId, text)
	if err != nil {
		sessionId := ""
		if sess := c.owner(chatId); sess != nil {
			sessionId = sess.ID
		}
		c.backendFailed(ctx, sessionId, "send_message", err)
		return nil, opError("send message", err)
	}

	if sess := c.owner(chatId); sess != nil {
		sess.Do(func(s *store.WorkflowSession) {
			s.AppendMessage(sent)
			s.AppendMessage(*reply)
			s.UpdatedAt = time.Now()
		})
		c.messageAppended(ctx, sess.ID, sent)
		c.messageAppended(ctx, sess.ID, *reply)
	}

	return &dto.SendMessageResponse{Sent: sent, Reply: *reply}, nil
}

func (c *chatService) owner(chatId string) *store.WorkflowSession {
	for _, sess := range c.repo.All() {
		if sess.HasChat(chatId) {
			return sess
		}
	}
	return nil
}
