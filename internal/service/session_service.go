package service

import (
	"context"
	"strings"

	"testcase-workflow-be/internal/dto"
	"testcase-workflow-be/internal/pkg/logger"
	"testcase-workflow-be/internal/repository/memory"
	"testcase-workflow-be/pkg/backend"
	"testcase-workflow-be/pkg/events"
	"testcase-workflow-be/pkg/store"
)

type ISessionService interface {
	Create(ctx context.Context, userId string, req *dto.CreateSessionRequest) (*dto.SessionResponse, error)
	ListUserSessions(ctx context.Context) ([]dto.SessionResponse, error)
	ListActiveSessions(ctx context.Context) ([]dto.SessionResponse, error)
	Details(ctx context.Context, userId, sessionId string) (*dto.SessionDetailsResponse, error)
	Workflow(ctx context.Context, userId, sessionId string) (*dto.WorkflowResponse, error)
	Close(sessionId string)
}

type sessionService struct {
	*sessionResolver
}

func NewSessionService(
	repo *memory.SessionRepository,
	source backend.DataSource,
	publisherService IPublisherService,
	metrics *WorkflowMetrics,
	logger logger.ILogger,
) ISessionService {
	return &sessionService{
		sessionResolver: &sessionResolver{
			repo:      repo,
			source:    source,
			publisher: publisherService,
			metrics:   metrics,
			logger:    logger,
		},
	}
}

func (s *sessionService) Create(ctx context.Context, userId string, req *dto.CreateSessionRequest) (*dto.SessionResponse, error) {
	name := strings.TrimSpace(req.ProjectName)
	if name == "" {
		return nil, opError("create session", ErrEmptyProjectName)
	}

	created, err := s.source.CreateSession(ctx, name)
	if err != nil {
		s.backendFailed(ctx, "", "create_session", err)
		return nil, opError("create session", err)
	}

	sess := store.NewWorkflowSession(created.ID, userId, created.ProjectName)
	sess.Do(func(ws *store.WorkflowSession) {
		ws.BackendStatus = created.Status
	})
	s.repo.Save(sess)

	s.logger.Info("SESSION", "Session created", map[string]interface{}{
		"session_id":   created.ID,
		"project_name": created.ProjectName,
		"user_id":      userId,
	})
	s.publish(ctx, events.New(events.TypeSessionCreated, created.ID, map[string]interface{}{
		"project_name": created.ProjectName,
		"status":       created.Status,
	}))

	res := dto.NewSessionResponse(*created)
	return &res, nil
}

func (s *sessionService) ListUserSessions(ctx context.Context) ([]dto.SessionResponse, error) {
	sessions, err := s.source.GetUserSessions(ctx)
	if err != nil {
		s.backendFailed(ctx, "", "get_user_sessions", err)
		return nil, opError("list sessions", err)
	}
	return toSessionResponses(sessions), nil
}

func (s *sessionService) ListActiveSessions(ctx context.Context) ([]dto.SessionResponse, error) {
	sessions, err := s.source.GetActiveSessions(ctx)
	if err != nil {
		s.backendFailed(ctx, "", "get_active_sessions", err)
		return nil, opError("list active sessions", err)
	}
	return toSessionResponses(sessions), nil
}

// Details returns the backend view of a session and reconciles the workflow
// stage with the reported status.
func (s *sessionService) Details(ctx context.Context, userId, sessionId string) (*dto.SessionDetailsResponse, error) {
	sess, details, err := s.resolve(ctx, sessionId, userId)
	if err != nil {
		return nil, err
	}
	if details == nil {
		details, err = s.refresh(ctx, sess)
		if err != nil {
			return nil, err
		}
	}

	return &dto.SessionDetailsResponse{
		Details:  details,
		Workflow: dto.NewWorkflowResponse(sess.Snapshot()),
	}, nil
}

// Workflow returns the local view without contacting the backend unless the
// session is not in memory yet.
func (s *sessionService) Workflow(ctx context.Context, userId, sessionId string) (*dto.WorkflowResponse, error) {
	sess, _, err := s.resolve(ctx, sessionId, userId)
	if err != nil {
		return nil, err
	}
	res := dto.NewWorkflowResponse(sess.Snapshot())
	return &res, nil
}

// Close drops the in-memory state of a session.
func (s *sessionService) Close(sessionId string) {
	s.repo.Delete(sessionId)
	s.logger.Debug("SESSION", "Workflow session dropped", map[string]interface{}{"session_id": sessionId})
}

func toSessionResponses(sessions []backend.Session) []dto.SessionResponse {
	result := make([]dto.SessionResponse, 0, len(sessions))
	for _, session := range sessions {
		result = append(result, dto.NewSessionResponse(session))
	}
	return result
}
