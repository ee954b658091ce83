package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"testcase-workflow-be/internal/dto"
	"testcase-workflow-be/internal/pkg/logger"
	"testcase-workflow-be/internal/repository/memory"
	"testcase-workflow-be/pkg/backend"
	"testcase-workflow-be/pkg/events"
	"testcase-workflow-be/pkg/store"
	"testcase-workflow-be/pkg/workflow"

	"github.com/google/uuid"
)

const (
	analysisChatTitle   = "Healthcare Analysis"
	contextChatPreview  = "Context fetched"
	requirementsEdited  = "requirements_edited"
	generatedMessageFmt = "Generated %d test cases successfully. Test cases validated and ready for ALM integration."
)

type IWorkflowService interface {
	FetchContext(ctx context.Context, userId, sessionId string, req *dto.FetchContextRequest) (*dto.WorkflowResponse, error)
	StartAnalysis(ctx context.Context, userId, sessionId string) (*dto.WorkflowResponse, error)
	Analyze(ctx context.Context, userId, sessionId string, req *dto.AnalyzeRequest) (*dto.WorkflowResponse, error)
	SaveAnalysis(ctx context.Context, userId, sessionId string, req *dto.SaveAnalysisRequest) (*dto.WorkflowResponse, error)
	GenerateTestCases(ctx context.Context, userId, sessionId string, req *dto.GenerateTestCasesRequest) (*dto.WorkflowResponse, error)
	Refresh(ctx context.Context, userId, sessionId string) (*dto.WorkflowResponse, error)
}

type workflowService struct {
	*sessionResolver
}

func NewWorkflowService(
	repo *memory.SessionRepository,
	source backend.DataSource,
	publisherService IPublisherService,
	metrics *WorkflowMetrics,
	logger logger.ILogger,
) IWorkflowService {
	return &workflowService{
		sessionResolver: &sessionResolver{
			repo:      repo,
			source:    source,
			publisher: publisherService,
			metrics:   metrics,
			logger:    logger,
		},
	}
}

func (w *workflowService) FetchContext(ctx context.Context, userId, sessionId string, req *dto.FetchContextRequest) (*dto.WorkflowResponse, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil, opError("fetch context", ErrEmptyPrompt)
	}

	sess, _, err := w.resolve(ctx, sessionId, userId)
	if err != nil {
		return nil, err
	}

	ticket := sess.Issue(store.ActionFetchContext)
	result, err := w.source.FetchContext(ctx, sessionId, prompt)
	if err != nil {
		w.backendFailed(ctx, sessionId, string(store.ActionFetchContext), err)
		return nil, opError("fetch context", err)
	}

	now := time.Now()
	chat := backend.Chat{
		Id:          "chat-" + uuid.NewString(),
		Title:       analysisChatTitle,
		SessionId:   sessionId,
		LastMessage: contextChatPreview,
		UpdatedAt:   now,
	}
	msg := backend.ChatMessage{
		Id:        store.PrefixContext + uuid.NewString(),
		Role:      backend.RoleSystem,
		Text:      "Context Retrieved: " + result.Summary,
		CreatedAt: now,
		ChatId:    chat.Id,
	}

	var before, after workflow.State
	committed := sess.Commit(ticket, func(s *store.WorkflowSession) {
		before = s.State
		// The message goes in before the chat so the chat keeps its preview.
		s.AppendMessage(msg)
		s.AddChat(chat)
		s.UserPrompt = prompt
		s.Fire(workflow.TriggerContextFetched)
		after = s.State
	})
	if !committed {
		w.staleDropped(ctx, sessionId, store.ActionFetchContext)
		return nil, opError("fetch context", ErrSuperseded)
	}

	w.logger.Info("WORKFLOW", "Context fetched", map[string]interface{}{
		"session_id": sessionId,
		"chat_id":    chat.Id,
		"context_id": result.ContextId,
	})
	w.messageAppended(ctx, sessionId, msg)
	w.stageChanged(ctx, sessionId, before, after)
	return w.view(sess), nil
}

// StartAnalysis is a purely local transition.
func (w *workflowService) StartAnalysis(ctx context.Context, userId, sessionId string) (*dto.WorkflowResponse, error) {
	sess, _, err := w.resolve(ctx, sessionId, userId)
	if err != nil {
		return nil, err
	}

	var before, after workflow.State
	sess.Do(func(s *store.WorkflowSession) {
		before = s.State
		s.Fire(workflow.TriggerStartAnalysis)
		after = s.State
		s.UpdatedAt = time.Now()
	})

	w.stageChanged(ctx, sessionId, before, after)
	return w.view(sess), nil
}

func (w *workflowService) Analyze(ctx context.Context, userId, sessionId string, req *dto.AnalyzeRequest) (*dto.WorkflowResponse, error) {
	sess, _, err := w.resolve(ctx, sessionId, userId)
	if err != nil {
		return nil, err
	}

	var chatId, prompt string
	sess.Do(func(s *store.WorkflowSession) {
		chatId = s.CurrentChatID
		prompt = s.UserPrompt
	})
	if p := strings.TrimSpace(req.Prompt); p != "" {
		prompt = p
	}
	if prompt == "" {
		return nil, opError("analyze", ErrEmptyPrompt)
	}
	if chatId == "" {
		return nil, opError("analyze", ErrNoActiveChat)
	}

	ticket := sess.Issue(store.ActionAnalyze)
	result, err := w.source.AnalyzeRequirements(ctx, sessionId, prompt)
	if err != nil {
		w.backendFailed(ctx, sessionId, string(store.ActionAnalyze), err)
		return nil, opError("analyze", err)
	}

	now := time.Now()
	userMsg := backend.ChatMessage{
		Id:        store.PrefixMessage + uuid.NewString(),
		Role:      backend.RoleUser,
		Text:      prompt,
		CreatedAt: now,
		ChatId:    chatId,
	}
	agentMsg := backend.ChatMessage{
		Id:        store.PrefixAnalysis + uuid.NewString(),
		Role:      backend.RoleAgent,
		Text:      result.Analysis,
		CreatedAt: now,
		ChatId:    chatId,
	}

	var before, after workflow.State
	committed := sess.Commit(ticket, func(s *store.WorkflowSession) {
		before = s.State
		s.AppendMessage(userMsg)
		s.AppendMessage(agentMsg)
		s.Fire(workflow.TriggerAnalysisCompleted)
		after = s.State
	})
	if !committed {
		w.staleDropped(ctx, sessionId, store.ActionAnalyze)
		return nil, opError("analyze", ErrSuperseded)
	}

	w.logger.Info("WORKFLOW", "Requirements analyzed", map[string]interface{}{
		"session_id": sessionId,
		"agent_used": result.AgentUsed,
	})
	w.messageAppended(ctx, sessionId, userMsg)
	w.messageAppended(ctx, sessionId, agentMsg)
	w.stageChanged(ctx, sessionId, before, after)

	// Best effort: the analysis already landed, a failed refresh only
	// leaves the stage at its local value.
	_, _ = w.refresh(ctx, sess)

	return w.view(sess), nil
}

func (w *workflowService) SaveAnalysis(ctx context.Context, userId, sessionId string, req *dto.SaveAnalysisRequest) (*dto.WorkflowResponse, error) {
	requirements := nonEmptyLines(req.Analysis)
	if len(requirements) == 0 {
		return nil, opError("save analysis", ErrEmptyAnalysis)
	}

	sess, _, err := w.resolve(ctx, sessionId, userId)
	if err != nil {
		return nil, err
	}

	var (
		chatId      string
		hasAnalysis bool
	)
	sess.Do(func(s *store.WorkflowSession) {
		chatId = s.CurrentChatID
		_, hasAnalysis = s.FirstAnalysis(chatId)
	})
	if !hasAnalysis {
		return nil, opError("save analysis", ErrNoAnalysis)
	}

	ticket := sess.Issue(store.ActionSaveAnalysis)
	result, err := w.source.EditRequirements(ctx, sessionId, requirements)
	if err != nil {
		w.backendFailed(ctx, sessionId, string(store.ActionSaveAnalysis), err)
		return nil, opError("save analysis", err)
	}

	var (
		before, after workflow.State
		replaced      bool
	)
	committed := sess.Commit(ticket, func(s *store.WorkflowSession) {
		before = s.State
		after = s.State
		// A context fetch may have opened a new chat while the edit was in flight.
		if s.CurrentChatID != chatId || !s.ReplaceFirstAnalysis(chatId, req.Analysis) {
			return
		}
		replaced = true
		s.BackendStatus = requirementsEdited
		s.Fire(workflow.TriggerAnalysisSaved)
		after = s.State
	})
	if !committed {
		w.staleDropped(ctx, sessionId, store.ActionSaveAnalysis)
		return nil, opError("save analysis", ErrSuperseded)
	}
	if !replaced {
		return nil, opError("save analysis", ErrNoAnalysis)
	}

	w.logger.Info("WORKFLOW", "Analysis saved", map[string]interface{}{
		"session_id":   sessionId,
		"requirements": len(requirements),
		"status":       result.Status,
	})
	w.stageChanged(ctx, sessionId, before, after)
	return w.view(sess), nil
}

func (w *workflowService) GenerateTestCases(ctx context.Context, userId, sessionId string, req *dto.GenerateTestCasesRequest) (*dto.WorkflowResponse, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		prompt = backend.DefaultGeneratePrompt
	}

	sess, _, err := w.resolve(ctx, sessionId, userId)
	if err != nil {
		return nil, err
	}

	var chatId string
	sess.Do(func(s *store.WorkflowSession) {
		chatId = s.CurrentChatID
	})

	ticket := sess.Issue(store.ActionGenerate)
	result, err := w.source.GenerateTestCases(ctx, sessionId, prompt)
	if err != nil {
		w.backendFailed(ctx, sessionId, string(store.ActionGenerate), err)
		return nil, opError("generate test cases", err)
	}

	msg := backend.ChatMessage{
		Id:        store.PrefixTestCases + uuid.NewString(),
		Role:      backend.RoleSystem,
		Text:      fmt.Sprintf(generatedMessageFmt, len(result.TestCases)),
		CreatedAt: time.Now(),
		ChatId:    chatId,
	}

	var before, after workflow.State
	committed := sess.Commit(ticket, func(s *store.WorkflowSession) {
		before = s.State
		s.TestCases = append(s.TestCases[:0:0], result.TestCases...)
		s.AppendMessage(msg)
		s.Fire(workflow.TriggerTestCasesGenerated)
		after = s.State
	})
	if !committed {
		w.staleDropped(ctx, sessionId, store.ActionGenerate)
		return nil, opError("generate test cases", ErrSuperseded)
	}

	w.logger.Info("WORKFLOW", "Test cases generated", map[string]interface{}{
		"session_id": sessionId,
		"count":      len(result.TestCases),
	})
	w.publish(ctx, events.New(events.TypeTestCasesGenerated, sessionId, map[string]interface{}{
		"count":      len(result.TestCases),
		"test_cases": result.TestCases,
	}))
	w.messageAppended(ctx, sessionId, msg)
	w.stageChanged(ctx, sessionId, before, after)
	return w.view(sess), nil
}

func (w *workflowService) Refresh(ctx context.Context, userId, sessionId string) (*dto.WorkflowResponse, error) {
	sess, details, err := w.resolve(ctx, sessionId, userId)
	if err != nil {
		return nil, err
	}
	if details == nil {
		if _, err := w.refresh(ctx, sess); err != nil {
			return nil, err
		}
	}
	return w.view(sess), nil
}

func (w *workflowService) view(sess *store.WorkflowSession) *dto.WorkflowResponse {
	res := dto.NewWorkflowResponse(sess.Snapshot())
	return &res
}

func nonEmptyLines(text string) []string {
	lines := make([]string, 0)
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
