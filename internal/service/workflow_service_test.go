package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"testcase-workflow-be/internal/dto"
	"testcase-workflow-be/internal/pkg/logger"
	"testcase-workflow-be/internal/repository/memory"
	"testcase-workflow-be/pkg/backend"
	"testcase-workflow-be/pkg/events"
	"testcase-workflow-be/pkg/store"
	"testcase-workflow-be/pkg/workflow"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) ofType(eventType string) []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := []events.Event{}
	for _, e := range p.events {
		if e.EventType() == eventType {
			out = append(out, e)
		}
	}
	return out
}

type harness struct {
	repo      *memory.SessionRepository
	source    backend.DataSource
	publisher *recordingPublisher
	metrics   *WorkflowMetrics
	sessions  ISessionService
	workflow  IWorkflowService
	chats     IChatService
	documents IDocumentService
}

func newHarness(t *testing.T, source backend.DataSource) *harness {
	t.Helper()
	if source == nil {
		fixtures, err := backend.NewFixtureClient("user123", 0)
		require.NoError(t, err)
		source = fixtures
	}

	repo := memory.NewSessionRepository(time.Hour)
	publisher := &recordingPublisher{}
	metrics := NewWorkflowMetrics(prometheus.NewRegistry(), repo.Count)
	log := logger.NewNopLogger()

	return &harness{
		repo:      repo,
		source:    source,
		publisher: publisher,
		metrics:   metrics,
		sessions:  NewSessionService(repo, source, publisher, metrics, log),
		workflow:  NewWorkflowService(repo, source, publisher, metrics, log),
		chats:     NewChatService(repo, source, publisher, metrics, log),
		documents: NewDocumentService(source, publisher, log),
	}
}

func (h *harness) createSession(t *testing.T) string {
	t.Helper()
	created, err := h.sessions.Create(context.Background(), "user123", &dto.CreateSessionRequest{ProjectName: "EMR Integration"})
	require.NoError(t, err)
	return created.Id
}

func TestWorkflowService_FullRun(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	id := h.createSession(t)

	view, err := h.sessions.Workflow(ctx, "user123", id)
	require.NoError(t, err)
	assert.Equal(t, workflow.StageNoChat, view.Stage.Id)

	view, err = h.workflow.FetchContext(ctx, "user123", id, &dto.FetchContextRequest{Prompt: "HIPAA audit logging"})
	require.NoError(t, err)
	assert.Equal(t, workflow.StageContextFetched, view.Stage.Id)
	require.Len(t, view.Chats, 1)
	assert.Equal(t, "Healthcare Analysis", view.Chats[0].Title)
	assert.Equal(t, "Context fetched", view.Chats[0].LastMessage)
	assert.Equal(t, view.Chats[0].Id, view.CurrentChatId)
	require.Len(t, view.Messages, 1)
	assert.Equal(t, backend.RoleSystem, view.Messages[0].Role)
	assert.True(t, strings.HasPrefix(view.Messages[0].Id, store.PrefixContext))
	assert.Equal(t, "Context Retrieved: Mock context for prompt: HIPAA audit logging", view.Messages[0].Text)

	view, err = h.workflow.StartAnalysis(ctx, "user123", id)
	require.NoError(t, err)
	assert.Equal(t, workflow.StageAnalyze, view.Stage.Id)

	// Empty prompt falls back to the one given at context fetch.
	view, err = h.workflow.Analyze(ctx, "user123", id, &dto.AnalyzeRequest{})
	require.NoError(t, err)
	assert.Equal(t, workflow.StageEditAnalysis, view.Stage.Id)
	require.Len(t, view.Messages, 3)
	assert.Equal(t, backend.RoleUser, view.Messages[1].Role)
	assert.Equal(t, "HIPAA audit logging", view.Messages[1].Text)
	assert.Equal(t, backend.RoleAgent, view.Messages[2].Role)
	assert.Equal(t, "Mock analysis for: HIPAA audit logging", view.Analysis)
	assert.Equal(t, "requirements_analyzed", view.BackendStatus)

	view, err = h.workflow.SaveAnalysis(ctx, "user123", id, &dto.SaveAnalysisRequest{Analysis: "REQ-1 audit trail\n\nREQ-2 retention"})
	require.NoError(t, err)
	assert.Equal(t, workflow.StageGenerateTestCases, view.Stage.Id)
	assert.Equal(t, "REQ-1 audit trail\n\nREQ-2 retention", view.Analysis)
	assert.Equal(t, "requirements_edited", view.BackendStatus)
	assert.Len(t, view.Messages, 3)

	view, err = h.workflow.GenerateTestCases(ctx, "user123", id, &dto.GenerateTestCasesRequest{})
	require.NoError(t, err)
	assert.Equal(t, workflow.StageComplete, view.Stage.Id)
	require.Len(t, view.TestCases, 3)
	assert.Equal(t, "TC001", view.TestCases[0].ID)
	last := view.Messages[len(view.Messages)-1]
	assert.True(t, strings.HasPrefix(last.Id, store.PrefixTestCases))
	assert.Equal(t, "Generated 3 test cases successfully. Test cases validated and ready for ALM integration.", last.Text)

	assert.Len(t, h.publisher.ofType(events.TypeSessionCreated), 1)
	assert.Len(t, h.publisher.ofType(events.TypeStageChanged), 5)
	assert.Len(t, h.publisher.ofType(events.TypeTestCasesGenerated), 1)
	assert.Len(t, h.publisher.ofType(events.TypeMessageAppended), 4)
	assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.Transitions.WithLabelValues(string(workflow.StageComplete), string(workflow.SourceLocal))))
}

func TestWorkflowService_Preconditions(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	id := h.createSession(t)

	tests := []struct {
		name string
		call func() error
		want error
	}{
		{
			name: "fetch context needs a prompt",
			call: func() error {
				_, err := h.workflow.FetchContext(ctx, "user123", id, &dto.FetchContextRequest{Prompt: "  "})
				return err
			},
			want: ErrEmptyPrompt,
		},
		{
			name: "analyze needs a chat",
			call: func() error {
				_, err := h.workflow.Analyze(ctx, "user123", id, &dto.AnalyzeRequest{Prompt: "x"})
				return err
			},
			want: ErrNoActiveChat,
		},
		{
			name: "analyze needs a prompt",
			call: func() error {
				_, err := h.workflow.Analyze(ctx, "user123", id, &dto.AnalyzeRequest{})
				return err
			},
			want: ErrEmptyPrompt,
		},
		{
			name: "save needs text",
			call: func() error {
				_, err := h.workflow.SaveAnalysis(ctx, "user123", id, &dto.SaveAnalysisRequest{Analysis: "\n \n"})
				return err
			},
			want: ErrEmptyAnalysis,
		},
		{
			name: "save needs an analysis",
			call: func() error {
				_, err := h.workflow.SaveAnalysis(ctx, "user123", id, &dto.SaveAnalysisRequest{Analysis: "REQ-1"})
				return err
			},
			want: ErrNoAnalysis,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	view, err := h.sessions.Workflow(ctx, "user123", id)
	require.NoError(t, err)
	assert.Equal(t, workflow.StageNoChat, view.Stage.Id)
	assert.Empty(t, view.Messages)
}

type failingSource struct {
	backend.DataSource
	err error
}

func (f *failingSource) FetchContext(ctx context.Context, sessionId, prompt string) (*backend.ContextResult, error) {
	return nil, f.err
}

func (f *failingSource) GetSessionDetails(ctx context.Context, sessionId string) (*backend.SessionDetails, error) {
	if sessionId == "missing" {
		return nil, &backend.APIError{Status: 404, Message: "Session not found"}
	}
	return f.DataSource.GetSessionDetails(ctx, sessionId)
}

// GetMessages answers 404 for chats the backend has never seen.
func (f *failingSource) GetMessages(ctx context.Context, chatId string) ([]backend.ChatMessage, error) {
	if chatId == "missing" {
		return nil, &backend.APIError{Status: 404, Message: "Chat not found"}
	}
	return f.DataSource.GetMessages(ctx, chatId)
}

func TestChatService_UnknownChat(t *testing.T) {
	fixtures, err := backend.NewFixtureClient("user123", 0)
	require.NoError(t, err)
	h := newHarness(t, &failingSource{DataSource: fixtures})

	_, err = h.chats.ListMessages(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrChatNotFound)
	assert.True(t, IsNotFoundError(err))
	assert.Empty(t, h.publisher.ofType(events.TypeBackendCallFailed))
}

func TestWorkflowService_SaveAnalysisTargetsCurrentChat(t *testing.T) {
	ctx := context.Background()

	t.Run("edits the analysis of the newest chat", func(t *testing.T) {
		h := newHarness(t, nil)
		id := h.createSession(t)

		first, err := h.workflow.FetchContext(ctx, "user123", id, &dto.FetchContextRequest{Prompt: "first"})
		require.NoError(t, err)
		_, err = h.workflow.Analyze(ctx, "user123", id, &dto.AnalyzeRequest{Prompt: "first"})
		require.NoError(t, err)
		_, err = h.workflow.FetchContext(ctx, "user123", id, &dto.FetchContextRequest{Prompt: "second"})
		require.NoError(t, err)
		_, err = h.workflow.Analyze(ctx, "user123", id, &dto.AnalyzeRequest{Prompt: "second"})
		require.NoError(t, err)

		view, err := h.workflow.SaveAnalysis(ctx, "user123", id, &dto.SaveAnalysisRequest{Analysis: "EDITED"})
		require.NoError(t, err)
		assert.Equal(t, workflow.StageGenerateTestCases, view.Stage.Id)
		assert.Equal(t, "EDITED", view.Analysis)

		old, err := h.chats.ListMessages(ctx, first.CurrentChatId)
		require.NoError(t, err)
		require.Len(t, old, 3)
		assert.Equal(t, "Mock analysis for: first", old[2].Text)
	})

	t.Run("rejects a save when the newest chat has no analysis", func(t *testing.T) {
		h := newHarness(t, nil)
		id := h.createSession(t)

		_, err := h.workflow.FetchContext(ctx, "user123", id, &dto.FetchContextRequest{Prompt: "first"})
		require.NoError(t, err)
		_, err = h.workflow.Analyze(ctx, "user123", id, &dto.AnalyzeRequest{Prompt: "first"})
		require.NoError(t, err)
		_, err = h.workflow.FetchContext(ctx, "user123", id, &dto.FetchContextRequest{Prompt: "second"})
		require.NoError(t, err)

		_, err = h.workflow.SaveAnalysis(ctx, "user123", id, &dto.SaveAnalysisRequest{Analysis: "EDITED"})
		assert.ErrorIs(t, err, ErrNoAnalysis)

		view, err := h.sessions.Workflow(ctx, "user123", id)
		require.NoError(t, err)
		assert.Equal(t, workflow.StageContextFetched, view.Stage.Id)
	})
}

func TestWorkflowService_FailedCallLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()
	fixtures, err := backend.NewFixtureClient("user123", 0)
	require.NoError(t, err)
	h := newHarness(t, &failingSource{
		DataSource: fixtures,
		err:        &backend.APIError{Status: 500, Message: "RAG store unavailable"},
	})
	id := h.createSession(t)

	_, err = h.workflow.FetchContext(ctx, "user123", id, &dto.FetchContextRequest{Prompt: "p"})
	require.Error(t, err)

	apiErr, ok := backend.AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, 500, apiErr.Status)
	assert.Equal(t, "RAG store unavailable", apiErr.Message)

	view, err := h.sessions.Workflow(ctx, "user123", id)
	require.NoError(t, err)
	assert.Equal(t, workflow.StageNoChat, view.Stage.Id)
	assert.Empty(t, view.Chats)
	assert.Empty(t, view.Messages)
	assert.Empty(t, view.UserPrompt)

	failed := h.publisher.ofType(events.TypeBackendCallFailed)
	require.Len(t, failed, 1)
	assert.Equal(t, id, failed[0].SessionID())
	assert.Equal(t, "fetch_context", failed[0].Payload()["operation"])
}

func TestSessionService_DetailsMissingSession(t *testing.T) {
	fixtures, err := backend.NewFixtureClient("user123", 0)
	require.NoError(t, err)
	h := newHarness(t, &failingSource{DataSource: fixtures})

	_, err = h.sessions.Details(context.Background(), "user123", "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.True(t, IsNotFoundError(err))
	assert.Equal(t, 0, h.repo.Count())
}

func TestSessionService_DetailsReconcilesStage(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	id := h.createSession(t)

	// Another client moved the session forward on the backend.
	_, err := h.source.FetchContext(ctx, id, "from elsewhere")
	require.NoError(t, err)

	res, err := h.sessions.Details(ctx, "user123", id)
	require.NoError(t, err)
	assert.Equal(t, "rag_context_loaded", res.Details.Status)
	assert.Equal(t, workflow.StageAnalyze, res.Workflow.Stage.Id)
	assert.Equal(t, workflow.SourceBackend, res.Workflow.Stage.Source)
}

func TestSessionService_RebuildsUnknownSession(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)

	view, err := h.workflow.Refresh(ctx, "user123", "session-hipaa-002")
	require.NoError(t, err)
	assert.Equal(t, "session-hipaa-002", view.SessionId)
	assert.Equal(t, workflow.StageNoChat, view.Stage.Id)
	assert.Equal(t, 1, h.repo.Count())
}

func TestSessionService_Lists(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	id := h.createSession(t)

	sessions, err := h.sessions.ListUserSessions(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, sessions)
	assert.Equal(t, id, sessions[0].Id)
	assert.Equal(t, "draft", sessions[0].Status)

	active, err := h.sessions.ListActiveSessions(ctx)
	require.NoError(t, err)
	assert.Len(t, active, len(sessions))

	_, err = h.sessions.Create(ctx, "user123", &dto.CreateSessionRequest{ProjectName: " "})
	assert.ErrorIs(t, err, ErrEmptyProjectName)
}

// gatedSource blocks analyze calls for the "slow" prompt until released.
type gatedSource struct {
	backend.DataSource
	entered chan struct{}
	release chan struct{}
}

func (g *gatedSource) AnalyzeRequirements(ctx context.Context, sessionId, prompt string) (*backend.AnalysisResult, error) {
	if prompt == "slow" {
		close(g.entered)
		<-g.release
		return &backend.AnalysisResult{Analysis: "old analysis"}, nil
	}
	return &backend.AnalysisResult{Analysis: "new analysis"}, nil
}

func TestWorkflowService_StaleAnalysisIsDiscarded(t *testing.T) {
	ctx := context.Background()
	fixtures, err := backend.NewFixtureClient("user123", 0)
	require.NoError(t, err)
	gated := &gatedSource{
		DataSource: fixtures,
		entered:    make(chan struct{}),
		release:    make(chan struct{}),
	}
	h := newHarness(t, gated)
	id := h.createSession(t)

	_, err = h.workflow.FetchContext(ctx, "user123", id, &dto.FetchContextRequest{Prompt: "p"})
	require.NoError(t, err)

	slowErr := make(chan error, 1)
	go func() {
		_, err := h.workflow.Analyze(ctx, "user123", id, &dto.AnalyzeRequest{Prompt: "slow"})
		slowErr <- err
	}()
	<-gated.entered

	view, err := h.workflow.Analyze(ctx, "user123", id, &dto.AnalyzeRequest{Prompt: "fast"})
	require.NoError(t, err)
	assert.Equal(t, "new analysis", view.Analysis)

	close(gated.release)
	err = <-slowErr
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSuperseded)
	assert.True(t, IsConflictError(err))

	view, err = h.sessions.Workflow(ctx, "user123", id)
	require.NoError(t, err)
	assert.Equal(t, "new analysis", view.Analysis)
	assert.Len(t, view.Messages, 3)
	for _, m := range view.Messages {
		assert.NotEqual(t, "old analysis", m.Text)
		assert.NotEqual(t, "slow", m.Text)
	}

	assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.StaleDropped.WithLabelValues(string(store.ActionAnalyze))))
	assert.Len(t, h.publisher.ofType(events.TypeStaleResultDropped), 1)
}

// slowStatusSource blocks the first status read until released.
type slowStatusSource struct {
	backend.DataSource
	calls   atomic.Int32
	entered chan struct{}
	release chan struct{}
}

func (g *slowStatusSource) GetSessionDetails(ctx context.Context, sessionId string) (*backend.SessionDetails, error) {
	if g.calls.Add(1) == 1 {
		close(g.entered)
		<-g.release
	}
	return g.DataSource.GetSessionDetails(ctx, sessionId)
}

func TestWorkflowService_OverlappingRefreshesAreNotStaleResults(t *testing.T) {
	ctx := context.Background()
	fixtures, err := backend.NewFixtureClient("user123", 0)
	require.NoError(t, err)
	h := newHarness(t, fixtures)
	id := h.createSession(t)

	slow := &slowStatusSource{
		DataSource: fixtures,
		entered:    make(chan struct{}),
		release:    make(chan struct{}),
	}
	flow := NewWorkflowService(h.repo, slow, h.publisher, h.metrics, logger.NewNopLogger())

	slowErr := make(chan error, 1)
	go func() {
		_, err := flow.Refresh(ctx, "user123", id)
		slowErr <- err
	}()
	<-slow.entered

	_, err = flow.Refresh(ctx, "user123", id)
	require.NoError(t, err)

	close(slow.release)
	require.NoError(t, <-slowErr)

	assert.Equal(t, float64(0), testutil.ToFloat64(h.metrics.StaleDropped.WithLabelValues(string(store.ActionStatus))))
	assert.Empty(t, h.publisher.ofType(events.TypeStaleResultDropped))
}

func TestChatService(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	id := h.createSession(t)

	t.Run("falls back to the data source", func(t *testing.T) {
		chats, err := h.chats.ListChats(ctx, id)
		require.NoError(t, err)
		assert.Len(t, chats, 3)

		messages, err := h.chats.ListMessages(ctx, "chat-001")
		require.NoError(t, err)
		assert.Len(t, messages, 3)
	})

	view, err := h.workflow.FetchContext(ctx, "user123", id, &dto.FetchContextRequest{Prompt: "p"})
	require.NoError(t, err)
	chatId := view.CurrentChatId

	t.Run("serves local chats", func(t *testing.T) {
		chats, err := h.chats.ListChats(ctx, id)
		require.NoError(t, err)
		require.Len(t, chats, 1)
		assert.Equal(t, chatId, chats[0].Id)
	})

	t.Run("send appends to the owning session", func(t *testing.T) {
		res, err := h.chats.SendMessage(ctx, chatId, &dto.SendMessageRequest{Text: "hello"})
		require.NoError(t, err)
		assert.Equal(t, backend.RoleUser, res.Sent.Role)
		assert.Equal(t, `Mock agent reply for: "hello"`, res.Reply.Text)

		messages, err := h.chats.ListMessages(ctx, chatId)
		require.NoError(t, err)
		require.Len(t, messages, 3)
		assert.Equal(t, "hello", messages[1].Text)
		assert.Equal(t, res.Reply.Id, messages[2].Id)

		chats, err := h.chats.ListChats(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, res.Reply.Text, chats[0].LastMessage)
	})

	t.Run("send rejects blank text", func(t *testing.T) {
		_, err := h.chats.SendMessage(ctx, chatId, &dto.SendMessageRequest{Text: " "})
		assert.ErrorIs(t, err, ErrEmptyPrompt)
	})
}

func TestDocumentService_Upload(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)

	_, err := h.documents.Upload(ctx, &dto.UploadDocumentRequest{Filename: "empty.txt"})
	assert.ErrorIs(t, err, ErrEmptyDocument)

	res, err := h.documents.Upload(ctx, &dto.UploadDocumentRequest{
		Filename:  "requirements.pdf",
		Content:   []byte("patients must be able to view lab results"),
		EnableRAG: true,
		SessionId: "session-emr-001",
	})
	require.NoError(t, err)
	assert.Equal(t, "success", res.Result.Status)
	assert.Equal(t, "session-emr-001", res.SessionId)
	assert.Equal(t, 1, res.Result.RAGChunksCreated)

	uploaded := h.publisher.ofType(events.TypeDocumentUploaded)
	require.Len(t, uploaded, 1)
	assert.Equal(t, "requirements", uploaded[0].Payload()["document_type"])
}

func TestServiceErrorUnwraps(t *testing.T) {
	err := opError("analyze", &backend.TransportError{Op: "POST /analyze", Err: context.DeadlineExceeded})
	assert.True(t, backend.IsTransportError(err))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.False(t, IsConflictError(err))
}
