package backend

import (
	"context"
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"testcase-workflow-be/pkg/testcase"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

//go:embed fixtures.yaml
var fixturesYAML []byte

type fixtureSession struct {
	Id          string `yaml:"id"`
	ProjectName string `yaml:"project_name"`
	Status      string `yaml:"status"`
	CreatedAt   string `yaml:"created_at"`
	UpdatedAt   string `yaml:"updated_at"`
}

type fixtureRequirement struct {
	RequirementType string `yaml:"requirement_type"`
	Priority        string `yaml:"priority"`
	Content         string `yaml:"content"`
}

type fixtureChat struct {
	Id          string `yaml:"id"`
	Title       string `yaml:"title"`
	LastMessage string `yaml:"last_message"`
	AgeMinutes  int    `yaml:"age_minutes"`
}

type fixtureMessage struct {
	Id         string `yaml:"id"`
	Role       Role   `yaml:"role"`
	Text       string `yaml:"text"`
	AgeMinutes int    `yaml:"age_minutes"`
}

type fixtureData struct {
	Sessions          []fixtureSession     `yaml:"sessions"`
	Requirements      []fixtureRequirement `yaml:"requirements"`
	Chats             []fixtureChat        `yaml:"chats"`
	Messages          []fixtureMessage     `yaml:"messages"`
	TestCasesResponse string               `yaml:"test_cases_response"`
}

// FixtureClient serves canned backend data. Each session's backend status
// advances as workflow operations succeed, so status reconciliation behaves
// the way it does against the real backend.
type FixtureClient struct {
	UserId string
	Delay  time.Duration

	data fixtureData
	now  func() time.Time

	mu       sync.Mutex
	created  []Session
	statuses map[string]string
	prompts  map[string]string
}

// Ensure FixtureClient implements DataSource
var _ DataSource = &FixtureClient{}

func NewFixtureClient(userId string, delay time.Duration) (*FixtureClient, error) {
	var data fixtureData
	if err := yaml.Unmarshal(fixturesYAML, &data); err != nil {
		return nil, fmt.Errorf("decode fixtures: %w", err)
	}

	return &FixtureClient{
		UserId:   userId,
		Delay:    delay,
		data:     data,
		now:      time.Now,
		statuses: make(map[string]string),
		prompts:  make(map[string]string),
	}, nil
}

func (f *FixtureClient) CreateSession(ctx context.Context, projectName string) (*Session, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}

	now := f.now()
	s := Session{
		ID:          "session-" + uuid.New().String(),
		ProjectName: projectName,
		Status:      "created",
		CreatedAt:   now,
		UpdatedAt:   &now,
	}

	f.mu.Lock()
	f.created = append(f.created, s)
	f.statuses[s.ID] = "created"
	f.mu.Unlock()

	return &s, nil
}

func (f *FixtureClient) GetUserSessions(ctx context.Context) ([]Session, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	return f.allSessions(), nil
}

func (f *FixtureClient) GetActiveSessions(ctx context.Context) ([]Session, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	return f.allSessions(), nil
}

func (f *FixtureClient) GetSessionDetails(ctx context.Context, sessionId string) (*SessionDetails, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}

	f.mu.Lock()
	status, ok := f.statuses[sessionId]
	prompt := f.prompts[sessionId]
	f.mu.Unlock()
	if !ok {
		status = "created"
	}

	projectName := "Authentication System Testing"
	for _, s := range f.allSessions() {
		if s.ID == sessionId {
			projectName = s.ProjectName
		}
	}

	stamp := f.now().UTC().Format("2006-01-02T15:04:05.999999")
	details := &SessionDetails{
		SessionId:    sessionId,
		UserId:       f.UserId,
		ProjectName:  projectName,
		UserPrompt:   prompt,
		Status:       status,
		CreatedAt:    stamp,
		UpdatedAt:    stamp,
		Requirements: []Requirement{},
		TestCases:    []StoredTestCase{},
	}

	if status != "created" && status != "rag_context_loaded" {
		for i, r := range f.data.Requirements {
			details.Requirements = append(details.Requirements, Requirement{
				Id:              fmt.Sprintf("session_%s_req_%03d", sessionId, i+1),
				SessionId:       sessionId,
				OriginalContent: r.Content,
				RequirementType: r.RequirementType,
				Priority:        r.Priority,
				Status:          "active",
				Version:         1,
				CreatedAt:       stamp,
				UpdatedAt:       stamp,
			})
		}
		details.RequirementsCount = len(details.Requirements)
	}
	if status == "requirements_edited" || status == "test_cases_generated" {
		details.EditedRequirementsCount = details.RequirementsCount
	}
	if status == "test_cases_generated" {
		details.TestCasesCount = len(testcase.Parse(f.data.TestCasesResponse))
	}

	return details, nil
}

func (f *FixtureClient) FetchContext(ctx context.Context, sessionId, prompt string) (*ContextResult, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}

	f.advance(sessionId, "rag_context_loaded")
	f.mu.Lock()
	f.prompts[sessionId] = prompt
	f.mu.Unlock()

	return &ContextResult{
		Summary:   "Mock context for prompt: " + prompt,
		ContextId: "ctx-" + uuid.New().String(),
	}, nil
}

func (f *FixtureClient) AnalyzeRequirements(ctx context.Context, sessionId, prompt string) (*AnalysisResult, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}

	f.advance(sessionId, "requirements_analyzed")
	return &AnalysisResult{
		Analysis:  "Mock analysis for: " + prompt,
		AgentUsed: "mock_agent",
	}, nil
}

func (f *FixtureClient) EditRequirements(ctx context.Context, sessionId string, requirements []string) (*EditResult, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}

	f.advance(sessionId, "requirements_edited")
	return &EditResult{
		Status:  "success",
		Message: "Requirements updated successfully",
	}, nil
}

func (f *FixtureClient) GenerateTestCases(ctx context.Context, sessionId, prompt string) (*GenerationResult, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}

	f.advance(sessionId, "test_cases_generated")
	return &GenerationResult{
		TestCases:   testcase.Parse(f.data.TestCasesResponse),
		RawResponse: f.data.TestCasesResponse,
	}, nil
}

func (f *FixtureClient) SendMessage(ctx context.Context, chatId, text string) (*ChatMessage, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}

	return &ChatMessage{
		Id:        "msg-" + uuid.New().String(),
		Role:      RoleAgent,
		Text:      fmt.Sprintf("Mock agent reply for: %q", text),
		CreatedAt: f.now(),
		ChatId:    chatId,
	}, nil
}

func (f *FixtureClient) GetChats(ctx context.Context, sessionId string) ([]Chat, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}

	now := f.now()
	chats := make([]Chat, 0, len(f.data.Chats))
	for _, c := range f.data.Chats {
		chats = append(chats, Chat{
			Id:          c.Id,
			Title:       c.Title,
			SessionId:   sessionId,
			LastMessage: c.LastMessage,
			UpdatedAt:   now.Add(-time.Duration(c.AgeMinutes) * time.Minute),
		})
	}
	return chats, nil
}

func (f *FixtureClient) GetMessages(ctx context.Context, chatId string) ([]ChatMessage, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}

	now := f.now()
	messages := make([]ChatMessage, 0, len(f.data.Messages))
	for _, m := range f.data.Messages {
		messages = append(messages, ChatMessage{
			Id:        m.Id,
			Role:      m.Role,
			Text:      m.Text,
			CreatedAt: now.Add(-time.Duration(m.AgeMinutes) * time.Minute),
			ChatId:    chatId,
		})
	}
	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].CreatedAt.Before(messages[j].CreatedAt)
	})
	return messages, nil
}

func (f *FixtureClient) UploadDocument(ctx context.Context, req UploadRequest) (*UploadResult, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}

	docId := req.DocumentId
	if docId == "" {
		docId = "doc-" + uuid.New().String()
	}

	chunks := len(strings.Fields(string(req.Content)))/200 + 1
	result := &UploadResult{
		Status:        "success",
		DocumentId:    docId,
		FileType:      fileType(req.Filename),
		ChunksCreated: chunks,
		Message:       "Document processed successfully",
	}
	if req.EnableRAG {
		result.RAGChunksCreated = chunks
	}
	return result, nil
}

// --- Helpers ---

func (f *FixtureClient) wait(ctx context.Context) error {
	if f.Delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(f.Delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return &TransportError{Op: "fixture", Err: ctx.Err()}
	case <-timer.C:
		return nil
	}
}

func (f *FixtureClient) advance(sessionId, status string) {
	f.mu.Lock()
	f.statuses[sessionId] = status
	f.mu.Unlock()
}

func (f *FixtureClient) allSessions() []Session {
	sessions := make([]Session, 0, len(f.data.Sessions))
	for _, s := range f.data.Sessions {
		session := Session{
			ID:          s.Id,
			ProjectName: s.ProjectName,
			Status:      s.Status,
			CreatedAt:   parseBackendTime(s.CreatedAt),
		}
		if s.UpdatedAt != "" {
			t := parseBackendTime(s.UpdatedAt)
			session.UpdatedAt = &t
		}
		sessions = append(sessions, session)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	// newest first
	for _, s := range f.created {
		sessions = append([]Session{s}, sessions...)
	}
	return sessions
}

func fileType(filename string) string {
	idx := strings.LastIndex(filename, ".")
	if idx < 0 || idx == len(filename)-1 {
		return "unknown"
	}
	return strings.ToLower(filename[idx+1:])
}
