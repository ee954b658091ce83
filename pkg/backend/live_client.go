package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"testcase-workflow-be/pkg/testcase"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// APIPrefix is the path prefix of every backend route.
const APIPrefix = "/api/v2"

// LiveClient talks to the test-case generation backend over HTTP.
// Chat transcripts have no backend route yet and are served by Chats.
type LiveClient struct {
	BaseURL string
	UserId  string
	Client  *http.Client
	Chats   DataSource
}

// Ensure LiveClient implements DataSource
var _ DataSource = &LiveClient{}

func NewLiveClient(baseURL, userId string, chats DataSource) *LiveClient {
	return &LiveClient{
		BaseURL: strings.TrimRight(baseURL, "/") + APIPrefix,
		UserId:  userId,
		Client: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		Chats: chats,
	}
}

// --- Wire structs ---

type createSessionRequest struct {
	UserId      string `json:"user_id"`
	ProjectName string `json:"project_name"`
}

type createSessionResponse struct {
	SessionId     string `json:"session_id"`
	UserId        string `json:"user_id"`
	ProjectName   string `json:"project_name"`
	Status        string `json:"status"`
	Message       string `json:"message"`
	DatabaseSaved bool   `json:"database_saved"`
}

type sessionListItem struct {
	SessionId   string `json:"session_id"`
	ProjectName string `json:"project_name"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

type userSessionsResponse struct {
	Sessions []sessionListItem `json:"sessions"`
}

type fetchContextRequest struct {
	SessionId string `json:"session_id"`
	Prompt    string `json:"prompt"`
	UserId    string `json:"user_id"`
}

type fetchContextResponse struct {
	Message       string `json:"message"`
	CacheKey      string `json:"cache_key"`
	RagItemsCount int    `json:"rag_items_count"`
}

type promptRequest struct {
	SessionId string `json:"session_id"`
	Prompt    string `json:"prompt"`
}

type analyzeResponse struct {
	Status       string `json:"status"`
	AgentUsed    string `json:"agent_used"`
	Requirements struct {
		Response string `json:"response"`
	} `json:"requirements"`
}

type editRequirementsRequest struct {
	Requirements []string `json:"requirements"`
}

type editRequirementsResponse struct {
	Message string `json:"message"`
}

type generateResponse struct {
	Status    string `json:"status"`
	TestCases string `json:"test_cases"`
}

// --- DataSource implementation ---

func (c *LiveClient) CreateSession(ctx context.Context, projectName string) (*Session, error) {
	var resp createSessionResponse
	body := createSessionRequest{UserId: c.UserId, ProjectName: projectName}
	if err := c.doJSON(ctx, http.MethodPost, "/sessions/sessions", body, &resp); err != nil {
		return nil, err
	}

	return &Session{
		ID:          resp.SessionId,
		ProjectName: resp.ProjectName,
		Status:      resp.Status,
		CreatedAt:   time.Now(),
	}, nil
}

func (c *LiveClient) GetUserSessions(ctx context.Context) ([]Session, error) {
	var items []sessionListItem
	if err := c.doJSON(ctx, http.MethodGet, "/sessions/sessions", nil, &items); err != nil {
		return nil, err
	}
	return toSessions(items), nil
}

func (c *LiveClient) GetActiveSessions(ctx context.Context) ([]Session, error) {
	var resp userSessionsResponse
	path := "/sessions/users/" + url.PathEscape(c.UserId) + "/sessions"
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return toSessions(resp.Sessions), nil
}

func (c *LiveClient) GetSessionDetails(ctx context.Context, sessionId string) (*SessionDetails, error) {
	var details SessionDetails
	path := "/sessions/sessions/" + url.PathEscape(sessionId)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &details); err != nil {
		return nil, err
	}
	return &details, nil
}

func (c *LiveClient) FetchContext(ctx context.Context, sessionId, prompt string) (*ContextResult, error) {
	var resp fetchContextResponse
	body := fetchContextRequest{SessionId: sessionId, Prompt: prompt, UserId: c.UserId}
	if err := c.doJSON(ctx, http.MethodPost, "/sessions/rag/fetch-and-save", body, &resp); err != nil {
		return nil, err
	}

	summary := fmt.Sprintf("Healthcare Context Retrieved: %s. Found %d relevant items.", resp.Message, resp.RagItemsCount)
	return &ContextResult{Summary: summary, ContextId: resp.CacheKey}, nil
}

func (c *LiveClient) AnalyzeRequirements(ctx context.Context, sessionId, prompt string) (*AnalysisResult, error) {
	var resp analyzeResponse
	body := promptRequest{SessionId: sessionId, Prompt: prompt}
	if err := c.doJSON(ctx, http.MethodPost, "/requirements/analyze", body, &resp); err != nil {
		return nil, err
	}
	return &AnalysisResult{Analysis: resp.Requirements.Response, AgentUsed: resp.AgentUsed}, nil
}

func (c *LiveClient) EditRequirements(ctx context.Context, sessionId string, requirements []string) (*EditResult, error) {
	var resp editRequirementsResponse
	path := "/requirements/" + url.PathEscape(sessionId)
	if err := c.doJSON(ctx, http.MethodPut, path, editRequirementsRequest{Requirements: requirements}, &resp); err != nil {
		return nil, err
	}
	return &EditResult{Status: "success", Message: resp.Message}, nil
}

func (c *LiveClient) GenerateTestCases(ctx context.Context, sessionId, prompt string) (*GenerationResult, error) {
	if strings.TrimSpace(prompt) == "" {
		prompt = DefaultGeneratePrompt
	}

	var resp generateResponse
	body := promptRequest{SessionId: sessionId, Prompt: prompt}
	if err := c.doJSON(ctx, http.MethodPost, "/test-cases/generate", body, &resp); err != nil {
		return nil, err
	}

	return &GenerationResult{
		TestCases:   testcase.Parse(resp.TestCases),
		RawResponse: resp.TestCases,
	}, nil
}

func (c *LiveClient) SendMessage(ctx context.Context, chatId, text string) (*ChatMessage, error) {
	return c.Chats.SendMessage(ctx, chatId, text)
}

func (c *LiveClient) GetChats(ctx context.Context, sessionId string) ([]Chat, error) {
	return c.Chats.GetChats(ctx, sessionId)
}

func (c *LiveClient) GetMessages(ctx context.Context, chatId string) ([]ChatMessage, error) {
	return c.Chats.GetMessages(ctx, chatId)
}

func (c *LiveClient) UploadDocument(ctx context.Context, in UploadRequest) (*UploadResult, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", in.Filename)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(in.Content); err != nil {
		return nil, fmt.Errorf("write form file: %w", err)
	}

	docType := in.DocumentType
	if docType == "" {
		docType = "requirements"
	}
	fields := map[string]string{
		"document_type": docType,
		"enable_rag":    fmt.Sprintf("%t", in.EnableRAG),
		"user_id":       c.UserId,
	}
	if in.DocumentId != "" {
		fields["document_id"] = in.DocumentId
	}
	if len(in.Metadata) > 0 {
		meta, err := json.Marshal(in.Metadata)
		if err != nil {
			return nil, fmt.Errorf("marshal metadata: %w", err)
		}
		fields["metadata"] = string(meta)
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("write field %s: %w", k, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/data-ingestion/upload-with-rag", &buf)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	var result UploadResult
	if err := c.do(req, "upload document", &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// --- Helpers ---

func (c *LiveClient) doJSON(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.do(req, method+" "+path, out)
}

func (c *LiveClient) do(req *http.Request, op string, out interface{}) error {
	resp, err := c.Client.Do(req)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Status: resp.StatusCode, Message: errorMessage(bodyBytes, resp.StatusCode)}
	}

	if out == nil || len(bytes.TrimSpace(bodyBytes)) == 0 {
		return nil
	}
	if err := json.Unmarshal(bodyBytes, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

// errorMessage prefers the backend's "message" field, then a string
// "detail", then the status line.
func errorMessage(body []byte, status int) string {
	var payload struct {
		Message string      `json:"message"`
		Detail  interface{} `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if s, ok := payload.Detail.(string); ok && s != "" {
			return s
		}
	}
	return fmt.Sprintf("HTTP %d: %s", status, http.StatusText(status))
}

func toSessions(items []sessionListItem) []Session {
	sessions := make([]Session, 0, len(items))
	for _, item := range items {
		s := Session{
			ID:          item.SessionId,
			ProjectName: item.ProjectName,
			Status:      item.Status,
			CreatedAt:   parseBackendTime(item.CreatedAt),
		}
		if item.UpdatedAt != "" {
			t := parseBackendTime(item.UpdatedAt)
			s.UpdatedAt = &t
		}
		sessions = append(sessions, s)
	}
	return sessions
}

var backendTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// parseBackendTime accepts both RFC3339 and the zone-less timestamps the
// backend emits. Unparseable values yield the zero time.
func parseBackendTime(raw string) time.Time {
	for _, layout := range backendTimeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}
	return time.Time{}
}
